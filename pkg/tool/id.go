package tool

import (
	"strings"

	"github.com/google/uuid"
)

func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// GenerateTenantID returns a UUIDv7 without hyphens. Tenant ids are embedded in
// hyphen-delimited external references, so they must not contain '-'.
func GenerateTenantID() string {
	return strings.ReplaceAll(GenerateUUIDV7(), "-", "")
}
