package handlers

import (
	"fmt"
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// tenantIDPattern excludes '-', the external reference delimiter.
var tenantIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,64}$`)

func validTenantID(fl validator.FieldLevel) bool {
	return tenantIDPattern.MatchString(fl.Field().String())
}

// RegisterValidators adds the custom binding rules used by request types.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
	}
	return v.RegisterValidation("tenant_id", validTenantID)
}
