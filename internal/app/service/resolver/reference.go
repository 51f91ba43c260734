package resolver

import (
	"strconv"
	"strings"
	"time"

	"github.com/fatflowers/clinicbilling/pkg/types"
)

// Reference is the decoded form of "<prefix>-<tenantId>-<plan>-<unixMillis>".
type Reference struct {
	Prefix    string
	TenantID  string
	Plan      string
	CreatedAt time.Time
}

// FormatReference encodes a reference for a new processor-side subscription.
func FormatReference(prefix, tenantID string, plan types.Plan, at time.Time) string {
	return strings.Join([]string{prefix, tenantID, string(plan), strconv.FormatInt(at.UnixMilli(), 10)}, "-")
}

// ParseReference decodes ref. It only accepts exactly four non-empty
// hyphen-delimited segments whose last segment is a unix-millis timestamp.
func ParseReference(ref string) (*Reference, bool) {
	parts := strings.Split(strings.TrimSpace(ref), "-")
	if len(parts) != 4 {
		return nil, false
	}
	for _, p := range parts {
		if p == "" {
			return nil, false
		}
	}
	ms, err := strconv.ParseInt(parts[3], 10, 64)
	if err != nil || ms < 0 {
		return nil, false
	}
	return &Reference{
		Prefix:    parts[0],
		TenantID:  parts[1],
		Plan:      parts[2],
		CreatedAt: time.UnixMilli(ms).UTC(),
	}, true
}

// PlanHint returns the recurring plan encoded in the reference, if any.
func (r *Reference) PlanHint() (types.Plan, bool) {
	if r == nil {
		return "", false
	}
	p, ok := types.ParsePlan(r.Plan)
	if !ok || !p.Recurring() {
		return "", false
	}
	return p, true
}
