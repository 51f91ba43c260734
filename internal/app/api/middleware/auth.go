package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/fatflowers/clinicbilling/pkg/logctx"
	"github.com/fatflowers/clinicbilling/pkg/response"
	"github.com/fatflowers/clinicbilling/pkg/types"
)

const ginClaimsKey = "claims"

// Claims are carried by the HS256 bearer token. Subject is the user id.
type Claims struct {
	TenantID string     `json:"tenant_id"`
	Role     types.Role `json:"role"`
	jwt.RegisteredClaims
}

var errMissingBearer = errors.New("missing bearer token")

// Auth rejects requests without a valid bearer token and exposes the claims
// to later handlers.
func Auth(secret string, base *zap.SugaredLogger) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	key := []byte(secret)

	return func(c *gin.Context) {
		claims, err := parseBearer(parser, key, c.GetHeader("Authorization"))
		if err != nil {
			logctx.FromGin(c, base).Infow("auth_rejected", "err", err)
			response.Error(c, http.StatusUnauthorized, "Unauthorized", err.Error())
			return
		}

		c.Set(ginClaimsKey, claims)
		if claims.TenantID != "" {
			c.Request = c.Request.WithContext(logctx.WithTenantID(c.Request.Context(), claims.TenantID))
			if l, ok := c.Get(logctx.GinLoggerKey); ok {
				if lg, ok := l.(*zap.SugaredLogger); ok && lg != nil {
					c.Set(logctx.GinLoggerKey, lg.With("tenant_id", claims.TenantID))
				}
			}
		}
		c.Next()
	}
}

func parseBearer(parser *jwt.Parser, key []byte, header string) (*Claims, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, errMissingBearer
	}
	claims := &Claims{}
	if _, err := parser.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (any, error) {
		return key, nil
	}); err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}

// ClaimsFrom returns the claims set by Auth.
func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(ginClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok && claims != nil
}

// CanAccessTenant reports whether the caller may act on tenantID. Admins may
// act on any tenant.
func CanAccessTenant(c *gin.Context, tenantID string) bool {
	claims, ok := ClaimsFrom(c)
	if !ok {
		return false
	}
	return claims.Role == types.RoleAdmin || (claims.TenantID != "" && claims.TenantID == tenantID)
}

// RequireTenantParam aborts with 403 unless the caller may access the tenant
// named by the path parameter.
func RequireTenantParam(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CanAccessTenant(c, c.Param(param)) {
			response.Error(c, http.StatusForbidden, "Forbidden", "token is not scoped to this tenant")
			return
		}
		c.Next()
	}
}

// RequireRole aborts with 403 unless the caller holds one of roles.
func RequireRole(roles ...types.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok || !slices.Contains(roles, claims.Role) {
			response.Error(c, http.StatusForbidden, "Forbidden", "insufficient role")
			return
		}
		c.Next()
	}
}
