package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mw "github.com/fatflowers/clinicbilling/internal/app/api/middleware"
	"github.com/fatflowers/clinicbilling/internal/app/service/billing"
	"github.com/fatflowers/clinicbilling/pkg/types"
)

// @Summary      Register tenant
// @Tags         Tenant
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      billing.CreateTenantRequest  true  "Tenant"
// @Success      201      {object}  handlers.SwaggerTenant
// @Failure      400      {object}  response.ErrorBody
// @Failure      403      {object}  response.ErrorBody
// @Router       /api/v1/tenants [post]
func ApiCreateTenant(svc *billing.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req billing.CreateTenantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		t, err := svc.CreateTenant(c.Request.Context(), &req)
		if err != nil {
			writeError(c, log, "Failed to create tenant", err)
			return
		}
		c.JSON(http.StatusCreated, t)
	}
}

// @Summary      Get tenant
// @Tags         Tenant
// @Produce      json
// @Security     BearerAuth
// @Param        tenantId  path      string  true  "Tenant ID"
// @Success      200       {object}  handlers.SwaggerTenant
// @Failure      403       {object}  response.ErrorBody
// @Failure      404       {object}  response.ErrorBody
// @Router       /api/v1/tenants/{tenantId} [get]
func ApiGetTenant(svc *billing.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		t, err := svc.GetTenant(c.Request.Context(), c.Param("tenantId"))
		if err != nil {
			writeError(c, log, "Failed to fetch tenant", err)
			return
		}
		c.JSON(http.StatusOK, t)
	}
}

// RegisterTenantRoutes mounts tenant management. Registration is admin only.
func RegisterTenantRoutes(r gin.IRouter, svc *billing.Service, log *zap.SugaredLogger) {
	r.POST("", mw.RequireRole(types.RoleAdmin), ApiCreateTenant(svc, log))
	r.GET("/:tenantId", mw.RequireTenantParam("tenantId"), ApiGetTenant(svc, log))
}
