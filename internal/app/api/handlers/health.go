package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/clinicbilling/internal/app/store"
	"github.com/fatflowers/clinicbilling/pkg/logctx"
	"github.com/fatflowers/clinicbilling/pkg/response"
)

// @Summary      Health check
// @Description  Returns service status after pinging the store
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {object}  response.ErrorBody
// @Router       /healthz [get]
func Healthz(s store.Store, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.Ping(c.Request.Context()); err != nil {
			logctx.FromGin(c, log).Errorw("health_store_unreachable", "err", err)
			response.Error(c, http.StatusServiceUnavailable, "Store unavailable", err.Error())
			return
		}
		c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	}
}

func RegisterHealthRoutes(r gin.IRouter, s store.Store, log *zap.SugaredLogger) {
	r.GET("/healthz", Healthz(s, log))
}
