package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/clinicbilling/internal/app/service/billing"
	"github.com/fatflowers/clinicbilling/internal/app/store"
	"github.com/fatflowers/clinicbilling/internal/platform/mercadopago"
	"github.com/fatflowers/clinicbilling/pkg/logctx"
	"github.com/fatflowers/clinicbilling/pkg/response"
)

// writeError maps a command error to its HTTP status. msg names the failed
// operation for 500s.
func writeError(c *gin.Context, log *zap.SugaredLogger, msg string, err error) {
	var apiErr *mercadopago.APIError
	switch {
	case errors.Is(err, store.ErrNotFound):
		response.Error(c, http.StatusNotFound, "Tenant not found", "")
	case errors.Is(err, billing.ErrInvalidPlan), errors.Is(err, billing.ErrMissingSubscriptionID):
		response.Error(c, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, billing.ErrForbidden):
		response.Error(c, http.StatusForbidden, "Forbidden", "token is not scoped to this tenant")
	case errors.Is(err, mercadopago.ErrNotFound):
		var upstream any
		if errors.As(err, &apiErr) && len(apiErr.Body) > 0 {
			upstream = apiErr.Body
		}
		response.UpstreamError(c, http.StatusNotFound, "Subscription not found", err.Error(), upstream)
	case errors.As(err, &apiErr):
		logctx.FromGin(c, log).Errorw("processor_call_failed", "op", msg, "status", apiErr.StatusCode, "err", err)
		var upstream any
		if len(apiErr.Body) > 0 {
			upstream = apiErr.Body
		}
		response.UpstreamError(c, http.StatusInternalServerError, msg, err.Error(), upstream)
	default:
		logctx.FromGin(c, log).Errorw("request_failed", "op", msg, "err", err)
		response.Error(c, http.StatusInternalServerError, msg, err.Error())
	}
}

func badRequest(c *gin.Context, err error) {
	response.Error(c, http.StatusBadRequest, "Invalid request", err.Error())
}
