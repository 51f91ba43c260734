package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	nh "github.com/fatflowers/clinicbilling/internal/app/service/notification_handler"
	"github.com/fatflowers/clinicbilling/internal/app/service/signature"
	"github.com/fatflowers/clinicbilling/pkg/logctx"
	"github.com/fatflowers/clinicbilling/pkg/response"
)

const maxWebhookBody = 1 << 20

// @Summary      Mercado Pago webhook
// @Description  Receives payment processor notifications. Deliveries must carry a valid x-signature; every verified delivery is acknowledged, including ones that are ignored or fail downstream.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        topic         query   string  false  "Event topic"
// @Param        type          query   string  false  "Event topic (alternate)"
// @Param        data.id       query   string  false  "Event subject id"
// @Param        ts            query   string  false  "Signature timestamp"
// @Param        x-signature   header  string  false  "ts=...,v1=<hex>"
// @Param        x-request-id  header  string  false  "Delivery id"
// @Param        payload       body    object  false  "Notification payload"
// @Success      200  {object}  response.WebhookAck
// @Failure      400  {object}  response.ErrorBody
// @Failure      401  {object}  response.ErrorBody
// @Router       /subscriptions/webhooks [post]
func ApiWebhook(v *signature.Verifier, h *nh.NotificationHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		log := logctx.FromGin(c, h.Logger)

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			response.Error(c, http.StatusBadRequest, "Invalid body", err.Error())
			return
		}
		query := c.Request.URL.Query()
		if !v.Verify(c.Request.Header, query) {
			log.Warnw("webhook_signature_invalid", "request_id", c.GetHeader(signature.HeaderRequestID))
			response.Error(c, http.StatusUnauthorized, "Invalid signature", "")
			return
		}

		if _, err := h.Dispatch(c.Request.Context(), nh.ParseEvent(query, body)); err != nil {
			log.Errorw("webhook_dispatch_error", "err", err)
			response.Error(c, http.StatusBadRequest, "Webhook processing failed", err.Error())
			return
		}
		c.JSON(http.StatusOK, &response.WebhookAck{Received: true})
	}
}

func RegisterWebhookRoutes(r gin.IRouter, v *signature.Verifier, h *nh.NotificationHandler) {
	r.POST("/webhooks", ApiWebhook(v, h))
}
