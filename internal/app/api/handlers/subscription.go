package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mw "github.com/fatflowers/clinicbilling/internal/app/api/middleware"
	"github.com/fatflowers/clinicbilling/internal/app/service/billing"
	"github.com/fatflowers/clinicbilling/internal/platform/mercadopago"
	"github.com/fatflowers/clinicbilling/pkg/response"
	"github.com/fatflowers/clinicbilling/pkg/types"
)

const cancelledMessage = "Subscription cancelled successfully. Access will remain until the end of the billing period."

type CancelSubscriptionResponse struct {
	Success                 bool   `json:"success"`
	Message                 string `json:"message"`
	CancelledSubscriptionID string `json:"cancelledSubscriptionId"`
}

type PauseSubscriptionResponse struct {
	Success              bool   `json:"success"`
	Message              string `json:"message"`
	PausedSubscriptionID string `json:"pausedSubscriptionId"`
}

type PaymentMethodsResponse struct {
	PaymentMethods []*mercadopago.PaymentMethod `json:"paymentMethods"`
}

// @Summary      Create subscription
// @Description  Opens a recurring Mercado Pago subscription for the tenant and returns the checkout links.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      billing.CreateSubscriptionRequest  true  "Subscription request"
// @Success      201      {object}  billing.CreateSubscriptionResult
// @Failure      400      {object}  response.ErrorBody
// @Failure      403      {object}  response.ErrorBody
// @Failure      404      {object}  response.ErrorBody
// @Failure      500      {object}  response.ErrorBody
// @Router       /subscriptions/create [post]
func ApiCreateSubscription(svc *billing.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req billing.CreateSubscriptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		if !mw.CanAccessTenant(c, req.TenantID) {
			response.Error(c, http.StatusForbidden, "Forbidden", "token is not scoped to this tenant")
			return
		}
		res, err := svc.CreateSubscription(c.Request.Context(), &req)
		if err != nil {
			writeError(c, log, "Failed to create subscription", err)
			return
		}
		c.JSON(http.StatusCreated, res)
	}
}

// @Summary      Cancel subscription
// @Description  Cancels on Mercado Pago. The tenant keeps access until the end of the paid period.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      billing.SubscriptionIDRequest  true  "Subscription to cancel"
// @Success      200      {object}  handlers.CancelSubscriptionResponse
// @Failure      400      {object}  response.ErrorBody
// @Failure      403      {object}  response.ErrorBody
// @Failure      404      {object}  response.ErrorBody
// @Failure      500      {object}  response.ErrorBody
// @Router       /subscriptions/cancel [post]
func ApiCancelSubscription(svc *billing.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req billing.SubscriptionIDRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.CancelSubscription(c.Request.Context(), req.SubscriptionID, func(tenantID string) bool {
			return mw.CanAccessTenant(c, tenantID)
		})
		if err != nil {
			writeError(c, log, "Failed to cancel subscription", err)
			return
		}
		c.JSON(http.StatusOK, &CancelSubscriptionResponse{
			Success:                 true,
			Message:                 cancelledMessage,
			CancelledSubscriptionID: res.SubscriptionID,
		})
	}
}

// @Summary      Pause subscription
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      billing.SubscriptionIDRequest  true  "Subscription to pause"
// @Success      200      {object}  handlers.PauseSubscriptionResponse
// @Failure      400      {object}  response.ErrorBody
// @Failure      403      {object}  response.ErrorBody
// @Failure      404      {object}  response.ErrorBody
// @Failure      500      {object}  response.ErrorBody
// @Router       /subscriptions/pause [post]
func ApiPauseSubscription(svc *billing.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req billing.SubscriptionIDRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.PauseSubscription(c.Request.Context(), req.SubscriptionID, func(tenantID string) bool {
			return mw.CanAccessTenant(c, tenantID)
		})
		if err != nil {
			writeError(c, log, "Failed to pause subscription", err)
			return
		}
		c.JSON(http.StatusOK, &PauseSubscriptionResponse{
			Success:              true,
			Message:              "Subscription paused successfully",
			PausedSubscriptionID: res.SubscriptionID,
		})
	}
}

// @Summary      Subscription status
// @Tags         Subscription
// @Produce      json
// @Security     BearerAuth
// @Param        tenantId  path      string  true  "Tenant ID"
// @Success      200       {object}  billing.StatusView
// @Failure      403       {object}  response.ErrorBody
// @Failure      404       {object}  response.ErrorBody
// @Router       /subscriptions/status/{tenantId} [get]
func ApiSubscriptionStatus(svc *billing.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Status(c.Request.Context(), c.Param("tenantId"))
		if err != nil {
			writeError(c, log, "Failed to fetch subscription status", err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// @Summary      Transaction history
// @Tags         Subscription
// @Produce      json
// @Security     BearerAuth
// @Param        tenantId  path      string  true   "Tenant ID"
// @Param        from      query     int     false  "Offset"
// @Param        size      query     int     false  "Page size (max 100)"
// @Success      200       {object}  handlers.SwaggerTransactionList
// @Failure      403       {object}  response.ErrorBody
// @Failure      404       {object}  response.ErrorBody
// @Router       /subscriptions/transactions/{tenantId} [get]
func ApiListTransactions(svc *billing.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req billing.ListTransactionsRequest
		if err := c.ShouldBindQuery(&req); err != nil {
			badRequest(c, err)
			return
		}
		res, err := svc.Transactions(c.Request.Context(), c.Param("tenantId"), &req)
		if err != nil {
			writeError(c, log, "Failed to list transactions", err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// @Summary      Payment methods
// @Description  Mercado Pago payment methods usable for recurring checkout (credit card, debit card, pix).
// @Tags         Subscription
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  handlers.PaymentMethodsResponse
// @Failure      500  {object}  response.ErrorBody
// @Router       /subscriptions/payment-methods [get]
func ApiPaymentMethods(svc *billing.Service, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		methods, err := svc.PaymentMethods(c.Request.Context())
		if err != nil {
			writeError(c, log, "Failed to fetch payment methods", err)
			return
		}
		c.JSON(http.StatusOK, &PaymentMethodsResponse{PaymentMethods: methods})
	}
}

// RegisterSubscriptionRoutes mounts the command endpoints. r must already
// carry authentication.
func RegisterSubscriptionRoutes(r gin.IRouter, svc *billing.Service, log *zap.SugaredLogger) {
	r.POST("/create", ApiCreateSubscription(svc, log))
	r.POST("/cancel", mw.RequireRole(types.RoleOwner, types.RoleAdmin), ApiCancelSubscription(svc, log))
	r.POST("/pause", mw.RequireRole(types.RoleOwner, types.RoleAdmin), ApiPauseSubscription(svc, log))
	r.GET("/status/:tenantId", mw.RequireTenantParam("tenantId"), ApiSubscriptionStatus(svc, log))
	r.GET("/transactions/:tenantId", mw.RequireTenantParam("tenantId"), ApiListTransactions(svc, log))
	r.GET("/payment-methods", ApiPaymentMethods(svc, log))
}
