// Package notification_handler dispatches payment processor webhooks to the
// subscription ledger.
package notification_handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	notificationlog "github.com/fatflowers/clinicbilling/internal/app/service/notification_log"
	"github.com/fatflowers/clinicbilling/internal/app/service/resolver"
	"github.com/fatflowers/clinicbilling/internal/app/service/subscription"
	"github.com/fatflowers/clinicbilling/internal/app/store"
	"github.com/fatflowers/clinicbilling/internal/models"
	"github.com/fatflowers/clinicbilling/internal/platform/mercadopago"
	"github.com/fatflowers/clinicbilling/pkg/logctx"
	"github.com/fatflowers/clinicbilling/pkg/metrics"
	"github.com/fatflowers/clinicbilling/pkg/types"
)

var ErrMissingEventID = errors.New("webhook event has no subject id")

// Outcome is what happened to one delivery.
type Outcome string

const (
	OutcomeHandled    Outcome = "handled"
	OutcomeIgnored    Outcome = "ignored"
	OutcomeUnresolved Outcome = "unresolved"
	OutcomeFailed     Outcome = "failed"
)

type NotificationHandler struct {
	mp       mercadopago.API
	resolver *resolver.Resolver
	ledger   *subscription.Service
	notifSvc *notificationlog.Service
	Logger   *zap.SugaredLogger
}

func NewNotificationHandler(mp mercadopago.API, r *resolver.Resolver, ledger *subscription.Service, notif *notificationlog.Service, log *zap.SugaredLogger) *NotificationHandler {
	return &NotificationHandler{mp: mp, resolver: r, ledger: ledger, notifSvc: notif, Logger: log}
}

var Module = fx.Options(
	fx.Provide(NewNotificationHandler),
)

// Dispatch routes a verified delivery. Per-event failures are logged and the
// delivery is still acknowledged; only a malformed event or a panic returns
// an error.
func (h *NotificationHandler) Dispatch(ctx context.Context, ev *Event) (outcome Outcome, resErr error) {
	log := logctx.FromCtx(ctx, h.Logger).With("topic", ev.RawTopic, "event_id", ev.EventID)
	log.Infow("webhook_received")

	h.notifSvc.Save(ctx, &models.PaymentNotificationLog{
		Topic:   ev.RawTopic,
		EventID: ev.EventID,
		Data:    datatypes.JSON(ev.Body),
		Status:  models.PaymentNotificationLogStatusReceived,
	})

	var tenantID string
	var detail string
	defer func() {
		if r := recover(); r != nil {
			log.Errorw("webhook_dispatch_panic", "panic", r)
			outcome, resErr = OutcomeFailed, fmt.Errorf("webhook dispatch panic: %v", r)
		}
		metrics.IncWebhookEvent(string(lo.CoalesceOrEmpty(ev.Topic, Topic("unknown"))), string(outcome))

		status := models.PaymentNotificationLogStatusHandled
		switch {
		case resErr != nil || outcome == OutcomeFailed:
			status = models.PaymentNotificationLogStatusHandleFailed
		case outcome == OutcomeIgnored:
			status = models.PaymentNotificationLogStatusIgnored
		}
		result := strings.TrimSpace(string(outcome) + " " + detail)
		if resErr != nil {
			result = resErr.Error()
		}
		h.notifSvc.Save(ctx, &models.PaymentNotificationLog{
			Topic:            ev.RawTopic,
			EventID:          ev.EventID,
			TenantID:         lo.EmptyableToPtr(tenantID),
			NotificationTime: time.Now(),
			Data:             datatypes.JSON(ev.Body),
			Result:           &result,
			Status:           status,
		})
	}()

	if !ev.Known() {
		log.Infow("webhook_topic_ignored")
		return OutcomeIgnored, nil
	}
	if ev.EventID == "" {
		return OutcomeFailed, ErrMissingEventID
	}

	var err error
	switch ev.Topic {
	case TopicPreapproval:
		tenantID, outcome, err = h.handlePreapproval(ctx, ev.EventID)
	case TopicAuthorizedPayment, TopicPayment:
		tenantID, outcome, err = h.handlePayment(ctx, ev.EventID)
	}
	if err != nil {
		detail = err.Error()
		log.Errorw("webhook_handle_failed", "tenant_id", tenantID, "err", err)
		return OutcomeFailed, nil
	}
	log.Infow("webhook_handled", "tenant_id", tenantID, "outcome", outcome)
	return outcome, nil
}

func (h *NotificationHandler) handlePreapproval(ctx context.Context, id string) (string, Outcome, error) {
	pre, err := h.mp.GetPreapproval(ctx, id)
	if err != nil {
		return "", OutcomeFailed, fmt.Errorf("failed to fetch preapproval %s: %w", id, err)
	}
	preID := lo.CoalesceOrEmpty(pre.ID, id)

	res, ok, err := h.resolve(ctx, pre.ExternalReference, preID)
	if !ok || err != nil {
		return "", OutcomeUnresolved, err
	}

	update := &subscription.PreapprovalUpdate{
		SubscriptionID:  preID,
		ProcessorStatus: pre.Status,
		FrequencyType:   pre.AutoRecurring.FrequencyType,
	}
	if end, ok := pre.PeriodEnd(); ok {
		update.PeriodEnd = &end
	}
	if _, err := h.ledger.ApplyPreapprovalStatus(ctx, res.TenantID, update); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logctx.FromCtx(ctx, h.Logger).Warnw("webhook_tenant_missing", "tenant_id", res.TenantID, "source", res.Source)
			return res.TenantID, OutcomeUnresolved, nil
		}
		return res.TenantID, OutcomeFailed, err
	}
	return res.TenantID, OutcomeHandled, nil
}

func (h *NotificationHandler) handlePayment(ctx context.Context, id string) (string, Outcome, error) {
	pay, err := h.mp.GetPayment(ctx, id)
	if err != nil {
		return "", OutcomeFailed, fmt.Errorf("failed to fetch payment %s: %w", id, err)
	}

	var record func(context.Context, string, *subscription.Payment) (*models.Tenant, error)
	var status types.PaymentStatus
	switch pay.Status {
	case mercadopago.PaymentStatusApproved:
		record, status = h.ledger.RecordApprovedPayment, types.PaymentStatusApproved
	case mercadopago.PaymentStatusRejected:
		record, status = h.ledger.RecordRejectedPayment, types.PaymentStatusRejected
	default:
		logctx.FromCtx(ctx, h.Logger).Infow("webhook_payment_status_ignored", "payment_id", id, "status", pay.Status)
		return "", OutcomeIgnored, nil
	}

	res, ok, err := h.resolve(ctx, pay.ExternalReference, pay.PreapprovalID())
	if !ok || err != nil {
		return "", OutcomeUnresolved, err
	}

	p := &subscription.Payment{
		ID:                lo.CoalesceOrEmpty(pay.ID, id),
		Status:            status,
		Amount:            pay.TransactionAmount,
		Currency:          pay.CurrencyID,
		PaymentMethod:     pay.PaymentMethodID,
		PayerEmail:        pay.Payer.Email,
		ExternalReference: pay.ExternalReference,
		PreapprovalID:     pay.PreapprovalID(),
		Raw:               pay.Raw,
	}
	if status == types.PaymentStatusRejected {
		p.RejectionReason = pay.StatusDetail
	}
	if _, err := record(ctx, res.TenantID, p); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logctx.FromCtx(ctx, h.Logger).Warnw("webhook_tenant_missing", "tenant_id", res.TenantID, "source", res.Source)
			return res.TenantID, OutcomeUnresolved, nil
		}
		return res.TenantID, OutcomeFailed, err
	}
	return res.TenantID, OutcomeHandled, nil
}

// resolve reports ok=false with a nil error when the tenant is simply unknown.
func (h *NotificationHandler) resolve(ctx context.Context, externalReference, preapprovalID string) (*resolver.Resolution, bool, error) {
	res, err := h.resolver.Resolve(ctx, externalReference, preapprovalID)
	if err != nil {
		if errors.Is(err, resolver.ErrUnresolved) {
			logctx.FromCtx(ctx, h.Logger).Warnw("webhook_tenant_unresolved",
				"external_reference", externalReference,
				"preapproval_id", preapprovalID,
			)
			return nil, false, nil
		}
		return nil, false, err
	}
	return res, true, nil
}
