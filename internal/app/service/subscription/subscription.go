// Package subscription is the per-tenant subscription ledger: every change to
// a tenant's billing state goes through here, atomically with the payment
// record that caused it.
package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fatflowers/clinicbilling/internal/app/service/resolver"
	"github.com/fatflowers/clinicbilling/internal/app/store"
	"github.com/fatflowers/clinicbilling/internal/models"
	"github.com/fatflowers/clinicbilling/pkg/config"
	"github.com/fatflowers/clinicbilling/pkg/logctx"
	"github.com/fatflowers/clinicbilling/pkg/tool"
	"github.com/fatflowers/clinicbilling/pkg/types"
)

const (
	// maxAttempts bounds retries of a tenant mutation that lost a version race.
	maxAttempts = 3

	processorStatusAuthorized = "authorized"
)

// ErrTenantNotFound matches store.ErrNotFound so callers may test for either.
var ErrTenantNotFound = fmt.Errorf("tenant %w", store.ErrNotFound)

type Service struct {
	store store.Store
	cfg   *config.Config
	log   *zap.SugaredLogger
	now   func() time.Time
}

func NewService(cfg *config.Config, s store.Store, log *zap.SugaredLogger) *Service {
	return &Service{store: s, cfg: cfg, log: log, now: time.Now}
}

// Payment is a processor payment as seen by the ledger.
type Payment struct {
	ID                string
	Status            types.PaymentStatus
	Amount            float64
	Currency          string
	PaymentMethod     string
	PayerEmail        string
	ExternalReference string
	PreapprovalID     string
	RejectionReason   string
	Raw               []byte
}

// PreapprovalUpdate is a processor-side subscription state to mirror locally.
type PreapprovalUpdate struct {
	SubscriptionID  string
	ProcessorStatus string
	// PeriodEnd, when set, replaces the stored expiry.
	PeriodEnd *time.Time
	// FrequencyType ("months"/"years") fills in the plan of tenants that have none.
	FrequencyType string
}

// RecordApprovedPayment extends the tenant's paid period by one plan cycle,
// stacking onto an unexpired period. Redelivery of an already approved payment
// is a no-op.
func (s *Service) RecordApprovedPayment(ctx context.Context, tenantID string, p *Payment) (*models.Tenant, error) {
	if p == nil || p.ID == "" {
		return nil, errors.New("payment id is required")
	}
	plan := s.classifyPlan(p)

	return s.mutate(ctx, tenantID, types.SubscriptionChangeReasonPayment, p.ID,
		func(ctx context.Context, t *models.Tenant, txs store.TransactionReader) (*models.PaymentTransaction, error) {
			prev, err := txs.GetTransaction(ctx, tenantID, p.ID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("failed to load previous transaction: %w", err)
			}
			if prev.Approved() {
				logctx.FromCtx(ctx, s.log).Infow("ledger_payment_duplicate", "tenant_id", tenantID, "payment_id", p.ID)
				return nil, store.ErrNoChange
			}

			now := s.now()
			expiresAt := extend(periodStart(t.Subscription.ExpiresAt, now), plan)

			sub := &t.Subscription
			sub.Status = types.SubscriptionStatusActive
			sub.Plan = plan
			sub.ExpiresAt = &expiresAt
			sub.LastPaymentID = &p.ID
			sub.LastPaymentDate = &now
			sub.LastPaymentAmount = &p.Amount

			logctx.FromCtx(ctx, s.log).Infow("ledger_payment_approved",
				"tenant_id", tenantID,
				"payment_id", p.ID,
				"plan", plan,
				"amount", p.Amount,
				"expires_at", expiresAt,
			)
			return s.transaction(tenantID, p, types.PaymentStatusApproved, now), nil
		})
}

// RecordRejectedPayment stores the rejected payment and points the tenant at
// it. Status and expiry are untouched, and an approved record is never
// downgraded by a late rejection.
func (s *Service) RecordRejectedPayment(ctx context.Context, tenantID string, p *Payment) (*models.Tenant, error) {
	if p == nil || p.ID == "" {
		return nil, errors.New("payment id is required")
	}
	return s.mutate(ctx, tenantID, types.SubscriptionChangeReasonPaymentRejected, p.ID,
		func(ctx context.Context, t *models.Tenant, txs store.TransactionReader) (*models.PaymentTransaction, error) {
			prev, err := txs.GetTransaction(ctx, tenantID, p.ID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("failed to load previous transaction: %w", err)
			}
			if prev.Approved() {
				logctx.FromCtx(ctx, s.log).Warnw("ledger_rejection_after_approval", "tenant_id", tenantID, "payment_id", p.ID)
				return nil, store.ErrNoChange
			}

			now := s.now()
			t.Subscription.LastRejectedPaymentID = &p.ID
			t.Subscription.LastRejectedAt = &now

			logctx.FromCtx(ctx, s.log).Infow("ledger_payment_rejected",
				"tenant_id", tenantID,
				"payment_id", p.ID,
				"reason", p.RejectionReason,
			)
			txn := s.transaction(tenantID, p, types.PaymentStatusRejected, now)
			if p.RejectionReason != "" {
				reason := p.RejectionReason
				txn.RejectionReason = &reason
			}
			return txn, nil
		})
}

// ApplyPreapprovalStatus mirrors the processor's subscription status:
// authorized is active, anything else is cancelled.
func (s *Service) ApplyPreapprovalStatus(ctx context.Context, tenantID string, u *PreapprovalUpdate) (*models.Tenant, error) {
	if u == nil || u.SubscriptionID == "" {
		return nil, errors.New("subscription id is required")
	}
	return s.mutate(ctx, tenantID, types.SubscriptionChangeReasonPreapproval, "",
		func(ctx context.Context, t *models.Tenant, _ store.TransactionReader) (*models.PaymentTransaction, error) {
			sub := &t.Subscription
			id := u.SubscriptionID
			sub.ExternalSubscriptionID = &id
			if u.PeriodEnd != nil {
				end := *u.PeriodEnd
				switch {
				case u.ProcessorStatus == processorStatusAuthorized:
					sub.ExpiresAt = &end
				case sub.ExpiresAt != nil && end.Before(*sub.ExpiresAt):
					// other statuses may only shorten access
					sub.ExpiresAt = &end
				}
			}
			if sub.Plan == "" || sub.Plan == types.PlanNone {
				sub.Plan = planFromFrequency(u.FrequencyType)
			}

			if u.ProcessorStatus == processorStatusAuthorized {
				sub.Status = types.SubscriptionStatusActive
			} else {
				if sub.Status != types.SubscriptionStatusCancelled {
					now := s.now()
					sub.CancelledAt = &now
				}
				sub.Status = types.SubscriptionStatusCancelled
				sub.WillExpireAt = nil
				if sub.ExpiresAt != nil {
					end := *sub.ExpiresAt
					sub.WillExpireAt = &end
				}
			}

			logctx.FromCtx(ctx, s.log).Infow("ledger_preapproval_applied",
				"tenant_id", tenantID,
				"subscription_id", id,
				"processor_status", u.ProcessorStatus,
				"status", sub.Status,
				"expires_at", sub.ExpiresAt,
			)
			return nil, nil
		})
}

// MarkCancelled stops renewal. Access is kept until the current expiry, which
// is copied to WillExpireAt.
func (s *Service) MarkCancelled(ctx context.Context, tenantID string) (*models.Tenant, error) {
	return s.mutate(ctx, tenantID, types.SubscriptionChangeReasonCancel, "",
		func(ctx context.Context, t *models.Tenant, _ store.TransactionReader) (*models.PaymentTransaction, error) {
			now := s.now()
			sub := &t.Subscription
			sub.Status = types.SubscriptionStatusCancelled
			sub.CancelledAt = &now
			sub.WillExpireAt = nil
			if sub.ExpiresAt != nil {
				end := *sub.ExpiresAt
				sub.WillExpireAt = &end
			}
			logctx.FromCtx(ctx, s.log).Infow("ledger_cancelled", "tenant_id", tenantID, "will_expire_at", sub.WillExpireAt)
			return nil, nil
		})
}

func (s *Service) MarkPaused(ctx context.Context, tenantID string) (*models.Tenant, error) {
	return s.mutate(ctx, tenantID, types.SubscriptionChangeReasonPause, "",
		func(ctx context.Context, t *models.Tenant, _ store.TransactionReader) (*models.PaymentTransaction, error) {
			now := s.now()
			t.Subscription.Status = types.SubscriptionStatusPaused
			t.Subscription.PausedAt = &now
			logctx.FromCtx(ctx, s.log).Infow("ledger_paused", "tenant_id", tenantID)
			return nil, nil
		})
}

// MarkPending records a freshly created processor subscription awaiting checkout.
func (s *Service) MarkPending(ctx context.Context, tenantID, subscriptionID string) (*models.Tenant, error) {
	return s.mutate(ctx, tenantID, types.SubscriptionChangeReasonCheckout, "",
		func(ctx context.Context, t *models.Tenant, _ store.TransactionReader) (*models.PaymentTransaction, error) {
			id := subscriptionID
			t.Subscription.ExternalSubscriptionID = &id
			t.Subscription.Status = types.SubscriptionStatusPending
			return nil, nil
		})
}

type mutateFunc func(ctx context.Context, t *models.Tenant, txs store.TransactionReader) (*models.PaymentTransaction, error)

// mutate applies fn through the store, retrying version conflicts. A no-op
// (store.ErrNoChange) returns the current tenant.
func (s *Service) mutate(ctx context.Context, tenantID string, reason types.SubscriptionChangeReason, paymentID string, fn mutateFunc) (*models.Tenant, error) {
	var before models.Subscription
	wrapped := func(ctx context.Context, t *models.Tenant, txs store.TransactionReader) (*models.PaymentTransaction, error) {
		before = t.Subscription.Clone()
		return fn(ctx, t, txs)
	}

	for attempt := 1; ; attempt++ {
		updated, err := s.store.MutateTenant(ctx, tenantID, wrapped)
		switch {
		case err == nil:
			s.saveSubscriptionLog(ctx, tenantID, reason, paymentID, &before, &updated.Subscription)
			return updated, nil
		case errors.Is(err, store.ErrNoChange):
			t, err := s.store.GetTenant(ctx, tenantID)
			if err != nil {
				return nil, fmt.Errorf("failed to reload tenant: %w", err)
			}
			return t, nil
		case errors.Is(err, store.ErrConflict) && attempt < maxAttempts:
			logctx.FromCtx(ctx, s.log).Warnw("ledger_conflict_retry", "tenant_id", tenantID, "attempt", attempt, "reason", reason)
			continue
		default:
			return nil, fmt.Errorf("failed to apply %s to tenant %s: %w", reason, tenantID, err)
		}
	}
}

func (s *Service) transaction(tenantID string, p *Payment, status types.PaymentStatus, now time.Time) *models.PaymentTransaction {
	txn := &models.PaymentTransaction{
		ID:                p.ID,
		TenantID:          tenantID,
		Status:            status,
		Amount:            p.Amount,
		Currency:          p.Currency,
		PaymentMethod:     p.PaymentMethod,
		PayerEmail:        p.PayerEmail,
		ExternalReference: p.ExternalReference,
		PreapprovalID:     p.PreapprovalID,
		ProcessedAt:       now,
	}
	if len(p.Raw) > 0 && json.Valid(p.Raw) {
		txn.Raw = p.Raw
	}
	return txn
}

// classifyPlan prefers the plan encoded in the external reference and falls
// back to the configured monthly price ceiling.
func (s *Service) classifyPlan(p *Payment) types.Plan {
	if ref, ok := resolver.ParseReference(p.ExternalReference); ok {
		if plan, ok := ref.PlanHint(); ok {
			return plan
		}
	}
	if p.Amount <= s.cfg.Plans.MonthlyMaxAmount {
		return types.PlanMonthly
	}
	return types.PlanYearly
}

// periodStart is the current expiry while it is still in the future, else now.
func periodStart(expiresAt *time.Time, now time.Time) time.Time {
	if expiresAt != nil && expiresAt.After(now) {
		return *expiresAt
	}
	return now
}

func extend(from time.Time, plan types.Plan) time.Time {
	if plan == types.PlanYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

func planFromFrequency(frequencyType string) types.Plan {
	switch frequencyType {
	case "months":
		return types.PlanMonthly
	case "years":
		return types.PlanYearly
	}
	return types.PlanPremium
}

// saveSubscriptionLog writes the before/after audit record asynchronously;
// errors are logged but not returned.
func (s *Service) saveSubscriptionLog(ctx context.Context, tenantID string, reason types.SubscriptionChangeReason, paymentID string, before, after *models.Subscription) {
	b, _ := json.Marshal(before)
	a, _ := json.Marshal(after)
	entry := &models.SubscriptionLog{
		ID:        tool.GenerateUUIDV7(),
		TenantID:  tenantID,
		Reason:    reason,
		PaymentID: paymentID,
		Before:    b,
		After:     a,
		CreatedAt: s.now(),
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := s.store.SaveSubscriptionLog(ctx, entry); err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save subscription log: %v", err)
		}
	}()
}
