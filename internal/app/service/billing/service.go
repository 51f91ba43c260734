// Package billing implements the synchronous subscription commands: creating a
// processor subscription, cancelling or pausing it, and reading a tenant's
// billing state.
package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/clinicbilling/internal/app/service/resolver"
	"github.com/fatflowers/clinicbilling/internal/app/service/subscription"
	"github.com/fatflowers/clinicbilling/internal/app/store"
	"github.com/fatflowers/clinicbilling/internal/models"
	"github.com/fatflowers/clinicbilling/internal/platform/mercadopago"
	"github.com/fatflowers/clinicbilling/pkg/config"
	"github.com/fatflowers/clinicbilling/pkg/logctx"
	"github.com/fatflowers/clinicbilling/pkg/tool"
	"github.com/fatflowers/clinicbilling/pkg/types"
)

const (
	// authorizationWindow caps how long a processor subscription may keep charging.
	authorizationWindow = 2
	successPath         = "/premium/success"

	defaultPageSize = 20
	maxPageSize     = 100
)

var (
	ErrInvalidPlan           = errors.New("plan must be monthly or yearly")
	ErrMissingSubscriptionID = errors.New("subscription id is required")
	ErrForbidden             = errors.New("subscription belongs to another tenant")
)

// relevantPaymentMethods are the methods offered for recurring checkout.
var relevantPaymentMethods = []string{"credit_card", "debit_card", "pix"}

type Service struct {
	cfg    *config.Config
	mp     mercadopago.API
	store  store.Store
	ledger *subscription.Service
	log    *zap.SugaredLogger
	now    func() time.Time
}

func NewService(cfg *config.Config, mp mercadopago.API, s store.Store, ledger *subscription.Service, log *zap.SugaredLogger) *Service {
	return &Service{cfg: cfg, mp: mp, store: s, ledger: ledger, log: log, now: time.Now}
}

var Module = fx.Options(
	fx.Provide(NewService),
)

type CreateSubscriptionRequest struct {
	TenantID   string     `json:"tenantId" binding:"required,tenant_id"`
	Plan       types.Plan `json:"plan" binding:"required,oneof=monthly yearly"`
	PayerEmail string     `json:"payerEmail" binding:"required,email"`
}

type CreateSubscriptionResult struct {
	SubscriptionID   string `json:"subscriptionId"`
	InitPoint        string `json:"initPoint"`
	SandboxInitPoint string `json:"sandboxInitPoint"`
}

// CreateSubscription opens a processor subscription for the tenant and
// returns the checkout links. Recording the new subscription id on the tenant
// is best effort: the preapproval webhook delivers the same state later.
func (s *Service) CreateSubscription(ctx context.Context, req *CreateSubscriptionRequest) (*CreateSubscriptionResult, error) {
	if !req.Plan.Recurring() {
		return nil, ErrInvalidPlan
	}
	price, err := s.cfg.PlanPrice(req.Plan)
	if err != nil {
		return nil, err
	}
	if _, err := s.store.GetTenant(ctx, req.TenantID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, subscription.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}

	now := s.now()
	end := now.AddDate(authorizationWindow, 0, 0).UTC().Truncate(time.Second)
	mp := s.cfg.MercadoPago
	pre, err := s.mp.CreatePreapproval(ctx, &mercadopago.PreapprovalRequest{
		Reason:            fmt.Sprintf("Assinatura Premium Clínica - Plano %s", req.Plan),
		ExternalReference: resolver.FormatReference(mp.ReferencePrefix, req.TenantID, req.Plan, now),
		PayerEmail:        req.PayerEmail,
		AutoRecurring: mercadopago.AutoRecurring{
			Frequency:         price.Frequency,
			FrequencyType:     price.FrequencyType,
			EndDate:           &end,
			TransactionAmount: price.Amount,
			CurrencyID:        mp.Currency,
		},
		BackURL: strings.TrimRight(mp.BackURLBase, "/") + successPath,
		Status:  mercadopago.PreapprovalStatusPending,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create preapproval: %w", err)
	}

	log := logctx.FromCtx(ctx, s.log)
	log.Infow("subscription_created", "tenant_id", req.TenantID, "plan", req.Plan, "subscription_id", pre.ID)

	if _, err := s.ledger.MarkPending(ctx, req.TenantID, pre.ID); err != nil {
		log.Warnw("subscription_mirror_failed", "tenant_id", req.TenantID, "subscription_id", pre.ID, "err", err)
	}
	return &CreateSubscriptionResult{
		SubscriptionID:   pre.ID,
		InitPoint:        pre.InitPoint,
		SandboxInitPoint: pre.SandboxInitPoint,
	}, nil
}

type SubscriptionIDRequest struct {
	SubscriptionID string `json:"subscriptionId" binding:"required"`
}

// ChangeResult reports a processor-side status change and whether the local
// tenant mirror was updated too.
type ChangeResult struct {
	SubscriptionID string
	TenantID       string
	Mirrored       bool
}

// AllowTenant reports whether the caller may act on the tenant.
type AllowTenant func(tenantID string) bool

// CancelSubscription cancels on the processor, then marks the owning tenant
// cancelled. Access is kept until the current expiry.
func (s *Service) CancelSubscription(ctx context.Context, subscriptionID string, allow AllowTenant) (*ChangeResult, error) {
	return s.changeStatus(ctx, subscriptionID, mercadopago.PreapprovalStatusCancelled, allow, s.ledger.MarkCancelled)
}

func (s *Service) PauseSubscription(ctx context.Context, subscriptionID string, allow AllowTenant) (*ChangeResult, error) {
	return s.changeStatus(ctx, subscriptionID, mercadopago.PreapprovalStatusPaused, allow, s.ledger.MarkPaused)
}

// changeStatus refuses subscriptions owned by a tenant allow rejects. A
// subscription no tenant owns is still changed on the processor. Past the
// processor call the local mirror is best effort.
func (s *Service) changeStatus(ctx context.Context, subscriptionID, status string, allow AllowTenant, mark func(context.Context, string) (*models.Tenant, error)) (*ChangeResult, error) {
	if subscriptionID == "" {
		return nil, ErrMissingSubscriptionID
	}
	log := logctx.FromCtx(ctx, s.log).With("subscription_id", subscriptionID, "status", status)

	owner, err := s.store.FindTenantBySubscriptionID(ctx, subscriptionID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		owner = nil
	case err != nil:
		return nil, fmt.Errorf("failed to look up subscription owner: %w", err)
	case allow != nil && !allow(owner.ID):
		log.Warnw("subscription_change_forbidden", "tenant_id", owner.ID)
		return nil, ErrForbidden
	}

	if _, err := s.mp.UpdatePreapprovalStatus(ctx, subscriptionID, status); err != nil {
		return nil, fmt.Errorf("failed to set preapproval %s to %s: %w", subscriptionID, status, err)
	}
	log.Infow("subscription_status_changed")

	res := &ChangeResult{SubscriptionID: subscriptionID}
	if owner == nil {
		log.Warnw("subscription_tenant_not_found")
		return res, nil
	}
	res.TenantID = owner.ID
	if _, err := mark(ctx, owner.ID); err != nil {
		log.Errorw("subscription_mirror_failed", "tenant_id", owner.ID, "err", err)
		return res, nil
	}
	res.Mirrored = true
	return res, nil
}

// StatusView is the read model returned to clients.
type StatusView struct {
	PremiumStatus      types.PremiumStatus      `json:"premiumStatus"`
	SubscriptionStatus types.SubscriptionStatus `json:"subscriptionStatus"`
	CurrentPeriodEnd   *time.Time               `json:"currentPeriodEnd"`
	SubscriptionID     *string                  `json:"subscriptionId"`
	Plan               *types.Plan              `json:"plan"`
}

func (s *Service) Status(ctx context.Context, tenantID string) (*StatusView, error) {
	t, err := s.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	sub := &t.Subscription
	return &StatusView{
		PremiumStatus:      sub.PremiumStatus(now),
		SubscriptionStatus: sub.EffectiveStatus(now),
		CurrentPeriodEnd:   sub.ExpiresAt,
		SubscriptionID:     sub.ExternalSubscriptionID,
		Plan:               lo.EmptyableToPtr(sub.Plan),
	}, nil
}

// PaymentMethods lists the processor's payment methods usable for recurring checkout.
func (s *Service) PaymentMethods(ctx context.Context) ([]*mercadopago.PaymentMethod, error) {
	all, err := s.mp.ListPaymentMethods(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}
	return lo.Filter(all, func(m *mercadopago.PaymentMethod, _ int) bool {
		return lo.Contains(relevantPaymentMethods, m.ID) || lo.Contains(relevantPaymentMethods, m.PaymentTypeID)
	}), nil
}

type ListTransactionsRequest struct {
	From int `form:"from" binding:"min=0"`
	Size int `form:"size" binding:"min=0,max=100"`
}

type ListTransactionsResult struct {
	Items []*models.PaymentTransaction `json:"items"`
	Total int64                        `json:"total"`
}

func (s *Service) Transactions(ctx context.Context, tenantID string, req *ListTransactionsRequest) (*ListTransactionsResult, error) {
	if _, err := s.GetTenant(ctx, tenantID); err != nil {
		return nil, err
	}
	size := req.Size
	if size <= 0 {
		size = defaultPageSize
	}
	items, total, err := s.store.ListTransactions(ctx, tenantID, max(req.From, 0), min(size, maxPageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	if items == nil {
		items = []*models.PaymentTransaction{}
	}
	return &ListTransactionsResult{Items: items, Total: total}, nil
}

type CreateTenantRequest struct {
	Name  string `json:"name" binding:"required,max=200"`
	Email string `json:"email" binding:"required,email"`
}

// CreateTenant registers a tenant with an inactive, planless subscription.
func (s *Service) CreateTenant(ctx context.Context, req *CreateTenantRequest) (*models.Tenant, error) {
	now := s.now()
	t := &models.Tenant{
		ID:           tool.GenerateTenantID(),
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.TrimSpace(req.Email),
		Subscription: models.NewSubscription(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.CreateTenant(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("tenant_created", "tenant_id", t.ID)
	return t, nil
}

func (s *Service) GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error) {
	t, err := s.store.GetTenant(ctx, tenantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, subscription.ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	return t, nil
}
