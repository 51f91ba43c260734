// Package resolver maps payment processor identifiers back to tenants.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/clinicbilling/internal/app/store"
	"github.com/fatflowers/clinicbilling/internal/models"
	"github.com/fatflowers/clinicbilling/pkg/logctx"
)

var ErrUnresolved = errors.New("tenant could not be resolved")

type Source string

const (
	SourceExternalReference Source = "external_reference"
	SourcePreapproval       Source = "preapproval_id"
)

type TenantFinder interface {
	FindTenantBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Tenant, error)
}

type Resolution struct {
	TenantID  string
	Source    Source
	Reference *Reference
}

type Resolver struct {
	tenants TenantFinder
	log     *zap.SugaredLogger
}

func New(s store.Store, l *zap.SugaredLogger) *Resolver {
	return NewWithFinder(s, l)
}

func NewWithFinder(f TenantFinder, l *zap.SugaredLogger) *Resolver {
	return &Resolver{tenants: f, log: l}
}

var Module = fx.Options(
	fx.Provide(New),
)

// Resolve returns the tenant owning an event. A well-formed external reference
// wins; otherwise the preapproval id is looked up against stored subscription
// ids. Returns ErrUnresolved when neither matches.
func (r *Resolver) Resolve(ctx context.Context, externalReference, preapprovalID string) (*Resolution, error) {
	if externalReference != "" {
		if ref, ok := ParseReference(externalReference); ok {
			return &Resolution{TenantID: ref.TenantID, Source: SourceExternalReference, Reference: ref}, nil
		}
		logctx.FromCtx(ctx, r.log).Infow("resolver_malformed_reference", "external_reference", externalReference)
	}

	if preapprovalID != "" {
		t, err := r.tenants.FindTenantBySubscriptionID(ctx, preapprovalID)
		switch {
		case err == nil:
			return &Resolution{TenantID: t.ID, Source: SourcePreapproval}, nil
		case errors.Is(err, store.ErrNotFound):
		default:
			return nil, fmt.Errorf("failed to look up tenant by preapproval: %w", err)
		}
	}

	return nil, ErrUnresolved
}
