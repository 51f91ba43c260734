// Package store defines the persistence contract shared by the postgres,
// mongo and in-memory backends.
package store

import (
	"context"
	"errors"

	"github.com/fatflowers/clinicbilling/internal/models"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by MutateTenant when the tenant changed between read and write.
	ErrConflict = errors.New("version conflict")
	// ErrNoChange aborts a MutateTenant call without writing anything.
	ErrNoChange = errors.New("no change")
	// ErrDuplicate is returned when creating a tenant whose id already exists.
	ErrDuplicate = errors.New("duplicate")
)

type TransactionReader interface {
	GetTransaction(ctx context.Context, tenantID, paymentID string) (*models.PaymentTransaction, error)
}

// MutateFunc mutates tenant in place. The returned transaction, if non-nil, is
// written atomically with the tenant.
type MutateFunc func(ctx context.Context, tenant *models.Tenant, txs TransactionReader) (*models.PaymentTransaction, error)

type Store interface {
	TransactionReader

	CreateTenant(ctx context.Context, tenant *models.Tenant) error
	GetTenant(ctx context.Context, tenantID string) (*models.Tenant, error)
	// FindTenantBySubscriptionID returns the first tenant whose external subscription id matches.
	FindTenantBySubscriptionID(ctx context.Context, subscriptionID string) (*models.Tenant, error)
	// MutateTenant loads the tenant, applies fn and persists the tenant (version
	// checked) together with the returned transaction. It returns the stored tenant.
	MutateTenant(ctx context.Context, tenantID string, fn MutateFunc) (*models.Tenant, error)
	// ListTransactions returns a tenant's transactions newest first, and the total count.
	ListTransactions(ctx context.Context, tenantID string, from, size int) ([]*models.PaymentTransaction, int64, error)

	SaveSubscriptionLog(ctx context.Context, log *models.SubscriptionLog) error
	SaveNotificationLog(ctx context.Context, log *models.PaymentNotificationLog) error

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
