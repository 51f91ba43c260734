// Package storetest holds the behavior every store.Store backend must share.
// Backend packages run it from their own tests against a live instance.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/clinicbilling/internal/app/store"
	"github.com/fatflowers/clinicbilling/internal/models"
	"github.com/fatflowers/clinicbilling/pkg/tool"
	"github.com/fatflowers/clinicbilling/pkg/types"
)

// BumpFunc advances the stored version of tenantID from inside a running
// MutateTenant callback, as a concurrent writer would.
type BumpFunc func(ctx context.Context, txs store.TransactionReader, tenantID string) error

// RunMutateTenant checks MutateTenant atomicity against s. Every subtest
// creates its own tenants, so s may be shared and non-empty. A nil bump skips
// the version conflict case.
func RunMutateTenant(t *testing.T, s store.Store, bump BumpFunc) {
	ctx := context.Background()
	processed := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	newTenant := func(t *testing.T) string {
		t.Helper()
		id := "t_" + tool.GenerateUUIDV7()
		require.NoError(t, s.CreateTenant(ctx, &models.Tenant{ID: id, Name: "clinic", Subscription: models.NewSubscription()}))
		return id
	}
	payment := func(id string, status types.PaymentStatus, amount float64) *models.PaymentTransaction {
		return &models.PaymentTransaction{ID: id, Status: status, Amount: amount, Currency: "BRL", ProcessedAt: processed}
	}

	t.Run("commit writes tenant and transaction", func(t *testing.T) {
		id := newTenant(t)
		got, err := s.MutateTenant(ctx, id, func(ctx context.Context, tn *models.Tenant, _ store.TransactionReader) (*models.PaymentTransaction, error) {
			tn.Subscription.Status = types.SubscriptionStatusActive
			return payment("pay_1", types.PaymentStatusApproved, 49.9), nil
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Version)

		stored, err := s.GetTenant(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, types.SubscriptionStatusActive, stored.Subscription.Status)
		assert.Equal(t, int64(1), stored.Version)

		txn, err := s.GetTransaction(ctx, id, "pay_1")
		require.NoError(t, err)
		assert.Equal(t, id, txn.TenantID)
		assert.InDelta(t, 49.9, txn.Amount, 0.001)
	})

	t.Run("redelivered payment overwrites its record", func(t *testing.T) {
		id := newTenant(t)
		for _, st := range []types.PaymentStatus{types.PaymentStatusRejected, types.PaymentStatusApproved} {
			_, err := s.MutateTenant(ctx, id, func(ctx context.Context, tn *models.Tenant, _ store.TransactionReader) (*models.PaymentTransaction, error) {
				return payment("pay_1", st, 49.9), nil
			})
			require.NoError(t, err)
		}
		items, total, err := s.ListTransactions(ctx, id, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, items, 1)
		assert.True(t, items[0].Approved())
	})

	t.Run("callback error rolls back", func(t *testing.T) {
		id := newTenant(t)
		boom := errors.New("boom")
		_, err := s.MutateTenant(ctx, id, func(ctx context.Context, tn *models.Tenant, _ store.TransactionReader) (*models.PaymentTransaction, error) {
			tn.Subscription.Status = types.SubscriptionStatusActive
			tn.Name = "renamed"
			return payment("pay_1", types.PaymentStatusApproved, 49.9), boom
		})
		require.ErrorIs(t, err, boom)

		stored, err := s.GetTenant(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, types.SubscriptionStatusInactive, stored.Subscription.Status)
		assert.Equal(t, "clinic", stored.Name)
		assert.Zero(t, stored.Version)
		_, err = s.GetTransaction(ctx, id, "pay_1")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("no change writes nothing", func(t *testing.T) {
		id := newTenant(t)
		_, err := s.MutateTenant(ctx, id, func(ctx context.Context, tn *models.Tenant, _ store.TransactionReader) (*models.PaymentTransaction, error) {
			tn.Subscription.Status = types.SubscriptionStatusPaused
			return nil, store.ErrNoChange
		})
		require.ErrorIs(t, err, store.ErrNoChange)

		stored, err := s.GetTenant(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, types.SubscriptionStatusInactive, stored.Subscription.Status)
		assert.Zero(t, stored.Version)
	})

	t.Run("stale version is a conflict", func(t *testing.T) {
		if bump == nil {
			t.Skip("backend cannot interleave a writer")
		}
		id := newTenant(t)
		_, err := s.MutateTenant(ctx, id, func(ctx context.Context, tn *models.Tenant, txs store.TransactionReader) (*models.PaymentTransaction, error) {
			tn.Subscription.Status = types.SubscriptionStatusActive
			if err := bump(ctx, txs, id); err != nil {
				return nil, err
			}
			return payment("pay_1", types.PaymentStatusApproved, 49.9), nil
		})
		require.ErrorIs(t, err, store.ErrConflict)

		stored, err := s.GetTenant(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, types.SubscriptionStatusInactive, stored.Subscription.Status)
		_, err = s.GetTransaction(ctx, id, "pay_1")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("reader sees committed transactions", func(t *testing.T) {
		id := newTenant(t)
		_, err := s.MutateTenant(ctx, id, func(ctx context.Context, tn *models.Tenant, _ store.TransactionReader) (*models.PaymentTransaction, error) {
			return payment("pay_1", types.PaymentStatusApproved, 49.9), nil
		})
		require.NoError(t, err)

		_, err = s.MutateTenant(ctx, id, func(ctx context.Context, tn *models.Tenant, txs store.TransactionReader) (*models.PaymentTransaction, error) {
			prev, err := txs.GetTransaction(ctx, id, "pay_1")
			require.NoError(t, err)
			assert.True(t, prev.Approved())
			_, err = txs.GetTransaction(ctx, id, "pay_2")
			assert.ErrorIs(t, err, store.ErrNotFound)
			return nil, store.ErrNoChange
		})
		require.ErrorIs(t, err, store.ErrNoChange)
	})

	t.Run("payment ids are scoped per tenant", func(t *testing.T) {
		a, b := newTenant(t), newTenant(t)
		for tenantID, amount := range map[string]float64{a: 49.9, b: 499} {
			_, err := s.MutateTenant(ctx, tenantID, func(ctx context.Context, tn *models.Tenant, _ store.TransactionReader) (*models.PaymentTransaction, error) {
				return payment("pay_shared", types.PaymentStatusApproved, amount), nil
			})
			require.NoError(t, err)
		}

		got, err := s.GetTransaction(ctx, a, "pay_shared")
		require.NoError(t, err)
		assert.Equal(t, a, got.TenantID)
		assert.InDelta(t, 49.9, got.Amount, 0.001)

		got, err = s.GetTransaction(ctx, b, "pay_shared")
		require.NoError(t, err)
		assert.Equal(t, b, got.TenantID)
		assert.InDelta(t, 499, got.Amount, 0.001)

		for _, tenantID := range []string{a, b} {
			_, total, err := s.ListTransactions(ctx, tenantID, 0, 10)
			require.NoError(t, err)
			assert.Equal(t, int64(1), total)
		}
	})

	t.Run("missing tenant", func(t *testing.T) {
		_, err := s.MutateTenant(ctx, "t_missing_"+tool.GenerateUUIDV7(), func(ctx context.Context, tn *models.Tenant, _ store.TransactionReader) (*models.PaymentTransaction, error) {
			return nil, nil
		})
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}
