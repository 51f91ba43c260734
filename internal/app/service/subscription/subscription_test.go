package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/clinicbilling/internal/app/store"
	"github.com/fatflowers/clinicbilling/internal/models"
	"github.com/fatflowers/clinicbilling/internal/platform/memstore"
	"github.com/fatflowers/clinicbilling/pkg/config"
	"github.com/fatflowers/clinicbilling/pkg/types"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{Plans: config.PlansConfig{
		Monthly:          config.PlanPrice{Amount: 49.90, Frequency: 1, FrequencyType: "months"},
		Yearly:           config.PlanPrice{Amount: 499.00, Frequency: 1, FrequencyType: "years"},
		MonthlyMaxAmount: 49.90,
	}}
}

func newLedger(t *testing.T, st store.Store, sub models.Subscription) *Service {
	t.Helper()
	require.NoError(t, st.CreateTenant(context.Background(), &models.Tenant{ID: "t1", Name: "Clinic", Subscription: sub}))
	svc := NewService(testConfig(), st, zap.NewNop().Sugar())
	svc.now = func() time.Time { return testNow }
	return svc
}

func approved(id string, amount float64) *Payment {
	return &Payment{ID: id, Status: types.PaymentStatusApproved, Amount: amount, Currency: "BRL", PaymentMethod: "visa", PayerEmail: "owner@clinic.test"}
}

func TestRecordApprovedPayment_Expiry(t *testing.T) {
	past := testNow.Add(-5 * 24 * time.Hour)
	tenDays := testNow.Add(10 * 24 * time.Hour)

	tests := []struct {
		name     string
		current  *time.Time
		payment  *Payment
		wantPlan types.Plan
		wantExp  time.Time
	}{
		{name: "never paid, monthly", current: nil, payment: approved("p1", 49.90), wantPlan: types.PlanMonthly, wantExp: testNow.AddDate(0, 1, 0)},
		{name: "lapsed restarts from now", current: &past, payment: approved("p1", 49.90), wantPlan: types.PlanMonthly, wantExp: testNow.AddDate(0, 1, 0)},
		{name: "unexpired stacks onto expiry", current: &tenDays, payment: approved("p1", 49.90), wantPlan: types.PlanMonthly, wantExp: tenDays.AddDate(0, 1, 0)},
		{name: "above threshold is yearly", current: nil, payment: approved("p1", 499.00), wantPlan: types.PlanYearly, wantExp: testNow.AddDate(1, 0, 0)},
		{name: "yearly stacks", current: &tenDays, payment: approved("p1", 499.00), wantPlan: types.PlanYearly, wantExp: tenDays.AddDate(1, 0, 0)},
		{
			name:     "reference plan hint beats amount",
			payment:  &Payment{ID: "p1", Status: types.PaymentStatusApproved, Amount: 39.90, ExternalReference: "clinic-t1-yearly-1700000000000"},
			wantPlan: types.PlanYearly,
			wantExp:  testNow.AddDate(1, 0, 0),
		},
		{
			name:     "malformed reference falls back to amount",
			payment:  &Payment{ID: "p1", Status: types.PaymentStatusApproved, Amount: 499, ExternalReference: "clinic-t1-monthly"},
			wantPlan: types.PlanYearly,
			wantExp:  testNow.AddDate(1, 0, 0),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := memstore.New()
			svc := newLedger(t, st, models.Subscription{Plan: types.PlanNone, Status: types.SubscriptionStatusInactive, ExpiresAt: tc.current})

			got, err := svc.RecordApprovedPayment(context.Background(), "t1", tc.payment)
			require.NoError(t, err)

			sub := got.Subscription
			assert.Equal(t, types.SubscriptionStatusActive, sub.Status)
			assert.Equal(t, tc.wantPlan, sub.Plan)
			require.NotNil(t, sub.ExpiresAt)
			assert.True(t, tc.wantExp.Equal(*sub.ExpiresAt), "want %s got %s", tc.wantExp, sub.ExpiresAt)
			assert.Equal(t, "p1", lo.FromPtr(sub.LastPaymentID))
			assert.Equal(t, tc.payment.Amount, lo.FromPtr(sub.LastPaymentAmount))
			assert.True(t, testNow.Equal(lo.FromPtr(sub.LastPaymentDate)))

			txn, err := st.GetTransaction(context.Background(), "t1", "p1")
			require.NoError(t, err)
			assert.Equal(t, types.PaymentStatusApproved, txn.Status)
			assert.Equal(t, tc.payment.Amount, txn.Amount)
			assert.True(t, testNow.Equal(txn.ProcessedAt))
		})
	}
}

func TestRecordApprovedPayment_Idempotent(t *testing.T) {
	st := memstore.New()
	svc := newLedger(t, st, models.NewSubscription())
	ctx := context.Background()

	first, err := svc.RecordApprovedPayment(ctx, "t1", approved("p1", 49.90))
	require.NoError(t, err)

	svc.now = func() time.Time { return testNow.Add(time.Hour) }
	second, err := svc.RecordApprovedPayment(ctx, "t1", approved("p1", 49.90))
	require.NoError(t, err)

	assert.True(t, first.Subscription.ExpiresAt.Equal(*second.Subscription.ExpiresAt))
	assert.Equal(t, first.Version, second.Version)

	items, total, err := st.ListTransactions(ctx, "t1", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, items, 1)

	// a different payment id does extend
	third, err := svc.RecordApprovedPayment(ctx, "t1", approved("p2", 49.90))
	require.NoError(t, err)
	assert.True(t, first.Subscription.ExpiresAt.AddDate(0, 1, 0).Equal(*third.Subscription.ExpiresAt))
}

func TestRecordRejectedPayment(t *testing.T) {
	exp := testNow.Add(10 * 24 * time.Hour)
	st := memstore.New()
	svc := newLedger(t, st, models.Subscription{Plan: types.PlanMonthly, Status: types.SubscriptionStatusActive, ExpiresAt: &exp})
	ctx := context.Background()

	got, err := svc.RecordRejectedPayment(ctx, "t1", &Payment{ID: "p9", Status: types.PaymentStatusRejected, Amount: 49.90, RejectionReason: "cc_rejected_insufficient_amount"})
	require.NoError(t, err)

	assert.Equal(t, types.SubscriptionStatusActive, got.Subscription.Status)
	assert.True(t, exp.Equal(*got.Subscription.ExpiresAt))
	assert.Equal(t, "p9", lo.FromPtr(got.Subscription.LastRejectedPaymentID))
	assert.True(t, testNow.Equal(lo.FromPtr(got.Subscription.LastRejectedAt)))

	txn, err := st.GetTransaction(ctx, "t1", "p9")
	require.NoError(t, err)
	assert.Equal(t, types.PaymentStatusRejected, txn.Status)
	assert.Equal(t, "cc_rejected_insufficient_amount", lo.FromPtr(txn.RejectionReason))
}

func TestRecordRejectedPayment_NeverOverwritesApproval(t *testing.T) {
	st := memstore.New()
	svc := newLedger(t, st, models.NewSubscription())
	ctx := context.Background()

	_, err := svc.RecordApprovedPayment(ctx, "t1", approved("p1", 49.90))
	require.NoError(t, err)
	got, err := svc.RecordRejectedPayment(ctx, "t1", &Payment{ID: "p1", Status: types.PaymentStatusRejected})
	require.NoError(t, err)

	assert.Nil(t, got.Subscription.LastRejectedPaymentID)
	txn, err := st.GetTransaction(ctx, "t1", "p1")
	require.NoError(t, err)
	assert.True(t, txn.Approved())
}

func TestApplyPreapprovalStatus(t *testing.T) {
	end := testNow.AddDate(2, 0, 0)
	existing := testNow.Add(48 * time.Hour)

	tests := []struct {
		name       string
		sub        models.Subscription
		update     PreapprovalUpdate
		wantStatus types.SubscriptionStatus
		wantPlan   types.Plan
		wantExp    *time.Time
	}{
		{
			name:       "authorized is active",
			sub:        models.NewSubscription(),
			update:     PreapprovalUpdate{SubscriptionID: "pre_1", ProcessorStatus: "authorized", PeriodEnd: &end, FrequencyType: "months"},
			wantStatus: types.SubscriptionStatusActive,
			wantPlan:   types.PlanMonthly,
			wantExp:    &end,
		},
		{
			name:       "paused upstream is cancelled locally",
			sub:        models.Subscription{Plan: types.PlanYearly, Status: types.SubscriptionStatusActive, ExpiresAt: &existing},
			update:     PreapprovalUpdate{SubscriptionID: "pre_1", ProcessorStatus: "paused", PeriodEnd: &end},
			wantStatus: types.SubscriptionStatusCancelled,
			wantPlan:   types.PlanYearly,
			wantExp:    &existing,
		},
		{
			name:       "cancelled upstream may shorten expiry",
			sub:        models.Subscription{Plan: types.PlanYearly, Status: types.SubscriptionStatusActive, ExpiresAt: &end},
			update:     PreapprovalUpdate{SubscriptionID: "pre_1", ProcessorStatus: "cancelled", PeriodEnd: &existing},
			wantStatus: types.SubscriptionStatusCancelled,
			wantPlan:   types.PlanYearly,
			wantExp:    &existing,
		},
		{
			name:       "pending never grants access",
			sub:        models.NewSubscription(),
			update:     PreapprovalUpdate{SubscriptionID: "pre_1", ProcessorStatus: "pending", PeriodEnd: &end, FrequencyType: "months"},
			wantStatus: types.SubscriptionStatusCancelled,
			wantPlan:   types.PlanMonthly,
		},
		{
			name:       "missing period end keeps expiry",
			sub:        models.Subscription{Plan: types.PlanMonthly, Status: types.SubscriptionStatusPending, ExpiresAt: &existing},
			update:     PreapprovalUpdate{SubscriptionID: "pre_1", ProcessorStatus: "authorized"},
			wantStatus: types.SubscriptionStatusActive,
			wantPlan:   types.PlanMonthly,
			wantExp:    &existing,
		},
		{
			name:       "unknown cadence is premium",
			sub:        models.NewSubscription(),
			update:     PreapprovalUpdate{SubscriptionID: "pre_1", ProcessorStatus: "authorized", PeriodEnd: &end},
			wantStatus: types.SubscriptionStatusActive,
			wantPlan:   types.PlanPremium,
			wantExp:    &end,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := newLedger(t, memstore.New(), tc.sub)
			got, err := svc.ApplyPreapprovalStatus(context.Background(), "t1", &tc.update)
			require.NoError(t, err)

			sub := got.Subscription
			assert.Equal(t, "pre_1", lo.FromPtr(sub.ExternalSubscriptionID))
			assert.Equal(t, tc.wantStatus, sub.Status)
			assert.Equal(t, tc.wantPlan, sub.Plan)
			if tc.wantExp == nil {
				assert.Nil(t, sub.ExpiresAt)
				assert.Equal(t, types.PremiumStatusFree, sub.PremiumStatus(testNow))
			} else {
				require.NotNil(t, sub.ExpiresAt)
				assert.True(t, tc.wantExp.Equal(*sub.ExpiresAt))
			}
			if tc.wantStatus == types.SubscriptionStatusCancelled {
				assert.NotNil(t, sub.CancelledAt)
				assert.Equal(t, sub.ExpiresAt == nil, sub.WillExpireAt == nil)
				if sub.ExpiresAt != nil {
					assert.True(t, sub.ExpiresAt.Equal(*sub.WillExpireAt))
				}
			}
		})
	}
}

func TestMarkCancelled_KeepsPremiumUntilExpiry(t *testing.T) {
	exp := testNow.Add(10 * 24 * time.Hour)
	svc := newLedger(t, memstore.New(), models.Subscription{Plan: types.PlanMonthly, Status: types.SubscriptionStatusActive, ExpiresAt: &exp})

	got, err := svc.MarkCancelled(context.Background(), "t1")
	require.NoError(t, err)

	sub := got.Subscription
	assert.Equal(t, types.SubscriptionStatusCancelled, sub.Status)
	assert.True(t, testNow.Equal(lo.FromPtr(sub.CancelledAt)))
	assert.True(t, exp.Equal(lo.FromPtr(sub.WillExpireAt)))

	assert.Equal(t, types.PremiumStatusPremium, sub.PremiumStatus(testNow))
	assert.Equal(t, types.PremiumStatusPremium, sub.PremiumStatus(exp.Add(-time.Second)))
	assert.Equal(t, types.PremiumStatusFree, sub.PremiumStatus(exp))
	assert.Equal(t, types.PremiumStatusFree, sub.PremiumStatus(exp.Add(time.Hour)))
}

func TestMarkPausedAndPending(t *testing.T) {
	st := memstore.New()
	svc := newLedger(t, st, models.NewSubscription())
	ctx := context.Background()

	got, err := svc.MarkPending(ctx, "t1", "pre_7")
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusPending, got.Subscription.Status)
	assert.Equal(t, "pre_7", lo.FromPtr(got.Subscription.ExternalSubscriptionID))

	got, err = svc.MarkPaused(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusPaused, got.Subscription.Status)
	assert.True(t, testNow.Equal(lo.FromPtr(got.Subscription.PausedAt)))

	_, err = svc.MarkPaused(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// conflictingStore fails the first n MutateTenant calls with ErrConflict.
type conflictingStore struct {
	*memstore.Store
	remaining int
	calls     int
}

func (s *conflictingStore) MutateTenant(ctx context.Context, tenantID string, fn store.MutateFunc) (*models.Tenant, error) {
	s.calls++
	if s.remaining > 0 {
		s.remaining--
		return nil, store.ErrConflict
	}
	return s.Store.MutateTenant(ctx, tenantID, fn)
}

func TestMutate_RetriesConflicts(t *testing.T) {
	t.Run("succeeds within budget", func(t *testing.T) {
		st := &conflictingStore{Store: memstore.New(), remaining: 2}
		svc := newLedger(t, st, models.NewSubscription())
		_, err := svc.RecordApprovedPayment(context.Background(), "t1", approved("p1", 49.90))
		require.NoError(t, err)
		assert.Equal(t, 3, st.calls)
	})

	t.Run("gives up after budget", func(t *testing.T) {
		st := &conflictingStore{Store: memstore.New(), remaining: 5}
		svc := newLedger(t, st, models.NewSubscription())
		_, err := svc.RecordApprovedPayment(context.Background(), "t1", approved("p1", 49.90))
		require.ErrorIs(t, err, store.ErrConflict)
		assert.Equal(t, maxAttempts, st.calls)
	})
}

func TestMutate_WritesSubscriptionLog(t *testing.T) {
	st := memstore.New()
	svc := newLedger(t, st, models.NewSubscription())

	_, err := svc.RecordApprovedPayment(context.Background(), "t1", approved("p1", 49.90))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(st.SubscriptionLogs()) == 1 }, time.Second, 5*time.Millisecond)
	entry := st.SubscriptionLogs()[0]
	assert.Equal(t, types.SubscriptionChangeReasonPayment, entry.Reason)
	assert.Equal(t, "p1", entry.PaymentID)
	assert.Contains(t, string(entry.Before), `"status":"inactive"`)
	assert.Contains(t, string(entry.After), `"status":"active"`)
}

func TestRecordPayment_Validation(t *testing.T) {
	svc := newLedger(t, memstore.New(), models.NewSubscription())
	_, err := svc.RecordApprovedPayment(context.Background(), "t1", &Payment{})
	assert.Error(t, err)
	_, err = svc.RecordRejectedPayment(context.Background(), "t1", nil)
	assert.Error(t, err)
	_, err = svc.ApplyPreapprovalStatus(context.Background(), "t1", &PreapprovalUpdate{})
	assert.Error(t, err)
}
