package notification_handler

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	notificationlog "github.com/fatflowers/clinicbilling/internal/app/service/notification_log"
	"github.com/fatflowers/clinicbilling/internal/app/service/resolver"
	"github.com/fatflowers/clinicbilling/internal/app/service/subscription"
	"github.com/fatflowers/clinicbilling/internal/models"
	"github.com/fatflowers/clinicbilling/internal/platform/memstore"
	"github.com/fatflowers/clinicbilling/internal/platform/mercadopago"
	"github.com/fatflowers/clinicbilling/pkg/config"
	"github.com/fatflowers/clinicbilling/pkg/types"
)

type fakeMP struct {
	preapprovals map[string]*mercadopago.Preapproval
	payments     map[string]*mercadopago.Payment
	err          error
	panicOn      string
}

func (f *fakeMP) CreatePreapproval(ctx context.Context, req *mercadopago.PreapprovalRequest) (*mercadopago.Preapproval, error) {
	return nil, errors.New("not used")
}

func (f *fakeMP) GetPreapproval(ctx context.Context, id string) (*mercadopago.Preapproval, error) {
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.preapprovals[id]; ok {
		return p, nil
	}
	return nil, &mercadopago.APIError{StatusCode: 404, Message: "not found"}
}

func (f *fakeMP) UpdatePreapprovalStatus(ctx context.Context, id, status string) (*mercadopago.Preapproval, error) {
	return nil, errors.New("not used")
}

func (f *fakeMP) GetPayment(ctx context.Context, id string) (*mercadopago.Payment, error) {
	if id == f.panicOn {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	if p, ok := f.payments[id]; ok {
		return p, nil
	}
	return nil, &mercadopago.APIError{StatusCode: 404, Message: "not found"}
}

func (f *fakeMP) ListPaymentMethods(ctx context.Context) ([]*mercadopago.PaymentMethod, error) {
	return nil, errors.New("not used")
}

type fixture struct {
	store *memstore.Store
	mp    *fakeMP
	h     *NotificationHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	l := zap.NewNop().Sugar()
	st := memstore.New()
	require.NoError(t, st.CreateTenant(context.Background(), &models.Tenant{ID: "t1", Name: "Clinic", Subscription: models.NewSubscription()}))
	require.NoError(t, st.CreateTenant(context.Background(), &models.Tenant{
		ID:           "t2",
		Name:         "Other",
		Subscription: models.Subscription{Plan: types.PlanMonthly, Status: types.SubscriptionStatusPending, ExternalSubscriptionID: lo.ToPtr("pre_t2")},
	}))
	cfg := &config.Config{Plans: config.PlansConfig{MonthlyMaxAmount: 49.90}}
	mp := &fakeMP{preapprovals: map[string]*mercadopago.Preapproval{}, payments: map[string]*mercadopago.Payment{}}
	h := NewNotificationHandler(mp, resolver.New(st, l), subscription.NewService(cfg, st, l), notificationlog.New(st, l), l)
	return &fixture{store: st, mp: mp, h: h}
}

func event(topic, id string) *Event {
	return ParseEvent(url.Values{"topic": {topic}}, []byte(`{"data":{"id":"`+id+`"}}`))
}

func TestDispatch_UnknownTopic(t *testing.T) {
	f := newFixture(t)
	before, _ := f.store.GetTenant(context.Background(), "t1")

	outcome, err := f.h.Dispatch(context.Background(), event("merchant_order", "1"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)

	after, _ := f.store.GetTenant(context.Background(), "t1")
	assert.Equal(t, before.Version, after.Version)
}

func TestDispatch_MissingEventID(t *testing.T) {
	f := newFixture(t)
	_, err := f.h.Dispatch(context.Background(), ParseEvent(url.Values{"topic": {"payment"}}, nil))
	assert.ErrorIs(t, err, ErrMissingEventID)
}

func TestDispatch_ApprovedPayment(t *testing.T) {
	f := newFixture(t)
	f.mp.payments["100"] = &mercadopago.Payment{
		ID:                "100",
		Status:            "approved",
		TransactionAmount: 49.90,
		CurrencyID:        "BRL",
		PaymentMethodID:   "visa",
		ExternalReference: "clinic-t1-monthly-1700000000000",
		Payer:             mercadopago.Payer{Email: "owner@clinic.test"},
	}

	outcome, err := f.h.Dispatch(context.Background(), event("payment", "100"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeHandled, outcome)

	tn, err := f.store.GetTenant(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, types.SubscriptionStatusActive, tn.Subscription.Status)
	assert.Equal(t, types.PlanMonthly, tn.Subscription.Plan)
	require.NotNil(t, tn.Subscription.ExpiresAt)
	assert.WithinDuration(t, time.Now().AddDate(0, 1, 0), *tn.Subscription.ExpiresAt, time.Minute)

	txn, err := f.store.GetTransaction(context.Background(), "t1", "100")
	require.NoError(t, err)
	assert.Equal(t, "owner@clinic.test", txn.PayerEmail)
	assert.Equal(t, "visa", txn.PaymentMethod)

	require.Eventually(t, func() bool { return len(f.store.NotificationLogs()) == 2 }, time.Second, 5*time.Millisecond)
	statuses := lo.Map(f.store.NotificationLogs(), func(l *models.PaymentNotificationLog, _ int) models.PaymentNotificationLogStatus { return l.Status })
	assert.ElementsMatch(t, []models.PaymentNotificationLogStatus{models.PaymentNotificationLogStatusReceived, models.PaymentNotificationLogStatusHandled}, statuses)
}

func TestDispatch_LogsKeepRawBody(t *testing.T) {
	f := newFixture(t)
	body := `{"action":"payment.updated","data":{"id":"200"}}`
	ev := ParseEvent(url.Values{"topic": {"payment"}}, []byte(body))

	outcome, err := f.h.Dispatch(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	require.Eventually(t, func() bool { return len(f.store.NotificationLogs()) == 2 }, time.Second, 5*time.Millisecond)
	for _, l := range f.store.NotificationLogs() {
		assert.Equal(t, "200", l.EventID)
		assert.JSONEq(t, body, string(l.Data))
	}
}

func TestDispatch_RejectedPaymentViaPreapprovalLookup(t *testing.T) {
	f := newFixture(t)
	f.mp.payments["101"] = &mercadopago.Payment{
		ID:                "101",
		Status:            "rejected",
		StatusDetail:      "cc_rejected_call_for_authorize",
		TransactionAmount: 49.90,
		SubscriptionID:    "pre_t2",
	}

	outcome, err := f.h.Dispatch(context.Background(), event("subscription_authorized_payment", "101"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeHandled, outcome)

	tn, _ := f.store.GetTenant(context.Background(), "t2")
	assert.Equal(t, types.SubscriptionStatusPending, tn.Subscription.Status)
	assert.Nil(t, tn.Subscription.ExpiresAt)
	assert.Equal(t, "101", lo.FromPtr(tn.Subscription.LastRejectedPaymentID))

	txn, err := f.store.GetTransaction(context.Background(), "t2", "101")
	require.NoError(t, err)
	assert.Equal(t, types.PaymentStatusRejected, txn.Status)
	assert.Equal(t, "cc_rejected_call_for_authorize", lo.FromPtr(txn.RejectionReason))
}

func TestDispatch_OtherPaymentStatusIsNoop(t *testing.T) {
	f := newFixture(t)
	f.mp.payments["102"] = &mercadopago.Payment{ID: "102", Status: "in_process", ExternalReference: "clinic-t1-monthly-1"}

	outcome, err := f.h.Dispatch(context.Background(), event("payment", "102"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeIgnored, outcome)
	_, err = f.store.GetTransaction(context.Background(), "t1", "102")
	assert.Error(t, err)
}

func TestDispatch_Preapproval(t *testing.T) {
	f := newFixture(t)
	end := time.Date(2027, 6, 1, 13, 0, 0, 0, time.UTC)
	f.mp.preapprovals["pre_t2"] = &mercadopago.Preapproval{
		ID:                "pre_t2",
		Status:            "authorized",
		ExternalReference: "clinic-t2-monthly-1700000000000",
		AutoRecurring:     mercadopago.AutoRecurring{FrequencyType: "months", EndDate: &end},
	}

	outcome, err := f.h.Dispatch(context.Background(), event("preapproval", "pre_t2"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeHandled, outcome)

	tn, _ := f.store.GetTenant(context.Background(), "t2")
	assert.Equal(t, types.SubscriptionStatusActive, tn.Subscription.Status)
	require.NotNil(t, tn.Subscription.ExpiresAt)
	assert.True(t, end.Equal(*tn.Subscription.ExpiresAt))
}

func TestDispatch_PendingPreapprovalGrantsNoAccess(t *testing.T) {
	f := newFixture(t)
	end := time.Now().AddDate(2, 0, 0)
	f.mp.preapprovals["pre_t2"] = &mercadopago.Preapproval{
		ID:                "pre_t2",
		Status:            "pending",
		ExternalReference: "clinic-t2-monthly-1700000000000",
		AutoRecurring:     mercadopago.AutoRecurring{FrequencyType: "months", EndDate: &end},
	}

	outcome, err := f.h.Dispatch(context.Background(), event("preapproval", "pre_t2"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeHandled, outcome)

	tn, _ := f.store.GetTenant(context.Background(), "t2")
	assert.Nil(t, tn.Subscription.ExpiresAt)
	assert.Equal(t, types.PremiumStatusFree, tn.Subscription.PremiumStatus(time.Now()))
}

func TestDispatch_SwallowsPerEventFailures(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(f *fixture)
		ev      *Event
		outcome Outcome
	}{
		{
			name:    "processor error",
			setup:   func(f *fixture) { f.mp.err = errors.New("connection reset") },
			ev:      event("payment", "200"),
			outcome: OutcomeFailed,
		},
		{
			name:    "processor not found",
			setup:   func(f *fixture) {},
			ev:      event("preapproval", "pre_missing"),
			outcome: OutcomeFailed,
		},
		{
			name: "unresolvable tenant",
			setup: func(f *fixture) {
				f.mp.payments["201"] = &mercadopago.Payment{ID: "201", Status: "approved", ExternalReference: "test-event"}
			},
			ev:      event("payment", "201"),
			outcome: OutcomeUnresolved,
		},
		{
			name: "reference to a deleted tenant",
			setup: func(f *fixture) {
				f.mp.payments["202"] = &mercadopago.Payment{ID: "202", Status: "approved", ExternalReference: "clinic-gone-monthly-1"}
			},
			ev:      event("payment", "202"),
			outcome: OutcomeUnresolved,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tc.setup(f)
			outcome, err := f.h.Dispatch(context.Background(), tc.ev)
			require.NoError(t, err)
			assert.Equal(t, tc.outcome, outcome)
		})
	}
}

func TestDispatch_RecoversPanic(t *testing.T) {
	f := newFixture(t)
	f.mp.panicOn = "300"
	outcome, err := f.h.Dispatch(context.Background(), event("payment", "300"))
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, outcome)

	require.Eventually(t, func() bool { return len(f.store.NotificationLogs()) == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, lo.SomeBy(f.store.NotificationLogs(), func(l *models.PaymentNotificationLog) bool {
		return l.Status == models.PaymentNotificationLogStatusHandleFailed
	}))
}
