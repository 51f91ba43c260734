package models

import (
	"testing"
	"time"

	"github.com/fatflowers/clinicbilling/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTenant_TableName(t *testing.T) {
	var m Tenant
	require.Equal(t, "tenant", m.TableName())
}

func TestSubscription_PremiumStatus(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	future := now.Add(10 * 24 * time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name       string
		sub        Subscription
		wantPrem   types.PremiumStatus
		wantStatus types.SubscriptionStatus
	}{
		{name: "new tenant", sub: NewSubscription(), wantPrem: types.PremiumStatusFree, wantStatus: types.SubscriptionStatusInactive},
		{name: "active future", sub: Subscription{Status: types.SubscriptionStatusActive, ExpiresAt: &future}, wantPrem: types.PremiumStatusPremium, wantStatus: types.SubscriptionStatusActive},
		{name: "active lapsed", sub: Subscription{Status: types.SubscriptionStatusActive, ExpiresAt: &past}, wantPrem: types.PremiumStatusFree, wantStatus: types.SubscriptionStatusExpired},
		{name: "active expiring exactly now", sub: Subscription{Status: types.SubscriptionStatusActive, ExpiresAt: &now}, wantPrem: types.PremiumStatusFree, wantStatus: types.SubscriptionStatusExpired},
		{name: "cancelled before expiry keeps access", sub: Subscription{Status: types.SubscriptionStatusCancelled, ExpiresAt: &future}, wantPrem: types.PremiumStatusPremium, wantStatus: types.SubscriptionStatusCancelled},
		{name: "paused", sub: Subscription{Status: types.SubscriptionStatusPaused, ExpiresAt: &future}, wantPrem: types.PremiumStatusFree, wantStatus: types.SubscriptionStatusPaused},
		{name: "pending without expiry", sub: Subscription{Status: types.SubscriptionStatusPending}, wantPrem: types.PremiumStatusFree, wantStatus: types.SubscriptionStatusPending},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantPrem, tc.sub.PremiumStatus(now))
			assert.Equal(t, tc.wantStatus, tc.sub.EffectiveStatus(now))
		})
	}
}

func TestTenant_CloneIsDeep(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	sid := "pre_1"
	orig := &Tenant{ID: "t1", Subscription: Subscription{ExpiresAt: &exp, ExternalSubscriptionID: &sid}}

	c := orig.Clone()
	*c.Subscription.ExpiresAt = exp.Add(time.Hour)
	*c.Subscription.ExternalSubscriptionID = "pre_2"

	assert.True(t, orig.Subscription.ExpiresAt.Equal(exp))
	assert.Equal(t, "pre_1", *orig.Subscription.ExternalSubscriptionID)
	assert.Nil(t, (*Tenant)(nil).Clone())
}
