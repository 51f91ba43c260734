package models

import (
	"time"

	"github.com/fatflowers/clinicbilling/pkg/types"
)

// Tenant is a clinic account. The subscription is embedded so that a single
// row (or document) is the unit of mutation.
type Tenant struct {
	ID           string       `gorm:"column:id;type:varchar(64);primary_key" json:"id" bson:"_id"`
	Name         string       `gorm:"column:name;type:varchar(256);not null" json:"name" bson:"name"`
	Email        string       `gorm:"column:email;type:varchar(256)" json:"email" bson:"email"`
	Subscription Subscription `gorm:"embedded;embeddedPrefix:subscription_" json:"subscription" bson:"subscription"`
	// Version is bumped on every write; writers must present the version they read.
	Version   int64     `gorm:"column:version;not null;default:0" json:"version" bson:"version"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

func (Tenant) TableName() string {
	return "tenant"
}

// Subscription is the tenant's billing state, mirrored from the payment processor.
type Subscription struct {
	Plan   types.Plan               `gorm:"column:plan;type:varchar(32);not null;default:'none'" json:"plan" bson:"plan"`
	Status types.SubscriptionStatus `gorm:"column:status;type:varchar(32);not null;default:'inactive'" json:"status" bson:"status"`
	// ExpiresAt is the end of the paid period.
	ExpiresAt *time.Time `gorm:"column:expires_at;default:null" json:"expires_at" bson:"expires_at,omitempty"`
	// ExternalSubscriptionID is the processor's preapproval id.
	ExternalSubscriptionID *string `gorm:"column:external_subscription_id;type:varchar(128);uniqueIndex" json:"external_subscription_id" bson:"external_subscription_id,omitempty"`

	LastPaymentID     *string    `gorm:"column:last_payment_id;type:varchar(128)" json:"last_payment_id" bson:"last_payment_id,omitempty"`
	LastPaymentDate   *time.Time `gorm:"column:last_payment_date" json:"last_payment_date" bson:"last_payment_date,omitempty"`
	LastPaymentAmount *float64   `gorm:"column:last_payment_amount" json:"last_payment_amount" bson:"last_payment_amount,omitempty"`

	LastRejectedPaymentID *string    `gorm:"column:last_rejected_payment_id;type:varchar(128)" json:"last_rejected_payment_id" bson:"last_rejected_payment_id,omitempty"`
	LastRejectedAt        *time.Time `gorm:"column:last_rejected_at" json:"last_rejected_at" bson:"last_rejected_at,omitempty"`

	CancelledAt *time.Time `gorm:"column:cancelled_at" json:"cancelled_at" bson:"cancelled_at,omitempty"`
	PausedAt    *time.Time `gorm:"column:paused_at" json:"paused_at" bson:"paused_at,omitempty"`
	// WillExpireAt is set on cancel: access persists until this instant.
	WillExpireAt *time.Time `gorm:"column:will_expire_at" json:"will_expire_at" bson:"will_expire_at,omitempty"`
}

// NewSubscription is the state of a freshly registered tenant.
func NewSubscription() Subscription {
	return Subscription{Plan: types.PlanNone, Status: types.SubscriptionStatusInactive}
}

// PremiumStatus is premium iff the stored status still grants access
// (active, or cancelled but not yet lapsed) and ExpiresAt is strictly after now.
func (s *Subscription) PremiumStatus(now time.Time) types.PremiumStatus {
	if s == nil || s.ExpiresAt == nil || !s.ExpiresAt.After(now) {
		return types.PremiumStatusFree
	}
	switch s.Status {
	case types.SubscriptionStatusActive, types.SubscriptionStatusCancelled:
		return types.PremiumStatusPremium
	}
	return types.PremiumStatusFree
}

// EffectiveStatus is the stored status, except that a lapsed expiry reads as expired.
func (s *Subscription) EffectiveStatus(now time.Time) types.SubscriptionStatus {
	if s.ExpiresAt != nil && !s.ExpiresAt.After(now) {
		return types.SubscriptionStatusExpired
	}
	return s.Status
}

// Clone returns a deep copy.
func (s Subscription) Clone() Subscription {
	c := s
	c.ExpiresAt = cloneTime(s.ExpiresAt)
	c.ExternalSubscriptionID = cloneString(s.ExternalSubscriptionID)
	c.LastPaymentID = cloneString(s.LastPaymentID)
	c.LastPaymentDate = cloneTime(s.LastPaymentDate)
	if s.LastPaymentAmount != nil {
		v := *s.LastPaymentAmount
		c.LastPaymentAmount = &v
	}
	c.LastRejectedPaymentID = cloneString(s.LastRejectedPaymentID)
	c.LastRejectedAt = cloneTime(s.LastRejectedAt)
	c.CancelledAt = cloneTime(s.CancelledAt)
	c.PausedAt = cloneTime(s.PausedAt)
	c.WillExpireAt = cloneTime(s.WillExpireAt)
	return c
}

// Clone returns a deep copy of the tenant.
func (t *Tenant) Clone() *Tenant {
	if t == nil {
		return nil
	}
	c := *t
	c.Subscription = t.Subscription.Clone()
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
