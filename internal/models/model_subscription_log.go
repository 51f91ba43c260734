package models

import (
	"time"

	"github.com/fatflowers/clinicbilling/pkg/types"
	"gorm.io/datatypes"
)

// SubscriptionLog records changes to tenant subscriptions.
// Use case: troubleshooting.
type SubscriptionLog struct {
	ID       string `gorm:"column:id;type:uuid;primary_key" json:"id" bson:"_id"`
	TenantID string `gorm:"column:tenant_id;type:varchar(64);index:idx_tenant_id_id,priority:1;not null" json:"tenant_id" bson:"tenant_id"`
	// Reason is the change reason.
	Reason types.SubscriptionChangeReason `gorm:"column:reason;type:varchar(64);not null" json:"reason" bson:"reason"`
	// PaymentID is set when the change was caused by a payment.
	PaymentID string `gorm:"column:payment_id;type:varchar(128)" json:"payment_id,omitempty" bson:"payment_id,omitempty"`
	// Before stores subscription data before the change in JSON format.
	Before datatypes.JSON `gorm:"column:before;type:jsonb;default:'null'" json:"before" bson:"before"`
	// After stores subscription data after the change in JSON format.
	After     datatypes.JSON `gorm:"column:after;type:jsonb;default:'null'" json:"after" bson:"after"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
}

func (SubscriptionLog) TableName() string {
	return "subscription_log"
}
