package models

import (
	"time"

	"github.com/fatflowers/clinicbilling/pkg/types"
	"gorm.io/datatypes"
)

// PaymentTransaction is one processor payment applied to a tenant. The key is
// (tenant id, processor payment id): redelivery overwrites the tenant's own
// record and never touches another tenant's.
type PaymentTransaction struct {
	ID                string              `gorm:"column:id;type:varchar(128);primaryKey" json:"id" bson:"payment_id"`
	TenantID          string              `gorm:"column:tenant_id;type:varchar(64);primaryKey;index:idx_tenant_id_processed_at,priority:1" json:"tenant_id" bson:"tenant_id"`
	Status            types.PaymentStatus `gorm:"column:status;type:varchar(32);not null" json:"status" bson:"status"`
	Amount            float64             `gorm:"column:amount;not null" json:"amount" bson:"amount"`
	Currency          string              `gorm:"column:currency;type:varchar(8)" json:"currency" bson:"currency"`
	PaymentMethod     string              `gorm:"column:payment_method;type:varchar(64)" json:"payment_method" bson:"payment_method"`
	PayerEmail        string              `gorm:"column:payer_email;type:varchar(256)" json:"payer_email" bson:"payer_email"`
	ExternalReference string              `gorm:"column:external_reference;type:varchar(256)" json:"external_reference" bson:"external_reference"`
	PreapprovalID     string              `gorm:"column:preapproval_id;type:varchar(128)" json:"preapproval_id" bson:"preapproval_id"`
	// RejectionReason is only set on rejected payments.
	RejectionReason *string   `gorm:"column:rejection_reason;type:varchar(256)" json:"rejection_reason,omitempty" bson:"rejection_reason,omitempty"`
	ProcessedAt     time.Time `gorm:"column:processed_at;not null;index:idx_tenant_id_processed_at,priority:2,sort:desc" json:"processed_at" bson:"processed_at"`
	// Raw is the processor payload the record was built from.
	Raw       datatypes.JSON `gorm:"column:raw;type:jsonb;default:'{}'" json:"-" bson:"raw,omitempty"`
	CreatedAt time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" bson:"updated_at"`
}

func (PaymentTransaction) TableName() string {
	return "payment_transaction"
}

func (t *PaymentTransaction) Approved() bool {
	return t != nil && t.Status == types.PaymentStatusApproved
}
