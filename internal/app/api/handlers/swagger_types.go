package handlers

import (
	"time"

	"github.com/fatflowers/clinicbilling/pkg/types"
)

// SwaggerTransaction documents models.PaymentTransaction without its raw processor payload.
type SwaggerTransaction struct {
	ID                string              `json:"id"`
	TenantID          string              `json:"tenant_id"`
	Status            types.PaymentStatus `json:"status"`
	Amount            float64             `json:"amount"`
	Currency          string              `json:"currency"`
	PaymentMethod     string              `json:"payment_method"`
	PayerEmail        string              `json:"payer_email"`
	ExternalReference string              `json:"external_reference"`
	PreapprovalID     string              `json:"preapproval_id"`
	RejectionReason   *string             `json:"rejection_reason"`
	ProcessedAt       time.Time           `json:"processed_at"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

type SwaggerTransactionList struct {
	Items []SwaggerTransaction `json:"items"`
	Total int64                `json:"total"`
}

type SwaggerSubscription struct {
	Plan                   types.Plan               `json:"plan"`
	Status                 types.SubscriptionStatus `json:"status"`
	ExpiresAt              *time.Time               `json:"expires_at"`
	ExternalSubscriptionID *string                  `json:"external_subscription_id"`
	LastPaymentID          *string                  `json:"last_payment_id"`
	LastPaymentDate        *time.Time               `json:"last_payment_date"`
	CancelledAt            *time.Time               `json:"cancelled_at"`
	PausedAt               *time.Time               `json:"paused_at"`
	WillExpireAt           *time.Time               `json:"will_expire_at"`
}

type SwaggerTenant struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Email        string              `json:"email"`
	Subscription SwaggerSubscription `json:"subscription"`
	Version      int64               `json:"version"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}
