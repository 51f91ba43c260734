package mercadopago

import (
	"encoding/json"
	"strconv"
	"time"
)

// Processor statuses this service reacts to.
const (
	PreapprovalStatusAuthorized = "authorized"
	PreapprovalStatusPending    = "pending"
	PreapprovalStatusPaused     = "paused"
	PreapprovalStatusCancelled  = "cancelled"

	PaymentStatusApproved = "approved"
	PaymentStatusRejected = "rejected"
)

type AutoRecurring struct {
	Frequency         int
	FrequencyType     string
	TransactionAmount float64
	CurrencyID        string
	StartDate         *time.Time
	EndDate           *time.Time
}

type PreapprovalRequest struct {
	Reason            string
	ExternalReference string
	PayerEmail        string
	AutoRecurring     AutoRecurring
	BackURL           string
	Status            string
}

// Preapproval is a recurring-payment authorization.
type Preapproval struct {
	ID                string
	Status            string
	Reason            string
	ExternalReference string
	PayerEmail        string
	InitPoint         string
	SandboxInitPoint  string
	AutoRecurring     AutoRecurring
	NextPaymentDate   *time.Time
}

// PeriodEnd is auto_recurring.end_date, if present.
func (p *Preapproval) PeriodEnd() (time.Time, bool) {
	if p.AutoRecurring.EndDate == nil {
		return time.Time{}, false
	}
	return *p.AutoRecurring.EndDate, true
}

type Payer struct {
	Email string
}

type Payment struct {
	ID                string
	Status            string
	StatusDetail      string
	TransactionAmount float64
	CurrencyID        string
	PaymentMethodID   string
	PaymentTypeID     string
	ExternalReference string
	Payer             Payer
	// SubscriptionID is point_of_interaction.transaction_data.subscription_id.
	SubscriptionID string
	Metadata       map[string]any

	// Raw is the payment as returned by the API, re-encoded.
	Raw json.RawMessage
}

// PreapprovalID returns the subscription the payment belongs to.
func (p *Payment) PreapprovalID() string {
	if p.SubscriptionID != "" {
		return p.SubscriptionID
	}
	switch id := p.Metadata["preapproval_id"].(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	return ""
}

type PaymentMethod struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PaymentTypeID   string `json:"payment_type_id"`
	Status          string `json:"status"`
	SecureThumbnail string `json:"secure_thumbnail,omitempty"`
	Thumbnail       string `json:"thumbnail,omitempty"`
}

func optionalTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
