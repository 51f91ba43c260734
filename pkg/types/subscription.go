package types

type Plan string

const (
	PlanNone    Plan = "none"
	PlanMonthly Plan = "monthly"
	PlanYearly  Plan = "yearly"
	PlanPremium Plan = "premium"
)

// Recurring reports whether the plan can be sold as a processor-side subscription.
func (p Plan) Recurring() bool {
	return p == PlanMonthly || p == PlanYearly
}

func ParsePlan(s string) (Plan, bool) {
	switch Plan(s) {
	case PlanNone, PlanMonthly, PlanYearly, PlanPremium:
		return Plan(s), true
	}
	return "", false
}

type SubscriptionStatus string

const (
	SubscriptionStatusInactive  SubscriptionStatus = "inactive"
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
)

type PremiumStatus string

const (
	PremiumStatusPremium PremiumStatus = "premium"
	PremiumStatusFree    PremiumStatus = "free"
)

type PaymentStatus string

const (
	PaymentStatusApproved PaymentStatus = "approved"
	PaymentStatusRejected PaymentStatus = "rejected"
	PaymentStatusOther    PaymentStatus = "other"
)

type SubscriptionChangeReason string

const (
	SubscriptionChangeReasonCheckout        SubscriptionChangeReason = "checkout"
	SubscriptionChangeReasonPayment         SubscriptionChangeReason = "payment"
	SubscriptionChangeReasonPaymentRejected SubscriptionChangeReason = "paymentRejected"
	SubscriptionChangeReasonPreapproval     SubscriptionChangeReason = "preapproval"
	SubscriptionChangeReasonCancel          SubscriptionChangeReason = "cancel"
	SubscriptionChangeReasonPause           SubscriptionChangeReason = "pause"
)

// Role is the caller's role inside a tenant, carried by the bearer token.
type Role string

const (
	RoleOwner   Role = "owner"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)
