package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LifecycleStatus describes enrollment eligibility
type LifecycleStatus string

const (
	LifecyclePending        LifecycleStatus = "pending"
	LifecyclePaymentPending LifecycleStatus = "payment_pending"
	LifecycleConfirmed      LifecycleStatus = "confirmed"
	LifecycleCancelled      LifecycleStatus = "cancelled"
	LifecycleExpired        LifecycleStatus = "expired"
)

// PaymentStatus describes the money state of a registration
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "pending"
	PaymentProcessing PaymentStatus = "processing"
	PaymentPaid       PaymentStatus = "paid"
	PaymentFailed     PaymentStatus = "failed"
	PaymentCancelled  PaymentStatus = "cancelled"
	PaymentRefunded   PaymentStatus = "refunded"
	PaymentExempt     PaymentStatus = "exempt"
	PaymentDirect     PaymentStatus = "direct_payment"
)

// PaymentMethod is the billing instrument chosen at creation time,
// or an administrative marker for registrations that bypass the gateway
type PaymentMethod string

const (
	MethodPix        PaymentMethod = "pix"
	MethodCreditCard PaymentMethod = "credit_card"
	MethodExempt     PaymentMethod = "exempt"
	MethodDirect     PaymentMethod = "direct_payment"
)

// EnrollmentScope controls whether a season sells whole-season entries
// or per-stage entries
type EnrollmentScope string

const (
	ScopeSeason EnrollmentScope = "season"
	ScopeStage  EnrollmentScope = "stage"
)

// Registration is the enrollment aggregate: one row per (competitor, season).
// LifecycleStatus and PaymentStatus are derived from the registration's
// payment records by reconciliation; callers set them only at creation or
// through the administrative path.
type Registration struct {
	ID                 string
	UserID             string
	SeasonID           string
	LifecycleStatus    LifecycleStatus
	PaymentStatus      PaymentStatus
	Amount             decimal.Decimal
	PaymentMethod      PaymentMethod
	Installments       int
	PaymentDate        *time.Time
	ConfirmedAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason string
	CategoryIDs        []string
	StageIDs           []string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Administrative reports whether this registration bypasses the gateway.
// Administrative registrations may legitimately have zero payment records.
func (r *Registration) Administrative() bool {
	return r.PaymentStatus == PaymentExempt || r.PaymentStatus == PaymentDirect
}

// StatusChange is the output of one reconciliation pass. Nil timestamp
// fields leave the stored value untouched.
type StatusChange struct {
	Lifecycle          LifecycleStatus
	Payment            PaymentStatus
	PaymentDate        *time.Time
	ConfirmedAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason string
}
