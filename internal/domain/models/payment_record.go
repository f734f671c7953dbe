package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// BillingType is the gateway-side billing instrument of a single charge
type BillingType string

const (
	BillingPix        BillingType = "PIX"
	BillingCreditCard BillingType = "CREDIT_CARD"
)

// Gateway-native charge statuses. The full vocabulary belongs to the
// gateway and is stored verbatim; these constants are the subset the
// reconciliation classification cares about. Unknown values must not
// break ingestion.
const (
	ChargePending              = "PENDING"
	ChargeReceived             = "RECEIVED"
	ChargeConfirmed            = "CONFIRMED"
	ChargeReceivedInCash       = "RECEIVED_IN_CASH"
	ChargeOverdue              = "OVERDUE"
	ChargeRefunded             = "REFUNDED"
	ChargeRefundRequested      = "REFUND_REQUESTED"
	ChargeRefundInProgress     = "REFUND_IN_PROGRESS"
	ChargeChargebackRequested  = "CHARGEBACK_REQUESTED"
	ChargeAwaitingRiskAnalysis = "AWAITING_RISK_ANALYSIS"
)

// IsPaidChargeStatus reports whether a gateway status counts as money received
func IsPaidChargeStatus(status string) bool {
	switch status {
	case ChargeReceived, ChargeConfirmed, ChargeReceivedInCash:
		return true
	}
	return false
}

// IsCancellingChargeStatus reports whether a gateway status means a refund is underway
func IsCancellingChargeStatus(status string) bool {
	return status == ChargeRefundRequested || status == ChargeRefundInProgress
}

// IsFailedChargeStatus reports whether a gateway status counts as a failed charge
func IsFailedChargeStatus(status string) bool {
	return status == ChargeOverdue || status == ChargeAwaitingRiskAnalysis
}

// PaymentRecord is one billable instrument: a single payment or one
// installment of a multi-charge plan. ExternalPaymentID is globally
// unique and is the idempotency key for webhook ingestion and
// installment materialization.
type PaymentRecord struct {
	ID                        string
	RegistrationID            string
	ExternalPaymentID         string
	ExternalInstallmentPlanID string
	BillingType               BillingType
	Status                    string
	Value                     decimal.Decimal
	NetValue                  decimal.Decimal
	// DueDate is a plain calendar date string (YYYY-MM-DD) to avoid
	// timezone drift on all-day values.
	DueDate           string
	PaymentDate       *time.Time
	ClientPaymentDate *time.Time
	InvoiceURL        string
	PixQrImage        string
	PixQrCopyPaste    string
	GatewayResponse   json.RawMessage
	WebhookPayload    json.RawMessage
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
