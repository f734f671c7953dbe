package ports

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openracing/enrollment-service/internal/domain/models"
)

// CustomerProfile is the gateway-side billing profile of a competitor
type CustomerProfile struct {
	Name        string
	Email       string
	Phone       string
	TaxDocument string
	ExternalRef string
}

// CustomerRef identifies an upserted gateway customer
type CustomerRef struct {
	ID string
}

// SplitSpec forwards a percentage of a charge to a payout wallet
type SplitSpec struct {
	WalletID string
	Percent  decimal.Decimal
}

// PaymentSpec describes a single charge to create
type PaymentSpec struct {
	CustomerID  string
	BillingType models.BillingType
	Value       decimal.Decimal
	DueDate     string
	Description string
	ExternalRef string
	Split       []SplitSpec
}

// InstallmentPlanSpec describes a multi-charge plan to create
type InstallmentPlanSpec struct {
	CustomerID       string
	BillingType      models.BillingType
	InstallmentCount int
	TotalValue       decimal.Decimal
	FirstDueDate     string
	Description      string
	ExternalRef      string
	Split            []SplitSpec
}

// PaymentRef is the gateway's view of one charge, normalized at the
// client boundary so ambiguous payload shapes never leak past it
type PaymentRef struct {
	ID                string
	InstallmentPlanID string
	InstallmentNumber int
	BillingType       models.BillingType
	Status            string
	Value             decimal.Decimal
	NetValue          decimal.Decimal
	DueDate           string
	PaymentDate       *time.Time
	ClientPaymentDate *time.Time
	InvoiceURL        string
	Raw               json.RawMessage
}

// PlanRef identifies a created installment plan
type PlanRef struct {
	ID  string
	Raw json.RawMessage
}

// PixQrCode is the scannable payload of a PIX charge
type PixQrCode struct {
	EncodedImage   string
	Payload        string
	ExpirationDate string
}

// PaymentGateway is the typed contract over the external payment API
type PaymentGateway interface {
	UpsertCustomer(ctx context.Context, profile CustomerProfile) (*CustomerRef, error)
	CreatePayment(ctx context.Context, spec PaymentSpec) (*PaymentRef, error)
	CreateInstallmentPlan(ctx context.Context, spec InstallmentPlanSpec) (*PlanRef, error)
	ListInstallmentPayments(ctx context.Context, planID string) ([]*PaymentRef, error)
	GetPayment(ctx context.Context, id string) (*PaymentRef, error)
	CancelPayment(ctx context.Context, id string) (*PaymentRef, error)
	GetPixQrCode(ctx context.Context, id string) (*PixQrCode, error)
}
