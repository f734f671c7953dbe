package asaas

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openracing/enrollment-service/internal/domain/models"
	"github.com/openracing/enrollment-service/internal/domain/ports"
)

// paymentPayload is the gateway's wire shape for a single charge
type paymentPayload struct {
	ID                string  `json:"id"`
	Customer          string  `json:"customer"`
	Installment       string  `json:"installment,omitempty"`
	InstallmentNumber int     `json:"installmentNumber,omitempty"`
	BillingType       string  `json:"billingType"`
	Status            string  `json:"status"`
	Value             float64 `json:"value"`
	NetValue          float64 `json:"netValue"`
	DueDate           string  `json:"dueDate"`
	PaymentDate       string  `json:"paymentDate,omitempty"`
	ClientPaymentDate string  `json:"clientPaymentDate,omitempty"`
	InvoiceURL        string  `json:"invoiceUrl,omitempty"`
	Description       string  `json:"description,omitempty"`
	ExternalReference string  `json:"externalReference,omitempty"`
	Deleted           bool    `json:"deleted,omitempty"`
}

// listEnvelope is the gateway's paged-list wire shape
type listEnvelope struct {
	Object     string            `json:"object"`
	TotalCount int               `json:"totalCount"`
	Data       []json.RawMessage `json:"data"`
}

// splitPayload forwards a slice of a charge to a wallet
type splitPayload struct {
	WalletID        string  `json:"walletId"`
	PercentualValue float64 `json:"percentualValue"`
}

// createPaymentRequest is the wire shape for POST /payments
type createPaymentRequest struct {
	Customer          string         `json:"customer"`
	BillingType       string         `json:"billingType"`
	Value             float64        `json:"value"`
	DueDate           string         `json:"dueDate"`
	Description       string         `json:"description,omitempty"`
	ExternalReference string         `json:"externalReference,omitempty"`
	Split             []splitPayload `json:"split,omitempty"`
}

// createInstallmentRequest is the wire shape for POST /installments
type createInstallmentRequest struct {
	Customer          string         `json:"customer"`
	BillingType       string         `json:"billingType"`
	InstallmentCount  int            `json:"installmentCount"`
	TotalValue        float64        `json:"totalValue"`
	DueDate           string         `json:"dueDate"`
	Description       string         `json:"description,omitempty"`
	ExternalReference string         `json:"externalReference,omitempty"`
	Split             []splitPayload `json:"split,omitempty"`
}

// installmentPayload is the gateway's wire shape for an installment plan
type installmentPayload struct {
	ID               string  `json:"id"`
	Customer         string  `json:"customer"`
	InstallmentCount int     `json:"installmentCount"`
	Value            float64 `json:"value"`
	BillingType      string  `json:"billingType"`
}

// customerPayload is the gateway's wire shape for a billing customer
type customerPayload struct {
	ID                string `json:"id,omitempty"`
	Name              string `json:"name"`
	Email             string `json:"email,omitempty"`
	Phone             string `json:"phone,omitempty"`
	CpfCnpj           string `json:"cpfCnpj"`
	ExternalReference string `json:"externalReference,omitempty"`
}

// pixQrCodePayload is the gateway's wire shape for a PIX QR code
type pixQrCodePayload struct {
	EncodedImage   string `json:"encodedImage"`
	Payload        string `json:"payload"`
	ExpirationDate string `json:"expirationDate"`
}

// gatewayDateFormats are the date shapes the gateway is known to emit
var gatewayDateFormats = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// parseGatewayDate parses an optional gateway date string
func parseGatewayDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range gatewayDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

// toPaymentRef normalizes a gateway payment payload into the port type
func toPaymentRef(p paymentPayload, raw json.RawMessage) *ports.PaymentRef {
	return &ports.PaymentRef{
		ID:                p.ID,
		InstallmentPlanID: p.Installment,
		InstallmentNumber: p.InstallmentNumber,
		BillingType:       models.BillingType(p.BillingType),
		Status:            p.Status,
		Value:             decimal.NewFromFloat(p.Value),
		NetValue:          decimal.NewFromFloat(p.NetValue),
		DueDate:           p.DueDate,
		PaymentDate:       parseGatewayDate(p.PaymentDate),
		ClientPaymentDate: parseGatewayDate(p.ClientPaymentDate),
		InvoiceURL:        p.InvoiceURL,
		Raw:               raw,
	}
}

// toSplitPayloads converts split specs to the wire shape
func toSplitPayloads(splits []ports.SplitSpec) []splitPayload {
	if len(splits) == 0 {
		return nil
	}
	out := make([]splitPayload, len(splits))
	for i, s := range splits {
		out[i] = splitPayload{
			WalletID:        s.WalletID,
			PercentualValue: s.Percent.InexactFloat64(),
		}
	}
	return out
}
