package enrollment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openracing/enrollment-service/internal/domain/models"
	"github.com/openracing/enrollment-service/internal/domain/ports"
)

// PaymentView is the caller-facing shape of one charge
type PaymentView struct {
	ExternalPaymentID string          `json:"externalPaymentId"`
	InstallmentPlanID string          `json:"installmentPlanId,omitempty"`
	BillingType       string          `json:"billingType"`
	Status            string          `json:"status"`
	Value             decimal.Decimal `json:"value"`
	DueDate           string          `json:"dueDate,omitempty"`
	PaymentDate       *time.Time      `json:"paymentDate,omitempty"`
	InvoiceURL        string          `json:"invoiceUrl,omitempty"`
	PixQrImage        string          `json:"pixQrImage,omitempty"`
	PixQrCopyPaste    string          `json:"pixQrCopyPaste,omitempty"`
	Administrative    bool            `json:"administrative,omitempty"`
}

// RegistrationPayments aggregates a registration's derived status with
// its charges
type RegistrationPayments struct {
	RegistrationID  string                 `json:"registrationId"`
	LifecycleStatus models.LifecycleStatus `json:"lifecycleStatus"`
	PaymentStatus   models.PaymentStatus   `json:"paymentStatus"`
	Amount          decimal.Decimal        `json:"amount"`
	PaymentMethod   models.PaymentMethod   `json:"paymentMethod"`
	Payments        []PaymentView          `json:"payments"`
}

// GetPaymentData returns the payment state of a registration. For
// administrative registrations with no charges a synthetic view is
// returned so callers always get at least one payment entry. Pending
// PIX charges missing their QR payload get it fetched on read, covering
// charges created while the QR endpoint was down.
func (s *Service) GetPaymentData(ctx context.Context, registrationID string) (*RegistrationPayments, error) {
	reg, err := s.regRepo.GetByID(ctx, nil, registrationID)
	if err != nil {
		return nil, err
	}

	records, err := s.payRepo.ListByRegistration(ctx, nil, registrationID)
	if err != nil {
		return nil, err
	}

	out := &RegistrationPayments{
		RegistrationID:  reg.ID,
		LifecycleStatus: reg.LifecycleStatus,
		PaymentStatus:   reg.PaymentStatus,
		Amount:          reg.Amount,
		PaymentMethod:   reg.PaymentMethod,
		Payments:        make([]PaymentView, 0, len(records)),
	}

	if len(records) == 0 && reg.Administrative() {
		out.Payments = append(out.Payments, PaymentView{
			Status:         string(reg.PaymentStatus),
			Value:          reg.Amount,
			Administrative: true,
		})
		return out, nil
	}

	for _, rec := range records {
		if rec.BillingType == models.BillingPix && rec.Status == models.ChargePending && rec.PixQrCopyPaste == "" {
			s.refreshPixQr(ctx, rec)
		}
		out.Payments = append(out.Payments, *s.toPaymentView(rec, false))
	}
	return out, nil
}

// refreshPixQr fetches and stores a missing QR payload, best effort
func (s *Service) refreshPixQr(ctx context.Context, rec *models.PaymentRecord) {
	s.attachPixQr(ctx, rec)
	if rec.PixQrCopyPaste == "" {
		return
	}
	if err := s.payRepo.Update(ctx, nil, rec); err != nil {
		s.logger.Warn("failed to store refreshed pix qr",
			ports.String("external_payment_id", rec.ExternalPaymentID), ports.Err(err))
	}
}

func (s *Service) toPaymentView(rec *models.PaymentRecord, administrative bool) *PaymentView {
	return &PaymentView{
		ExternalPaymentID: rec.ExternalPaymentID,
		InstallmentPlanID: rec.ExternalInstallmentPlanID,
		BillingType:       string(rec.BillingType),
		Status:            rec.Status,
		Value:             rec.Value,
		DueDate:           rec.DueDate,
		PaymentDate:       rec.PaymentDate,
		InvoiceURL:        rec.InvoiceURL,
		PixQrImage:        rec.PixQrImage,
		PixQrCopyPaste:    rec.PixQrCopyPaste,
		Administrative:    administrative,
	}
}
