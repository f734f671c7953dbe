package enrollment

import (
	"context"

	"github.com/openracing/enrollment-service/internal/domain"
	"github.com/openracing/enrollment-service/internal/domain/models"
	"github.com/openracing/enrollment-service/internal/domain/ports"
)

// CancelRegistration cancels an enrollment. Open charges are voided and
// paid ones refunded at the gateway, best effort per charge; a charge
// that cannot be cancelled is logged and skipped so one stuck refund
// does not block the cancellation. The status flip is an administrative
// override, not a reconciliation outcome, so it is applied directly.
func (s *Service) CancelRegistration(ctx context.Context, registrationID, reason string) error {
	reg, err := s.regRepo.GetByID(ctx, nil, registrationID)
	if err != nil {
		return err
	}
	if reg.LifecycleStatus == models.LifecycleCancelled {
		return domain.NewDomainError(domain.ErrorCodeRegistrationCancelled,
			"registration is already cancelled")
	}

	records, err := s.payRepo.ListByRegistration(ctx, nil, registrationID)
	if err != nil {
		return err
	}
	for _, rec := range records {
		ref, err := s.gateway.CancelPayment(ctx, rec.ExternalPaymentID)
		if err != nil {
			s.logger.Warn("failed to cancel charge at gateway",
				ports.String("registration_id", registrationID),
				ports.String("external_payment_id", rec.ExternalPaymentID),
				ports.Err(err))
			continue
		}
		rec.Status = ref.Status
		if err := s.payRepo.Update(ctx, nil, rec); err != nil {
			s.logger.Warn("failed to store cancelled charge status",
				ports.String("external_payment_id", rec.ExternalPaymentID),
				ports.Err(err))
		}
	}

	now := s.now()
	change := models.StatusChange{
		Lifecycle:          models.LifecycleCancelled,
		Payment:            models.PaymentCancelled,
		CancelledAt:        &now,
		CancellationReason: reason,
	}
	if err := s.regRepo.ApplyStatusChange(ctx, nil, registrationID, change); err != nil {
		return err
	}

	s.logger.Info("registration cancelled",
		ports.String("registration_id", registrationID),
		ports.String("reason", reason),
		ports.Int("charges", len(records)))
	return nil
}
