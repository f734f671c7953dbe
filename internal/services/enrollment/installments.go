package enrollment

import (
	"context"

	"github.com/openracing/enrollment-service/internal/domain"
	"github.com/openracing/enrollment-service/internal/domain/models"
	"github.com/openracing/enrollment-service/internal/domain/ports"
)

// MaterializeInstallmentPlan lists the charges the gateway generated for
// a plan and persists one payment record per charge. Idempotent on the
// external payment id: charges already recorded (for example by a
// webhook that raced this call) are left as they are, so re-running
// after a partial failure only fills the gaps.
func (s *Service) MaterializeInstallmentPlan(ctx context.Context, registrationID, planID string) ([]*models.PaymentRecord, error) {
	refs, err := s.gateway.ListInstallmentPayments(ctx, planID)
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		// The gateway accepted the plan but has not generated its
		// charges yet. Treat as transient so the caller retries instead
		// of persisting a plan with no payable charges.
		return nil, domain.NewDomainError(domain.ErrorCodeGatewayTransient,
			"installment plan has no charges yet").WithDetail("plan_id", planID)
	}

	records := make([]*models.PaymentRecord, 0, len(refs))
	created := 0
	for _, ref := range refs {
		existing, err := s.payRepo.GetByExternalID(ctx, nil, ref.ID)
		if err != nil && !domain.IsNotFoundError(err) {
			return nil, err
		}
		if existing != nil {
			records = append(records, existing)
			continue
		}

		rec := recordFromRef(registrationID, ref)
		rec.ExternalInstallmentPlanID = planID
		s.attachPixQr(ctx, rec)
		if err := s.payRepo.Create(ctx, nil, rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
		created++
	}

	s.logger.Info("installment plan materialized",
		ports.String("registration_id", registrationID),
		ports.String("plan_id", planID),
		ports.Int("charges", len(records)),
		ports.Int("created", created))

	return records, nil
}
