package enrollment

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/openracing/enrollment-service/internal/domain"
	"github.com/openracing/enrollment-service/internal/domain/models"
	"github.com/openracing/enrollment-service/internal/domain/ports"
)

// AdminRegistrationRequest enrolls a competitor without going through
// the payment gateway
type AdminRegistrationRequest struct {
	UserID      string
	SeasonID    string
	CategoryIDs []string
	StageIDs    []string
	// Exempt marks the enrollment free of charge; otherwise the money
	// changed hands outside the platform
	Exempt bool
	Amount decimal.Decimal
}

// CreateAdminRegistration creates an enrollment that bypasses payment
// collection. Exempt registrations confirm immediately; direct-payment
// ones stay payment-pending until an organizer confirms receipt through
// a later administrative action. Reconciliation leaves both alone even
// with zero payment records.
func (s *Service) CreateAdminRegistration(ctx context.Context, req AdminRegistrationRequest) (*models.Registration, error) {
	if _, err := s.competitorRepo.GetByID(ctx, nil, req.UserID); err != nil {
		return nil, err
	}

	season, err := s.seasonRepo.GetByID(ctx, nil, req.SeasonID)
	if err != nil {
		return nil, err
	}
	if err := s.validateCategories(ctx, season, req.CategoryIDs); err != nil {
		return nil, err
	}

	existing, err := s.regRepo.GetByUserAndSeason(ctx, nil, req.UserID, req.SeasonID)
	if err != nil && !domain.IsNotFoundError(err) {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicateEnrollment
	}

	reg := &models.Registration{
		ID:           uuid.New().String(),
		UserID:       req.UserID,
		SeasonID:     req.SeasonID,
		Amount:       req.Amount,
		Installments: 1,
		CategoryIDs:  req.CategoryIDs,
		StageIDs:     req.StageIDs,
	}
	if req.Exempt {
		now := s.now()
		reg.LifecycleStatus = models.LifecycleConfirmed
		reg.PaymentStatus = models.PaymentExempt
		reg.PaymentMethod = models.MethodExempt
		reg.ConfirmedAt = &now
	} else {
		reg.LifecycleStatus = models.LifecyclePaymentPending
		reg.PaymentStatus = models.PaymentDirect
		reg.PaymentMethod = models.MethodDirect
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.regRepo.Create(ctx, tx, reg)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("administrative registration created",
		ports.String("registration_id", reg.ID),
		ports.String("season_id", reg.SeasonID),
		ports.String("user_id", reg.UserID),
		ports.Bool("exempt", req.Exempt))

	return reg, nil
}

// ConfirmDirectPayment confirms a direct-payment registration after the
// organizer acknowledges the money arrived outside the platform
func (s *Service) ConfirmDirectPayment(ctx context.Context, registrationID string) error {
	reg, err := s.regRepo.GetByID(ctx, nil, registrationID)
	if err != nil {
		return err
	}
	if reg.PaymentStatus != models.PaymentDirect {
		return domain.NewDomainError(domain.ErrorCodeValidationFailed,
			"registration is not a direct-payment enrollment")
	}
	now := s.now()
	change := models.StatusChange{
		Lifecycle:   models.LifecycleConfirmed,
		Payment:     models.PaymentDirect,
		ConfirmedAt: &now,
		PaymentDate: &now,
	}
	if err := s.regRepo.ApplyStatusChange(ctx, nil, registrationID, change); err != nil {
		return err
	}
	s.logger.Info("direct payment confirmed",
		ports.String("registration_id", registrationID))
	return nil
}
