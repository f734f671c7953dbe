package enrollment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/openracing/enrollment-service/internal/domain"
	"github.com/openracing/enrollment-service/internal/domain/models"
	"github.com/openracing/enrollment-service/internal/domain/ports"
	"github.com/openracing/enrollment-service/internal/services/reconciliation"
)

// defaultDueDays is how far out the first charge is due when the caller
// does not pick a date
const defaultDueDays = 3

// Service is the enrollment orchestrator: it validates business
// preconditions, materializes gateway charges for a registration, and
// hands derived-status maintenance to the reconciler
type Service struct {
	db             ports.DBPort
	regRepo        ports.RegistrationRepository
	payRepo        ports.PaymentRecordRepository
	seasonRepo     ports.SeasonRepository
	competitorRepo ports.CompetitorRepository
	gateway        ports.PaymentGateway
	reconciler     reconciliation.Reconciler
	logger         ports.Logger
	now            func() time.Time
}

// NewService creates a new enrollment service
func NewService(
	db ports.DBPort,
	regRepo ports.RegistrationRepository,
	payRepo ports.PaymentRecordRepository,
	seasonRepo ports.SeasonRepository,
	competitorRepo ports.CompetitorRepository,
	gateway ports.PaymentGateway,
	reconciler reconciliation.Reconciler,
	logger ports.Logger,
) *Service {
	return &Service{
		db:             db,
		regRepo:        regRepo,
		payRepo:        payRepo,
		seasonRepo:     seasonRepo,
		competitorRepo: competitorRepo,
		gateway:        gateway,
		reconciler:     reconciler,
		logger:         logger,
		now:            time.Now,
	}
}

// CreateRegistrationRequest carries an enrollment request
type CreateRegistrationRequest struct {
	UserID       string
	SeasonID     string
	BillingType  models.BillingType
	Installments int
	CategoryIDs  []string
	StageIDs     []string
	// TotalOverride carries a total resolved by an upstream fee
	// schedule; when set it is used verbatim
	TotalOverride *decimal.Decimal
	// FirstDueDate is an optional YYYY-MM-DD; defaults to a few days out
	FirstDueDate string
}

// CreateRegistration enrolls a competitor into a season and materializes
// the gateway charges. If any gateway call fails after the registration
// row was written, the local rows are deleted before the error
// propagates: the aggregate must never be left payment-pending with
// zero charges and no recovery path.
func (s *Service) CreateRegistration(ctx context.Context, req CreateRegistrationRequest) (*models.Registration, *PaymentView, error) {
	competitor, err := s.competitorRepo.GetByID(ctx, nil, req.UserID)
	if err != nil {
		return nil, nil, err
	}

	season, err := s.seasonRepo.GetByID(ctx, nil, req.SeasonID)
	if err != nil {
		return nil, nil, err
	}
	if !season.RegistrationOpen {
		return nil, nil, domain.ErrSeasonClosed
	}

	if competitor.TaxDocument == "" {
		return nil, nil, domain.ErrMissingDocument
	}

	installments := req.Installments
	if installments < 1 {
		installments = 1
	}
	if limit := season.MaxInstallments(req.BillingType); installments > limit {
		return nil, nil, domain.NewDomainError(domain.ErrorCodeValidationInstallmentCap,
			"requested installment count exceeds the season's cap").
			WithDetail("requested", installments).
			WithDetail("cap", limit)
	}

	if err := s.validateCategories(ctx, season, req.CategoryIDs); err != nil {
		return nil, nil, err
	}

	if season.SplitEnabled && season.CommissionMode == models.CommissionOrganizer && season.SplitWalletID == "" {
		return nil, nil, domain.ErrWalletRequired
	}

	existing, err := s.regRepo.GetByUserAndSeason(ctx, nil, req.UserID, req.SeasonID)
	if err != nil && !domain.IsNotFoundError(err) {
		return nil, nil, err
	}
	if existing != nil {
		if season.EnrollmentScope == models.ScopeSeason {
			return nil, nil, domain.ErrDuplicateEnrollment
		}
		// Stage-scoped seasons extend the existing aggregate with the
		// newly selected stages instead of creating a second one.
		return s.extendRegistration(ctx, existing, season, competitor, req)
	}

	if season.EnrollmentScope == models.ScopeStage {
		if len(req.StageIDs) == 0 {
			return nil, nil, domain.NewDomainError(domain.ErrorCodeValidationFailed,
				"stage-scoped enrollment requires at least one stage")
		}
		if _, err := s.validateStages(ctx, season, req.StageIDs); err != nil {
			return nil, nil, err
		}
	}

	amount := s.computeAmount(season, len(req.CategoryIDs), len(req.StageIDs), req.TotalOverride)

	reg := &models.Registration{
		ID:              uuid.New().String(),
		UserID:          req.UserID,
		SeasonID:        req.SeasonID,
		LifecycleStatus: models.LifecyclePaymentPending,
		PaymentStatus:   models.PaymentPending,
		Amount:          amount,
		PaymentMethod:   methodForBilling(req.BillingType),
		Installments:    installments,
		CategoryIDs:     req.CategoryIDs,
		StageIDs:        req.StageIDs,
	}

	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		return s.regRepo.Create(ctx, tx, reg)
	})
	if err != nil {
		return nil, nil, err
	}

	records, err := s.materializeCharges(ctx, reg, season, competitor, req.BillingType, installments, req.FirstDueDate)
	if err != nil {
		s.rollback(ctx, reg.ID)
		return nil, nil, err
	}

	if err := s.reconciler.Reconcile(ctx, reg.ID); err != nil {
		// The registration and its charges exist; the next webhook or a
		// manual sync re-derives the status.
		s.logger.Warn("post-creation reconciliation failed",
			ports.String("registration_id", reg.ID), ports.Err(err))
	}

	s.logger.Info("registration created",
		ports.String("registration_id", reg.ID),
		ports.String("season_id", reg.SeasonID),
		ports.String("user_id", reg.UserID),
		ports.Int("payment_records", len(records)))

	return reg, s.toPaymentView(records[0], false), nil
}

// materializeCharges upserts the gateway customer and creates either an
// installment plan or a single charge, persisting one payment record per
// billable instrument. The first record returned is the primary charge.
func (s *Service) materializeCharges(
	ctx context.Context,
	reg *models.Registration,
	season *models.Season,
	competitor *models.Competitor,
	billing models.BillingType,
	installments int,
	firstDueDate string,
) ([]*models.PaymentRecord, error) {
	customer, err := s.gateway.UpsertCustomer(ctx, ports.CustomerProfile{
		Name:        competitor.Name,
		Email:       competitor.Email,
		Phone:       competitor.Phone,
		TaxDocument: competitor.TaxDocument,
		ExternalRef: competitor.ID,
	})
	if err != nil {
		return nil, err
	}
	if competitor.ExternalCustomerID != customer.ID {
		if err := s.competitorRepo.SetExternalCustomerID(ctx, nil, competitor.ID, customer.ID); err != nil {
			s.logger.Warn("failed to store gateway customer id",
				ports.String("user_id", competitor.ID), ports.Err(err))
		}
	}

	dueDate := firstDueDate
	if dueDate == "" {
		dueDate = s.now().AddDate(0, 0, defaultDueDays).Format("2006-01-02")
	}
	split := splitSpecs(season)
	description := "Season enrollment: " + season.Name

	if installments > 1 && billing == models.BillingPix {
		plan, err := s.gateway.CreateInstallmentPlan(ctx, ports.InstallmentPlanSpec{
			CustomerID:       customer.ID,
			BillingType:      billing,
			InstallmentCount: installments,
			TotalValue:       reg.Amount,
			FirstDueDate:     dueDate,
			Description:      description,
			ExternalRef:      reg.ID,
			Split:            split,
		})
		if err != nil {
			return nil, err
		}
		return s.MaterializeInstallmentPlan(ctx, reg.ID, plan.ID)
	}

	ref, err := s.gateway.CreatePayment(ctx, ports.PaymentSpec{
		CustomerID:  customer.ID,
		BillingType: billing,
		Value:       reg.Amount,
		DueDate:     dueDate,
		Description: description,
		ExternalRef: reg.ID,
		Split:       split,
	})
	if err != nil {
		return nil, err
	}

	rec := recordFromRef(reg.ID, ref)
	s.attachPixQr(ctx, rec)
	if err := s.payRepo.Create(ctx, nil, rec); err != nil {
		return nil, err
	}
	return []*models.PaymentRecord{rec}, nil
}

// rollback compensates for a failed enrollment by deleting the local
// rows written before the gateway call. Not a database transaction: the
// gateway call cannot be rolled into the same atomic unit.
func (s *Service) rollback(ctx context.Context, registrationID string) {
	if err := s.regRepo.Delete(ctx, nil, registrationID); err != nil {
		s.logger.Error("enrollment rollback failed",
			ports.String("registration_id", registrationID), ports.Err(err))
		return
	}
	s.logger.Info("enrollment rolled back after gateway failure",
		ports.String("registration_id", registrationID))
}

// validateCategories requires a non-empty category set fully contained
// in the season
func (s *Service) validateCategories(ctx context.Context, season *models.Season, categoryIDs []string) error {
	if len(categoryIDs) == 0 {
		return domain.NewDomainError(domain.ErrorCodeValidationInvalidCategory,
			"at least one category is required")
	}
	seasonCategories, err := s.seasonRepo.ListCategories(ctx, nil, season.ID)
	if err != nil {
		return err
	}
	valid := make(map[string]bool, len(seasonCategories))
	for _, c := range seasonCategories {
		valid[c.ID] = true
	}
	for _, id := range categoryIDs {
		if !valid[id] {
			return domain.NewDomainError(domain.ErrorCodeValidationInvalidCategory,
				"category does not belong to this season").WithDetail("category_id", id)
		}
	}
	return nil
}

// computeAmount resolves the total owed. A caller-supplied override
// wins; otherwise unit price scales by category count and, for
// stage-scoped seasons, by stage count. The platform commission is
// added on top only when competitor-borne.
func (s *Service) computeAmount(season *models.Season, categoryCount, stageCount int, override *decimal.Decimal) decimal.Decimal {
	if override != nil {
		return *override
	}
	amount := season.UnitPrice.Mul(decimal.NewFromInt(int64(categoryCount)))
	if season.EnrollmentScope == models.ScopeStage && stageCount > 0 {
		amount = amount.Mul(decimal.NewFromInt(int64(stageCount)))
	}
	if season.CommissionMode == models.CommissionCompetitor && season.CommissionPercent.GreaterThan(decimal.Zero) {
		factor := decimal.NewFromInt(1).Add(season.CommissionPercent.Div(decimal.NewFromInt(100)))
		amount = amount.Mul(factor)
	}
	return amount.Round(2)
}

// splitSpecs builds the payout forwarding spec for split-enabled seasons
func splitSpecs(season *models.Season) []ports.SplitSpec {
	if !season.SplitEnabled || season.SplitWalletID == "" {
		return nil
	}
	return []ports.SplitSpec{{WalletID: season.SplitWalletID, Percent: season.SplitPercent}}
}

// methodForBilling maps a billing instrument to the registration marker
func methodForBilling(billing models.BillingType) models.PaymentMethod {
	if billing == models.BillingCreditCard {
		return models.MethodCreditCard
	}
	return models.MethodPix
}

// recordFromRef builds a local payment record from a normalized gateway ref
func recordFromRef(registrationID string, ref *ports.PaymentRef) *models.PaymentRecord {
	return &models.PaymentRecord{
		ID:                        uuid.New().String(),
		RegistrationID:            registrationID,
		ExternalPaymentID:         ref.ID,
		ExternalInstallmentPlanID: ref.InstallmentPlanID,
		BillingType:               ref.BillingType,
		Status:                    ref.Status,
		Value:                     ref.Value,
		NetValue:                  ref.NetValue,
		DueDate:                   ref.DueDate,
		PaymentDate:               ref.PaymentDate,
		ClientPaymentDate:         ref.ClientPaymentDate,
		InvoiceURL:                ref.InvoiceURL,
		GatewayResponse:           ref.Raw,
	}
}

// attachPixQr decorates a PIX record with its QR payload. Best effort:
// a QR fetch failure is logged, never fatal.
func (s *Service) attachPixQr(ctx context.Context, rec *models.PaymentRecord) {
	if rec.BillingType != models.BillingPix {
		return
	}
	qr, err := s.gateway.GetPixQrCode(ctx, rec.ExternalPaymentID)
	if err != nil {
		s.logger.Warn("pix qr code fetch failed",
			ports.String("external_payment_id", rec.ExternalPaymentID), ports.Err(err))
		return
	}
	rec.PixQrImage = qr.EncodedImage
	rec.PixQrCopyPaste = qr.Payload
}
