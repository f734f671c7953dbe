package enrollment

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/openracing/enrollment-service/internal/domain"
	"github.com/openracing/enrollment-service/internal/domain/models"
	"github.com/openracing/enrollment-service/internal/domain/ports"
)

// AddStagesRequest extends an existing stage-scoped registration with
// additional race weekends
type AddStagesRequest struct {
	RegistrationID string
	StageIDs       []string
	BillingType    models.BillingType
	FirstDueDate   string
	TotalOverride  *decimal.Decimal
}

// AddStagesToRegistration adds stages to an existing stage-scoped
// registration and charges for the extension. Unlike enrollment
// creation, the gateway charge is created before any local write:
// there is nothing to compensate when it fails, the registration simply
// stays as it was.
func (s *Service) AddStagesToRegistration(ctx context.Context, req AddStagesRequest) (*models.Registration, *PaymentView, error) {
	reg, err := s.regRepo.GetByID(ctx, nil, req.RegistrationID)
	if err != nil {
		return nil, nil, err
	}

	season, err := s.seasonRepo.GetByID(ctx, nil, reg.SeasonID)
	if err != nil {
		return nil, nil, err
	}

	competitor, err := s.competitorRepo.GetByID(ctx, nil, reg.UserID)
	if err != nil {
		return nil, nil, err
	}

	return s.extendRegistration(ctx, reg, season, competitor, CreateRegistrationRequest{
		UserID:        reg.UserID,
		SeasonID:      reg.SeasonID,
		BillingType:   req.BillingType,
		Installments:  1,
		StageIDs:      req.StageIDs,
		TotalOverride: req.TotalOverride,
		FirstDueDate:  req.FirstDueDate,
	})
}

// validateStages checks that every requested stage belongs to the season
// and returns the season's stage names keyed by id
func (s *Service) validateStages(ctx context.Context, season *models.Season, stageIDs []string) (map[string]string, error) {
	seasonStages, err := s.seasonRepo.ListStages(ctx, nil, season.ID)
	if err != nil {
		return nil, err
	}
	stageNames := make(map[string]string, len(seasonStages))
	for _, st := range seasonStages {
		stageNames[st.ID] = st.Name
	}
	for _, id := range stageIDs {
		if _, ok := stageNames[id]; !ok {
			return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed,
				"stage does not belong to this season").WithDetail("stage_id", id)
		}
	}
	return stageNames, nil
}

// extendRegistration adds newly selected stages to an existing
// stage-scoped aggregate and creates a single charge for them
func (s *Service) extendRegistration(
	ctx context.Context,
	reg *models.Registration,
	season *models.Season,
	competitor *models.Competitor,
	req CreateRegistrationRequest,
) (*models.Registration, *PaymentView, error) {
	if season.EnrollmentScope != models.ScopeStage {
		return nil, nil, domain.ErrDuplicateEnrollment
	}
	if reg.LifecycleStatus == models.LifecycleCancelled {
		return nil, nil, domain.NewDomainError(domain.ErrorCodeRegistrationCancelled,
			"registration was cancelled and cannot be extended")
	}
	if !season.RegistrationOpen {
		return nil, nil, domain.ErrSeasonClosed
	}
	if len(req.StageIDs) == 0 {
		return nil, nil, domain.NewDomainError(domain.ErrorCodeValidationFailed,
			"at least one stage is required")
	}

	stageNames, err := s.validateStages(ctx, season, req.StageIDs)
	if err != nil {
		return nil, nil, err
	}

	selected, err := s.regRepo.ListStageIDs(ctx, nil, reg.ID)
	if err != nil {
		return nil, nil, err
	}
	selectedSet := make(map[string]bool, len(selected))
	for _, id := range selected {
		selectedSet[id] = true
	}
	var conflicts []string
	for _, id := range req.StageIDs {
		if selectedSet[id] {
			conflicts = append(conflicts, stageNames[id])
		}
	}
	if len(conflicts) > 0 {
		return nil, nil, domain.NewDomainError(domain.ErrorCodeStageAlreadySelected,
			"already enrolled in: "+strings.Join(conflicts, ", ")).
			WithDetail("stages", conflicts)
	}

	categoryIDs, err := s.regRepo.ListCategoryIDs(ctx, nil, reg.ID)
	if err != nil {
		return nil, nil, err
	}

	extension := s.computeAmount(season, len(categoryIDs), len(req.StageIDs), req.TotalOverride)

	customer, err := s.gateway.UpsertCustomer(ctx, ports.CustomerProfile{
		Name:        competitor.Name,
		Email:       competitor.Email,
		Phone:       competitor.Phone,
		TaxDocument: competitor.TaxDocument,
		ExternalRef: competitor.ID,
	})
	if err != nil {
		return nil, nil, err
	}

	dueDate := req.FirstDueDate
	if dueDate == "" {
		dueDate = s.now().AddDate(0, 0, defaultDueDays).Format("2006-01-02")
	}

	ref, err := s.gateway.CreatePayment(ctx, ports.PaymentSpec{
		CustomerID:  customer.ID,
		BillingType: req.BillingType,
		Value:       extension,
		DueDate:     dueDate,
		Description: "Stage enrollment: " + season.Name,
		ExternalRef: reg.ID,
		Split:       splitSpecs(season),
	})
	if err != nil {
		return nil, nil, err
	}

	rec := recordFromRef(reg.ID, ref)
	s.attachPixQr(ctx, rec)

	newAmount := reg.Amount.Add(extension)
	err = s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.payRepo.Create(ctx, tx, rec); err != nil {
			return err
		}
		if err := s.regRepo.AddStages(ctx, tx, reg.ID, req.StageIDs); err != nil {
			return err
		}
		return s.regRepo.UpdateAmount(ctx, tx, reg.ID, newAmount)
	})
	if err != nil {
		return nil, nil, err
	}
	reg.Amount = newAmount
	reg.StageIDs = append(reg.StageIDs, req.StageIDs...)

	if err := s.reconciler.Reconcile(ctx, reg.ID); err != nil {
		s.logger.Warn("post-extension reconciliation failed",
			ports.String("registration_id", reg.ID), ports.Err(err))
	}

	s.logger.Info("registration extended with stages",
		ports.String("registration_id", reg.ID),
		ports.Int("stages_added", len(req.StageIDs)),
		ports.String("extension_amount", extension.String()))

	return reg, s.toPaymentView(rec, false), nil
}
