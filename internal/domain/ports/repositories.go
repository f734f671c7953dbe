package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/openracing/enrollment-service/internal/domain/models"
)

// RegistrationRepository persists the enrollment aggregate. There is no
// raw status setter: after creation, lifecycle and payment status change
// only through ApplyStatusChange, which keeps reconciliation the single
// writer of those fields.
type RegistrationRepository interface {
	Create(ctx context.Context, tx DBTX, reg *models.Registration) error
	GetByID(ctx context.Context, tx DBTX, id string) (*models.Registration, error)
	GetByUserAndSeason(ctx context.Context, tx DBTX, userID, seasonID string) (*models.Registration, error)
	ApplyStatusChange(ctx context.Context, tx DBTX, id string, change models.StatusChange) error
	UpdateAmount(ctx context.Context, tx DBTX, id string, amount decimal.Decimal) error
	AddCategories(ctx context.Context, tx DBTX, id string, categoryIDs []string) error
	AddStages(ctx context.Context, tx DBTX, id string, stageIDs []string) error
	ListStageIDs(ctx context.Context, tx DBTX, id string) ([]string, error)
	ListCategoryIDs(ctx context.Context, tx DBTX, id string) ([]string, error)
	// Delete removes the registration and its association rows
	Delete(ctx context.Context, tx DBTX, id string) error
}

// PaymentRecordRepository persists individual charge records, keyed by
// the gateway's external payment id (unique)
type PaymentRecordRepository interface {
	Create(ctx context.Context, tx DBTX, rec *models.PaymentRecord) error
	GetByExternalID(ctx context.Context, tx DBTX, externalID string) (*models.PaymentRecord, error)
	ListByRegistration(ctx context.Context, tx DBTX, registrationID string) ([]*models.PaymentRecord, error)
	Update(ctx context.Context, tx DBTX, rec *models.PaymentRecord) error
	DeleteByExternalID(ctx context.Context, tx DBTX, externalID string) error
}

// SeasonRepository reads the season configuration the orchestrator
// validates against
type SeasonRepository interface {
	GetByID(ctx context.Context, tx DBTX, id string) (*models.Season, error)
	ListCategories(ctx context.Context, tx DBTX, seasonID string) ([]*models.Category, error)
	ListStages(ctx context.Context, tx DBTX, seasonID string) ([]*models.Stage, error)
}

// CompetitorRepository reads competitor profiles
type CompetitorRepository interface {
	GetByID(ctx context.Context, tx DBTX, id string) (*models.Competitor, error)
	SetExternalCustomerID(ctx context.Context, tx DBTX, id, customerID string) error
}
