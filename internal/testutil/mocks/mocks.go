// Package mocks provides shared testify mocks for the domain ports.
package mocks

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/openracing/enrollment-service/internal/domain/models"
	"github.com/openracing/enrollment-service/internal/domain/ports"
)

// DBPort runs transaction callbacks with a nil transaction so mocked
// repositories can be used inside WithTransaction bodies
type DBPort struct {
	mock.Mock
}

func (m *DBPort) GetDB() *pgxpool.Pool {
	return nil
}

func (m *DBPort) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

// RegistrationRepository mocks ports.RegistrationRepository
type RegistrationRepository struct {
	mock.Mock
}

func (m *RegistrationRepository) Create(ctx context.Context, tx ports.DBTX, reg *models.Registration) error {
	args := m.Called(ctx, tx, reg)
	return args.Error(0)
}

func (m *RegistrationRepository) GetByID(ctx context.Context, tx ports.DBTX, id string) (*models.Registration, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Registration), args.Error(1)
}

func (m *RegistrationRepository) GetByUserAndSeason(ctx context.Context, tx ports.DBTX, userID, seasonID string) (*models.Registration, error) {
	args := m.Called(ctx, tx, userID, seasonID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Registration), args.Error(1)
}

func (m *RegistrationRepository) ApplyStatusChange(ctx context.Context, tx ports.DBTX, id string, change models.StatusChange) error {
	args := m.Called(ctx, tx, id, change)
	return args.Error(0)
}

func (m *RegistrationRepository) UpdateAmount(ctx context.Context, tx ports.DBTX, id string, amount decimal.Decimal) error {
	args := m.Called(ctx, tx, id, amount)
	return args.Error(0)
}

func (m *RegistrationRepository) AddCategories(ctx context.Context, tx ports.DBTX, id string, categoryIDs []string) error {
	args := m.Called(ctx, tx, id, categoryIDs)
	return args.Error(0)
}

func (m *RegistrationRepository) AddStages(ctx context.Context, tx ports.DBTX, id string, stageIDs []string) error {
	args := m.Called(ctx, tx, id, stageIDs)
	return args.Error(0)
}

func (m *RegistrationRepository) ListStageIDs(ctx context.Context, tx ports.DBTX, id string) ([]string, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *RegistrationRepository) ListCategoryIDs(ctx context.Context, tx ports.DBTX, id string) ([]string, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *RegistrationRepository) Delete(ctx context.Context, tx ports.DBTX, id string) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

// PaymentRecordRepository mocks ports.PaymentRecordRepository
type PaymentRecordRepository struct {
	mock.Mock
}

func (m *PaymentRecordRepository) Create(ctx context.Context, tx ports.DBTX, rec *models.PaymentRecord) error {
	args := m.Called(ctx, tx, rec)
	return args.Error(0)
}

func (m *PaymentRecordRepository) GetByExternalID(ctx context.Context, tx ports.DBTX, externalID string) (*models.PaymentRecord, error) {
	args := m.Called(ctx, tx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PaymentRecord), args.Error(1)
}

func (m *PaymentRecordRepository) ListByRegistration(ctx context.Context, tx ports.DBTX, registrationID string) ([]*models.PaymentRecord, error) {
	args := m.Called(ctx, tx, registrationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PaymentRecord), args.Error(1)
}

func (m *PaymentRecordRepository) Update(ctx context.Context, tx ports.DBTX, rec *models.PaymentRecord) error {
	args := m.Called(ctx, tx, rec)
	return args.Error(0)
}

func (m *PaymentRecordRepository) DeleteByExternalID(ctx context.Context, tx ports.DBTX, externalID string) error {
	args := m.Called(ctx, tx, externalID)
	return args.Error(0)
}

// SeasonRepository mocks ports.SeasonRepository
type SeasonRepository struct {
	mock.Mock
}

func (m *SeasonRepository) GetByID(ctx context.Context, tx ports.DBTX, id string) (*models.Season, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Season), args.Error(1)
}

func (m *SeasonRepository) ListCategories(ctx context.Context, tx ports.DBTX, seasonID string) ([]*models.Category, error) {
	args := m.Called(ctx, tx, seasonID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Category), args.Error(1)
}

func (m *SeasonRepository) ListStages(ctx context.Context, tx ports.DBTX, seasonID string) ([]*models.Stage, error) {
	args := m.Called(ctx, tx, seasonID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Stage), args.Error(1)
}

// CompetitorRepository mocks ports.CompetitorRepository
type CompetitorRepository struct {
	mock.Mock
}

func (m *CompetitorRepository) GetByID(ctx context.Context, tx ports.DBTX, id string) (*models.Competitor, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Competitor), args.Error(1)
}

func (m *CompetitorRepository) SetExternalCustomerID(ctx context.Context, tx ports.DBTX, id, customerID string) error {
	args := m.Called(ctx, tx, id, customerID)
	return args.Error(0)
}

// PaymentGateway mocks ports.PaymentGateway
type PaymentGateway struct {
	mock.Mock
}

func (m *PaymentGateway) UpsertCustomer(ctx context.Context, profile ports.CustomerProfile) (*ports.CustomerRef, error) {
	args := m.Called(ctx, profile)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.CustomerRef), args.Error(1)
}

func (m *PaymentGateway) CreatePayment(ctx context.Context, spec ports.PaymentSpec) (*ports.PaymentRef, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PaymentRef), args.Error(1)
}

func (m *PaymentGateway) CreateInstallmentPlan(ctx context.Context, spec ports.InstallmentPlanSpec) (*ports.PlanRef, error) {
	args := m.Called(ctx, spec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PlanRef), args.Error(1)
}

func (m *PaymentGateway) ListInstallmentPayments(ctx context.Context, planID string) ([]*ports.PaymentRef, error) {
	args := m.Called(ctx, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ports.PaymentRef), args.Error(1)
}

func (m *PaymentGateway) GetPayment(ctx context.Context, id string) (*ports.PaymentRef, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PaymentRef), args.Error(1)
}

func (m *PaymentGateway) CancelPayment(ctx context.Context, id string) (*ports.PaymentRef, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PaymentRef), args.Error(1)
}

func (m *PaymentGateway) GetPixQrCode(ctx context.Context, id string) (*ports.PixQrCode, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PixQrCode), args.Error(1)
}

// Reconciler mocks the reconciliation entry point
type Reconciler struct {
	mock.Mock
}

func (m *Reconciler) Reconcile(ctx context.Context, registrationID string) error {
	args := m.Called(ctx, registrationID)
	return args.Error(0)
}

// NopLogger discards all log output
type NopLogger struct{}

func (NopLogger) Debug(string, ...ports.Field) {}
func (NopLogger) Info(string, ...ports.Field)  {}
func (NopLogger) Warn(string, ...ports.Field)  {}
func (NopLogger) Error(string, ...ports.Field) {}
