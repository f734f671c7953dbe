package enrollment_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/openracing/enrollment-service/internal/domain"
	"github.com/openracing/enrollment-service/internal/domain/models"
	"github.com/openracing/enrollment-service/internal/domain/ports"
	"github.com/openracing/enrollment-service/internal/services/enrollment"
	"github.com/openracing/enrollment-service/internal/testutil/mocks"
)

type enrollmentDeps struct {
	db             *mocks.DBPort
	regRepo        *mocks.RegistrationRepository
	payRepo        *mocks.PaymentRecordRepository
	seasonRepo     *mocks.SeasonRepository
	competitorRepo *mocks.CompetitorRepository
	gateway        *mocks.PaymentGateway
	reconciler     *mocks.Reconciler
}

func newEnrollmentService() (*enrollment.Service, *enrollmentDeps) {
	d := &enrollmentDeps{
		db:             new(mocks.DBPort),
		regRepo:        new(mocks.RegistrationRepository),
		payRepo:        new(mocks.PaymentRecordRepository),
		seasonRepo:     new(mocks.SeasonRepository),
		competitorRepo: new(mocks.CompetitorRepository),
		gateway:        new(mocks.PaymentGateway),
		reconciler:     new(mocks.Reconciler),
	}
	svc := enrollment.NewService(d.db, d.regRepo, d.payRepo, d.seasonRepo, d.competitorRepo, d.gateway, d.reconciler, mocks.NopLogger{})
	return svc, d
}

func testCompetitor() *models.Competitor {
	return &models.Competitor{
		ID:                 "user-1",
		Name:               "Ayrton Souza",
		Email:              "ayrton@example.com",
		TaxDocument:        "12345678901",
		ExternalCustomerID: "cus_123",
	}
}

func testSeason() *models.Season {
	return &models.Season{
		ID:                  "season-1",
		Name:                "2026 Sprint Cup",
		RegistrationOpen:    true,
		EnrollmentScope:     models.ScopeSeason,
		UnitPrice:           decimal.NewFromInt(100),
		MaxInstallmentsPix:  6,
		MaxInstallmentsCard: 12,
		CommissionMode:      models.CommissionOrganizer,
	}
}

func testCategories() []*models.Category {
	return []*models.Category{
		{ID: "cat-1", SeasonID: "season-1", Name: "Pro"},
		{ID: "cat-2", SeasonID: "season-1", Name: "Light"},
	}
}

func paymentRef(id string) *ports.PaymentRef {
	return &ports.PaymentRef{
		ID:          id,
		BillingType: models.BillingPix,
		Status:      models.ChargePending,
		Value:       decimal.NewFromInt(100),
		DueDate:     "2026-09-03",
	}
}

func TestCreateRegistration_SinglePixPayment(t *testing.T) {
	svc, d := newEnrollmentService()

	d.competitorRepo.On("GetByID", mock.Anything, nil, "user-1").Return(testCompetitor(), nil)
	d.seasonRepo.On("GetByID", mock.Anything, nil, "season-1").Return(testSeason(), nil)
	d.seasonRepo.On("ListCategories", mock.Anything, nil, "season-1").Return(testCategories(), nil)
	d.regRepo.On("GetByUserAndSeason", mock.Anything, nil, "user-1", "season-1").Return(nil, domain.ErrRegistrationNotFound)
	d.regRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	d.gateway.On("UpsertCustomer", mock.Anything, mock.Anything).Return(&ports.CustomerRef{ID: "cus_123"}, nil)
	d.gateway.On("CreatePayment", mock.Anything, mock.MatchedBy(func(spec ports.PaymentSpec) bool {
		return spec.CustomerID == "cus_123" && spec.Value.Equal(decimal.NewFromInt(200))
	})).Return(paymentRef("pay_1"), nil)
	d.gateway.On("GetPixQrCode", mock.Anything, "pay_1").Return(&ports.PixQrCode{
		EncodedImage: "img==", Payload: "copypaste",
	}, nil)
	d.payRepo.On("Create", mock.Anything, nil, mock.Anything).Return(nil)
	d.reconciler.On("Reconcile", mock.Anything, mock.Anything).Return(nil)

	reg, payment, err := svc.CreateRegistration(context.Background(), enrollment.CreateRegistrationRequest{
		UserID:      "user-1",
		SeasonID:    "season-1",
		BillingType: models.BillingPix,
		CategoryIDs: []string{"cat-1", "cat-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.LifecyclePaymentPending, reg.LifecycleStatus)
	assert.Equal(t, models.PaymentPending, reg.PaymentStatus)
	assert.True(t, reg.Amount.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, "pay_1", payment.ExternalPaymentID)
	assert.Equal(t, "copypaste", payment.PixQrCopyPaste)
	d.gateway.AssertExpectations(t)
}

func TestCreateRegistration_CompetitorCommissionAddedOnTop(t *testing.T) {
	svc, d := newEnrollmentService()

	season := testSeason()
	season.CommissionMode = models.CommissionCompetitor
	season.CommissionPercent = decimal.NewFromInt(10)

	d.competitorRepo.On("GetByID", mock.Anything, nil, "user-1").Return(testCompetitor(), nil)
	d.seasonRepo.On("GetByID", mock.Anything, nil, "season-1").Return(season, nil)
	d.seasonRepo.On("ListCategories", mock.Anything, nil, "season-1").Return(testCategories(), nil)
	d.regRepo.On("GetByUserAndSeason", mock.Anything, nil, "user-1", "season-1").Return(nil, domain.ErrRegistrationNotFound)
	d.regRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	d.gateway.On("UpsertCustomer", mock.Anything, mock.Anything).Return(&ports.CustomerRef{ID: "cus_123"}, nil)
	d.gateway.On("CreatePayment", mock.Anything, mock.Anything).Return(paymentRef("pay_1"), nil)
	d.gateway.On("GetPixQrCode", mock.Anything, "pay_1").Return(&ports.PixQrCode{}, nil)
	d.payRepo.On("Create", mock.Anything, nil, mock.Anything).Return(nil)
	d.reconciler.On("Reconcile", mock.Anything, mock.Anything).Return(nil)

	reg, _, err := svc.CreateRegistration(context.Background(), enrollment.CreateRegistrationRequest{
		UserID:      "user-1",
		SeasonID:    "season-1",
		BillingType: models.BillingPix,
		CategoryIDs: []string{"cat-1"},
	})
	require.NoError(t, err)
	assert.True(t, reg.Amount.Equal(decimal.RequireFromString("110")), "got %s", reg.Amount)
}

func TestCreateRegistration_ClosedSeasonRejected(t *testing.T) {
	svc, d := newEnrollmentService()

	season := testSeason()
	season.RegistrationOpen = false
	d.competitorRepo.On("GetByID", mock.Anything, nil, "user-1").Return(testCompetitor(), nil)
	d.seasonRepo.On("GetByID", mock.Anything, nil, "season-1").Return(season, nil)

	_, _, err := svc.CreateRegistration(context.Background(), enrollment.CreateRegistrationRequest{
		UserID:      "user-1",
		SeasonID:    "season-1",
		BillingType: models.BillingPix,
		CategoryIDs: []string{"cat-1"},
	})
	assert.Equal(t, domain.ErrorCodeValidationSeasonClosed, domain.GetErrorCode(err))
}

func TestCreateRegistration_MissingDocumentRejected(t *testing.T) {
	svc, d := newEnrollmentService()

	competitor := testCompetitor()
	competitor.TaxDocument = ""
	d.competitorRepo.On("GetByID", mock.Anything, nil, "user-1").Return(competitor, nil)
	d.seasonRepo.On("GetByID", mock.Anything, nil, "season-1").Return(testSeason(), nil)

	_, _, err := svc.CreateRegistration(context.Background(), enrollment.CreateRegistrationRequest{
		UserID:      "user-1",
		SeasonID:    "season-1",
		BillingType: models.BillingPix,
		CategoryIDs: []string{"cat-1"},
	})
	assert.Equal(t, domain.ErrorCodeValidationMissingDocument, domain.GetErrorCode(err))
}

func TestCreateRegistration_InstallmentCapEnforced(t *testing.T) {
	svc, d := newEnrollmentService()

	d.competitorRepo.On("GetByID", mock.Anything, nil, "user-1").Return(testCompetitor(), nil)
	d.seasonRepo.On("GetByID", mock.Anything, nil, "season-1").Return(testSeason(), nil)

	_, _, err := svc.CreateRegistration(context.Background(), enrollment.CreateRegistrationRequest{
		UserID:       "user-1",
		SeasonID:     "season-1",
		BillingType:  models.BillingPix,
		Installments: 7,
		CategoryIDs:  []string{"cat-1"},
	})
	assert.Equal(t, domain.ErrorCodeValidationInstallmentCap, domain.GetErrorCode(err))
}

func TestCreateRegistration_ForeignCategoryRejected(t *testing.T) {
	svc, d := newEnrollmentService()

	d.competitorRepo.On("GetByID", mock.Anything, nil, "user-1").Return(testCompetitor(), nil)
	d.seasonRepo.On("GetByID", mock.Anything, nil, "season-1").Return(testSeason(), nil)
	d.seasonRepo.On("ListCategories", mock.Anything, nil, "season-1").Return(testCategories(), nil)

	_, _, err := svc.CreateRegistration(context.Background(), enrollment.CreateRegistrationRequest{
		UserID:      "user-1",
		SeasonID:    "season-1",
		BillingType: models.BillingPix,
		CategoryIDs: []string{"cat-other"},
	})
	assert.Equal(t, domain.ErrorCodeValidationInvalidCategory, domain.GetErrorCode(err))
}

func TestCreateRegistration_DuplicateSeasonEnrollmentRejected(t *testing.T) {
	svc, d := newEnrollmentService()

	d.competitorRepo.On("GetByID", mock.Anything, nil, "user-1").Return(testCompetitor(), nil)
	d.seasonRepo.On("GetByID", mock.Anything, nil, "season-1").Return(testSeason(), nil)
	d.seasonRepo.On("ListCategories", mock.Anything, nil, "season-1").Return(testCategories(), nil)
	d.regRepo.On("GetByUserAndSeason", mock.Anything, nil, "user-1", "season-1").
		Return(&models.Registration{ID: "reg-existing"}, nil)

	_, _, err := svc.CreateRegistration(context.Background(), enrollment.CreateRegistrationRequest{
		UserID:      "user-1",
		SeasonID:    "season-1",
		BillingType: models.BillingPix,
		CategoryIDs: []string{"cat-1"},
	})
	assert.Equal(t, domain.ErrorCodeDuplicateEnrollment, domain.GetErrorCode(err))
	d.regRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateRegistration_GatewayFailureRollsBack(t *testing.T) {
	svc, d := newEnrollmentService()

	d.competitorRepo.On("GetByID", mock.Anything, nil, "user-1").Return(testCompetitor(), nil)
	d.seasonRepo.On("GetByID", mock.Anything, nil, "season-1").Return(testSeason(), nil)
	d.seasonRepo.On("ListCategories", mock.Anything, nil, "season-1").Return(testCategories(), nil)
	d.regRepo.On("GetByUserAndSeason", mock.Anything, nil, "user-1", "season-1").Return(nil, domain.ErrRegistrationNotFound)
	d.regRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	d.gateway.On("UpsertCustomer", mock.Anything, mock.Anything).Return(&ports.CustomerRef{ID: "cus_123"}, nil)
	gatewayErr := domain.NewDomainError(domain.ErrorCodeGatewayTransient, "gateway timeout")
	d.gateway.On("CreatePayment", mock.Anything, mock.Anything).Return(nil, gatewayErr)
	d.regRepo.On("Delete", mock.Anything, nil, mock.Anything).Return(nil)

	_, _, err := svc.CreateRegistration(context.Background(), enrollment.CreateRegistrationRequest{
		UserID:      "user-1",
		SeasonID:    "season-1",
		BillingType: models.BillingPix,
		CategoryIDs: []string{"cat-1"},
	})
	require.Error(t, err)
	assert.Equal(t, domain.ErrorCodeGatewayTransient, domain.GetErrorCode(err))
	d.regRepo.AssertCalled(t, "Delete", mock.Anything, nil, mock.Anything)
	d.reconciler.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
}

func TestCreateRegistration_InstallmentPlan(t *testing.T) {
	svc, d := newEnrollmentService()

	d.competitorRepo.On("GetByID", mock.Anything, nil, "user-1").Return(testCompetitor(), nil)
	d.seasonRepo.On("GetByID", mock.Anything, nil, "season-1").Return(testSeason(), nil)
	d.seasonRepo.On("ListCategories", mock.Anything, nil, "season-1").Return(testCategories(), nil)
	d.regRepo.On("GetByUserAndSeason", mock.Anything, nil, "user-1", "season-1").Return(nil, domain.ErrRegistrationNotFound)
	d.regRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	d.gateway.On("UpsertCustomer", mock.Anything, mock.Anything).Return(&ports.CustomerRef{ID: "cus_123"}, nil)
	d.gateway.On("CreateInstallmentPlan", mock.Anything, mock.MatchedBy(func(spec ports.InstallmentPlanSpec) bool {
		return spec.InstallmentCount == 3 && spec.TotalValue.Equal(decimal.NewFromInt(200))
	})).Return(&ports.PlanRef{ID: "ins_1"}, nil)

	first := paymentRef("pay_1")
	first.InstallmentPlanID = "ins_1"
	first.InstallmentNumber = 1
	second := paymentRef("pay_2")
	second.InstallmentPlanID = "ins_1"
	second.InstallmentNumber = 2
	third := paymentRef("pay_3")
	third.InstallmentPlanID = "ins_1"
	third.InstallmentNumber = 3
	d.gateway.On("ListInstallmentPayments", mock.Anything, "ins_1").
		Return([]*ports.PaymentRef{first, second, third}, nil)
	d.payRepo.On("GetByExternalID", mock.Anything, nil, mock.Anything).Return(nil, domain.ErrPaymentNotFound)
	d.gateway.On("GetPixQrCode", mock.Anything, "pay_1").Return(&ports.PixQrCode{Payload: "qr-1"}, nil)
	d.gateway.On("GetPixQrCode", mock.Anything, "pay_2").Return(&ports.PixQrCode{Payload: "qr-2"}, nil)
	d.gateway.On("GetPixQrCode", mock.Anything, "pay_3").Return(&ports.PixQrCode{Payload: "qr-3"}, nil)
	d.payRepo.On("Create", mock.Anything, nil, mock.Anything).Return(nil)
	d.reconciler.On("Reconcile", mock.Anything, mock.Anything).Return(nil)

	reg, payment, err := svc.CreateRegistration(context.Background(), enrollment.CreateRegistrationRequest{
		UserID:       "user-1",
		SeasonID:     "season-1",
		BillingType:  models.BillingPix,
		Installments: 3,
		CategoryIDs:  []string{"cat-1", "cat-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, reg.Installments)
	assert.Equal(t, "pay_1", payment.ExternalPaymentID)
	d.payRepo.AssertNumberOfCalls(t, "Create", 3)
	d.gateway.AssertNumberOfCalls(t, "GetPixQrCode", 3)
}

func TestMaterializeInstallmentPlan_SkipsExistingCharges(t *testing.T) {
	svc, d := newEnrollmentService()

	first := paymentRef("pay_1")
	second := paymentRef("pay_2")
	d.gateway.On("ListInstallmentPayments", mock.Anything, "ins_1").
		Return([]*ports.PaymentRef{first, second}, nil)
	d.payRepo.On("GetByExternalID", mock.Anything, nil, "pay_1").
		Return(&models.PaymentRecord{ExternalPaymentID: "pay_1"}, nil)
	d.payRepo.On("GetByExternalID", mock.Anything, nil, "pay_2").Return(nil, domain.ErrPaymentNotFound)
	d.gateway.On("GetPixQrCode", mock.Anything, "pay_2").Return(&ports.PixQrCode{}, nil)
	d.payRepo.On("Create", mock.Anything, nil, mock.MatchedBy(func(rec *models.PaymentRecord) bool {
		return rec.ExternalPaymentID == "pay_2" && rec.ExternalInstallmentPlanID == "ins_1"
	})).Return(nil)

	records, err := svc.MaterializeInstallmentPlan(context.Background(), "reg-1", "ins_1")
	require.NoError(t, err)
	assert.Len(t, records, 2)
	d.payRepo.AssertNumberOfCalls(t, "Create", 1)
}

func TestMaterializeInstallmentPlan_EmptyListIsTransient(t *testing.T) {
	svc, d := newEnrollmentService()

	d.gateway.On("ListInstallmentPayments", mock.Anything, "ins_1").Return([]*ports.PaymentRef{}, nil)

	_, err := svc.MaterializeInstallmentPlan(context.Background(), "reg-1", "ins_1")
	assert.Equal(t, domain.ErrorCodeGatewayTransient, domain.GetErrorCode(err))
}

func TestCreateAdminRegistration_ExemptConfirmsImmediately(t *testing.T) {
	svc, d := newEnrollmentService()

	d.competitorRepo.On("GetByID", mock.Anything, nil, "user-1").Return(testCompetitor(), nil)
	d.seasonRepo.On("GetByID", mock.Anything, nil, "season-1").Return(testSeason(), nil)
	d.seasonRepo.On("ListCategories", mock.Anything, nil, "season-1").Return(testCategories(), nil)
	d.regRepo.On("GetByUserAndSeason", mock.Anything, nil, "user-1", "season-1").Return(nil, domain.ErrRegistrationNotFound)
	d.regRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	reg, err := svc.CreateAdminRegistration(context.Background(), enrollment.AdminRegistrationRequest{
		UserID:      "user-1",
		SeasonID:    "season-1",
		CategoryIDs: []string{"cat-1"},
		Exempt:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.LifecycleConfirmed, reg.LifecycleStatus)
	assert.Equal(t, models.PaymentExempt, reg.PaymentStatus)
	assert.NotNil(t, reg.ConfirmedAt)
	d.gateway.AssertNotCalled(t, "UpsertCustomer", mock.Anything, mock.Anything)
}

func TestCreateAdminRegistration_DirectPaymentStaysPending(t *testing.T) {
	svc, d := newEnrollmentService()

	d.competitorRepo.On("GetByID", mock.Anything, nil, "user-1").Return(testCompetitor(), nil)
	d.seasonRepo.On("GetByID", mock.Anything, nil, "season-1").Return(testSeason(), nil)
	d.seasonRepo.On("ListCategories", mock.Anything, nil, "season-1").Return(testCategories(), nil)
	d.regRepo.On("GetByUserAndSeason", mock.Anything, nil, "user-1", "season-1").Return(nil, domain.ErrRegistrationNotFound)
	d.regRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	reg, err := svc.CreateAdminRegistration(context.Background(), enrollment.AdminRegistrationRequest{
		UserID:      "user-1",
		SeasonID:    "season-1",
		CategoryIDs: []string{"cat-1"},
		Amount:      decimal.NewFromInt(150),
	})
	require.NoError(t, err)
	assert.Equal(t, models.LifecyclePaymentPending, reg.LifecycleStatus)
	assert.Equal(t, models.PaymentDirect, reg.PaymentStatus)
	assert.Nil(t, reg.ConfirmedAt)
}

func TestCancelRegistration_CancelsChargesAndFlipsStatus(t *testing.T) {
	svc, d := newEnrollmentService()

	d.regRepo.On("GetByID", mock.Anything, nil, "reg-1").Return(&models.Registration{
		ID:              "reg-1",
		LifecycleStatus: models.LifecyclePaymentPending,
		PaymentStatus:   models.PaymentPending,
	}, nil)
	d.payRepo.On("ListByRegistration", mock.Anything, nil, "reg-1").Return([]*models.PaymentRecord{
		{ExternalPaymentID: "pay_1", Status: models.ChargePending},
	}, nil)
	cancelled := paymentRef("pay_1")
	cancelled.Status = models.ChargeRefunded
	d.gateway.On("CancelPayment", mock.Anything, "pay_1").Return(cancelled, nil)
	d.payRepo.On("Update", mock.Anything, nil, mock.Anything).Return(nil)
	d.regRepo.On("ApplyStatusChange", mock.Anything, nil, "reg-1",
		mock.MatchedBy(func(c models.StatusChange) bool {
			return c.Lifecycle == models.LifecycleCancelled &&
				c.Payment == models.PaymentCancelled &&
				c.CancelledAt != nil &&
				c.CancellationReason == "withdrew"
		})).Return(nil)

	err := svc.CancelRegistration(context.Background(), "reg-1", "withdrew")
	require.NoError(t, err)
	d.regRepo.AssertExpectations(t)
}

func TestCancelRegistration_AlreadyCancelled(t *testing.T) {
	svc, d := newEnrollmentService()

	d.regRepo.On("GetByID", mock.Anything, nil, "reg-1").Return(&models.Registration{
		ID:              "reg-1",
		LifecycleStatus: models.LifecycleCancelled,
	}, nil)

	err := svc.CancelRegistration(context.Background(), "reg-1", "again")
	assert.Equal(t, domain.ErrorCodeRegistrationCancelled, domain.GetErrorCode(err))
}

func TestGetPaymentData_SynthesizesAdministrativeView(t *testing.T) {
	svc, d := newEnrollmentService()

	d.regRepo.On("GetByID", mock.Anything, nil, "reg-1").Return(&models.Registration{
		ID:              "reg-1",
		LifecycleStatus: models.LifecycleConfirmed,
		PaymentStatus:   models.PaymentExempt,
		PaymentMethod:   models.MethodExempt,
	}, nil)
	d.payRepo.On("ListByRegistration", mock.Anything, nil, "reg-1").Return([]*models.PaymentRecord{}, nil)

	view, err := svc.GetPaymentData(context.Background(), "reg-1")
	require.NoError(t, err)
	require.Len(t, view.Payments, 1)
	assert.True(t, view.Payments[0].Administrative)
	assert.Equal(t, string(models.PaymentExempt), view.Payments[0].Status)
}
