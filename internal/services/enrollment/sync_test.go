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
)

func TestSyncPaymentStatus_RepairsDriftedCharge(t *testing.T) {
	svc, d := newEnrollmentService()

	d.regRepo.On("GetByID", mock.Anything, nil, "reg-1").Return(stageRegistration(), nil)
	d.payRepo.On("ListByRegistration", mock.Anything, nil, "reg-1").Return([]*models.PaymentRecord{
		{
			ExternalPaymentID: "pay_1",
			RegistrationID:    "reg-1",
			Status:            models.ChargePending,
			Value:             decimal.NewFromInt(100),
			NetValue:          decimal.NewFromInt(98),
		},
	}, nil)

	fresh := paymentRef("pay_1")
	fresh.Status = models.ChargeReceived
	fresh.NetValue = decimal.NewFromInt(98)
	d.gateway.On("GetPayment", mock.Anything, "pay_1").Return(fresh, nil)
	d.payRepo.On("Update", mock.Anything, nil, mock.MatchedBy(func(rec *models.PaymentRecord) bool {
		return rec.ExternalPaymentID == "pay_1" && rec.Status == models.ChargeReceived
	})).Return(nil)
	d.reconciler.On("Reconcile", mock.Anything, "reg-1").Return(nil)

	err := svc.SyncPaymentStatus(context.Background(), "reg-1")
	require.NoError(t, err)
	d.payRepo.AssertExpectations(t)
	d.reconciler.AssertCalled(t, "Reconcile", mock.Anything, "reg-1")
}

func TestSyncPaymentStatus_SkipsWriteWhenUnchanged(t *testing.T) {
	svc, d := newEnrollmentService()

	d.regRepo.On("GetByID", mock.Anything, nil, "reg-1").Return(stageRegistration(), nil)
	d.payRepo.On("ListByRegistration", mock.Anything, nil, "reg-1").Return([]*models.PaymentRecord{
		{
			ExternalPaymentID: "pay_1",
			RegistrationID:    "reg-1",
			Status:            models.ChargePending,
			Value:             decimal.NewFromInt(100),
		},
	}, nil)

	fresh := paymentRef("pay_1")
	d.gateway.On("GetPayment", mock.Anything, "pay_1").Return(fresh, nil)
	d.reconciler.On("Reconcile", mock.Anything, "reg-1").Return(nil)

	err := svc.SyncPaymentStatus(context.Background(), "reg-1")
	require.NoError(t, err)
	d.payRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncPaymentStatus_RecoversMissingInstallments(t *testing.T) {
	svc, d := newEnrollmentService()

	d.regRepo.On("GetByID", mock.Anything, nil, "reg-1").Return(stageRegistration(), nil)
	stored := &models.PaymentRecord{
		ExternalPaymentID:         "pay_1",
		ExternalInstallmentPlanID: "ins_1",
		RegistrationID:            "reg-1",
		Status:                    models.ChargePending,
		Value:                     decimal.NewFromInt(100),
	}
	d.payRepo.On("ListByRegistration", mock.Anything, nil, "reg-1").Return([]*models.PaymentRecord{stored}, nil)

	first := paymentRef("pay_1")
	first.InstallmentPlanID = "ins_1"
	missing := paymentRef("pay_2")
	missing.InstallmentPlanID = "ins_1"
	d.gateway.On("ListInstallmentPayments", mock.Anything, "ins_1").
		Return([]*ports.PaymentRef{first, missing}, nil)
	d.payRepo.On("GetByExternalID", mock.Anything, nil, "pay_1").Return(stored, nil)
	d.payRepo.On("GetByExternalID", mock.Anything, nil, "pay_2").Return(nil, domain.ErrPaymentNotFound)
	d.payRepo.On("Create", mock.Anything, nil, mock.MatchedBy(func(rec *models.PaymentRecord) bool {
		return rec.ExternalPaymentID == "pay_2" && rec.ExternalInstallmentPlanID == "ins_1"
	})).Return(nil)
	d.reconciler.On("Reconcile", mock.Anything, "reg-1").Return(nil)

	err := svc.SyncPaymentStatus(context.Background(), "reg-1")
	require.NoError(t, err)
	d.payRepo.AssertExpectations(t)
}

func TestSyncPaymentStatus_GatewayErrorPropagates(t *testing.T) {
	svc, d := newEnrollmentService()

	d.regRepo.On("GetByID", mock.Anything, nil, "reg-1").Return(stageRegistration(), nil)
	d.payRepo.On("ListByRegistration", mock.Anything, nil, "reg-1").Return([]*models.PaymentRecord{
		{ExternalPaymentID: "pay_1", RegistrationID: "reg-1", Status: models.ChargePending},
	}, nil)
	gatewayErr := domain.NewDomainError(domain.ErrorCodeGatewayTransient, "timeout")
	d.gateway.On("GetPayment", mock.Anything, "pay_1").Return(nil, gatewayErr)

	err := svc.SyncPaymentStatus(context.Background(), "reg-1")
	assert.Equal(t, domain.ErrorCodeGatewayTransient, domain.GetErrorCode(err))
	d.reconciler.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
}
