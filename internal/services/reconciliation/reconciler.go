package reconciliation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openracing/enrollment-service/internal/domain/models"
	"github.com/openracing/enrollment-service/internal/domain/ports"
	"github.com/openracing/enrollment-service/pkg/observability"
)

// Reconciler recomputes a registration's derived status pair from its
// current payment record set
type Reconciler interface {
	Reconcile(ctx context.Context, registrationID string) error
}

// Service folds a registration's payment records into one
// (lifecycle, payment) status pair. It is the single writer of those
// fields after creation. The computation depends only on the current
// record set, which is what makes duplicate and out-of-order triggers
// harmless: any later event just re-derives the same answer.
type Service struct {
	regRepo ports.RegistrationRepository
	payRepo ports.PaymentRecordRepository
	logger  ports.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService creates a new reconciliation service
func NewService(regRepo ports.RegistrationRepository, payRepo ports.PaymentRecordRepository, logger ports.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		regRepo: regRepo,
		payRepo: payRepo,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Reconcile loads the registration's full payment record set, computes
// the derived status pair, and persists it only on change
func (s *Service) Reconcile(ctx context.Context, registrationID string) error {
	reg, err := s.regRepo.GetByID(ctx, nil, registrationID)
	if err != nil {
		s.count("error")
		return err
	}

	records, err := s.payRepo.ListByRegistration(ctx, nil, registrationID)
	if err != nil {
		s.count("error")
		return err
	}

	if len(records) == 0 {
		// Administrative registrations may have no charges permanently.
		// Anything else with zero records is orphaned, e.g. its only
		// charge was deleted upstream, and self-heals by deletion.
		if reg.Administrative() {
			s.count("unchanged")
			return nil
		}
		if err := s.regRepo.Delete(ctx, nil, reg.ID); err != nil {
			s.count("error")
			return err
		}
		s.logger.Info("orphaned registration deleted",
			ports.String("registration_id", reg.ID),
			ports.String("payment_status", string(reg.PaymentStatus)))
		s.count("orphan_deleted")
		return nil
	}

	change := computeStatusChange(records, s.now())
	if change.Lifecycle == reg.LifecycleStatus && change.Payment == reg.PaymentStatus {
		s.count("unchanged")
		return nil
	}

	if err := s.regRepo.ApplyStatusChange(ctx, nil, reg.ID, change); err != nil {
		s.count("error")
		return err
	}

	s.logger.Info("registration reconciled",
		ports.String("registration_id", reg.ID),
		ports.String("lifecycle_status", string(change.Lifecycle)),
		ports.String("payment_status", string(change.Payment)),
		ports.Int("payment_records", len(records)))
	s.count("updated")
	return nil
}

// classification is the fold of a payment record set
type classification struct {
	totalOwed     decimal.Decimal
	totalPaid     decimal.Decimal
	anyRefunded   bool
	anyCancelling bool
	anyFailed     bool
	allPaid       bool
}

func classify(records []*models.PaymentRecord) classification {
	c := classification{allPaid: true}
	for _, rec := range records {
		c.totalOwed = c.totalOwed.Add(rec.Value)
		switch {
		case models.IsPaidChargeStatus(rec.Status):
			c.totalPaid = c.totalPaid.Add(rec.Value)
		default:
			c.allPaid = false
		}
		if rec.Status == models.ChargeRefunded {
			c.anyRefunded = true
		}
		if models.IsCancellingChargeStatus(rec.Status) {
			c.anyCancelling = true
		}
		if models.IsFailedChargeStatus(rec.Status) {
			c.anyFailed = true
		}
	}
	return c
}

// computeStatusChange decides the new status pair by strict priority:
// the order encodes business precedence, not chronology. A refund
// dominates everything, including a fully paid set.
func computeStatusChange(records []*models.PaymentRecord, now time.Time) models.StatusChange {
	c := classify(records)

	switch {
	case c.anyRefunded:
		return models.StatusChange{
			Lifecycle:          models.LifecycleCancelled,
			Payment:            models.PaymentRefunded,
			CancelledAt:        &now,
			CancellationReason: "payment refunded",
		}
	case c.anyCancelling:
		return models.StatusChange{
			Lifecycle:          models.LifecycleCancelled,
			Payment:            models.PaymentCancelled,
			CancelledAt:        &now,
			CancellationReason: "payment cancelled",
		}
	case c.anyFailed:
		return models.StatusChange{
			Lifecycle: models.LifecyclePaymentPending,
			Payment:   models.PaymentFailed,
		}
	case c.allPaid && c.totalPaid.GreaterThanOrEqual(c.totalOwed):
		return models.StatusChange{
			Lifecycle:   models.LifecycleConfirmed,
			Payment:     models.PaymentPaid,
			PaymentDate: &now,
			ConfirmedAt: &now,
		}
	case c.totalPaid.GreaterThan(decimal.Zero) && c.totalPaid.LessThan(c.totalOwed):
		return models.StatusChange{
			Lifecycle: models.LifecyclePaymentPending,
			Payment:   models.PaymentProcessing,
		}
	default:
		return models.StatusChange{
			Lifecycle: models.LifecyclePaymentPending,
			Payment:   models.PaymentPending,
		}
	}
}

func (s *Service) count(outcome string) {
	if s.metrics != nil {
		s.metrics.ReconciliationRuns.WithLabelValues(outcome).Inc()
	}
}

var _ Reconciler = (*Service)(nil)
