package enrollment

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/openracing/enrollment-service/internal/domain"
	"github.com/openracing/enrollment-service/internal/domain/models"
	"github.com/openracing/enrollment-service/internal/domain/ports"
)

// syncConcurrency bounds the parallel gateway lookups per sync run
const syncConcurrency = 4

// SyncPaymentStatus re-reads every charge of a registration from the
// gateway and repairs local records that drifted, for example because a
// webhook was lost. Plain charges are fetched individually; installment
// plans are listed in one call, which also recovers installments the
// original materialization never persisted. Ends with a single
// reconciliation pass.
func (s *Service) SyncPaymentStatus(ctx context.Context, registrationID string) error {
	if _, err := s.regRepo.GetByID(ctx, nil, registrationID); err != nil {
		return err
	}

	records, err := s.payRepo.ListByRegistration(ctx, nil, registrationID)
	if err != nil {
		return err
	}

	planIDs := make(map[string]bool)
	var singles []*models.PaymentRecord
	for _, rec := range records {
		if rec.ExternalInstallmentPlanID != "" {
			planIDs[rec.ExternalInstallmentPlanID] = true
			continue
		}
		singles = append(singles, rec)
	}

	var (
		mu      sync.Mutex
		drifted int
		added   int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(syncConcurrency)

	for _, rec := range singles {
		rec := rec
		g.Go(func() error {
			ref, err := s.gateway.GetPayment(gctx, rec.ExternalPaymentID)
			if err != nil {
				return err
			}
			if !s.mergeRef(gctx, rec, ref) {
				return nil
			}
			mu.Lock()
			drifted++
			mu.Unlock()
			return nil
		})
	}

	for planID := range planIDs {
		planID := planID
		g.Go(func() error {
			refs, err := s.gateway.ListInstallmentPayments(gctx, planID)
			if err != nil {
				return err
			}
			for _, ref := range refs {
				existing, err := s.payRepo.GetByExternalID(gctx, nil, ref.ID)
				if err != nil && !domain.IsNotFoundError(err) {
					return err
				}
				if existing == nil {
					rec := recordFromRef(registrationID, ref)
					rec.ExternalInstallmentPlanID = planID
					if err := s.payRepo.Create(gctx, nil, rec); err != nil {
						return err
					}
					mu.Lock()
					added++
					mu.Unlock()
					continue
				}
				if s.mergeRef(gctx, existing, ref) {
					mu.Lock()
					drifted++
					mu.Unlock()
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	s.logger.Info("payment status synced from gateway",
		ports.String("registration_id", registrationID),
		ports.Int("records", len(records)),
		ports.Int("drifted", drifted),
		ports.Int("added", added))

	return s.reconciler.Reconcile(ctx, registrationID)
}

// mergeRef folds the gateway's current view into a local record and
// persists it when anything moved. Reports whether a write happened.
func (s *Service) mergeRef(ctx context.Context, rec *models.PaymentRecord, ref *ports.PaymentRef) bool {
	changed := rec.Status != ref.Status ||
		!rec.Value.Equal(ref.Value) ||
		!rec.NetValue.Equal(ref.NetValue) ||
		!timePtrEqual(rec.PaymentDate, ref.PaymentDate)
	if !changed {
		return false
	}

	rec.Status = ref.Status
	rec.Value = ref.Value
	rec.NetValue = ref.NetValue
	rec.DueDate = ref.DueDate
	rec.PaymentDate = ref.PaymentDate
	rec.ClientPaymentDate = ref.ClientPaymentDate
	rec.InvoiceURL = ref.InvoiceURL
	if len(ref.Raw) > 0 {
		rec.GatewayResponse = ref.Raw
	}

	if err := s.payRepo.Update(ctx, nil, rec); err != nil {
		s.logger.Warn("failed to persist synced charge",
			ports.String("external_payment_id", rec.ExternalPaymentID), ports.Err(err))
		return false
	}
	return true
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
