package webhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/openracing/enrollment-service/internal/domain"
	"github.com/openracing/enrollment-service/internal/domain/models"
	"github.com/openracing/enrollment-service/internal/domain/ports"
	"github.com/openracing/enrollment-service/internal/services/reconciliation"
	"github.com/openracing/enrollment-service/pkg/observability"
)

// Gateway event names delivered to the webhook endpoint
const (
	EventPaymentCreated   = "PAYMENT_CREATED"
	EventPaymentUpdated   = "PAYMENT_UPDATED"
	EventPaymentConfirmed = "PAYMENT_CONFIRMED"
	EventPaymentReceived  = "PAYMENT_RECEIVED"
	EventPaymentOverdue   = "PAYMENT_OVERDUE"
	EventPaymentRefunded  = "PAYMENT_REFUNDED"
	EventPaymentDeleted   = "PAYMENT_DELETED"
	EventPaymentRestored  = "PAYMENT_RESTORED"
)

// EventPayment is the charge snapshot embedded in a webhook event
type EventPayment struct {
	ID                string           `json:"id"`
	Status            string           `json:"status"`
	Value             decimal.Decimal  `json:"value"`
	NetValue          *decimal.Decimal `json:"netValue"`
	DueDate           string           `json:"dueDate"`
	PaymentDate       string           `json:"paymentDate"`
	ClientPaymentDate string           `json:"clientPaymentDate"`
	InvoiceURL        string           `json:"invoiceUrl"`
	ExternalReference string           `json:"externalReference"`
}

// Event is one gateway notification
type Event struct {
	Event   string       `json:"event"`
	Payment EventPayment `json:"payment"`
}

// Ingestor applies gateway webhook events to local payment records and
// triggers reconciliation. Every path is idempotent on the external
// payment id: duplicates and out-of-order deliveries converge because
// the snapshot overwrites and the reconciler re-derives from whatever
// is stored.
type Ingestor struct {
	payRepo    ports.PaymentRecordRepository
	reconciler reconciliation.Reconciler
	logger     ports.Logger
	metrics    *observability.Metrics
}

// NewIngestor creates a webhook ingestor
func NewIngestor(
	payRepo ports.PaymentRecordRepository,
	reconciler reconciliation.Reconciler,
	logger ports.Logger,
	metrics *observability.Metrics,
) *Ingestor {
	return &Ingestor{
		payRepo:    payRepo,
		reconciler: reconciler,
		logger:     logger,
		metrics:    metrics,
	}
}

// Ingest processes one webhook event. It returns an error only on
// storage failures; an event referencing a charge this service never
// created is skipped, since the gateway account may carry charges owned
// by other systems.
func (i *Ingestor) Ingest(ctx context.Context, evt Event, rawPayload json.RawMessage) error {
	if evt.Payment.ID == "" {
		i.count(evt.Event, "malformed")
		i.logger.Warn("webhook event without payment id",
			ports.String("event", evt.Event))
		return nil
	}

	if evt.Event == EventPaymentDeleted {
		return i.handleDeleted(ctx, evt)
	}

	rec, err := i.payRepo.GetByExternalID(ctx, nil, evt.Payment.ID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			i.count(evt.Event, "skipped")
			i.logger.Info("webhook for unknown charge skipped",
				ports.String("event", evt.Event),
				ports.String("external_payment_id", evt.Payment.ID))
			return nil
		}
		i.count(evt.Event, "error")
		return err
	}

	i.applySnapshot(rec, evt.Payment, rawPayload)
	if err := i.payRepo.Update(ctx, nil, rec); err != nil {
		i.count(evt.Event, "error")
		return err
	}

	i.count(evt.Event, "applied")
	i.logger.Info("webhook event applied",
		ports.String("event", evt.Event),
		ports.String("external_payment_id", evt.Payment.ID),
		ports.String("status", rec.Status))

	i.reconcile(ctx, rec.RegistrationID)
	return nil
}

// handleDeleted removes the local record; the follow-up reconciliation
// pass takes care of a registration left with zero charges
func (i *Ingestor) handleDeleted(ctx context.Context, evt Event) error {
	rec, err := i.payRepo.GetByExternalID(ctx, nil, evt.Payment.ID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			i.count(evt.Event, "skipped")
			return nil
		}
		i.count(evt.Event, "error")
		return err
	}

	if err := i.payRepo.DeleteByExternalID(ctx, nil, evt.Payment.ID); err != nil {
		i.count(evt.Event, "error")
		return err
	}

	i.count(evt.Event, "applied")
	i.logger.Info("charge deleted by gateway",
		ports.String("external_payment_id", evt.Payment.ID),
		ports.String("registration_id", rec.RegistrationID))

	i.reconcile(ctx, rec.RegistrationID)
	return nil
}

// applySnapshot overwrites the record with the event's charge snapshot.
// Last write wins: the gateway does not sequence events, and the
// reconciler tolerates any stored state.
func (i *Ingestor) applySnapshot(rec *models.PaymentRecord, p EventPayment, raw json.RawMessage) {
	rec.Status = p.Status
	if !p.Value.IsZero() {
		rec.Value = p.Value
	}
	if p.NetValue != nil {
		rec.NetValue = *p.NetValue
	}
	if p.DueDate != "" {
		rec.DueDate = p.DueDate
	}
	if t := parseEventDate(p.PaymentDate); t != nil {
		rec.PaymentDate = t
	}
	if t := parseEventDate(p.ClientPaymentDate); t != nil {
		rec.ClientPaymentDate = t
	}
	if p.InvoiceURL != "" {
		rec.InvoiceURL = p.InvoiceURL
	}
	if len(raw) > 0 {
		rec.WebhookPayload = raw
	}
}

// reconcile runs a reconciliation pass, logging failures instead of
// surfacing them: the webhook has been durably applied, and the next
// event or a manual sync will re-derive the status
func (i *Ingestor) reconcile(ctx context.Context, registrationID string) {
	if err := i.reconciler.Reconcile(ctx, registrationID); err != nil {
		i.logger.Error("post-webhook reconciliation failed",
			ports.String("registration_id", registrationID), ports.Err(err))
	}
}

func (i *Ingestor) count(event, result string) {
	if i.metrics != nil {
		i.metrics.WebhookEvents.WithLabelValues(event, result).Inc()
	}
}

var eventDateFormats = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"}

func parseEventDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range eventDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
