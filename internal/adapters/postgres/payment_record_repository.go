package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/openracing/enrollment-service/internal/domain"
	"github.com/openracing/enrollment-service/internal/domain/models"
	"github.com/openracing/enrollment-service/internal/domain/ports"
)

// PaymentRecordRepository implements ports.PaymentRecordRepository with pgx
type PaymentRecordRepository struct {
	db ports.DBTX
}

// NewPaymentRecordRepository creates a new payment record repository
func NewPaymentRecordRepository(db ports.DBPort) *PaymentRecordRepository {
	return &PaymentRecordRepository{db: db.GetDB()}
}

func (r *PaymentRecordRepository) conn(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db
}

const paymentRecordColumns = `id, registration_id, external_payment_id,
	external_installment_plan_id, billing_type, status, value, net_value, due_date,
	payment_date, client_payment_date, invoice_url, pix_qr_image, pix_qr_copypaste,
	gateway_response, webhook_payload, created_at, updated_at`

// Create inserts a new payment record. The unique constraint on
// external_payment_id is what makes installment materialization safe to
// re-run.
func (r *PaymentRecordRepository) Create(ctx context.Context, tx ports.DBTX, rec *models.PaymentRecord) error {
	value, err := decimalToNumeric(rec.Value)
	if err != nil {
		return err
	}
	netValue, err := decimalToNumeric(rec.NetValue)
	if err != nil {
		return err
	}

	_, err = r.conn(tx).Exec(ctx, `
		INSERT INTO payment_records (id, registration_id, external_payment_id,
			external_installment_plan_id, billing_type, status, value, net_value, due_date,
			payment_date, client_payment_date, invoice_url, pix_qr_image, pix_qr_copypaste,
			gateway_response, webhook_payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, now(), now())`,
		rec.ID, rec.RegistrationID, rec.ExternalPaymentID,
		nullText(rec.ExternalInstallmentPlanID), string(rec.BillingType), rec.Status,
		value, netValue, rec.DueDate,
		nullTimestamptz(rec.PaymentDate), nullTimestamptz(rec.ClientPaymentDate),
		nullText(rec.InvoiceURL), nullText(rec.PixQrImage), nullText(rec.PixQrCopyPaste),
		rawOrNull(rec.GatewayResponse), rawOrNull(rec.WebhookPayload))
	if err != nil {
		return fmt.Errorf("create payment record: %w", err)
	}
	return nil
}

// GetByExternalID retrieves a payment record by the gateway's payment id
func (r *PaymentRecordRepository) GetByExternalID(ctx context.Context, tx ports.DBTX, externalID string) (*models.PaymentRecord, error) {
	row := r.conn(tx).QueryRow(ctx,
		`SELECT `+paymentRecordColumns+` FROM payment_records WHERE external_payment_id = $1`,
		externalID)
	return r.scanPaymentRecord(row)
}

// ListByRegistration lists every charge owned by a registration, oldest first
func (r *PaymentRecordRepository) ListByRegistration(ctx context.Context, tx ports.DBTX, registrationID string) ([]*models.PaymentRecord, error) {
	rows, err := r.conn(tx).Query(ctx,
		`SELECT `+paymentRecordColumns+` FROM payment_records
		 WHERE registration_id = $1 ORDER BY due_date, created_at`, registrationID)
	if err != nil {
		return nil, fmt.Errorf("list payment records: %w", err)
	}
	defer rows.Close()

	var records []*models.PaymentRecord
	for rows.Next() {
		rec, err := r.scanPaymentRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Update overwrites the mutable fields of a payment record
func (r *PaymentRecordRepository) Update(ctx context.Context, tx ports.DBTX, rec *models.PaymentRecord) error {
	value, err := decimalToNumeric(rec.Value)
	if err != nil {
		return err
	}
	netValue, err := decimalToNumeric(rec.NetValue)
	if err != nil {
		return err
	}

	tag, err := r.conn(tx).Exec(ctx, `
		UPDATE payment_records
		SET status = $2, value = $3, net_value = $4, due_date = $5,
			payment_date = $6, client_payment_date = $7, invoice_url = $8,
			pix_qr_image = $9, pix_qr_copypaste = $10,
			gateway_response = COALESCE($11, gateway_response),
			webhook_payload = COALESCE($12, webhook_payload),
			updated_at = now()
		WHERE id = $1`,
		rec.ID, rec.Status, value, netValue, rec.DueDate,
		nullTimestamptz(rec.PaymentDate), nullTimestamptz(rec.ClientPaymentDate),
		nullText(rec.InvoiceURL), nullText(rec.PixQrImage), nullText(rec.PixQrCopyPaste),
		rawOrNull(rec.GatewayResponse), rawOrNull(rec.WebhookPayload))
	if err != nil {
		return fmt.Errorf("update payment record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

// DeleteByExternalID hard-deletes the record for a gateway payment id
func (r *PaymentRecordRepository) DeleteByExternalID(ctx context.Context, tx ports.DBTX, externalID string) error {
	_, err := r.conn(tx).Exec(ctx,
		`DELETE FROM payment_records WHERE external_payment_id = $1`, externalID)
	if err != nil {
		return fmt.Errorf("delete payment record: %w", err)
	}
	return nil
}

func (r *PaymentRecordRepository) scanPaymentRecord(row pgx.Row) (*models.PaymentRecord, error) {
	var (
		rec               models.PaymentRecord
		planID            pgtype.Text
		value             pgtype.Numeric
		netValue          pgtype.Numeric
		paymentDate       pgtype.Timestamptz
		clientPaymentDate pgtype.Timestamptz
		invoiceURL        pgtype.Text
		pixImage          pgtype.Text
		pixCopyPaste      pgtype.Text
	)

	err := row.Scan(&rec.ID, &rec.RegistrationID, &rec.ExternalPaymentID,
		&planID, (*string)(&rec.BillingType), &rec.Status, &value, &netValue, &rec.DueDate,
		&paymentDate, &clientPaymentDate, &invoiceURL, &pixImage, &pixCopyPaste,
		&rec.GatewayResponse, &rec.WebhookPayload, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan payment record: %w", err)
	}

	if rec.Value, err = numericToDecimal(value); err != nil {
		return nil, err
	}
	if rec.NetValue, err = numericToDecimal(netValue); err != nil {
		return nil, err
	}
	rec.ExternalInstallmentPlanID = planID.String
	rec.PaymentDate = timePtr(paymentDate)
	rec.ClientPaymentDate = timePtr(clientPaymentDate)
	rec.InvoiceURL = invoiceURL.String
	rec.PixQrImage = pixImage.String
	rec.PixQrCopyPaste = pixCopyPaste.String
	return &rec, nil
}

// rawOrNull maps empty JSON blobs to SQL NULL
func rawOrNull(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
