package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/openracing/enrollment-service/internal/domain"
	"github.com/openracing/enrollment-service/internal/domain/models"
	"github.com/openracing/enrollment-service/internal/domain/ports"
)

// RegistrationRepository implements ports.RegistrationRepository with pgx
type RegistrationRepository struct {
	db ports.DBTX
}

// NewRegistrationRepository creates a new registration repository
func NewRegistrationRepository(db ports.DBPort) *RegistrationRepository {
	return &RegistrationRepository{db: db.GetDB()}
}

func (r *RegistrationRepository) conn(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db
}

const registrationColumns = `id, user_id, season_id, lifecycle_status, payment_status,
	amount, payment_method, installments, payment_date, confirmed_at, cancelled_at,
	cancellation_reason, created_at, updated_at`

// Create inserts a new registration and its association rows
func (r *RegistrationRepository) Create(ctx context.Context, tx ports.DBTX, reg *models.Registration) error {
	q := r.conn(tx)

	amount, err := decimalToNumeric(reg.Amount)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO registrations (id, user_id, season_id, lifecycle_status, payment_status,
			amount, payment_method, installments, payment_date, confirmed_at, cancelled_at,
			cancellation_reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())`,
		reg.ID, reg.UserID, reg.SeasonID, string(reg.LifecycleStatus), string(reg.PaymentStatus),
		amount, string(reg.PaymentMethod), reg.Installments,
		nullTimestamptz(reg.PaymentDate), nullTimestamptz(reg.ConfirmedAt),
		nullTimestamptz(reg.CancelledAt), nullText(reg.CancellationReason))
	if err != nil {
		return fmt.Errorf("create registration: %w", err)
	}

	if err := r.AddCategories(ctx, tx, reg.ID, reg.CategoryIDs); err != nil {
		return err
	}
	return r.AddStages(ctx, tx, reg.ID, reg.StageIDs)
}

// GetByID retrieves a registration by its id
func (r *RegistrationRepository) GetByID(ctx context.Context, tx ports.DBTX, id string) (*models.Registration, error) {
	row := r.conn(tx).QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id)
	return r.scanRegistration(row)
}

// GetByUserAndSeason retrieves the registration for a (competitor, season) pair
func (r *RegistrationRepository) GetByUserAndSeason(ctx context.Context, tx ports.DBTX, userID, seasonID string) (*models.Registration, error) {
	row := r.conn(tx).QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE user_id = $1 AND season_id = $2`,
		userID, seasonID)
	return r.scanRegistration(row)
}

// ApplyStatusChange writes the outcome of a reconciliation pass. Nil
// timestamps keep the stored values; an empty reason keeps the stored reason.
func (r *RegistrationRepository) ApplyStatusChange(ctx context.Context, tx ports.DBTX, id string, change models.StatusChange) error {
	tag, err := r.conn(tx).Exec(ctx, `
		UPDATE registrations
		SET lifecycle_status = $2,
			payment_status = $3,
			payment_date = COALESCE($4, payment_date),
			confirmed_at = COALESCE($5, confirmed_at),
			cancelled_at = COALESCE($6, cancelled_at),
			cancellation_reason = COALESCE($7, cancellation_reason),
			updated_at = now()
		WHERE id = $1`,
		id, string(change.Lifecycle), string(change.Payment),
		nullTimestamptz(change.PaymentDate), nullTimestamptz(change.ConfirmedAt),
		nullTimestamptz(change.CancelledAt), nullText(change.CancellationReason))
	if err != nil {
		return fmt.Errorf("apply status change: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRegistrationNotFound
	}
	return nil
}

// UpdateAmount replaces the registration's total owed amount
func (r *RegistrationRepository) UpdateAmount(ctx context.Context, tx ports.DBTX, id string, amount decimal.Decimal) error {
	n, err := decimalToNumeric(amount)
	if err != nil {
		return err
	}
	_, err = r.conn(tx).Exec(ctx,
		`UPDATE registrations SET amount = $2, updated_at = now() WHERE id = $1`, id, n)
	if err != nil {
		return fmt.Errorf("update registration amount: %w", err)
	}
	return nil
}

// AddCategories inserts category association rows
func (r *RegistrationRepository) AddCategories(ctx context.Context, tx ports.DBTX, id string, categoryIDs []string) error {
	q := r.conn(tx)
	for _, catID := range categoryIDs {
		_, err := q.Exec(ctx, `
			INSERT INTO registration_categories (registration_id, category_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING`, id, catID)
		if err != nil {
			return fmt.Errorf("add registration category: %w", err)
		}
	}
	return nil
}

// AddStages inserts stage association rows
func (r *RegistrationRepository) AddStages(ctx context.Context, tx ports.DBTX, id string, stageIDs []string) error {
	q := r.conn(tx)
	for _, stageID := range stageIDs {
		_, err := q.Exec(ctx, `
			INSERT INTO registration_stages (registration_id, stage_id)
			VALUES ($1, $2) ON CONFLICT DO NOTHING`, id, stageID)
		if err != nil {
			return fmt.Errorf("add registration stage: %w", err)
		}
	}
	return nil
}

// ListStageIDs returns the stage ids already selected by a registration
func (r *RegistrationRepository) ListStageIDs(ctx context.Context, tx ports.DBTX, id string) ([]string, error) {
	rows, err := r.conn(tx).Query(ctx,
		`SELECT stage_id FROM registration_stages WHERE registration_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("list registration stages: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var stageID string
		if err := rows.Scan(&stageID); err != nil {
			return nil, fmt.Errorf("scan stage id: %w", err)
		}
		ids = append(ids, stageID)
	}
	return ids, rows.Err()
}

// ListCategoryIDs returns the category ids attached to a registration
func (r *RegistrationRepository) ListCategoryIDs(ctx context.Context, tx ports.DBTX, id string) ([]string, error) {
	rows, err := r.conn(tx).Query(ctx,
		`SELECT category_id FROM registration_categories WHERE registration_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("list registration categories: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var catID string
		if err := rows.Scan(&catID); err != nil {
			return nil, fmt.Errorf("scan category id: %w", err)
		}
		ids = append(ids, catID)
	}
	return ids, rows.Err()
}

// Delete removes the registration, its association rows, and any
// payment records still attached to it
func (r *RegistrationRepository) Delete(ctx context.Context, tx ports.DBTX, id string) error {
	q := r.conn(tx)
	if _, err := q.Exec(ctx, `DELETE FROM payment_records WHERE registration_id = $1`, id); err != nil {
		return fmt.Errorf("delete registration payment records: %w", err)
	}
	if _, err := q.Exec(ctx, `DELETE FROM registration_categories WHERE registration_id = $1`, id); err != nil {
		return fmt.Errorf("delete registration categories: %w", err)
	}
	if _, err := q.Exec(ctx, `DELETE FROM registration_stages WHERE registration_id = $1`, id); err != nil {
		return fmt.Errorf("delete registration stages: %w", err)
	}
	if _, err := q.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	return nil
}

func (r *RegistrationRepository) scanRegistration(row pgx.Row) (*models.Registration, error) {
	var (
		reg         models.Registration
		amount      pgtype.Numeric
		paymentAt   pgtype.Timestamptz
		confirmedAt pgtype.Timestamptz
		cancelledAt pgtype.Timestamptz
		reason      pgtype.Text
	)

	err := row.Scan(&reg.ID, &reg.UserID, &reg.SeasonID,
		(*string)(&reg.LifecycleStatus), (*string)(&reg.PaymentStatus),
		&amount, (*string)(&reg.PaymentMethod), &reg.Installments,
		&paymentAt, &confirmedAt, &cancelledAt, &reason,
		&reg.CreatedAt, &reg.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan registration: %w", err)
	}

	if reg.Amount, err = numericToDecimal(amount); err != nil {
		return nil, err
	}
	reg.PaymentDate = timePtr(paymentAt)
	reg.ConfirmedAt = timePtr(confirmedAt)
	reg.CancelledAt = timePtr(cancelledAt)
	reg.CancellationReason = reason.String
	return &reg, nil
}
