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

// SeasonRepository implements ports.SeasonRepository with pgx
type SeasonRepository struct {
	db ports.DBTX
}

// NewSeasonRepository creates a new season repository
func NewSeasonRepository(db ports.DBPort) *SeasonRepository {
	return &SeasonRepository{db: db.GetDB()}
}

func (r *SeasonRepository) conn(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db
}

// GetByID retrieves a season by its id
func (r *SeasonRepository) GetByID(ctx context.Context, tx ports.DBTX, id string) (*models.Season, error) {
	var (
		s                 models.Season
		unitPrice         pgtype.Numeric
		commissionPercent pgtype.Numeric
		splitPercent      pgtype.Numeric
		splitWallet       pgtype.Text
	)

	err := r.conn(tx).QueryRow(ctx, `
		SELECT id, championship_id, name, registration_open, enrollment_scope,
			unit_price, max_installments_pix, max_installments_card,
			commission_percent, commission_mode, split_enabled, split_wallet_id,
			split_percent, starts_at, ends_at
		FROM seasons WHERE id = $1`, id).Scan(
		&s.ID, &s.ChampionshipID, &s.Name, &s.RegistrationOpen,
		(*string)(&s.EnrollmentScope), &unitPrice,
		&s.MaxInstallmentsPix, &s.MaxInstallmentsCard,
		&commissionPercent, (*string)(&s.CommissionMode),
		&s.SplitEnabled, &splitWallet, &splitPercent, &s.StartsAt, &s.EndsAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSeasonNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get season: %w", err)
	}

	if s.UnitPrice, err = numericToDecimal(unitPrice); err != nil {
		return nil, err
	}
	if s.CommissionPercent, err = numericToDecimal(commissionPercent); err != nil {
		return nil, err
	}
	if s.SplitPercent, err = numericToDecimal(splitPercent); err != nil {
		return nil, err
	}
	s.SplitWalletID = splitWallet.String
	return &s, nil
}

// ListCategories lists a season's competition categories
func (r *SeasonRepository) ListCategories(ctx context.Context, tx ports.DBTX, seasonID string) ([]*models.Category, error) {
	rows, err := r.conn(tx).Query(ctx,
		`SELECT id, season_id, name FROM categories WHERE season_id = $1 ORDER BY name`, seasonID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []*models.Category
	for rows.Next() {
		var c models.Category
		if err := rows.Scan(&c.ID, &c.SeasonID, &c.Name); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}

// ListStages lists a season's race stages
func (r *SeasonRepository) ListStages(ctx context.Context, tx ports.DBTX, seasonID string) ([]*models.Stage, error) {
	rows, err := r.conn(tx).Query(ctx,
		`SELECT id, season_id, name, date FROM stages WHERE season_id = $1 ORDER BY date`, seasonID)
	if err != nil {
		return nil, fmt.Errorf("list stages: %w", err)
	}
	defer rows.Close()

	var stages []*models.Stage
	for rows.Next() {
		var s models.Stage
		if err := rows.Scan(&s.ID, &s.SeasonID, &s.Name, &s.Date); err != nil {
			return nil, fmt.Errorf("scan stage: %w", err)
		}
		stages = append(stages, &s)
	}
	return stages, rows.Err()
}
