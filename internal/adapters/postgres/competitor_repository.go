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

// CompetitorRepository implements ports.CompetitorRepository with pgx
type CompetitorRepository struct {
	db ports.DBTX
}

// NewCompetitorRepository creates a new competitor repository
func NewCompetitorRepository(db ports.DBPort) *CompetitorRepository {
	return &CompetitorRepository{db: db.GetDB()}
}

func (r *CompetitorRepository) conn(tx ports.DBTX) ports.DBTX {
	if tx != nil {
		return tx
	}
	return r.db
}

// GetByID retrieves a competitor by id
func (r *CompetitorRepository) GetByID(ctx context.Context, tx ports.DBTX, id string) (*models.Competitor, error) {
	var (
		c          models.Competitor
		phone      pgtype.Text
		doc        pgtype.Text
		customerID pgtype.Text
	)

	err := r.conn(tx).QueryRow(ctx, `
		SELECT id, name, email, phone, tax_document, external_customer_id
		FROM competitors WHERE id = $1`, id).Scan(
		&c.ID, &c.Name, &c.Email, &phone, &doc, &customerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCompetitorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get competitor: %w", err)
	}

	c.Phone = phone.String
	c.TaxDocument = doc.String
	c.ExternalCustomerID = customerID.String
	return &c, nil
}

// SetExternalCustomerID stores the gateway customer id after an upsert
func (r *CompetitorRepository) SetExternalCustomerID(ctx context.Context, tx ports.DBTX, id, customerID string) error {
	_, err := r.conn(tx).Exec(ctx,
		`UPDATE competitors SET external_customer_id = $2 WHERE id = $1`, id, customerID)
	if err != nil {
		return fmt.Errorf("set external customer id: %w", err)
	}
	return nil
}
