package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fabriq-inc/fabriq-engine/pkg/apperrors"
	"github.com/fabriq-inc/fabriq-engine/pkg/database"
	"github.com/fabriq-inc/fabriq-engine/pkg/models"
)

// QuoteRepository provides data access for quotes.
type QuoteRepository interface {
	Create(ctx context.Context, quote *models.Quote) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Quote, error)
	ListByPart(ctx context.Context, partID uuid.UUID) ([]*models.Quote, error)
	AttachEstimation(ctx context.Context, quoteID, estimationID uuid.UUID) error
}

type quoteRepository struct {
	db *database.DB
}

// NewQuoteRepository creates a QuoteRepository.
func NewQuoteRepository(db *database.DB) QuoteRepository {
	return &quoteRepository{db: db}
}

var _ QuoteRepository = (*quoteRepository)(nil)

func (r *quoteRepository) Create(ctx context.Context, quote *models.Quote) error {
	if quote.ID == uuid.Nil {
		quote.ID = uuid.New()
	}
	if quote.Status == "" {
		quote.Status = models.QuoteDraft
	}
	quote.CreatedAt = time.Now().UTC()
	quote.UpdatedAt = quote.CreatedAt

	_, err := r.db.Exec(ctx,
		`INSERT INTO quotes (id, part_id, estimation_id, quantity, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		quote.ID, quote.PartID, quote.EstimationID, quote.Quantity, quote.Status, quote.CreatedAt, quote.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert quote: %w", err)
	}
	return nil
}

func (r *quoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Quote, error) {
	var q models.Quote
	err := r.db.QueryRow(ctx,
		`SELECT id, part_id, estimation_id, quantity, status, created_at, updated_at FROM quotes WHERE id = $1`,
		id).Scan(&q.ID, &q.PartID, &q.EstimationID, &q.Quantity, &q.Status, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query quote: %w", err)
	}
	return &q, nil
}

func (r *quoteRepository) ListByPart(ctx context.Context, partID uuid.UUID) ([]*models.Quote, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, part_id, estimation_id, quantity, status, created_at, updated_at
		 FROM quotes WHERE part_id = $1 ORDER BY created_at`, partID)
	if err != nil {
		return nil, fmt.Errorf("list quotes: %w", err)
	}
	defer rows.Close()

	var quotes []*models.Quote
	for rows.Next() {
		var q models.Quote
		if err := rows.Scan(&q.ID, &q.PartID, &q.EstimationID, &q.Quantity, &q.Status, &q.CreatedAt, &q.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		quotes = append(quotes, &q)
	}
	return quotes, rows.Err()
}

func (r *quoteRepository) AttachEstimation(ctx context.Context, quoteID, estimationID uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE quotes SET estimation_id = $2, status = $3, updated_at = $4 WHERE id = $1`,
		quoteID, estimationID, models.QuoteEstimated, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("attach estimation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
