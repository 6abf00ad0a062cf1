package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fabriq-inc/fabriq-engine/pkg/apperrors"
	"github.com/fabriq-inc/fabriq-engine/pkg/database"
	"github.com/fabriq-inc/fabriq-engine/pkg/models"
)

// PartRepository provides data access for quoted parts.
type PartRepository interface {
	Create(ctx context.Context, part *models.Part) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Part, error)
	GetBySourceID(ctx context.Context, sourceID string) (*models.Part, error)
	List(ctx context.Context) ([]*models.Part, error)
	Update(ctx context.Context, part *models.Part) error
}

type partRepository struct {
	db *database.DB
}

// NewPartRepository creates a PartRepository.
func NewPartRepository(db *database.DB) PartRepository {
	return &partRepository{db: db}
}

var _ PartRepository = (*partRepository)(nil)

func (r *partRepository) Create(ctx context.Context, part *models.Part) error {
	if part.ID == uuid.Nil {
		part.ID = uuid.New()
	}
	part.CreatedAt = time.Now().UTC()
	part.UpdatedAt = part.CreatedAt

	_, err := r.db.Exec(ctx,
		`INSERT INTO parts (id, source_id, name, material_class, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		part.ID, part.SourceID, part.Name, part.MaterialClass, part.CreatedAt, part.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("source_id %q already registered: %w", part.SourceID, apperrors.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert part: %w", err)
	}
	return nil
}

func (r *partRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Part, error) {
	return r.scanOne(ctx,
		`SELECT id, source_id, name, material_class, created_at, updated_at FROM parts WHERE id = $1`, id)
}

func (r *partRepository) GetBySourceID(ctx context.Context, sourceID string) (*models.Part, error) {
	return r.scanOne(ctx,
		`SELECT id, source_id, name, material_class, created_at, updated_at FROM parts WHERE source_id = $1`, sourceID)
}

func (r *partRepository) List(ctx context.Context) ([]*models.Part, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, source_id, name, material_class, created_at, updated_at FROM parts ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list parts: %w", err)
	}
	defer rows.Close()

	var parts []*models.Part
	for rows.Next() {
		var p models.Part
		if err := rows.Scan(&p.ID, &p.SourceID, &p.Name, &p.MaterialClass, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan part: %w", err)
		}
		parts = append(parts, &p)
	}
	return parts, rows.Err()
}

func (r *partRepository) Update(ctx context.Context, part *models.Part) error {
	part.UpdatedAt = time.Now().UTC()
	tag, err := r.db.Exec(ctx,
		`UPDATE parts SET name = $2, material_class = $3, updated_at = $4 WHERE id = $1`,
		part.ID, part.Name, part.MaterialClass, part.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update part: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *partRepository) scanOne(ctx context.Context, query string, args ...any) (*models.Part, error) {
	var p models.Part
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&p.ID, &p.SourceID, &p.Name, &p.MaterialClass, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query part: %w", err)
	}
	return &p, nil
}
