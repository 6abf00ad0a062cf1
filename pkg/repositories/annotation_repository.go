package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fabriq-inc/fabriq-engine/pkg/apperrors"
	"github.com/fabriq-inc/fabriq-engine/pkg/database"
	"github.com/fabriq-inc/fabriq-engine/pkg/models"
)

// AnnotationRepository stores versioned drawing-annotation batches. A re-run
// of interpretation creates a new batch; prior batches stay untouched.
type AnnotationRepository interface {
	Create(ctx context.Context, batch *models.AnnotationBatch) error
	GetLatest(ctx context.Context, sourceID string) (*models.AnnotationBatch, error)
	GetVersion(ctx context.Context, sourceID string, version int) (*models.AnnotationBatch, error)
}

type annotationRepository struct {
	db *database.DB
}

// NewAnnotationRepository creates an AnnotationRepository.
func NewAnnotationRepository(db *database.DB) AnnotationRepository {
	return &annotationRepository{db: db}
}

var _ AnnotationRepository = (*annotationRepository)(nil)

func (r *annotationRepository) Create(ctx context.Context, batch *models.AnnotationBatch) error {
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(batch.Annotations)
	if err != nil {
		return fmt.Errorf("marshal annotations: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	// Advisory lock serializes version assignment per source; see
	// geometryRepository.Create.
	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext('annotation_batches'), hashtext($1))`,
		batch.SourceID); err != nil {
		return fmt.Errorf("lock annotation source: %w", err)
	}

	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM annotation_batches WHERE source_id = $1`,
		batch.SourceID).Scan(&batch.Version)
	if err != nil {
		return fmt.Errorf("next annotation version: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO annotation_batches (id, source_id, version, model, annotations, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		batch.ID, batch.SourceID, batch.Version, batch.Model, payload, batch.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert annotation batch: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *annotationRepository) GetLatest(ctx context.Context, sourceID string) (*models.AnnotationBatch, error) {
	return r.scanOne(ctx,
		`SELECT id, source_id, version, model, annotations, created_at
		 FROM annotation_batches WHERE source_id = $1 ORDER BY version DESC LIMIT 1`,
		sourceID)
}

func (r *annotationRepository) GetVersion(ctx context.Context, sourceID string, version int) (*models.AnnotationBatch, error) {
	return r.scanOne(ctx,
		`SELECT id, source_id, version, model, annotations, created_at
		 FROM annotation_batches WHERE source_id = $1 AND version = $2`,
		sourceID, version)
}

func (r *annotationRepository) scanOne(ctx context.Context, query string, args ...any) (*models.AnnotationBatch, error) {
	var batch models.AnnotationBatch
	var payload []byte
	err := r.db.QueryRow(ctx, query, args...).Scan(
		&batch.ID, &batch.SourceID, &batch.Version, &batch.Model, &payload, &batch.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query annotation batch: %w", err)
	}

	if err := json.Unmarshal(payload, &batch.Annotations); err != nil {
		return nil, fmt.Errorf("unmarshal annotations: %w", err)
	}
	return &batch, nil
}
