// Package repositories provides Postgres data access for the estimation
// pipeline. Geometry summaries, annotation batches, and estimation results
// are all append-only: new ingestions create new versions and prior rows are
// never mutated.
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

// GeometryRepository stores versioned geometry summaries.
type GeometryRepository interface {
	// Create persists a summary as the next version for its source and
	// sets Version on the passed summary.
	Create(ctx context.Context, summary *models.GeometrySummary) error
	GetLatest(ctx context.Context, sourceID string) (*models.GeometrySummary, error)
	GetVersion(ctx context.Context, sourceID string, version int) (*models.GeometrySummary, error)
}

type geometryRepository struct {
	db *database.DB
}

// NewGeometryRepository creates a GeometryRepository.
func NewGeometryRepository(db *database.DB) GeometryRepository {
	return &geometryRepository{db: db}
}

var _ GeometryRepository = (*geometryRepository)(nil)

func (r *geometryRepository) Create(ctx context.Context, summary *models.GeometrySummary) error {
	if summary.ID == uuid.Nil {
		summary.ID = uuid.New()
	}
	if summary.CreatedAt.IsZero() {
		summary.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal geometry summary: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	// Serialize version assignment per source. Row locks cannot cover the
	// not-yet-inserted next version, so an advisory lock held for the
	// transaction stands in; the UNIQUE (source_id, version) constraint
	// backstops it.
	if _, err := tx.Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext('geometry_summaries'), hashtext($1))`,
		summary.SourceID); err != nil {
		return fmt.Errorf("lock geometry source: %w", err)
	}

	err = tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM geometry_summaries WHERE source_id = $1`,
		summary.SourceID).Scan(&summary.Version)
	if err != nil {
		return fmt.Errorf("next geometry version: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO geometry_summaries (id, source_id, version, synthetic, summary, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		summary.ID, summary.SourceID, summary.Version, summary.Synthetic, payload, summary.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert geometry summary: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *geometryRepository) GetLatest(ctx context.Context, sourceID string) (*models.GeometrySummary, error) {
	return r.scanOne(ctx,
		`SELECT summary FROM geometry_summaries WHERE source_id = $1 ORDER BY version DESC LIMIT 1`,
		sourceID)
}

func (r *geometryRepository) GetVersion(ctx context.Context, sourceID string, version int) (*models.GeometrySummary, error) {
	return r.scanOne(ctx,
		`SELECT summary FROM geometry_summaries WHERE source_id = $1 AND version = $2`,
		sourceID, version)
}

func (r *geometryRepository) scanOne(ctx context.Context, query string, args ...any) (*models.GeometrySummary, error) {
	var payload []byte
	err := r.db.QueryRow(ctx, query, args...).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query geometry summary: %w", err)
	}

	var summary models.GeometrySummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, fmt.Errorf("unmarshal geometry summary: %w", err)
	}
	return &summary, nil
}
