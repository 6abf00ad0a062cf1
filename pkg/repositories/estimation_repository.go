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

// EstimationRepository is the append-only log of estimation results, keyed
// by (source_id, geometry_version, drawing_version). A prior result is
// never overwritten in place.
type EstimationRepository interface {
	Append(ctx context.Context, result *models.EstimationResult) error
	GetByVersions(ctx context.Context, sourceID string, geometryVersion, drawingVersion int) (*models.EstimationResult, error)
	ListBySource(ctx context.Context, sourceID string) ([]*models.EstimationResult, error)
}

type estimationRepository struct {
	db *database.DB
}

// NewEstimationRepository creates an EstimationRepository.
func NewEstimationRepository(db *database.DB) EstimationRepository {
	return &estimationRepository{db: db}
}

var _ EstimationRepository = (*estimationRepository)(nil)

func (r *estimationRepository) Append(ctx context.Context, result *models.EstimationResult) error {
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal estimation result: %w", err)
	}

	// The unique key makes re-running an identical input a no-op: the
	// estimator is deterministic, so the stored row already equals the new
	// one.
	_, err = r.db.Exec(ctx,
		`INSERT INTO estimation_results
		   (id, source_id, geometry_version, drawing_version, determinism_hash, result, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (source_id, geometry_version, drawing_version) DO NOTHING`,
		result.ID, result.SourceID, result.GeometryVersion, result.DrawingVersion,
		result.DeterminismHash, payload, result.CreatedAt)
	if err != nil {
		return fmt.Errorf("append estimation result: %w", err)
	}
	return nil
}

func (r *estimationRepository) GetByVersions(ctx context.Context, sourceID string, geometryVersion, drawingVersion int) (*models.EstimationResult, error) {
	var payload []byte
	err := r.db.QueryRow(ctx,
		`SELECT result FROM estimation_results
		 WHERE source_id = $1 AND geometry_version = $2 AND drawing_version = $3`,
		sourceID, geometryVersion, drawingVersion).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query estimation result: %w", err)
	}

	var result models.EstimationResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("unmarshal estimation result: %w", err)
	}
	return &result, nil
}

func (r *estimationRepository) ListBySource(ctx context.Context, sourceID string) ([]*models.EstimationResult, error) {
	rows, err := r.db.Query(ctx,
		`SELECT result FROM estimation_results
		 WHERE source_id = $1
		 ORDER BY geometry_version, drawing_version`,
		sourceID)
	if err != nil {
		return nil, fmt.Errorf("list estimation results: %w", err)
	}
	defer rows.Close()

	var results []*models.EstimationResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan estimation result: %w", err)
		}
		var result models.EstimationResult
		if err := json.Unmarshal(payload, &result); err != nil {
			return nil, fmt.Errorf("unmarshal estimation result: %w", err)
		}
		results = append(results, &result)
	}
	return results, rows.Err()
}
