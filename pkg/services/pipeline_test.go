package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fabriq-inc/fabriq-engine/pkg/apperrors"
	"github.com/fabriq-inc/fabriq-engine/pkg/geometry"
	"github.com/fabriq-inc/fabriq-engine/pkg/materials"
	"github.com/fabriq-inc/fabriq-engine/pkg/models"
	"github.com/fabriq-inc/fabriq-engine/pkg/repositories"
	"github.com/fabriq-inc/fabriq-engine/pkg/workerpool"
)

type memGeometryRepo struct {
	summaries []*models.GeometrySummary
}

func (r *memGeometryRepo) Create(_ context.Context, summary *models.GeometrySummary) error {
	version := 0
	for _, s := range r.summaries {
		if s.SourceID == summary.SourceID && s.Version > version {
			version = s.Version
		}
	}
	summary.Version = version + 1
	r.summaries = append(r.summaries, summary)
	return nil
}

func (r *memGeometryRepo) GetLatest(_ context.Context, sourceID string) (*models.GeometrySummary, error) {
	var latest *models.GeometrySummary
	for _, s := range r.summaries {
		if s.SourceID == sourceID && (latest == nil || s.Version > latest.Version) {
			latest = s
		}
	}
	if latest == nil {
		return nil, apperrors.ErrNotFound
	}
	return latest, nil
}

func (r *memGeometryRepo) GetVersion(_ context.Context, sourceID string, version int) (*models.GeometrySummary, error) {
	for _, s := range r.summaries {
		if s.SourceID == sourceID && s.Version == version {
			return s, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

type memAnnotationRepo struct {
	batches []*models.AnnotationBatch
}

func (r *memAnnotationRepo) Create(_ context.Context, batch *models.AnnotationBatch) error {
	version := 0
	for _, b := range r.batches {
		if b.SourceID == batch.SourceID && b.Version > version {
			version = b.Version
		}
	}
	batch.Version = version + 1
	r.batches = append(r.batches, batch)
	return nil
}

func (r *memAnnotationRepo) GetLatest(_ context.Context, sourceID string) (*models.AnnotationBatch, error) {
	var latest *models.AnnotationBatch
	for _, b := range r.batches {
		if b.SourceID == sourceID && (latest == nil || b.Version > latest.Version) {
			latest = b
		}
	}
	if latest == nil {
		return nil, apperrors.ErrNotFound
	}
	return latest, nil
}

func (r *memAnnotationRepo) GetVersion(_ context.Context, sourceID string, version int) (*models.AnnotationBatch, error) {
	for _, b := range r.batches {
		if b.SourceID == sourceID && b.Version == version {
			return b, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

type memEstimationRepo struct {
	results []*models.EstimationResult
}

func (r *memEstimationRepo) Append(_ context.Context, result *models.EstimationResult) error {
	// Like the SQL layer, persistence assigns row identity.
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	for _, existing := range r.results {
		if existing.SourceID == result.SourceID &&
			existing.GeometryVersion == result.GeometryVersion &&
			existing.DrawingVersion == result.DrawingVersion {
			// Conflict on the version key is a no-op, like the SQL insert.
			return nil
		}
	}
	r.results = append(r.results, result)
	return nil
}

func (r *memEstimationRepo) GetByVersions(_ context.Context, sourceID string, geometryVersion, drawingVersion int) (*models.EstimationResult, error) {
	for _, result := range r.results {
		if result.SourceID == sourceID &&
			result.GeometryVersion == geometryVersion &&
			result.DrawingVersion == drawingVersion {
			return result, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memEstimationRepo) ListBySource(_ context.Context, sourceID string) ([]*models.EstimationResult, error) {
	var out []*models.EstimationResult
	for _, result := range r.results {
		if result.SourceID == sourceID {
			out = append(out, result)
		}
	}
	return out, nil
}

type mockInterpreter struct {
	batch *models.AnnotationBatch
	err   error
	calls int
}

func (m *mockInterpreter) Interpret(_ context.Context, sourceID string, _ []byte, _ *models.GeometrySummary) (*models.AnnotationBatch, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.batch != nil {
		m.batch.SourceID = sourceID
	}
	return m.batch, nil
}

type failingExtractor struct{}

func (e *failingExtractor) Extract(_ context.Context, sourceID string, _ []byte) (*models.GeometrySummary, error) {
	return nil, &geometry.ExtractionError{SourceID: sourceID, Cause: fmt.Errorf("corrupt file")}
}

type pipelineFixture struct {
	pipeline       EstimationPipeline
	geometryRepo   *memGeometryRepo
	annotationRepo *memAnnotationRepo
	estimationRepo *memEstimationRepo
	interpreter    *mockInterpreter
}

func newPipelineFixture(t *testing.T, extractor geometry.Extractor, interpreter *mockInterpreter) *pipelineFixture {
	t.Helper()
	logger := zap.NewNop()

	table, err := materials.Load()
	require.NoError(t, err)

	f := &pipelineFixture{
		geometryRepo:   &memGeometryRepo{},
		annotationRepo: &memAnnotationRepo{},
		estimationRepo: &memEstimationRepo{},
		interpreter:    interpreter,
	}
	f.pipeline = NewEstimationPipeline(
		extractor,
		geometry.NewFallbackGenerator(logger),
		interpreter,
		NewReconciler(logger),
		geometry.NewConstraintClassifier(logger),
		NewTimeEstimator(table, logger),
		f.geometryRepo,
		f.annotationRepo,
		f.estimationRepo,
		repositories.NewEstimationCache(nil, logger),
		workerpool.New(workerpool.Config{MaxConcurrent: 2}, logger),
		logger,
	)
	return f
}

func TestPipeline_GeometryOnlyRun(t *testing.T) {
	f := newPipelineFixture(t, nil, &mockInterpreter{})

	result, err := f.pipeline.Run(context.Background(), RunRequest{
		SourceID:      "part-001",
		MaterialClass: "steel-1045",
	})
	require.NoError(t, err)

	// No CAD file and no drawing: synthetic geometry, degraded confidence.
	assert.True(t, result.Synthetic)
	assert.True(t, result.GeometryOnly)
	assert.Equal(t, models.ConfidenceLow, result.Confidence)
	assert.Equal(t, 1, result.GeometryVersion)
	assert.Equal(t, 0, result.DrawingVersion)
	assert.Greater(t, result.TotalTimeMin, 0.0)
	assert.NotEqual(t, uuid.Nil, result.ID, "persistence assigns row identity")

	require.Len(t, f.geometryRepo.summaries, 1)
	assert.True(t, f.geometryRepo.summaries[0].Synthetic)
	assert.Empty(t, f.annotationRepo.batches)
	assert.Len(t, f.estimationRepo.results, 1)
	assert.Zero(t, f.interpreter.calls, "no drawing page, no vision call")
}

func TestPipeline_RunWithDrawing(t *testing.T) {
	interpreter := &mockInterpreter{
		batch: &models.AnnotationBatch{
			Annotations: []models.DrawingAnnotation{
				{Label: "bore Ø12", NominalValue: 12, Confidence: 0.85},
			},
			Model: "mock-model",
		},
	}
	f := newPipelineFixture(t, nil, interpreter)

	result, err := f.pipeline.Run(context.Background(), RunRequest{
		SourceID:      "part-002",
		MaterialClass: "steel-1045",
		DrawingPNG:    []byte("png"),
	})
	require.NoError(t, err)

	assert.False(t, result.GeometryOnly)
	assert.Equal(t, 1, result.DrawingVersion)
	assert.Equal(t, 1, interpreter.calls)
	require.Len(t, f.annotationRepo.batches, 1)

	// The drawing-only bore shows up as a boring operation.
	var hasBoring bool
	for _, op := range result.Operations {
		if op.Category == models.OpBoring {
			hasBoring = true
		}
	}
	assert.True(t, hasBoring)
}

func TestPipeline_InterpretationFailureDegrades(t *testing.T) {
	interpreter := &mockInterpreter{
		err: &InterpretationError{SourceID: "part-003", Cause: fmt.Errorf("unparseable")},
	}
	f := newPipelineFixture(t, nil, interpreter)

	result, err := f.pipeline.Run(context.Background(), RunRequest{
		SourceID:      "part-003",
		MaterialClass: "steel-1045",
		DrawingPNG:    []byte("png"),
	})
	require.NoError(t, err)

	// The run completes geometry-only instead of failing outright.
	assert.True(t, result.GeometryOnly)
	assert.Equal(t, models.ConfidenceLow, result.Confidence)
	assert.Equal(t, 0, result.DrawingVersion)
	assert.Empty(t, f.annotationRepo.batches)
	assert.Len(t, f.estimationRepo.results, 1)
}

func TestPipeline_UnexpectedInterpreterErrorFails(t *testing.T) {
	interpreter := &mockInterpreter{err: fmt.Errorf("database on fire")}
	f := newPipelineFixture(t, nil, interpreter)

	_, err := f.pipeline.Run(context.Background(), RunRequest{
		SourceID:      "part-004",
		MaterialClass: "steel-1045",
		DrawingPNG:    []byte("png"),
	})
	require.Error(t, err)
	assert.Empty(t, f.estimationRepo.results)
}

func TestPipeline_ExtractionFailureFallsBack(t *testing.T) {
	f := newPipelineFixture(t, &failingExtractor{}, &mockInterpreter{})

	result, err := f.pipeline.Run(context.Background(), RunRequest{
		SourceID:      "part-005",
		MaterialClass: "steel-1045",
		CADBytes:      []byte("not a valid step file"),
	})
	require.NoError(t, err)

	assert.True(t, result.Synthetic)
	require.Len(t, f.geometryRepo.summaries, 1)
	assert.True(t, f.geometryRepo.summaries[0].Synthetic)
}

func TestPipeline_UnknownMaterialFatal(t *testing.T) {
	f := newPipelineFixture(t, nil, &mockInterpreter{})

	_, err := f.pipeline.Run(context.Background(), RunRequest{
		SourceID:      "part-006",
		MaterialClass: "unobtainium",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMaterialNotFound)
	assert.Empty(t, f.estimationRepo.results)
}

func TestPipeline_CancelledContextWritesNothing(t *testing.T) {
	f := newPipelineFixture(t, nil, &mockInterpreter{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.Run(ctx, RunRequest{
		SourceID:      "part-007",
		MaterialClass: "steel-1045",
	})
	require.Error(t, err)
	assert.Empty(t, f.geometryRepo.summaries)
	assert.Empty(t, f.estimationRepo.results)
}

func TestPipeline_RerunCreatesNewVersions(t *testing.T) {
	f := newPipelineFixture(t, nil, &mockInterpreter{})

	req := RunRequest{SourceID: "part-008", MaterialClass: "steel-1045"}

	first, err := f.pipeline.Run(context.Background(), req)
	require.NoError(t, err)
	second, err := f.pipeline.Run(context.Background(), req)
	require.NoError(t, err)

	// Each run ingests a new geometry version; prior results are retained.
	assert.Equal(t, 1, first.GeometryVersion)
	assert.Equal(t, 2, second.GeometryVersion)
	assert.Len(t, f.estimationRepo.results, 2)
	// Identical inputs, identical numbers.
	assert.Equal(t, first.DeterminismHash, second.DeterminismHash)
}

func TestPipeline_GetResult(t *testing.T) {
	f := newPipelineFixture(t, nil, &mockInterpreter{})

	stored, err := f.pipeline.Run(context.Background(), RunRequest{
		SourceID:      "part-009",
		MaterialClass: "steel-1045",
	})
	require.NoError(t, err)

	got, err := f.pipeline.GetResult(context.Background(), "part-009", stored.GeometryVersion, stored.DrawingVersion)
	require.NoError(t, err)
	assert.Equal(t, stored.DeterminismHash, got.DeterminismHash)

	_, err = f.pipeline.GetResult(context.Background(), "part-009", 99, 0)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
