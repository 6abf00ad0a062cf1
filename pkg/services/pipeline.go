package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fabriq-inc/fabriq-engine/pkg/geometry"
	"github.com/fabriq-inc/fabriq-engine/pkg/models"
	"github.com/fabriq-inc/fabriq-engine/pkg/repositories"
	"github.com/fabriq-inc/fabriq-engine/pkg/workerpool"
)

// RunRequest identifies one estimation run. CADBytes and DrawingPNG are
// opaque payloads handed over by the file-storage collaborator.
type RunRequest struct {
	SourceID      string
	MaterialClass string
	CADBytes      []byte
	DrawingPNG    []byte
}

// EstimationPipeline orchestrates the full estimation flow for one part:
// geometry extraction and drawing interpretation run concurrently, the
// reconciler waits on both, and the result lands in the append-only log.
type EstimationPipeline interface {
	Run(ctx context.Context, req RunRequest) (*models.EstimationResult, error)
	// GetResult serves a previously computed result from cache or log.
	GetResult(ctx context.Context, sourceID string, geometryVersion, drawingVersion int) (*models.EstimationResult, error)
}

type estimationPipeline struct {
	extractor   geometry.Extractor // kernel-backed; nil when no kernel binding
	fallback    *geometry.FallbackGenerator
	interpreter DrawingInterpreter
	reconciler  *Reconciler
	classifier  *geometry.ConstraintClassifier
	estimator   *TimeEstimator

	geometryRepo   repositories.GeometryRepository
	annotationRepo repositories.AnnotationRepository
	estimationRepo repositories.EstimationRepository
	cache          *repositories.EstimationCache

	pool   *workerpool.Pool
	logger *zap.Logger
}

// NewEstimationPipeline wires the pipeline. extractor may be nil when the
// process has no kernel binding; every run then uses synthetic geometry.
func NewEstimationPipeline(
	extractor geometry.Extractor,
	fallback *geometry.FallbackGenerator,
	interpreter DrawingInterpreter,
	reconciler *Reconciler,
	classifier *geometry.ConstraintClassifier,
	estimator *TimeEstimator,
	geometryRepo repositories.GeometryRepository,
	annotationRepo repositories.AnnotationRepository,
	estimationRepo repositories.EstimationRepository,
	cache *repositories.EstimationCache,
	pool *workerpool.Pool,
	logger *zap.Logger,
) EstimationPipeline {
	return &estimationPipeline{
		extractor:      extractor,
		fallback:       fallback,
		interpreter:    interpreter,
		reconciler:     reconciler,
		classifier:     classifier,
		estimator:      estimator,
		geometryRepo:   geometryRepo,
		annotationRepo: annotationRepo,
		estimationRepo: estimationRepo,
		cache:          cache,
		pool:           pool,
		logger:         logger.Named("estimation-pipeline"),
	}
}

var _ EstimationPipeline = (*estimationPipeline)(nil)

type interpretOutcome struct {
	batch *models.AnnotationBatch
	err   error
}

func (p *estimationPipeline) Run(ctx context.Context, req RunRequest) (*models.EstimationResult, error) {
	if req.SourceID == "" {
		return nil, fmt.Errorf("source id is required")
	}

	// Geometry extraction and drawing interpretation have no ordering
	// dependency; run them concurrently. The vision call is the natural
	// suspension point, so no lock is held across it.
	interpretCh := make(chan interpretOutcome, 1)
	if len(req.DrawingPNG) > 0 {
		go func() {
			batch, err := p.interpreter.Interpret(ctx, req.SourceID, req.DrawingPNG, nil)
			interpretCh <- interpretOutcome{batch: batch, err: err}
		}()
	} else {
		interpretCh <- interpretOutcome{}
	}

	summary, synthetic := p.extractGeometry(ctx, req)

	outcome := <-interpretCh
	if err := ctx.Err(); err != nil {
		// Cancelled mid-flight (drawing re-uploaded, client gone): leave
		// prior cached results untouched and write nothing.
		return nil, err
	}

	geometryOnly := false
	var annotations []models.DrawingAnnotation
	switch {
	case outcome.err != nil:
		var interpErr *InterpretationError
		if !errors.As(outcome.err, &interpErr) {
			return nil, outcome.err
		}
		// Proceed with a geometry-only partial estimate; drawing
		// annotations are never fabricated.
		p.logger.Warn("drawing interpretation failed, proceeding geometry-only",
			zap.String("source_id", req.SourceID), zap.Error(outcome.err))
		geometryOnly = true
	case outcome.batch != nil:
		annotations = outcome.batch.Annotations
	default:
		// No drawing supplied at all.
		geometryOnly = true
	}

	if err := p.geometryRepo.Create(ctx, summary); err != nil {
		return nil, fmt.Errorf("persist geometry summary: %w", err)
	}
	drawingVersion := 0
	if outcome.batch != nil {
		if err := p.annotationRepo.Create(ctx, outcome.batch); err != nil {
			return nil, fmt.Errorf("persist annotation batch: %w", err)
		}
		drawingVersion = outcome.batch.Version
	}

	report := p.reconciler.Reconcile(summary, annotations)
	flags := p.classifier.Classify(summary, declaredToleranceClasses(annotations))

	result, err := p.estimator.Estimate(EstimateInput{
		SourceID:        req.SourceID,
		GeometryVersion: summary.Version,
		DrawingVersion:  drawingVersion,
		Summary:         summary,
		Features:        report.Features,
		Flags:           flags,
		MaterialClass:   req.MaterialClass,
		Synthetic:       synthetic,
		GeometryOnly:    geometryOnly,
	})
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := p.estimationRepo.Append(ctx, result); err != nil {
		return nil, fmt.Errorf("append estimation result: %w", err)
	}
	p.cache.Set(ctx, result)

	return result, nil
}

// extractGeometry runs the kernel on the bounded worker pool, falling back
// to synthetic geometry when no kernel is bound or the file is rejected.
func (p *estimationPipeline) extractGeometry(ctx context.Context, req RunRequest) (*models.GeometrySummary, bool) {
	if p.extractor == nil || len(req.CADBytes) == 0 {
		return p.fallback.Generate(req.SourceID), true
	}

	results := workerpool.Process(ctx, p.pool, []workerpool.Item[*models.GeometrySummary]{{
		ID: req.SourceID,
		Execute: func(ctx context.Context) (*models.GeometrySummary, error) {
			return p.extractor.Extract(ctx, req.SourceID, req.CADBytes)
		},
	}}, nil)

	res := results[0]
	if res.Err != nil {
		p.logger.Warn("kernel extraction failed, using synthetic geometry",
			zap.String("source_id", req.SourceID), zap.Error(res.Err))
		return p.fallback.Generate(req.SourceID), true
	}
	return res.Result, false
}

func (p *estimationPipeline) GetResult(ctx context.Context, sourceID string, geometryVersion, drawingVersion int) (*models.EstimationResult, error) {
	if cached := p.cache.Get(ctx, sourceID, geometryVersion, drawingVersion); cached != nil {
		return cached, nil
	}
	result, err := p.estimationRepo.GetByVersions(ctx, sourceID, geometryVersion, drawingVersion)
	if err != nil {
		return nil, err
	}
	p.cache.Set(ctx, result)
	return result, nil
}

func declaredToleranceClasses(annotations []models.DrawingAnnotation) []string {
	var classes []string
	for _, a := range annotations {
		if a.ToleranceClass != "" {
			classes = append(classes, a.ToleranceClass)
		}
	}
	return classes
}
