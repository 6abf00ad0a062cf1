package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fabriq-inc/fabriq-engine/pkg/llm"
	"github.com/fabriq-inc/fabriq-engine/pkg/models"
	"github.com/fabriq-inc/fabriq-engine/pkg/prompts"
	"github.com/fabriq-inc/fabriq-engine/pkg/retry"
)

// InterpretationError reports that the vision service was unreachable after
// bounded retries, or returned output that could not be parsed. It is never
// silently replaced with empty annotations.
type InterpretationError struct {
	SourceID string
	Cause    error
}

func (e *InterpretationError) Error() string {
	return fmt.Sprintf("drawing interpretation failed for %s: %v", e.SourceID, e.Cause)
}

func (e *InterpretationError) Unwrap() error { return e.Cause }

// IsRetryable implements retry.RetryableError: once raised, an
// InterpretationError is final for this pass.
func (e *InterpretationError) IsRetryable() bool { return false }

// DrawingInterpreter turns a rendered drawing page into a versioned batch of
// labeled dimension annotations.
type DrawingInterpreter interface {
	// Interpret runs one interpretation pass. The geometry summary is an
	// advisory hint only and may be nil.
	Interpret(ctx context.Context, sourceID string, page []byte, hint *models.GeometrySummary) (*models.AnnotationBatch, error)
}

type drawingInterpreter struct {
	client   llm.VisionClient
	timeout  time.Duration
	retryCfg *retry.Config
	logger   *zap.Logger
}

// NewDrawingInterpreter creates the interpreter. timeout bounds a single
// round trip to the vision service; maxRetries bounds retries of transient
// network failures only.
func NewDrawingInterpreter(client llm.VisionClient, timeout time.Duration, maxRetries int, logger *zap.Logger) DrawingInterpreter {
	cfg := retry.DefaultConfig()
	cfg.MaxRetries = maxRetries
	return &drawingInterpreter{
		client:   client,
		timeout:  timeout,
		retryCfg: cfg,
		logger:   logger.Named("drawing-interpreter"),
	}
}

var _ DrawingInterpreter = (*drawingInterpreter)(nil)

// rawAnnotation mirrors the JSON shape requested from the vision model.
type rawAnnotation struct {
	Label          string                 `json:"label"`
	NominalValue   float64                `json:"nominal_value"`
	ToleranceClass string                 `json:"tolerance_class"`
	ThreadSpec     string                 `json:"thread_spec"`
	Position       *models.PositionalHint `json:"position"`
	Confidence     float64                `json:"confidence"`
	Provenance     string                 `json:"provenance"`
}

// titleBlockPattern rejects drawing-furniture labels the model must never
// report as part features.
var titleBlockPattern = regexp.MustCompile(`(?i)^(title|sheet|scale|rev(ision)?|drawn|checked|approved|date|dwg|drawing\s*(no|number)|part\s*(no|number)|material|finish|name)\b`)

// toleranceClassPattern accepts ISO fit designations ("H7", "g6") and plain
// IT grades ("IT8").
var toleranceClassPattern = regexp.MustCompile(`^(IT[0-9]{1,2}|[A-Za-z]{1,2}[0-9]{1,2})$`)

func (s *drawingInterpreter) Interpret(ctx context.Context, sourceID string, page []byte, hint *models.GeometrySummary) (*models.AnnotationBatch, error) {
	if len(page) == 0 {
		return nil, &InterpretationError{SourceID: sourceID, Cause: fmt.Errorf("empty drawing page")}
	}

	prompt := prompts.BuildDrawingPrompt(hint)

	var response string
	err := retry.DoIfRetryable(ctx, s.retryCfg, func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		var callErr error
		response, callErr = s.client.InterpretImage(callCtx, prompt, prompts.DrawingSystemMessage, page)
		return callErr
	})
	if err != nil {
		return nil, &InterpretationError{SourceID: sourceID, Cause: err}
	}

	annotations, err := s.parseResponse(response)
	if err != nil {
		// Semantic failure: the service answered but the payload is
		// unusable. Fail fast, never retry, never substitute empty results.
		return nil, &InterpretationError{SourceID: sourceID, Cause: err}
	}

	s.logger.Info("interpreted drawing",
		zap.String("source_id", sourceID),
		zap.Int("annotations", len(annotations)),
		zap.String("model", s.client.GetModel()))

	return &models.AnnotationBatch{
		ID:          uuid.New(),
		SourceID:    sourceID,
		Annotations: annotations,
		Model:       s.client.GetModel(),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// parseResponse extracts and validates the annotation list, enforcing the
// output contract: no title-block entities, no invented tolerances, no
// guessed positions.
func (s *drawingInterpreter) parseResponse(response string) ([]models.DrawingAnnotation, error) {
	jsonStr, err := llm.ExtractJSON(response)
	if err != nil {
		return nil, fmt.Errorf("unparseable vision response: %w", err)
	}

	var raw []rawAnnotation
	if err := json.Unmarshal([]byte(jsonStr), &raw); err != nil {
		return nil, fmt.Errorf("unparseable vision response: %w", err)
	}

	annotations := make([]models.DrawingAnnotation, 0, len(raw))
	for _, r := range raw {
		if r.Label == "" || titleBlockPattern.MatchString(r.Label) {
			s.logger.Debug("dropped title-block entity", zap.String("label", r.Label))
			continue
		}
		if r.NominalValue <= 0 {
			continue
		}
		if r.ToleranceClass != "" && !toleranceClassPattern.MatchString(r.ToleranceClass) {
			// An implausible class is more likely hallucinated than read.
			s.logger.Debug("dropped implausible tolerance class",
				zap.String("label", r.Label), zap.String("class", r.ToleranceClass))
			r.ToleranceClass = ""
		}
		conf := r.Confidence
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}

		annotations = append(annotations, models.DrawingAnnotation{
			Label:          r.Label,
			NominalValue:   r.NominalValue,
			ToleranceClass: r.ToleranceClass,
			ThreadSpec:     r.ThreadSpec,
			Position:       r.Position,
			Confidence:     conf,
			Provenance:     r.Provenance,
		})
	}

	return annotations, nil
}
