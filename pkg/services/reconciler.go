package services

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/fabriq-inc/fabriq-engine/pkg/models"
)

const (
	// matchWindowPct is the diameter agreement required for a confirmed
	// match between a declared nominal and a measured face.
	matchWindowPct = 5.0
	// discrepancyWindowPct is the wider window in which a positionally
	// overlapping face is still paired with the annotation, but flagged as
	// a discrepancy instead of a confirmation.
	discrepancyWindowPct = 20.0
	// axialSlackMM pads a face's axial extent when testing whether a
	// positional hint falls on it, absorbing dimension-line offsets.
	axialSlackMM = 2.5
)

// Reconciler merges a geometry summary with drawing annotations into
// authoritative per-feature values. The policy is fixed, not per-call: the
// drawing nominal is authoritative whenever both sources are present, and
// disagreements are always surfaced, never averaged away.
type Reconciler struct {
	logger *zap.Logger
}

// NewReconciler creates a reconciler.
func NewReconciler(logger *zap.Logger) *Reconciler {
	return &Reconciler{logger: logger.Named("reconciler")}
}

// Reconcile matches each annotation to a geometric face and produces the
// reconciled feature list plus the discrepancy report.
func (r *Reconciler) Reconcile(summary *models.GeometrySummary, annotations []models.DrawingAnnotation) *models.ReconciliationReport {
	report := &models.ReconciliationReport{}
	claimed := make(map[int]bool)

	candidates := summary.RoundFaces()

	for i := range annotations {
		ann := annotations[i]
		feature := r.matchAnnotation(&ann, candidates, claimed, report)
		report.Features = append(report.Features, feature)
	}

	// Geometry faces no annotation claimed still machine: carry them as
	// geometry-sourced features.
	for _, face := range candidates {
		if claimed[face.ID] {
			continue
		}
		f := face
		report.Features = append(report.Features, models.ReconciledFeature{
			Face:               &f,
			AuthoritativeValue: f.DiameterMM,
			ValueSource:        models.SourceGeometry,
			MatchConfidence:    models.ConfidenceMedium,
		})
		report.UnmatchedFaceIDs = append(report.UnmatchedFaceIDs, face.ID)
	}

	if r.logger != nil {
		r.logger.Debug("reconciled features",
			zap.String("source_id", summary.SourceID),
			zap.Int("features", len(report.Features)),
			zap.Int("discrepancies", len(report.Discrepancies)))
	}
	return report
}

// matchAnnotation implements the fixed matching policy for one annotation.
func (r *Reconciler) matchAnnotation(ann *models.DrawingAnnotation, candidates []models.GeometryFace, claimed map[int]bool, report *models.ReconciliationReport) models.ReconciledFeature {
	type scored struct {
		face     models.GeometryFace
		deltaPct float64
		posDelta float64
	}

	var confirmed, wide []scored
	for _, face := range candidates {
		if claimed[face.ID] {
			continue
		}
		deltaPct := math.Abs(face.DiameterMM-ann.NominalValue) / ann.NominalValue * 100

		if ann.Position != nil && ann.Position.AxialMM != nil {
			if !axialOverlap(face, *ann.Position.AxialMM) {
				continue
			}
			posDelta := math.Abs(*ann.Position.AxialMM - (face.ZMinMM+face.ZMaxMM)/2)
			s := scored{face: face, deltaPct: deltaPct, posDelta: posDelta}
			if deltaPct < matchWindowPct {
				confirmed = append(confirmed, s)
			} else if deltaPct < discrepancyWindowPct {
				wide = append(wide, s)
			}
		} else if deltaPct < matchWindowPct {
			confirmed = append(confirmed, scored{face: face, deltaPct: deltaPct})
		}
	}

	// Tie-break: smallest dimensional delta first, then smallest
	// positional delta.
	less := func(list []scored) func(a, b int) bool {
		return func(a, b int) bool {
			if list[a].deltaPct != list[b].deltaPct {
				return list[a].deltaPct < list[b].deltaPct
			}
			return list[a].posDelta < list[b].posDelta
		}
	}

	positioned := ann.Position != nil && ann.Position.AxialMM != nil

	if len(confirmed) > 0 && (positioned || len(confirmed) == 1) {
		sort.Slice(confirmed, less(confirmed))
		best := confirmed[0]
		claimed[best.face.ID] = true

		source := models.SourceDrawing
		confidence := models.ConfidenceHigh
		if !positioned {
			// Matched by unique diameter alone.
			source = models.SourceInferred
			confidence = models.ConfidenceLow
		}
		face := best.face
		return models.ReconciledFeature{
			Face:               &face,
			Annotation:         ann,
			AuthoritativeValue: ann.NominalValue,
			ValueSource:        source,
			DeltaPct:           round2(best.deltaPct),
			MatchConfidence:    confidence,
		}
	}

	if len(wide) > 0 {
		sort.Slice(wide, less(wide))
		best := wide[0]
		claimed[best.face.ID] = true

		report.Discrepancies = append(report.Discrepancies, models.Discrepancy{
			Label:         ann.Label,
			FaceID:        best.face.ID,
			GeometryValue: best.face.DiameterMM,
			DrawingValue:  ann.NominalValue,
			DeltaPct:      round2(best.deltaPct),
		})

		// Both values retained; the drawing stays authoritative but the
		// match downgrades to medium.
		face := best.face
		return models.ReconciledFeature{
			Face:               &face,
			Annotation:         ann,
			AuthoritativeValue: ann.NominalValue,
			ValueSource:        models.SourceDrawing,
			DeltaPct:           round2(best.deltaPct),
			MatchConfidence:    models.ConfidenceMedium,
		}
	}

	// No matchable face: common for threads, tolerance callouts, and
	// finish notes that geometry kernels do not encode. Confidence is
	// capped at medium and drops to low for sub-rubric guesses.
	confidence := models.ConfidenceMedium
	if ann.Confidence < 0.5 {
		confidence = models.ConfidenceLow
	}
	return models.ReconciledFeature{
		Annotation:         ann,
		AuthoritativeValue: ann.NominalValue,
		ValueSource:        models.SourceDrawingOnly,
		MatchConfidence:    confidence,
	}
}

func axialOverlap(face models.GeometryFace, axialMM float64) bool {
	return axialMM >= face.ZMinMM-axialSlackMM && axialMM <= face.ZMaxMM+axialSlackMM
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
