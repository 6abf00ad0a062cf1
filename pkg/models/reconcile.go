package models

// ValueSource records which input supplied the authoritative value of a
// reconciled feature.
type ValueSource string

const (
	// SourceGeometry: measured from the CAD solid, no drawing annotation.
	SourceGeometry ValueSource = "geometry"
	// SourceDrawing: drawing nominal confirmed by a matching face.
	SourceDrawing ValueSource = "drawing"
	// SourceDrawingOnly: declared on the drawing with no matchable face
	// (threads, tolerance callouts, finish notes).
	SourceDrawingOnly ValueSource = "drawing-only"
	// SourceInferred: matched without a positional hint, by unique diameter.
	SourceInferred ValueSource = "inferred"
)

// MatchConfidence grades how well the two inputs agree for a feature.
type MatchConfidence string

const (
	ConfidenceHigh   MatchConfidence = "high"
	ConfidenceMedium MatchConfidence = "medium"
	ConfidenceLow    MatchConfidence = "low"
)

// ReconciledFeature merges a geometric face with a drawing annotation.
// At least one of Face/Annotation is always present.
type ReconciledFeature struct {
	Face       *GeometryFace      `json:"face,omitempty"`
	Annotation *DrawingAnnotation `json:"annotation,omitempty"`

	AuthoritativeValue float64     `json:"authoritative_value"`
	ValueSource        ValueSource `json:"value_source"`
	// DeltaPct is the relative disagreement between the two sources,
	// meaningful only when both are present.
	DeltaPct        float64         `json:"delta_pct,omitempty"`
	MatchConfidence MatchConfidence `json:"match_confidence"`
}

// Discrepancy is a surfaced disagreement between geometry and drawing.
// Discrepancies are never silently resolved.
type Discrepancy struct {
	Label         string  `json:"label"`
	FaceID        int     `json:"face_id"`
	GeometryValue float64 `json:"geometry_value"`
	DrawingValue  float64 `json:"drawing_value"`
	DeltaPct      float64 `json:"delta_pct"`
}

// ReconciliationReport is the full output of one reconciliation pass.
type ReconciliationReport struct {
	Features      []ReconciledFeature `json:"features"`
	Discrepancies []Discrepancy       `json:"discrepancies,omitempty"`
	// UnmatchedFaceIDs lists geometry faces no annotation claimed.
	UnmatchedFaceIDs []int `json:"unmatched_face_ids,omitempty"`
}
