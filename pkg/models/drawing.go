package models

import (
	"time"

	"github.com/google/uuid"
)

// PositionalHint locates a drawing feature, either axially along the part
// (AxialMM set) or as 2D page coordinates from the vision model.
type PositionalHint struct {
	AxialMM *float64 `json:"axial_mm,omitempty"`
	PageX   *float64 `json:"page_x,omitempty"`
	PageY   *float64 `json:"page_y,omitempty"`
}

// DrawingAnnotation is one labeled dimension or callout extracted from a
// drawing page. Annotations are produced per interpretation pass; a re-run
// creates a new versioned batch and never edits prior annotations.
type DrawingAnnotation struct {
	Label        string  `json:"label"`
	NominalValue float64 `json:"nominal_value"`
	// ToleranceClass is an ISO fit designation such as "H7", or empty when
	// the drawing shows no tolerance for this feature.
	ToleranceClass string `json:"tolerance_class,omitempty"`
	// ThreadSpec is set for thread callouts, e.g. "M30x2".
	ThreadSpec string `json:"thread_spec,omitempty"`
	// Position is nil when the feature could not be confidently located.
	Position *PositionalHint `json:"position,omitempty"`
	// Confidence follows the interpretation rubric: 0.95-1.00 unambiguous,
	// 0.80-0.94 minor ambiguity, 0.50-0.79 spatially inferred, <0.50 guess.
	Confidence float64 `json:"confidence"`
	Provenance string  `json:"provenance,omitempty"`
}

// AnnotationBatch is one versioned interpretation pass over a drawing.
type AnnotationBatch struct {
	ID          uuid.UUID           `json:"id"`
	SourceID    string              `json:"source_id"`
	Version     int                 `json:"version"`
	Annotations []DrawingAnnotation `json:"annotations"`
	Model       string              `json:"model,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}
