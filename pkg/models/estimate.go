package models

import (
	"time"

	"github.com/google/uuid"
)

// ConstraintFlag is one triggered manufacturing-difficulty rule, carrying
// the numeric basis that triggered it and its time multiplier.
type ConstraintFlag struct {
	Triggered  bool    `json:"triggered"`
	Basis      float64 `json:"basis"`
	Multiplier float64 `json:"multiplier"`
}

// ConstraintFlags holds the fixed rule table output. Triggered multipliers
// compound multiplicatively, never additively.
type ConstraintFlags struct {
	AspectRatio    ConstraintFlag `json:"aspect_ratio"`
	StockRemoval   ConstraintFlag `json:"stock_removal"`
	TightTolerance ConstraintFlag `json:"tight_tolerance"`
	RoughBlank     ConstraintFlag `json:"rough_blank"`
}

// CompoundMultiplier returns the product of all triggered multipliers.
func (c ConstraintFlags) CompoundMultiplier() float64 {
	m := 1.0
	for _, f := range []ConstraintFlag{c.AspectRatio, c.StockRemoval, c.TightTolerance, c.RoughBlank} {
		if f.Triggered {
			m *= f.Multiplier
		}
	}
	return m
}

// OperationCategory names a machining operation family.
type OperationCategory string

const (
	OpTurning   OperationCategory = "turning"
	OpBoring    OperationCategory = "boring"
	OpDrilling  OperationCategory = "drilling"
	OpThreading OperationCategory = "threading"
	OpMilling   OperationCategory = "milling"
	OpFinishing OperationCategory = "finishing"
)

// OperationEstimate is one machining operation with the physics inputs that
// produced its time.
type OperationEstimate struct {
	Category OperationCategory `json:"category"`
	Feature  string            `json:"feature"`
	// KeyDimension is the governing dimension: diameter in mm for round
	// operations, removal volume in cm3 for volumetric milling.
	KeyDimension     float64 `json:"key_dimension"`
	FeedrateMMPerRev float64 `json:"feedrate_mm_per_rev,omitempty"`
	RPM              float64 `json:"rpm,omitempty"`
	Passes           int     `json:"passes"`
	TimeMin          float64 `json:"time_min"`
}

// EstimationResult is the final output of the pipeline for one part.
// Results are append-only, keyed by (source, geometry_version,
// drawing_version); a changed input produces a new result.
type EstimationResult struct {
	ID              uuid.UUID `json:"id"`
	SourceID        string    `json:"source_id"`
	GeometryVersion int       `json:"geometry_version"`
	DrawingVersion  int       `json:"drawing_version"`

	Operations   []OperationEstimate `json:"operations"`
	TotalTimeMin float64             `json:"total_time_min"`
	SetupTimeMin float64             `json:"setup_time_min"`
	Multiplier   float64             `json:"multiplier"`

	// DeterminismHash is a SHA-256 over the canonical serialization of the
	// operations and total, used to verify reproducibility.
	DeterminismHash string `json:"determinism_hash"`

	// Confidence summarizes the weakest link in the inputs.
	Confidence MatchConfidence `json:"confidence"`
	// Synthetic is true when fallback geometry was used.
	Synthetic bool `json:"synthetic"`
	// GeometryOnly is true when drawing interpretation failed and the
	// estimate was produced from geometry alone.
	GeometryOnly bool `json:"geometry_only"`

	CreatedAt time.Time `json:"created_at"`
}
