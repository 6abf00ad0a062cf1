package models

import (
	"time"

	"github.com/google/uuid"
)

// SurfaceType classifies the underlying surface of a B-rep face.
type SurfaceType string

const (
	SurfacePlanar      SurfaceType = "planar"
	SurfaceCylindrical SurfaceType = "cylindrical"
	SurfaceConical     SurfaceType = "conical"
	SurfaceToroidal    SurfaceType = "toroidal"
	SurfaceFreeform    SurfaceType = "freeform"
)

// Orientation marks whether a round face is material-outside (turned OD)
// or material-inside (bored ID), derived from face winding.
type Orientation string

const (
	OrientationOuter Orientation = "outer"
	OrientationInner Orientation = "inner"
)

// PartType is the rotational/prismatic classification of a solid.
type PartType string

const (
	PartRotational PartType = "rotational"
	PartPrismatic  PartType = "prismatic"
)

// BoundingBox is an axis-aligned extent in millimeters.
type BoundingBox struct {
	XMin float64 `json:"x_min"`
	XMax float64 `json:"x_max"`
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
	ZMin float64 `json:"z_min"`
	ZMax float64 `json:"z_max"`
}

// DimX returns the X extent of the box.
func (b BoundingBox) DimX() float64 { return b.XMax - b.XMin }

// DimY returns the Y extent of the box.
func (b BoundingBox) DimY() float64 { return b.YMax - b.YMin }

// DimZ returns the Z extent of the box.
func (b BoundingBox) DimZ() float64 { return b.ZMax - b.ZMin }

// GeometryFace is one classified face of a solid. Immutable once produced.
type GeometryFace struct {
	ID          int         `json:"id"`
	SurfaceType SurfaceType `json:"surface_type"`
	// DiameterMM is set for cylindrical/conical/toroidal faces, 0 otherwise.
	DiameterMM float64 `json:"diameter_mm,omitempty"`
	ZMinMM     float64 `json:"z_min_mm"`
	ZMaxMM     float64 `json:"z_max_mm"`
	// Orientation is meaningful for round faces only.
	Orientation Orientation `json:"orientation,omitempty"`
	AreaMM2     float64     `json:"area_mm2"`
	// AxisAngleDeg is the angle between the face axis and the principal
	// rotation axis, for round faces. Planar/freeform faces carry 0.
	AxisAngleDeg float64 `json:"axis_angle_deg,omitempty"`
}

// AxialLengthMM returns the axial extent of the face.
func (f GeometryFace) AxialLengthMM() float64 { return f.ZMaxMM - f.ZMinMM }

// GeometrySummary is the structured result of extracting one CAD solid.
// Summaries are versioned and append-only: re-ingesting the same source
// produces a new version, prior versions are retained for audit.
type GeometrySummary struct {
	ID       uuid.UUID `json:"id"`
	SourceID string    `json:"source_id"`
	Version  int       `json:"version"`

	BoundingBox BoundingBox    `json:"bounding_box"`
	VolumeCM3   float64        `json:"volume_cm3"`
	Faces       []GeometryFace `json:"faces"`

	// RotationalScore is the fraction of total surface area belonging to
	// rotationally symmetric surfaces about the principal axis, in [0,1].
	RotationalScore float64  `json:"rotational_score"`
	PartType        PartType `json:"part_type"`

	SurfaceAreaRawMM2 float64 `json:"surface_area_raw_mm2"`
	// SurfaceAreaAdjustedMM2 excludes stock-formed outer cylinders on
	// rotational parts. Always <= SurfaceAreaRawMM2.
	SurfaceAreaAdjustedMM2 float64 `json:"surface_area_adjusted_mm2"`

	// Synthetic is true when the summary came from the deterministic
	// fallback generator rather than a real kernel.
	Synthetic bool `json:"synthetic"`

	CreatedAt time.Time `json:"created_at"`
}

// RoundFaces returns the faces that carry a diameter.
func (s *GeometrySummary) RoundFaces() []GeometryFace {
	var out []GeometryFace
	for _, f := range s.Faces {
		if f.DiameterMM > 0 {
			out = append(out, f)
		}
	}
	return out
}
