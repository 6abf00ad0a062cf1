// Package geometry turns CAD solids into structured geometric summaries.
//
// The actual B-rep kernel is an external native dependency hidden behind the
// Kernel interface. Two Extractor implementations exist: one bound to a real
// kernel, and a deterministic fallback used when no kernel is available or a
// file cannot be loaded.
package geometry

import (
	"context"
	"fmt"

	"github.com/fabriq-inc/fabriq-engine/pkg/models"
)

// KernelFace is the raw per-face record a kernel reports before
// classification. Angles are degrees against the principal rotation axis.
type KernelFace struct {
	SurfaceType  models.SurfaceType
	DiameterMM   float64
	ZMinMM       float64
	ZMaxMM       float64
	AreaMM2      float64
	AxisAngleDeg float64
	// Inner is derived from face winding: true when material surrounds the
	// surface (a bore), false for an outside surface.
	Inner bool
}

// Solid is a loaded B-rep body.
type Solid interface {
	BoundingBox() models.BoundingBox
	VolumeCM3() float64
	Faces() []KernelFace
}

// Kernel loads CAD bytes into solids. Load is CPU-bound and synchronous;
// callers are expected to run it on a bounded worker pool.
type Kernel interface {
	// Available reports whether the native binding is usable in this
	// process. When false, callers select the fallback extractor.
	Available() bool
	Load(ctx context.Context, sourceID string, data []byte) (Solid, error)
}

// Extractor produces a GeometrySummary for a part source.
type Extractor interface {
	Extract(ctx context.Context, sourceID string, data []byte) (*models.GeometrySummary, error)
}

// ExtractionError reports a solid the kernel rejected (corrupt bytes,
// unsupported format). It is non-fatal at the pipeline level: the caller
// falls back to synthetic geometry.
type ExtractionError struct {
	SourceID string
	Cause    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("geometry extraction failed for %s: %v", e.SourceID, e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }
