package geometry

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fabriq-inc/fabriq-engine/pkg/models"
)

const (
	// rotationalScoreThreshold splits rotational from prismatic parts.
	// Known limitation: prismatic parts with many small bores can clear
	// this threshold on raw area ratio alone.
	rotationalScoreThreshold = 0.6

	// stockAxisToleranceDeg bounds how far an outer cylinder may deviate
	// from the principal axis and still count as stock-formed.
	stockAxisToleranceDeg = 15.0
)

// KernelExtractor measures real solids through a Kernel binding.
type KernelExtractor struct {
	kernel Kernel
	logger *zap.Logger
}

// NewKernelExtractor creates an extractor bound to a kernel.
func NewKernelExtractor(kernel Kernel, logger *zap.Logger) *KernelExtractor {
	return &KernelExtractor{
		kernel: kernel,
		logger: logger.Named("geometry-extractor"),
	}
}

var _ Extractor = (*KernelExtractor)(nil)

// Extract loads the solid and builds its summary. Returns *ExtractionError
// when the kernel rejects the file.
func (e *KernelExtractor) Extract(ctx context.Context, sourceID string, data []byte) (*models.GeometrySummary, error) {
	solid, err := e.kernel.Load(ctx, sourceID, data)
	if err != nil {
		return nil, &ExtractionError{SourceID: sourceID, Cause: err}
	}

	summary := Summarize(sourceID, solid)
	e.logger.Debug("extracted solid",
		zap.String("source_id", sourceID),
		zap.Int("faces", len(summary.Faces)),
		zap.Float64("rotational_score", summary.RotationalScore),
		zap.String("part_type", string(summary.PartType)))
	return summary, nil
}

// Summarize classifies a loaded solid into a GeometrySummary. It is a pure
// function of the solid's reported faces, shared with the fallback generator
// so both implementations apply identical classification rules.
func Summarize(sourceID string, solid Solid) *models.GeometrySummary {
	raw := solid.Faces()
	faces := make([]models.GeometryFace, 0, len(raw))

	var totalArea, rotationalArea float64
	for i, kf := range raw {
		face := models.GeometryFace{
			ID:           i,
			SurfaceType:  kf.SurfaceType,
			ZMinMM:       kf.ZMinMM,
			ZMaxMM:       kf.ZMaxMM,
			AreaMM2:      kf.AreaMM2,
			AxisAngleDeg: kf.AxisAngleDeg,
		}
		if isRound(kf.SurfaceType) {
			face.DiameterMM = kf.DiameterMM
			if kf.Inner {
				face.Orientation = models.OrientationInner
			} else {
				face.Orientation = models.OrientationOuter
			}
			if math.Abs(kf.AxisAngleDeg) <= stockAxisToleranceDeg {
				rotationalArea += kf.AreaMM2
			}
		}
		totalArea += kf.AreaMM2
		faces = append(faces, face)
	}

	score := 0.0
	if totalArea > 0 {
		score = rotationalArea / totalArea
	}
	partType := models.PartPrismatic
	if score > rotationalScoreThreshold {
		partType = models.PartRotational
	}

	return &models.GeometrySummary{
		ID:                     uuid.New(),
		SourceID:               sourceID,
		BoundingBox:            solid.BoundingBox(),
		VolumeCM3:              solid.VolumeCM3(),
		Faces:                  faces,
		RotationalScore:        round3(score),
		PartType:               partType,
		SurfaceAreaRawMM2:      round3(totalArea),
		SurfaceAreaAdjustedMM2: round3(adjustedSurfaceArea(faces, partType, totalArea)),
		CreatedAt:              time.Now().UTC(),
	}
}

// adjustedSurfaceArea excludes from the finishing area every outer
// cylindrical face whose axis is aligned with the principal rotation axis
// within the stock tolerance: on rotational parts those surfaces are
// pre-formed by the bar stock, not milled or finished.
func adjustedSurfaceArea(faces []models.GeometryFace, partType models.PartType, rawArea float64) float64 {
	if partType != models.PartRotational {
		return rawArea
	}
	adjusted := rawArea
	for _, f := range faces {
		if f.SurfaceType == models.SurfaceCylindrical &&
			f.Orientation == models.OrientationOuter &&
			math.Abs(f.AxisAngleDeg) <= stockAxisToleranceDeg {
			adjusted -= f.AreaMM2
		}
	}
	if adjusted < 0 {
		adjusted = 0
	}
	return adjusted
}

func isRound(t models.SurfaceType) bool {
	switch t {
	case models.SurfaceCylindrical, models.SurfaceConical, models.SurfaceToroidal:
		return true
	}
	return false
}

// round3 rounds to 3 decimals so serialized summaries are stable across
// platforms.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
