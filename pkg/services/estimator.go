package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/fabriq-inc/fabriq-engine/pkg/apperrors"
	"github.com/fabriq-inc/fabriq-engine/pkg/materials"
	"github.com/fabriq-inc/fabriq-engine/pkg/models"
)

const (
	// rpmCap bounds spindle speed regardless of cutting-speed math.
	rpmCap = 3000.0
	// threadPassCount is the fixed pass count for single-point threading.
	threadPassCount = 3
	// precisionGradeBoundary: tolerance grades finer than this need a
	// third finishing pass; everything coarser gets two.
	precisionGradeBoundary = 8
	// defaultBoreDepthFactor sizes the depth of a drawing-only bore whose
	// axial extent the geometry cannot supply.
	defaultBoreDepthFactor = 2.0
	// defaultThreadDepthFactor sizes unmeasured thread engagement.
	defaultThreadDepthFactor = 1.5
)

var boreLabelPattern = regexp.MustCompile(`(?i)\b(bore|hole|drill|id)\b`)

// EstimateInput carries everything the estimator needs. The estimator is a
// pure function of this input: no randomness, no wall clock in the numbers.
type EstimateInput struct {
	SourceID        string
	GeometryVersion int
	DrawingVersion  int

	Summary  *models.GeometrySummary
	Features []models.ReconciledFeature
	Flags    models.ConstraintFlags

	MaterialClass string

	Synthetic    bool
	GeometryOnly bool
}

// TimeEstimator converts reconciled features into machining-operation time
// estimates using the static material and thread-pitch tables.
type TimeEstimator struct {
	table  *materials.Table
	logger *zap.Logger
}

// NewTimeEstimator creates the estimator over loaded lookup tables.
func NewTimeEstimator(table *materials.Table, logger *zap.Logger) *TimeEstimator {
	return &TimeEstimator{table: table, logger: logger.Named("time-estimator")}
}

// Estimate produces the operation list and the final result. A material
// class absent from the table is fatal; no default is substituted.
func (e *TimeEstimator) Estimate(in EstimateInput) (*models.EstimationResult, error) {
	mat, err := e.table.Lookup(in.MaterialClass)
	if err != nil {
		return nil, err
	}

	var ops []models.OperationEstimate
	for _, feature := range in.Features {
		op, err := e.featureOperation(feature, mat)
		if err != nil {
			return nil, err
		}
		if op != nil {
			ops = append(ops, *op)
		}
	}

	// One volumetric roughing pass covers bulk stock removal.
	if in.Summary != nil && in.Summary.VolumeCM3 > 0 {
		ops = append(ops, volumetricRoughing(in.Summary, mat))
	}
	if len(ops) == 0 {
		return nil, apperrors.ErrEmptyReconciliation
	}

	var machining float64
	categories := map[models.OperationCategory]bool{}
	for _, op := range ops {
		machining += op.TimeMin
		categories[op.Category] = true
	}

	multiplier := in.Flags.CompoundMultiplier()
	setup := mat.SetupTimeMin * float64(len(categories))
	total := round3(machining*multiplier + setup)

	// Row identity (ID, CreatedAt) is assigned at persistence time; the
	// estimator's output is a pure function of its input.
	result := &models.EstimationResult{
		SourceID:        in.SourceID,
		GeometryVersion: in.GeometryVersion,
		DrawingVersion:  in.DrawingVersion,
		Operations:      ops,
		TotalTimeMin:    total,
		SetupTimeMin:    setup,
		Multiplier:      round3(multiplier),
		DeterminismHash: determinismHash(in.SourceID, ops, total),
		Confidence:      overallConfidence(in),
		Synthetic:       in.Synthetic,
		GeometryOnly:    in.GeometryOnly,
	}

	if e.logger != nil {
		e.logger.Info("estimated machining time",
			zap.String("source_id", in.SourceID),
			zap.Int("operations", len(ops)),
			zap.Float64("total_min", total),
			zap.Float64("multiplier", result.Multiplier))
	}
	return result, nil
}

// featureOperation converts one reconciled feature into an operation, or
// nil for features that do not machine (planar faces, bare notes).
func (e *TimeEstimator) featureOperation(feature models.ReconciledFeature, mat materials.Spec) (*models.OperationEstimate, error) {
	if feature.Annotation != nil && feature.Annotation.ThreadSpec != "" {
		return e.threadingOperation(feature, mat)
	}

	diameter := feature.AuthoritativeValue
	if diameter <= 0 {
		return nil, nil
	}
	if feature.Face != nil && feature.Face.DiameterMM == 0 {
		// Planar face paired with a linear dimension: covered by the
		// volumetric roughing pass.
		return nil, nil
	}

	length := featureAxialLength(feature, diameter)
	rpm := spindleRPM(mat.CuttingSpeedM, diameter)
	passes := passCount(feature)

	category := models.OpTurning
	if feature.Face != nil && feature.Face.Orientation == models.OrientationInner {
		category = models.OpBoring
	} else if feature.Face == nil && feature.Annotation != nil && boreLabelPattern.MatchString(feature.Annotation.Label) {
		category = models.OpBoring
	}

	timeMin := round3(length * float64(passes) / (mat.FeedMMPerRev * rpm))

	return &models.OperationEstimate{
		Category:         category,
		Feature:          featureLabel(feature),
		KeyDimension:     diameter,
		FeedrateMMPerRev: mat.FeedMMPerRev,
		RPM:              round3(rpm),
		Passes:           passes,
		TimeMin:          timeMin,
	}, nil
}

// threadingOperation times a single-point threading cycle.
func (e *TimeEstimator) threadingOperation(feature models.ReconciledFeature, mat materials.Spec) (*models.OperationEstimate, error) {
	spec := feature.Annotation.ThreadSpec
	pitch, err := e.table.ThreadPitch(spec)
	if err != nil {
		return nil, fmt.Errorf("thread %q: %w", spec, err)
	}

	diameter := feature.AuthoritativeValue
	if diameter <= 0 {
		diameter = threadMajorDiameter(spec)
	}
	if diameter <= 0 {
		return nil, nil
	}

	depth := featureAxialLength(feature, 0)
	if depth <= 0 {
		depth = defaultThreadDepthFactor * diameter
	}

	rpm := spindleRPM(mat.CuttingSpeedM, diameter)
	timeMin := round3(depth / pitch / rpm * threadPassCount)

	return &models.OperationEstimate{
		Category:     models.OpThreading,
		Feature:      spec,
		KeyDimension: diameter,
		RPM:          round3(rpm),
		Passes:       threadPassCount,
		TimeMin:      timeMin,
	}, nil
}

// volumetricRoughing is the bulk material-removal operation. The basis is
// the stock-to-part removal volume; when no stock envelope is known the
// part volume itself stands in.
func volumetricRoughing(summary *models.GeometrySummary, mat materials.Spec) models.OperationEstimate {
	removal := removalVolumeCM3(summary)
	return models.OperationEstimate{
		Category:     models.OpMilling,
		Feature:      "stock-removal",
		KeyDimension: round3(removal),
		Passes:       1,
		TimeMin:      round3(removal * mat.MRRMinPerCM3),
	}
}

func removalVolumeCM3(summary *models.GeometrySummary) float64 {
	x := summary.BoundingBox.DimX()
	y := summary.BoundingBox.DimY()
	z := summary.BoundingBox.DimZ()
	stock := x * y * z / 1000
	if summary.PartType == models.PartRotational {
		d := math.Max(x, y)
		stock = math.Pi / 4 * d * d * z / 1000
	}
	if stock <= summary.VolumeCM3 {
		return summary.VolumeCM3
	}
	return stock - summary.VolumeCM3
}

// spindleRPM applies the cutting-speed formula with the hard cap.
func spindleRPM(cuttingSpeedM, diameterMM float64) float64 {
	rpm := cuttingSpeedM * 1000 / (math.Pi * diameterMM)
	return math.Min(rpm, rpmCap)
}

// passCount maps tolerance class to passes: coarse work takes a rough and a
// finish pass, precision fits add a spring pass.
func passCount(feature models.ReconciledFeature) int {
	if feature.Annotation == nil || feature.Annotation.ToleranceClass == "" {
		return 2
	}
	if grade, ok := toleranceGrade(feature.Annotation.ToleranceClass); ok && grade < precisionGradeBoundary {
		return 3
	}
	return 2
}

var gradeDigits = regexp.MustCompile(`[0-9]+`)

func toleranceGrade(class string) (int, bool) {
	m := gradeDigits.FindString(class)
	if m == "" {
		return 0, false
	}
	grade, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return grade, true
}

func featureAxialLength(feature models.ReconciledFeature, diameter float64) float64 {
	if feature.Face != nil && feature.Face.AxialLengthMM() > 0 {
		return feature.Face.AxialLengthMM()
	}
	if diameter > 0 {
		return defaultBoreDepthFactor * diameter
	}
	return 0
}

func featureLabel(feature models.ReconciledFeature) string {
	if feature.Annotation != nil && feature.Annotation.Label != "" {
		return feature.Annotation.Label
	}
	if feature.Face != nil {
		return fmt.Sprintf("face-%d", feature.Face.ID)
	}
	return "feature"
}

// threadMajorDiameter reads the major diameter out of a designation like
// "M30x2".
func threadMajorDiameter(spec string) float64 {
	s := strings.TrimPrefix(strings.TrimSpace(spec), "M")
	if i := strings.IndexAny(s, "x×"); i >= 0 {
		s = s[:i]
	}
	d, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return d
}

// overallConfidence is the weakest link across the inputs.
func overallConfidence(in EstimateInput) models.MatchConfidence {
	if in.GeometryOnly || len(in.Features) == 0 {
		return models.ConfidenceLow
	}
	lowest := models.ConfidenceHigh
	rank := map[models.MatchConfidence]int{
		models.ConfidenceHigh:   3,
		models.ConfidenceMedium: 2,
		models.ConfidenceLow:    1,
	}
	for _, f := range in.Features {
		if rank[f.MatchConfidence] < rank[lowest] {
			lowest = f.MatchConfidence
		}
	}
	return lowest
}

// determinismHash fingerprints the numeric output. json.Marshal emits
// struct fields in declaration order, so the serialization is canonical.
func determinismHash(sourceID string, ops []models.OperationEstimate, total float64) string {
	payload := struct {
		SourceID   string                     `json:"source_id"`
		Operations []models.OperationEstimate `json:"operations"`
		TotalMin   float64                    `json:"total_min"`
	}{sourceID, ops, total}

	data, _ := json.Marshal(payload)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
