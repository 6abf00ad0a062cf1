package geometry

import (
	"math"
	"regexp"
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/fabriq-inc/fabriq-engine/pkg/models"
)

// Fixed rule table for manufacturing-difficulty flags. Each flag is
// evaluated independently and the triggered multipliers compound
// multiplicatively, so three simultaneous flags yield exactly
// 1.20 * 1.05 * 1.10.
const (
	aspectRatioThreshold  = 4.0
	aspectRatioMultiplier = 1.20

	stockRemovalThreshold  = 0.70
	stockRemovalMultiplier = 1.05

	// referenceToleranceGrade is the IT grade at which no surcharge
	// applies; anything finer (numerically lower) is tight.
	referenceToleranceGrade  = 8
	tightToleranceMultiplier = 1.10

	roughBlankFreeformFraction = 0.10
	roughBlankMultiplier       = 1.05
)

var toleranceGradePattern = regexp.MustCompile(`[0-9]+`)

// ConstraintClassifier derives difficulty flags from measured geometry and
// the tolerance classes declared on the drawing.
type ConstraintClassifier struct {
	logger *zap.Logger
}

// NewConstraintClassifier creates the classifier.
func NewConstraintClassifier(logger *zap.Logger) *ConstraintClassifier {
	return &ConstraintClassifier{logger: logger.Named("constraint-classifier")}
}

// Classify applies the rule table to one summary. toleranceClasses are the
// classes declared on the drawing ("H7", "IT6", ...); pass nil when no
// drawing is available.
func (c *ConstraintClassifier) Classify(summary *models.GeometrySummary, toleranceClasses []string) models.ConstraintFlags {
	flags := models.ConstraintFlags{}

	ratio := aspectRatio(summary)
	flags.AspectRatio = models.ConstraintFlag{
		Triggered:  ratio > aspectRatioThreshold,
		Basis:      round3(ratio),
		Multiplier: aspectRatioMultiplier,
	}

	removal := stockRemovalRatio(summary)
	flags.StockRemoval = models.ConstraintFlag{
		Triggered:  removal > stockRemovalThreshold,
		Basis:      round3(removal),
		Multiplier: stockRemovalMultiplier,
	}

	if grade, ok := finestToleranceGrade(toleranceClasses); ok {
		flags.TightTolerance = models.ConstraintFlag{
			Triggered:  grade < referenceToleranceGrade,
			Basis:      float64(grade),
			Multiplier: tightToleranceMultiplier,
		}
	}

	freeform := freeformFraction(summary)
	flags.RoughBlank = models.ConstraintFlag{
		Triggered:  freeform > roughBlankFreeformFraction,
		Basis:      round3(freeform),
		Multiplier: roughBlankMultiplier,
	}

	if c.logger != nil {
		c.logger.Debug("classified constraints",
			zap.String("source_id", summary.SourceID),
			zap.Float64("aspect_ratio", flags.AspectRatio.Basis),
			zap.Float64("stock_removal", flags.StockRemoval.Basis),
			zap.Float64("multiplier", flags.CompoundMultiplier()))
	}
	return flags
}

// aspectRatio is the longest bounding dimension over the smallest relevant
// cross-section (the smaller of the two remaining dimensions). Slender parts
// deflect under cutting load, so they machine slower. The ratio is a single
// part-level property: it triggers the flag once no matter how many faces
// contribute to it.
func aspectRatio(summary *models.GeometrySummary) float64 {
	dims := []float64{
		summary.BoundingBox.DimX(),
		summary.BoundingBox.DimY(),
		summary.BoundingBox.DimZ(),
	}
	sort.Float64s(dims)
	if dims[0] <= 0 {
		return 0
	}
	return dims[2] / dims[0]
}

// stockRemovalRatio compares the part volume against its stock envelope: a
// cylinder for rotational parts, the bounding box for prismatic ones.
func stockRemovalRatio(summary *models.GeometrySummary) float64 {
	stock := stockVolumeCM3(summary)
	if stock <= 0 {
		return 0
	}
	r := (stock - summary.VolumeCM3) / stock
	if r < 0 {
		return 0
	}
	return r
}

func stockVolumeCM3(summary *models.GeometrySummary) float64 {
	x, y, z := summary.BoundingBox.DimX(), summary.BoundingBox.DimY(), summary.BoundingBox.DimZ()
	if summary.PartType == models.PartRotational {
		d := x
		if y > d {
			d = y
		}
		// Bar stock: cylinder over the longest axis.
		return math.Pi / 4 * d * d * z / 1000
	}
	return x * y * z / 1000
}

// finestToleranceGrade extracts the numerically smallest IT grade from the
// declared classes. "H7" and "IT7" both read as grade 7.
func finestToleranceGrade(classes []string) (int, bool) {
	best := 0
	found := false
	for _, cls := range classes {
		m := toleranceGradePattern.FindString(cls)
		if m == "" {
			continue
		}
		grade, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		if !found || grade < best {
			best = grade
			found = true
		}
	}
	return best, found
}

// freeformFraction is the share of surface area on freeform faces. Castings
// and forgings arrive as rough blanks whose freeform skin needs cleanup
// passes before dimensional work starts.
func freeformFraction(summary *models.GeometrySummary) float64 {
	var freeform float64
	for _, f := range summary.Faces {
		if f.SurfaceType == models.SurfaceFreeform {
			freeform += f.AreaMM2
		}
	}
	if summary.SurfaceAreaRawMM2 <= 0 {
		return 0
	}
	return freeform / summary.SurfaceAreaRawMM2
}
