package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fabriq-inc/fabriq-engine/pkg/models"
)

func ptr(v float64) *float64 { return &v }

func shaftSummary() *models.GeometrySummary {
	return &models.GeometrySummary{
		SourceID: "shaft-01",
		PartType: models.PartRotational,
		BoundingBox: models.BoundingBox{
			XMax: 50.2, YMax: 50.2, ZMax: 80,
		},
		Faces: []models.GeometryFace{
			{ID: 0, SurfaceType: models.SurfaceCylindrical, DiameterMM: 50.2, ZMinMM: 0, ZMaxMM: 80, Orientation: models.OrientationOuter},
			{ID: 1, SurfaceType: models.SurfaceCylindrical, DiameterMM: 24.8, ZMinMM: 0, ZMaxMM: 30, Orientation: models.OrientationInner},
			{ID: 2, SurfaceType: models.SurfacePlanar, ZMinMM: 0, ZMaxMM: 0},
		},
	}
}

func TestReconcile_DrawingValueAuthoritative(t *testing.T) {
	r := NewReconciler(zap.NewNop())

	annotations := []models.DrawingAnnotation{
		{
			Label:        "OD",
			NominalValue: 50,
			Position:     &models.PositionalHint{AxialMM: ptr(40.0)},
			Confidence:   0.95,
		},
	}

	report := r.Reconcile(shaftSummary(), annotations)
	require.NotEmpty(t, report.Features)

	od := report.Features[0]
	require.NotNil(t, od.Face)
	assert.Equal(t, 0, od.Face.ID)
	// Measured 50.2, declared 50: within 5%, the drawing nominal wins.
	assert.Equal(t, 50.0, od.AuthoritativeValue)
	assert.Equal(t, models.SourceDrawing, od.ValueSource)
	assert.Equal(t, models.ConfidenceHigh, od.MatchConfidence)
	assert.InDelta(t, 0.4, od.DeltaPct, 0.01)
	assert.Empty(t, report.Discrepancies)
}

func TestReconcile_PositionDisambiguates(t *testing.T) {
	r := NewReconciler(zap.NewNop())

	annotations := []models.DrawingAnnotation{
		{
			Label:        "Bore",
			NominalValue: 25,
			Position:     &models.PositionalHint{AxialMM: ptr(10.0)},
			Confidence:   0.9,
		},
	}

	report := r.Reconcile(shaftSummary(), annotations)

	bore := report.Features[0]
	require.NotNil(t, bore.Face)
	assert.Equal(t, 1, bore.Face.ID)
	assert.Equal(t, models.ConfidenceHigh, bore.MatchConfidence)
}

func TestReconcile_DiscrepancySurfaced(t *testing.T) {
	r := NewReconciler(zap.NewNop())

	// Declared 58 against a measured 50.2 at the same axial position: well
	// outside the 5% window, paired through the wide window instead.
	annotations := []models.DrawingAnnotation{
		{
			Label:        "OD",
			NominalValue: 58,
			Position:     &models.PositionalHint{AxialMM: ptr(40.0)},
			Confidence:   0.9,
		},
	}

	report := r.Reconcile(shaftSummary(), annotations)

	require.Len(t, report.Discrepancies, 1)
	d := report.Discrepancies[0]
	assert.Equal(t, 0, d.FaceID)
	assert.Equal(t, 50.2, d.GeometryValue)
	assert.Equal(t, 58.0, d.DrawingValue)

	// Both values retained; drawing still authoritative, confidence capped.
	od := report.Features[0]
	assert.Equal(t, 58.0, od.AuthoritativeValue)
	assert.Equal(t, models.SourceDrawing, od.ValueSource)
	assert.Equal(t, models.ConfidenceMedium, od.MatchConfidence)
}

func TestReconcile_DrawingOnlyFeatureSurvives(t *testing.T) {
	r := NewReconciler(zap.NewNop())

	// A 12 mm bore on the drawing with no geometric counterpart must not be
	// dropped: it still costs machining time.
	annotations := []models.DrawingAnnotation{
		{Label: "bore Ø12", NominalValue: 12, Confidence: 0.85},
	}

	report := r.Reconcile(shaftSummary(), annotations)

	bore := report.Features[0]
	assert.Nil(t, bore.Face)
	assert.Equal(t, 12.0, bore.AuthoritativeValue)
	assert.Equal(t, models.SourceDrawingOnly, bore.ValueSource)
	assert.Equal(t, models.ConfidenceMedium, bore.MatchConfidence)
}

func TestReconcile_DrawingOnlyLowConfidence(t *testing.T) {
	r := NewReconciler(zap.NewNop())

	annotations := []models.DrawingAnnotation{
		{Label: "maybe a groove", NominalValue: 3, Confidence: 0.3},
	}

	report := r.Reconcile(shaftSummary(), annotations)
	assert.Equal(t, models.ConfidenceLow, report.Features[0].MatchConfidence)
}

func TestReconcile_UnpositionedUniqueMatchIsInferred(t *testing.T) {
	r := NewReconciler(zap.NewNop())

	// No positional hint, but only one face is within 5% of the nominal.
	annotations := []models.DrawingAnnotation{
		{Label: "Ø25 H7", NominalValue: 25, ToleranceClass: "H7", Confidence: 0.9},
	}

	report := r.Reconcile(shaftSummary(), annotations)

	bore := report.Features[0]
	require.NotNil(t, bore.Face)
	assert.Equal(t, 1, bore.Face.ID)
	assert.Equal(t, models.SourceInferred, bore.ValueSource)
	assert.Equal(t, models.ConfidenceLow, bore.MatchConfidence)
}

func TestReconcile_UnclaimedFacesBecomeGeometryFeatures(t *testing.T) {
	r := NewReconciler(zap.NewNop())

	report := r.Reconcile(shaftSummary(), nil)

	// Both round faces survive as geometry-sourced features; the planar end
	// face does not machine as a feature.
	require.Len(t, report.Features, 2)
	for _, f := range report.Features {
		assert.Equal(t, models.SourceGeometry, f.ValueSource)
		assert.Equal(t, models.ConfidenceMedium, f.MatchConfidence)
		assert.Equal(t, f.Face.DiameterMM, f.AuthoritativeValue)
	}
	assert.ElementsMatch(t, []int{0, 1}, report.UnmatchedFaceIDs)
}

func TestReconcile_EachFaceClaimedOnce(t *testing.T) {
	r := NewReconciler(zap.NewNop())

	annotations := []models.DrawingAnnotation{
		{Label: "OD left", NominalValue: 50, Position: &models.PositionalHint{AxialMM: ptr(20.0)}, Confidence: 0.9},
		{Label: "OD right", NominalValue: 50, Position: &models.PositionalHint{AxialMM: ptr(60.0)}, Confidence: 0.9},
	}

	report := r.Reconcile(shaftSummary(), annotations)

	first, second := report.Features[0], report.Features[1]
	require.NotNil(t, first.Face)
	assert.Equal(t, 0, first.Face.ID)
	// The second annotation cannot claim the same face again.
	assert.Nil(t, second.Face)
	assert.Equal(t, models.SourceDrawingOnly, second.ValueSource)
}
