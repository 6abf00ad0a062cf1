package geometry

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fabriq-inc/fabriq-engine/pkg/models"
)

func TestFallbackGenerator_ByteIdenticalAcrossCalls(t *testing.T) {
	gen := NewFallbackGenerator(zap.NewNop())

	first := gen.Generate("part-8821")
	second := gen.Generate("part-8821")

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)

	assert.Equal(t, firstJSON, secondJSON, "same identifier must serialize identically")
}

func TestFallbackGenerator_ByteIdenticalAcrossInstances(t *testing.T) {
	first := NewFallbackGenerator(zap.NewNop()).Generate("part-8821")
	second := NewFallbackGenerator(zap.NewNop()).Generate("part-8821")

	firstJSON, err := json.Marshal(first)
	require.NoError(t, err)
	secondJSON, err := json.Marshal(second)
	require.NoError(t, err)

	assert.Equal(t, firstJSON, secondJSON)
}

func TestFallbackGenerator_DistinctIdentifiersDiffer(t *testing.T) {
	gen := NewFallbackGenerator(zap.NewNop())

	a := gen.Generate("part-a")
	b := gen.Generate("part-b")

	assert.NotEqual(t, a.ID, b.ID)
	aJSON, _ := json.Marshal(a)
	bJSON, _ := json.Marshal(b)
	assert.NotEqual(t, aJSON, bJSON)
}

func TestFallbackGenerator_PlausibleRanges(t *testing.T) {
	gen := NewFallbackGenerator(zap.NewNop())

	for i := 0; i < 50; i++ {
		summary := gen.Generate(fmt.Sprintf("part-%03d", i))

		length := summary.BoundingBox.DimZ()
		diameter := summary.BoundingBox.DimX()

		assert.GreaterOrEqual(t, length, 20.0)
		assert.LessOrEqual(t, length, 500.0)
		assert.GreaterOrEqual(t, diameter, 10.0)
		assert.LessOrEqual(t, diameter, 200.0)
		assert.GreaterOrEqual(t, len(summary.Faces), 4)
		assert.LessOrEqual(t, len(summary.Faces), 15)
		assert.GreaterOrEqual(t, summary.RotationalScore, 0.0)
		assert.LessOrEqual(t, summary.RotationalScore, 1.0)
		assert.Greater(t, summary.VolumeCM3, 0.0)

		// Adjusted area never exceeds raw and never goes negative.
		assert.GreaterOrEqual(t, summary.SurfaceAreaRawMM2, summary.SurfaceAreaAdjustedMM2)
		assert.GreaterOrEqual(t, summary.SurfaceAreaAdjustedMM2, 0.0)
	}
}

// Golden values hand-derived from the documented digest mapping for
// SHA-256("sample-shaft-01"). Any conforming implementation must reproduce
// them exactly.
func TestFallbackGenerator_KnownIdentifierMapping(t *testing.T) {
	gen := NewFallbackGenerator(zap.NewNop())

	summary := gen.Generate("sample-shaft-01")

	assert.Equal(t, "800277c3-2b27-5dec-b480-2acecac307e7", summary.ID.String())
	assert.InDelta(t, 222.386, summary.BoundingBox.ZMax, 1e-6)
	assert.InDelta(t, 77.349, summary.BoundingBox.XMax, 1e-6)
	assert.InDelta(t, 810.47, summary.VolumeCM3, 1e-6)
	require.Len(t, summary.Faces, 9)

	assert.InDelta(t, 0.35, summary.RotationalScore, 1e-6)
	assert.Equal(t, models.PartPrismatic, summary.PartType)
	assert.InDelta(t, 25847.208, summary.SurfaceAreaRawMM2, 1e-6)
	assert.InDelta(t, 25847.208, summary.SurfaceAreaAdjustedMM2, 1e-6)

	cyl := summary.Faces[2]
	assert.Equal(t, models.SurfaceCylindrical, cyl.SurfaceType)
	assert.Equal(t, models.OrientationOuter, cyl.Orientation)
	assert.InDelta(t, 46.986, cyl.DiameterMM, 1e-6)
	assert.InDelta(t, 72.559, cyl.ZMinMM, 1e-6)
	assert.InDelta(t, 117.036, cyl.ZMaxMM, 1e-6)
	assert.InDelta(t, 6565.289, cyl.AreaMM2, 1e-6)
}

// SHA-256("spindle-00") maps bytes 5-6 to 0.794 while the synthesized faces
// alone would score 0.967: the digest value wins, and the stock OD anchor is
// excluded from the finishing area.
func TestFallbackGenerator_DigestScoreIsAuthoritative(t *testing.T) {
	gen := NewFallbackGenerator(zap.NewNop())

	summary := gen.Generate("spindle-00")

	assert.InDelta(t, 0.794, summary.RotationalScore, 1e-6)
	assert.Equal(t, models.PartRotational, summary.PartType)

	require.NotEmpty(t, summary.Faces)
	anchor := summary.Faces[0]
	assert.Equal(t, models.SurfaceCylindrical, anchor.SurfaceType)
	assert.Equal(t, models.OrientationOuter, anchor.Orientation)
	assert.InDelta(t, 78.949, anchor.DiameterMM, 1e-6)
	assert.InDelta(t, 118933.483, anchor.AreaMM2, 1e-6)

	assert.InDelta(t, 184266.506, summary.SurfaceAreaRawMM2, 1e-6)
	assert.InDelta(t, 30818.899, summary.SurfaceAreaAdjustedMM2, 1e-6)
}

func TestFallbackGenerator_IdentityFieldsAreDigestDerived(t *testing.T) {
	gen := NewFallbackGenerator(zap.NewNop())

	summary := gen.Generate("part-8821")

	assert.True(t, summary.Synthetic)
	assert.Equal(t, time.Unix(0, 0).UTC(), summary.CreatedAt)
	// Same identifier, same UUID, even on a fresh instance.
	again := NewFallbackGenerator(zap.NewNop()).Generate("part-8821")
	assert.Equal(t, summary.ID, again.ID)
}

func TestFallbackGenerator_ExtractIgnoresData(t *testing.T) {
	gen := NewFallbackGenerator(zap.NewNop())

	withData, err := gen.Extract(context.Background(), "part-8821", []byte{0xde, 0xad})
	require.NoError(t, err)
	withoutData, err := gen.Extract(context.Background(), "part-8821", nil)
	require.NoError(t, err)

	a, _ := json.Marshal(withData)
	b, _ := json.Marshal(withoutData)
	assert.Equal(t, a, b, "digest depends on the identifier only")
}
