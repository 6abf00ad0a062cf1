package materials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabriq-inc/fabriq-engine/pkg/apperrors"
)

func TestLoad_EmbeddedTables(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, table.Classes())
}

func TestLookup_KnownClasses(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)

	steel, err := table.Lookup("steel-1045")
	require.NoError(t, err)
	assert.Equal(t, 0.45, steel.MRRMinPerCM3)
	assert.Equal(t, 15.0, steel.SetupTimeMin)
	assert.Equal(t, 140.0, steel.CuttingSpeedM)
	assert.Equal(t, 0.20, steel.FeedMMPerRev)

	alu, err := table.Lookup("aluminum-6061")
	require.NoError(t, err)
	assert.Equal(t, 0.25, alu.MRRMinPerCM3)
}

func TestLookup_UnknownClassFails(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)

	_, err = table.Lookup("unobtainium")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMaterialNotFound)
}

func TestThreadPitch(t *testing.T) {
	table, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name        string
		designation string
		pitch       float64
		wantErr     bool
	}{
		{"coarse table lookup", "M30", 3.5, false},
		{"explicit pitch wins", "M30x2", 2.0, false},
		{"fractional pitch", "M12x1.5", 1.5, false},
		{"unicode multiplication sign", "M10×1.25", 1.25, false},
		{"small coarse", "M3", 0.5, false},
		{"whitespace tolerated", "  M6 ", 1.0, false},
		{"unknown size without pitch", "M999", 0, true},
		{"imperial designation", "1/4-20", 0, true},
		{"garbage", "thread", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pitch, err := table.ThreadPitch(tt.designation)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, apperrors.ErrThreadPitchNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.pitch, pitch)
		})
	}
}

func TestParse_EmptyTableFails(t *testing.T) {
	_, err := parse([]byte("threads: {}\n"))
	require.Error(t, err)
}
