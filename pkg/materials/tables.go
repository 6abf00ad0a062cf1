// Package materials holds the static material and thread-pitch lookup
// tables. The tables are embedded, loaded once at process start, and
// read-only afterwards. Missing data is an error, not a guess: lookups for
// unknown classes fail instead of substituting defaults.
package materials

import (
	_ "embed"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fabriq-inc/fabriq-engine/pkg/apperrors"
)

//go:embed tables.yaml
var embeddedTables []byte

// Spec is the machining profile of one material class.
type Spec struct {
	Class         string  `yaml:"class"`
	MRRMinPerCM3  float64 `yaml:"mrr_min_per_cm3"`
	SetupTimeMin  float64 `yaml:"setup_time_min"`
	CuttingSpeedM float64 `yaml:"cutting_speed_m_per_min"`
	FeedMMPerRev  float64 `yaml:"feed_mm_per_rev"`
}

// Table is the loaded, immutable lookup table.
type Table struct {
	materials map[string]Spec
	threads   map[string]float64
}

type tablesFile struct {
	Materials []Spec             `yaml:"materials"`
	Threads   map[string]float64 `yaml:"threads"`
}

// Load parses the embedded tables.
func Load() (*Table, error) {
	return parse(embeddedTables)
}

func parse(data []byte) (*Table, error) {
	var f tablesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse material tables: %w", err)
	}
	if len(f.Materials) == 0 {
		return nil, fmt.Errorf("material table is empty")
	}

	t := &Table{
		materials: make(map[string]Spec, len(f.Materials)),
		threads:   f.Threads,
	}
	for _, m := range f.Materials {
		t.materials[m.Class] = m
	}
	return t, nil
}

// Lookup returns the spec for a material class. An absent class is fatal to
// the caller: no silent default is substituted.
func (t *Table) Lookup(class string) (Spec, error) {
	spec, ok := t.materials[class]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", apperrors.ErrMaterialNotFound, class)
	}
	return spec, nil
}

// Classes returns all known material classes.
func (t *Table) Classes() []string {
	out := make([]string, 0, len(t.materials))
	for c := range t.materials {
		out = append(out, c)
	}
	return out
}

// threadSpecPattern matches metric thread designations like "M30x2",
// "M30×2", "M12x1.5" or plain "M12".
var threadSpecPattern = regexp.MustCompile(`^M([0-9]+(?:\.[0-9]+)?)(?:[x×]([0-9]+(?:\.[0-9]+)?))?$`)

// ThreadPitch resolves a thread designation to its pitch in millimeters.
// An explicit pitch in the designation ("M30x2" -> 2.0) wins; otherwise the
// ISO coarse table answers ("M30" -> 3.5).
func (t *Table) ThreadPitch(designation string) (float64, error) {
	spec := strings.TrimSpace(designation)
	m := threadSpecPattern.FindStringSubmatch(spec)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", apperrors.ErrThreadPitchNotFound, designation)
	}
	if m[2] != "" {
		pitch, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", apperrors.ErrThreadPitchNotFound, designation)
		}
		return pitch, nil
	}
	if pitch, ok := t.threads["M"+m[1]]; ok {
		return pitch, nil
	}
	return 0, fmt.Errorf("%w: %q", apperrors.ErrThreadPitchNotFound, designation)
}
