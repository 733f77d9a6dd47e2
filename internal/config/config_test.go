package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/overlandflow/internal/grid"
	"github.com/oshokin/overlandflow/internal/simerr"
)

func writeFile(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), DefaultFilePermissions))

	return path
}

// TestResolveDefaults checks resolving nothing yields the built-in parameters.
func TestResolveDefaults(t *testing.T) {
	t.Parallel()

	p, merged, err := Resolve("", nil)
	require.NoError(t, err)

	if diff := cmp.Diff(DefaultParams(), p); diff != "" {
		t.Fatalf("defaults mismatch (-want +got):\n%s", diff)
	}

	require.Equal(t, RasterType, merged["grid"].(map[string]any)["_type"])
}

// TestResolveLayering checks overrides beat the file and the file beats defaults.
func TestResolveLayering(t *testing.T) {
	t.Parallel()

	path := writeFile(t, `
clock:
  stop: 500
rain_step_function:
  magnitude: 2.0e-5
fields:
  at_node:
    - [surface_water__depth, 0.02]
    - {name: soil_water_infiltration__depth, value: 0.003}
`)

	p, merged, err := Resolve(path, []string{
		"clock.stop=600",
		"depth_dependent_mannings_n.min_mannings_n=0.05",
	})
	require.NoError(t, err)

	require.Equal(t, 600.0, p.Clock.Stop)
	require.Equal(t, 2.0, p.Clock.Step)
	require.Equal(t, 2e-5, p.RainStepFunction.Magnitude)
	require.Equal(t, 3600.0, p.RainStepFunction.Start)
	require.Equal(t, 0.05, p.DepthDependentManningsN.MinManningsN)
	require.Equal(t, 0.003, p.DepthDependentManningsN.IndexFlowDepth)
	require.Equal(t, []FieldInit{
		{Name: "surface_water__depth", Value: 0.02},
		{Name: "soil_water_infiltration__depth", Value: 0.003},
	}, p.Fields.AtNode)
	require.Equal(t, []FieldInit{{Name: "mannings_n", Value: 0.055}}, p.Fields.AtLink)
	require.Equal(t, 600, merged["clock"].(map[string]any)["stop"])
}

// TestResolveErrors checks every configuration failure is reported as such.
func TestResolveErrors(t *testing.T) {
	t.Parallel()

	cases := map[string][]string{
		"unknown group":      {"bogus.key=1"},
		"unknown key":        {"clock.speed=2"},
		"grid type":          {"grid._type=hex"},
		"malformed":          {"clock.stop"},
		"zero min n":         {"depth_dependent_mannings_n.min_mannings_n=0"},
		"negative h0":        {"depth_dependent_mannings_n.index_flow_depth=-1"},
		"stop before start":  {"clock.start=10", "clock.stop=5"},
		"bad shape":          {"grid.shape=[1, 4]"},
		"bad side":           {"grid.fixed_value_sides=[north]"},
		"bad kind":           {"rain_time_series.kind=cubic"},
		"bad field init":     {"fields.at_node=[[a]]"},
		"unnamed field init": {"fields.at_grid=[['', 1]]"},
		"bad alpha":          {"overland_flow.alpha=2"},
		"bad density":        {"soil_infiltration.rock_density=100"},
		"flat steepness":     {"rain_step_function.steepness=0"},
	}

	for name, overrides := range cases {
		_, _, err := Resolve("", overrides)
		require.ErrorIs(t, err, simerr.ErrConfiguration, name)
	}

	_, _, err := Resolve("", []string{"grid._type=hex"})
	require.ErrorContains(t, err, "grid type mismatch")

	_, _, err = Resolve(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.ErrorIs(t, err, simerr.ErrConfiguration)

	_, _, err = Resolve(writeFile(t, "- not\n- a mapping\n"), nil)
	require.ErrorIs(t, err, simerr.ErrConfiguration)
}

// TestResolveFromFileGrid checks a grid file replaces the shape requirement.
func TestResolveFromFileGrid(t *testing.T) {
	t.Parallel()

	p, _, err := Resolve(writeFile(t, ""), []string{"grid.from_file=basin.asc", "grid.shape=[]"})
	require.NoError(t, err)
	require.Equal(t, "basin.asc", p.Grid.FromFile)
	require.Empty(t, p.Grid.Shape)
}

// TestSaveRoundTrip checks saved parameters resolve back unchanged.
func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	want := DefaultParams()
	want.Clock.Stop = 7200
	want.RainTimeSeries.File = "rain.csv"
	want.Fields.AtGrid = []FieldInit{{Name: "rain_rate", Value: 0}}

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, Save(path, want))

	got, _, err := Resolve(path, nil)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("saved parameters mismatch (-want +got):\n%s", diff)
	}

	require.Error(t, Save(path, nil))
}

// TestWrite checks the YAML rendering used for verbose output.
func TestWrite(t *testing.T) {
	t.Parallel()

	var buf strings.Builder
	require.NoError(t, Write(&buf, DefaultParams()))

	out := buf.String()
	require.Contains(t, out, "_type: raster")
	require.Contains(t, out, "shape: [32, 32]")
	require.Contains(t, out, "- [soil_water_infiltration__depth, 0.001]")
}

// TestDefaultsDots checks the dotted defaults decode back to the defaults.
func TestDefaultsDots(t *testing.T) {
	t.Parallel()

	lines, err := Dots(Defaults())
	require.NoError(t, err)
	require.Contains(t, lines, "grid._type=raster")
	require.Contains(t, lines, "clock.step=2")
	require.Contains(t, lines, "grid.fixed_value_sides=bottom")

	m, err := ParseDots(lines)
	require.NoError(t, err)

	p, err := Decode(m)
	require.NoError(t, err)

	if diff := cmp.Diff(DefaultParams(), p); diff != "" {
		t.Fatalf("dotted defaults mismatch (-want +got):\n%s", diff)
	}

	mapping, err := Mapping(p)
	require.NoError(t, err)

	if diff := cmp.Diff(Defaults(), mapping); diff != "" {
		t.Fatalf("mapping mismatch (-want +got):\n%s", diff)
	}
}

// TestFieldsEach checks initializers are visited by site.
func TestFieldsEach(t *testing.T) {
	t.Parallel()

	fields := FieldsParams{
		AtNode: []FieldInit{{Name: "a", Value: 1}},
		AtLink: []FieldInit{{Name: "b", Value: 2}},
		AtGrid: []FieldInit{{Name: "c", Value: 3}},
	}

	var seen []string

	require.NoError(t, fields.Each(func(site grid.Site, init FieldInit) error {
		seen = append(seen, init.Name+"@"+site.String())

		return nil
	}))
	require.Equal(t, []string{"a@point", "b@edge", "c@domain"}, seen)
}
