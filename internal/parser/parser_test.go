package parser

import (
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"gonum.org/v1/gonum/floats"
)

type fixtureVar struct {
	dims []string
	data []float64
}

// writeStats writes a netCDF classic file with fixed-size dimensions.
func writeStats(t *testing.T, dims []string, lengths []int, vars map[string]fixtureVar) string {
	t.Helper()
	h := cdf.NewHeader(dims, lengths)
	for name, v := range vars {
		h.AddVariable(name, v.dims, []float64{0})
	}
	h.Define()
	if errs := h.Check(); errs != nil {
		t.Fatalf("invalid fixture header: %v", errs)
	}

	path := filepath.Join(t.TempDir(), "Stats.test.nc")
	ff, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		t.Fatal(err)
	}
	for name, v := range vars {
		// The writer reports io.EOF once a fixed-size variable is full.
		if n, err := f.Writer(name, nil, nil).Write(v.data); err != nil && !(err == io.EOF && n == len(v.data)) {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	return path
}

// modelFixture is a model statistics file with 3 levels and 4 samples.
// Group paths are stored flattened, as classic files have no groups.
func modelFixture(t *testing.T) string {
	tz := []string{"t", "z"}
	return writeStats(t, []string{"t", "z"}, []int{4, 3}, map[string]fixtureVar{
		"profiles_z_half":     {[]string{"z"}, []float64{500, 1500, 2500}},
		"profiles_t":          {[]string{"t"}, []float64{0, 3600, 7200, 10800}},
		"reference_rho0_half": {[]string{"z"}, []float64{1.2, 1.1, 1.0}},
		"profiles_w_mean":     {tz, make([]float64, 12)},
		// qt_mean[t][z] = 0.001*(t+1) + 0.0001*z, in kg/kg.
		"profiles_qt_mean": {tz, []float64{
			0.0010, 0.0011, 0.0012,
			0.0020, 0.0021, 0.0022,
			0.0030, 0.0031, 0.0032,
			0.0040, 0.0041, 0.0042,
		}},
		"profiles_QT_third_m": {tz, []float64{
			1e-9, 1e-9, 1e-9,
			2e-9, 2e-9, 2e-9,
			3e-9, 3e-9, 3e-9,
			4e-9, 4e-9, 4e-9,
		}},
		"profiles_temperature_mean": {tz, []float64{
			300, 295, 290,
			301, 296, 291,
			302, 297, 292,
			303, 298, 293,
		}},
		"timeseries_cloud_top_mean":  {[]string{"t"}, []float64{-1, 0, 5, 12}},
		"timeseries_cloud_base_mean": {[]string{"t"}, []float64{0, 2500, 3, 600}},
		"timeseries_lwp_mean":        {[]string{"t"}, []float64{0, 0.1, 0.2, 0.3}},
	})
}

func TestOpenCDF(t *testing.T) {
	c, err := OpenCDF(modelFixture(t))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	v, err := c.Variable("profiles/qt_mean")
	if err != nil {
		t.Fatal(err)
	}
	if len(v.Shape) != 2 || v.Shape[0] != 4 || v.Shape[1] != 3 {
		t.Errorf("shape = %v, want [4 3]", v.Shape)
	}
	if v.Data[4] != 0.0021 {
		t.Errorf("Data[4] = %g, want 0.0021", v.Data[4])
	}
	if _, err := c.Variable("profiles/missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	if len(c.Variables()) != 10 {
		t.Errorf("got %d variables, want 10", len(c.Variables()))
	}
}

func TestReadProfiles(t *testing.T) {
	c, err := OpenCDF(modelFixture(t))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	log, hook := test.NewNullLogger()

	tab, err := ReadProfiles(c, Model, []string{"qt_mean", "QT_third_m", "temperature_mean", "updraft_area"}, Options{Log: log})
	if err != nil {
		t.Fatal(err)
	}
	if !floats.EqualApprox(tab.Z, []float64{0.5, 1.5, 2.5}, 1e-12) {
		t.Errorf("Z = %v, want km", tab.Z)
	}
	if !floats.EqualApprox(tab.T, []float64{0, 1, 2, 3}, 1e-12) {
		t.Errorf("T = %v, want hours", tab.T)
	}
	if tab.TimeUnit != 3600 {
		t.Errorf("TimeUnit = %g, want 3600", tab.TimeUnit)
	}

	qt := tab.Profiles["qt_mean"]
	if r, c := qt.Dims(); r != 3 || c != 4 {
		t.Fatalf("qt_mean dims = %d x %d, want 3 x 4", r, c)
	}
	// Level 1 at sample 2, scaled to g/kg.
	if got := qt.At(1, 2); math.Abs(got-3.1) > 1e-9 {
		t.Errorf("qt_mean(1, 2) = %g, want 3.1", got)
	}
	if got := tab.Profiles["QT_third_m"].At(0, 3); math.Abs(got-4) > 1e-9 {
		t.Errorf("QT_third_m(0, 3) = %g, want 4", got)
	}
	if got := tab.Profiles["temperature_mean"].At(2, 0); got != 290 {
		t.Errorf("temperature_mean(2, 0) = %g, want 290 unscaled", got)
	}
	if got := tab.Reference["rho_half"]; !floats.Equal(got, []float64{1.2, 1.1, 1.0}) {
		t.Errorf("rho_half = %v", got)
	}

	if len(tab.Substituted) != 1 || tab.Substituted[0] != "updraft_area" {
		t.Errorf("Substituted = %v, want [updraft_area]", tab.Substituted)
	}
	area := tab.Profiles["updraft_area"]
	if r, c := area.Dims(); r != 3 || c != 4 {
		t.Errorf("substitute dims = %d x %d, want 3 x 4", r, c)
	}
	if len(hook.Entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(hook.Entries))
	}
	e := hook.LastEntry()
	if e.Level != logrus.WarnLevel || e.Data["variable"] != "updraft_area" || e.Data["source"] != "scm" {
		t.Errorf("unexpected warning %v %v", e.Level, e.Data)
	}
}

func TestReadProfilesStrict(t *testing.T) {
	ds := MapDataset{
		"profiles/z_half": {Name: "z", Shape: []int{2}, Data: []float64{100, 200}},
		"profiles/t":      {Name: "t", Shape: []int{1}, Data: []float64{0}},
		"profiles/w_mean": {Name: "w", Shape: []int{1, 2}, Data: []float64{0, 0}},
	}
	log, _ := test.NewNullLogger()
	_, err := ReadProfiles(ds, Model, []string{"ql_mean"}, Options{Strict: true, Log: log})
	var mv *MissingVariableError
	if !errors.As(err, &mv) || mv.Variable != "ql_mean" {
		t.Fatalf("error = %v, want MissingVariableError for ql_mean", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("MissingVariableError does not unwrap to ErrNotFound")
	}
}

func TestReadProfilesShapeMismatch(t *testing.T) {
	ds := MapDataset{
		"z_half":           {Name: "z", Shape: []int{2}, Data: []float64{100, 200}},
		"t":                {Name: "t", Shape: []int{2}, Data: []float64{0, 60}},
		"profiles/w_mean":  {Name: "w", Shape: []int{2, 2}, Data: make([]float64, 4)},
		"profiles/qt_mean": {Name: "qt", Shape: []int{2, 3}, Data: make([]float64, 6)},
	}
	log, _ := test.NewNullLogger()
	if _, err := ReadProfiles(ds, Reference, []string{"qt_mean"}, Options{Log: log}); err == nil {
		t.Error("expected a shape error")
	}
}

func TestReadProfilesMissingFallback(t *testing.T) {
	ds := MapDataset{
		"z_half": {Name: "z", Shape: []int{1}, Data: []float64{100}},
		"t":      {Name: "t", Shape: []int{1}, Data: []float64{0}},
	}
	log, _ := test.NewNullLogger()
	if _, err := ReadProfiles(ds, Reference, []string{"qt_mean"}, Options{Log: log}); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound for the missing w_mean", err)
	}
}

func TestRuleFor(t *testing.T) {
	for _, tc := range []struct {
		name string
		want UnitRule
	}{
		{"qt_mean", GramsPerKilogram},
		{"env_ql", GramsPerKilogram},
		{"updraft_qr", GramsPerKilogram},
		{"QT_third_m", ThirdMomentHumidity},
		{"my_QT_third_m", ThirdMomentHumidity},
		{"thetal_mean", Raw},
		{"QTvar_mean", Raw},
		{"W_third_m", Raw},
		{"some_qt_thing", GramsPerKilogram},
	} {
		if got := RuleFor(tc.name); got != tc.want {
			t.Errorf("RuleFor(%s) = %v, want %v", tc.name, got, tc.want)
		}
	}
	// Every listed variable agrees with the substring inference.
	for _, name := range append(append([]string{}, ModelProfileVars...), ReferenceProfileVars...) {
		if RuleFor(name) != inferRule(name) {
			t.Errorf("metadata rule for %s disagrees with inference", name)
		}
	}
}

func TestReadTimeseries(t *testing.T) {
	c, err := OpenCDF(modelFixture(t))
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	log, hook := test.NewNullLogger()

	ts, err := ReadTimeseries(c, Model, Options{Log: log})
	if err != nil {
		t.Fatal(err)
	}
	top := ts.Series["cloud_top_mean"]
	if !math.IsNaN(top[0]) || !math.IsNaN(top[1]) || top[2] != 5 || top[3] != 12 {
		t.Errorf("cloud_top_mean = %v, want [NaN NaN 5 12]", top)
	}
	base := ts.Series["cloud_base_mean"]
	if base[0] != 0 || !math.IsNaN(base[1]) || base[2] != 3 || base[3] != 600 {
		t.Errorf("cloud_base_mean = %v, want [0 NaN 3 600]", base)
	}
	if got := ts.Series["lwp_mean"]; !floats.Equal(got, []float64{0, 0.1, 0.2, 0.3}) {
		t.Errorf("lwp_mean = %v", got)
	}
	// cloud_cover_mean ustar rwp_mean shf lhf Tsurface rd
	if len(ts.Substituted) != 7 || len(hook.Entries) != 7 {
		t.Errorf("Substituted = %v with %d warnings, want 7", ts.Substituted, len(hook.Entries))
	}
	if ts.TimeUnit != 1 || ts.T[1] != 3600 {
		t.Errorf("times converted: unit %g, T %v", ts.TimeUnit, ts.T)
	}
}

func TestReadTimeseriesReference(t *testing.T) {
	series := func(v ...float64) *Variable { return &Variable{Shape: []int{len(v)}, Data: v} }
	ds := MapDataset{
		"z_half":                            series(10, 20),
		"t":                                 series(0, 60, 120),
		"timeseries/cloud_fraction_mean":    series(0, 0.5, -1),
		"timeseries/cloud_top_mean":         series(0, 15, 18),
		"timeseries/cloud_base_mean":        series(5, 20, 25),
		"timeseries/friction_velocity_mean": series(0.3, 0.3, 0.3),
		"timeseries/shf_surface_mean":       series(10, 11, 12),
		"timeseries/lhf_surface_mean":       series(100, 110, 120),
		"timeseries/lwp_mean":               series(0, 1, 2),
	}
	log, hook := test.NewNullLogger()
	ts, err := ReadTimeseries(ds, Reference, Options{Strict: true, Log: log})
	if err != nil {
		t.Fatal(err)
	}
	cc := ts.Series["cloud_cover_mean"]
	if !math.IsNaN(cc[0]) || cc[1] != 0.5 || !math.IsNaN(cc[2]) {
		t.Errorf("cloud_cover_mean = %v, want [NaN 0.5 NaN]", cc)
	}
	base := ts.Series["cloud_base_mean"]
	if base[0] != 5 || !math.IsNaN(base[1]) || !math.IsNaN(base[2]) {
		t.Errorf("cloud_base_mean = %v, want [5 NaN NaN]", base)
	}
	if got := ts.Series["rwp_mean"]; !floats.Equal(got, []float64{0, 0, 0}) {
		t.Errorf("rwp_mean = %v, want zeros", got)
	}
	if ts.Series["shf"][2] != 12 || ts.Series["ustar"][0] != 0.3 {
		t.Errorf("renamed series not mapped: %v", ts.Series)
	}
	if len(hook.Entries) != 0 {
		t.Errorf("unexpected warnings: %d", len(hook.Entries))
	}
}

func TestCloudFilters(t *testing.T) {
	top := []float64{-1, 0, 5, 12}
	FilterCloudTop(top)
	if !math.IsNaN(top[0]) || !math.IsNaN(top[1]) || top[2] != 5 || top[3] != 12 {
		t.Errorf("FilterCloudTop = %v", top)
	}
	base := []float64{0, 11, 3}
	FilterCloudBase(base, 10)
	if base[0] != 0 || !math.IsNaN(base[1]) || base[2] != 3 {
		t.Errorf("FilterCloudBase = %v", base)
	}
}
