package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/spf13/viper"
	"github.com/user/scm_compare_go/internal/paramlist"
	"github.com/user/scm_compare_go/internal/parser"
)

// execute runs the root command with args and returns its standard output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	Root.SetOut(&out)
	Root.SetErr(&errOut)
	Root.SetArgs(args)
	err := Root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if want := "scm_compare v" + version + "\n"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestParamlistCommand(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "paramlist", "defaults", "--dir", dir)
	if err != nil {
		t.Fatal(err)
	}
	got, err := paramlist.Read(filepath.Join(dir, paramlist.FileName))
	if err != nil {
		t.Fatal(err)
	}
	want, _ := paramlist.Build(paramlist.Defaults)
	if !reflect.DeepEqual(got, want) {
		t.Errorf("paramlist.in = %v, want %v", got, want)
	}
	if !strings.Contains(out, `"prandtl_number": 1.0`) {
		t.Errorf("output does not show the tree:\n%s", out)
	}
}

func TestParamlistCommandErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := execute(t, "paramlist", "Atlantis", "--dir", dir); !errors.Is(err, paramlist.ErrUnknownCase) {
		t.Errorf("error = %v, want ErrUnknownCase", err)
	}
	if _, err := os.Stat(filepath.Join(dir, paramlist.FileName)); !os.IsNotExist(err) {
		t.Error("parameter file written for an unknown case")
	}
	if _, err := execute(t, "paramlist", "--dir", dir); err == nil {
		t.Error("expected an error without a case")
	}
	if _, err := execute(t, "paramlist", "defaults", "Bomex", "--dir", dir); err == nil {
		t.Error("expected an error for two cases")
	}
}

const namelist = `{
    "meta": {"casename": "Bomex", "simname": "Bomex", "uuid": "0123456789"},
    "output": {"output_root": "./"}
}`

func TestSetupAndClean(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Bomex.in"), []byte(namelist), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "setup", "Bomex", "--dir", dir)
	if err != nil {
		t.Fatal(err)
	}
	if want := "./Tests.Output.Bomex.Bomex/stats/Stats.Bomex.nc\n"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	if _, err := os.Stat(filepath.Join(dir, "paramlist_Bomex.in")); err != nil {
		t.Fatal(err)
	}

	if err := os.MkdirAll(filepath.Join(dir, "Tests.Output.Bomex.Bomex", "stats"), 0o755); err != nil {
		t.Fatal(err)
	}
	keep := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(keep, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := execute(t, "clean", "--dir", dir); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "notes.txt" {
		t.Errorf("left after clean: %v", entries)
	}
}

func TestPlotConfigFrom(t *testing.T) {
	cfg := viper.New()
	cfg.Set("scm", "model.nc")
	cfg.Set("les", "les.nc")
	cfg.Set("tmin", 2.0)
	cfg.Set("tmax", -1.0)
	cfg.Set("figures", "mean, timeseries")
	pc, err := plotConfigFrom(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(pc.Figures, []string{"mean", "timeseries"}) {
		t.Errorf("figures = %q", pc.Figures)
	}
	if pc.Window.Start != 2 || pc.Window.End != -1 {
		t.Errorf("window = %+v", pc.Window)
	}

	cfg.Set("figures", []string{"mean,sheets", "mean", " sheets", "timeseries"})
	pc, err = plotConfigFrom(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(pc.Figures, []string{"mean", "sheets", "timeseries"}) {
		t.Errorf("repeated groups: figures = %q", pc.Figures)
	}

	cfg.Set("figures", []string{"mean", "profiles"})
	if _, err := plotConfigFrom(cfg); err == nil {
		t.Error("expected an error for an unknown figure group")
	}
	cfg.Set("figures", []string{"mean"})
	cfg.Set("les", "")
	if _, err := plotConfigFrom(cfg); err == nil {
		t.Error("expected an error without a reference file")
	}
}

type fixtureVar struct {
	dims []string
	data []float64
}

func writeStats(t *testing.T, name string, vars map[string]fixtureVar) string {
	t.Helper()
	h := cdf.NewHeader([]string{"t", "z"}, []int{4, 3})
	for n, v := range vars {
		h.AddVariable(n, v.dims, []float64{0})
	}
	h.Define()
	if errs := h.Check(); errs != nil {
		t.Fatalf("invalid fixture header: %v", errs)
	}
	path := filepath.Join(t.TempDir(), name)
	ff, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer ff.Close()
	f, err := cdf.Create(ff, h)
	if err != nil {
		t.Fatal(err)
	}
	for n, v := range vars {
		// The writer reports io.EOF once a fixed-size variable is full.
		if nw, err := f.Writer(n, nil, nil).Write(v.data); err != nil && !(err == io.EOF && nw == len(v.data)) {
			t.Fatalf("writing %s: %v", n, err)
		}
	}
	return path
}

// statsFixtures writes minimal model and LES statistics files with 3 levels
// and 4 samples. Every other variable is drawn as zeros.
func statsFixtures(t *testing.T) (scm, les string) {
	tz := []string{"t", "z"}
	qt := []float64{
		0.010, 0.008, 0.006,
		0.011, 0.008, 0.005,
		0.012, 0.009, 0.005,
		0.012, 0.009, 0.004,
	}
	scm = writeStats(t, "Stats.Bomex.nc", map[string]fixtureVar{
		"profiles_z_half":  {[]string{"z"}, []float64{100, 300, 500}},
		"profiles_t":       {[]string{"t"}, []float64{0, 3600, 7200, 10800}},
		"profiles_w_mean":  {tz, make([]float64, 12)},
		"profiles_qt_mean": {tz, qt},
	})
	les = writeStats(t, "Bomex.nc", map[string]fixtureVar{
		"z_half":           {[]string{"z"}, []float64{100, 300, 500}},
		"t":                {[]string{"t"}, []float64{0, 3600, 7200, 10800}},
		"profiles_w_mean":  {tz, make([]float64, 12)},
		"profiles_qt_mean": {tz, qt},
	})
	return scm, les
}

func TestPlotCommand(t *testing.T) {
	scm, les := statsFixtures(t)
	folder := filepath.Join(t.TempDir(), "figs")
	pdf := filepath.Join(t.TempDir(), "summary.pdf")

	out, err := execute(t, "plot", "--scm", scm, "--les", les, "--folder", folder,
		"--figures", "mean,sheets,contours,timeseries", "--report", pdf, "--strict=false", "--tmin", "1")
	if err != nil {
		t.Fatal(err)
	}
	paths := strings.Fields(out)
	seen := make(map[string]bool)
	for _, p := range paths {
		if seen[p] {
			t.Errorf("figure %s written twice", p)
		}
		seen[p] = true
	}
	if len(paths) != 15+8+24+1 {
		t.Errorf("%d figures written, want 48", len(paths))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("figure %s: %v", p, err)
		}
	}
	b, err := os.ReadFile(pdf)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF")) {
		t.Error("summary is not a PDF")
	}
}

func TestPlotCommandStrict(t *testing.T) {
	scm, les := statsFixtures(t)
	_, err := execute(t, "plot", "--scm", scm, "--les", les, "--folder", t.TempDir(),
		"--figures", "mean", "--report", "", "--strict")
	if !errors.Is(err, parser.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
	// Later tests must not inherit strict mode.
	if _, err := execute(t, "plot", "--scm", scm, "--les", les, "--folder", t.TempDir(), "--figures", "mean", "--strict=false"); err != nil {
		t.Error(err)
	}
}

func TestPlotCommandEmptyWindow(t *testing.T) {
	scm, les := statsFixtures(t)
	_, err := execute(t, "plot", "--scm", scm, "--les", les, "--folder", t.TempDir(),
		"--figures", "mean", "--report", "", "--strict=false", "--tmin", "10", "--tmax", "-1")
	if err == nil || !strings.Contains(err.Error(), "no samples") {
		t.Errorf("error = %v, want an empty selection", err)
	}
}
