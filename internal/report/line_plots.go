package report

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/user/scm_compare_go/internal/analysis"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// MeanProfiles are the default time-averaged profile figures.
var MeanProfiles = []ProfileSpec{
	{"qt mean [g/kg]", "qt_mean", "qt_mean", "qt_mean"},
	{"ql mean [g/kg]", "ql_mean", "ql_mean", "ql_mean"},
	{"qr mean [g/kg]", "qr_mean", "qr_mean", "qr_mean"},
	{"qv mean [g/kg]", "qv_mean", "qv_mean", "qv_mean"},
	{"thetal [K]", "thetal_mean", "thetali_mean", "thetal_mean"},
	{"TKE [m2/s2]", "tke_mean", "tke_mean", "TKE"},
	{"u [m/s]", "u_mean", "u_translational_mean", "u_mean"},
	{"v [m/s]", "v_mean", "v_translational_mean", "v_mean"},
	{"updraft w [m/s]", "updraft_w", "updraft_w", "updraft_w"},
	{"updraft buoyancy [m/s2]", "updraft_buoyancy", "updraft_buoyancy", "updraft_buoyancy"},
	{"updraft ql [g/kg]", "updraft_ql", "updraft_ql", "updraft_ql"},
	{"updraft qr [g/kg]", "updraft_qr", "updraft_qr", "updraft_qr"},
	{"updraft area [-]", "updraft_area", "updraft_fraction", "updraft_area"},
	{"env ql [g/kg]", "env_ql", "env_ql", "env_ql"},
	{"env qr [g/kg]", "env_qr", "env_qr", "env_qr"},
}

// profileXYs pairs values with heights, dropping NaN values.
func profileXYs(values, z []float64) plotter.XYs {
	pts := make(plotter.XYs, 0, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: v, Y: z[i]})
	}
	return pts
}

// addLine adds a line through pts to p with a legend entry. Empty curves
// are skipped.
func addLine(p *plot.Plot, pts plotter.XYs, c color.Color, width vg.Length, dashes []vg.Length, label string) error {
	if len(pts) == 0 {
		return nil
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to create line for %s: %w", label, err)
	}
	line.Color = c
	line.LineStyle.Width = width
	line.LineStyle.Dashes = dashes
	p.Add(line)
	if label != "" {
		p.Legend.Add(label, line)
	}
	return nil
}

// newProfilePlot returns an empty plot with height on the y axis, from the
// ground to half a level above the top of z.
func newProfilePlot(xLabel string, z []float64) *plot.Plot {
	p := plot.New()
	p.X.Label.Text = xLabel
	p.Y.Label.Text = "z [km]"
	p.Add(plotter.NewGrid())
	if n := len(z); n > 0 {
		top := z[n-1]
		if n > 1 {
			top += (z[1] - z[0]) * 0.5
		}
		p.Y.Min = 0
		p.Y.Max = top
	}
	p.Legend.Top = true
	return p
}

// PlotProfiles writes one figure per spec comparing the time-averaged model
// and reference profiles over w. Each figure is drawn on a new plot.
func PlotProfiles(model, ref *analysis.View, specs []ProfileSpec, w analysis.Window, opts Options) ([]ProfileResult, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	log := opts.logger()

	results := make([]ProfileResult, 0, len(specs))
	for _, spec := range specs {
		cmp, err := analysis.Compare(model, ref, spec.Label, spec.ModelKey, spec.RefKey, w)
		if err != nil {
			return results, fmt.Errorf("report: figure %s: %w", spec.Figure, err)
		}

		p := newProfilePlot(spec.Label, cmp.Model.Z)
		if err := addLine(p, profileXYs(cmp.Reference.Values, cmp.Reference.Z), referenceColor, vg.Points(2), nil, ref.Source().String()); err != nil {
			return results, err
		}
		if err := addLine(p, profileXYs(cmp.Model.Values, cmp.Model.Z), modelColor, vg.Points(2), nil, model.Source().String()); err != nil {
			return results, err
		}

		path := opts.path(spec.Figure)
		if err := p.Save(opts.Width, opts.Height, path); err != nil {
			return results, fmt.Errorf("report: saving %s: %w", path, err)
		}
		log.WithFields(logrus.Fields{"figure": spec.Figure, "path": path}).Info("wrote profile figure")
		results = append(results, ProfileResult{
			Figure:     Figure{Name: spec.Figure, Path: path, Caption: fmt.Sprintf("%s, averaged %s", spec.Label, w)},
			Comparison: cmp,
		})
	}
	return results, nil
}

// drawer is a figure panel, such as a *plot.Plot.
type drawer interface {
	Draw(draw.Canvas)
}

// saveGrid draws a rows x cols grid of panels into one file. Nil entries are
// left blank.
func saveGrid(plots [][]drawer, width, height vg.Length, path string) error {
	rows := len(plots)
	if rows == 0 {
		return fmt.Errorf("report: no plots for %s", path)
	}
	cols := len(plots[0])

	c, err := draw.NewFormattedCanvas(width, height, strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return err
	}
	tiles := draw.Tiles{
		Rows: rows, Cols: cols,
		PadX: vg.Millimeter * 4, PadY: vg.Millimeter * 4,
		PadTop: vg.Millimeter * 2, PadBottom: vg.Millimeter * 2,
		PadLeft: vg.Millimeter * 2, PadRight: vg.Millimeter * 2,
	}
	dc := draw.New(c)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			if plots[i][j] == nil {
				continue
			}
			plots[i][j].Draw(tiles.At(dc, j, i))
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := c.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
