package report

import (
	"fmt"
	"image/color"
	"math"

	"github.com/sirupsen/logrus"
	"github.com/user/scm_compare_go/internal/parser"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// TimeseriesFigure names the scalar series figure.
const TimeseriesFigure = "timeseries"

type seriesLine struct {
	ts    *parser.Timeseries
	key   string
	label string
	color color.Color
	width vg.Length
}

// seriesXYs pairs a series with its sample times, skipping the first sample
// and NaN values.
func seriesXYs(ts *parser.Timeseries, key string) (plotter.XYs, error) {
	vals, ok := ts.Series[key]
	if !ok {
		return nil, fmt.Errorf("report: %s series %q not loaded", ts.Source, key)
	}
	if len(vals) != len(ts.T) {
		return nil, fmt.Errorf("report: %s series %q has %d samples for %d times", ts.Source, key, len(vals), len(ts.T))
	}
	pts := make(plotter.XYs, 0, len(vals))
	for i := 1; i < len(vals); i++ {
		if math.IsNaN(vals[i]) || math.IsInf(vals[i], 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: ts.T[i] * ts.TimeUnit, Y: vals[i]})
	}
	return pts, nil
}

// PlotTimeseries writes the scalar series of model and ref as one six-panel
// figure.
func PlotTimeseries(model, ref *parser.Timeseries, opts Options) (Figure, error) {
	if err := opts.validate(); err != nil {
		return Figure{}, err
	}
	if len(model.T) == 0 {
		return Figure{}, fmt.Errorf("report: %s timeseries has no samples", model.Source)
	}

	les := func(key, label string) seriesLine {
		return seriesLine{ts: ref, key: key, label: label, color: gray, width: vg.Points(4)}
	}
	scm := func(key, label string, c color.Color) seriesLine {
		return seriesLine{ts: model, key: key, label: label, color: c, width: vg.Points(2)}
	}
	panels := []struct {
		yLabel string
		lines  []seriesLine
		legend bool
	}{
		{"updr cl. cover", []seriesLine{les("cloud_cover_mean", "les"), scm("cloud_cover_mean", "scm", royalBlue)}, true},
		{"lwp", []seriesLine{les("lwp_mean", "les"), scm("lwp_mean", "scm", royalBlue)}, false},
		{"lhf", []seriesLine{les("lhf", "les"), scm("lhf", "scm", royalBlue)}, false},
		{"shf", []seriesLine{les("shf", "les"), scm("shf", "scm", royalBlue)}, false},
		{"rd [m]", []seriesLine{scm("rd", "scm", royalBlue)}, false},
		{"updr CB, CT", []seriesLine{
			les("cloud_base_mean", "CB_les"),
			les("cloud_top_mean", "CT_les"),
			scm("cloud_base_mean", "CB", crimson),
			scm("cloud_top_mean", "CT", royalBlue),
		}, true},
	}

	tEnd := model.T[len(model.T)-1] * model.TimeUnit
	plots := [][]drawer{make([]drawer, 3), make([]drawer, 3)}
	for n, panel := range panels {
		p := plot.New()
		p.X.Label.Text = "t [s]"
		p.Y.Label.Text = panel.yLabel
		p.X.Min, p.X.Max = 0, tEnd
		p.Add(plotter.NewGrid())
		p.Legend.Top = true
		for _, l := range panel.lines {
			pts, err := seriesXYs(l.ts, l.key)
			if err != nil {
				return Figure{}, err
			}
			label := l.label
			if !panel.legend {
				label = ""
			}
			if err := addLine(p, pts, l.color, l.width, nil, label); err != nil {
				return Figure{}, err
			}
		}
		plots[n/3][n%3] = p
	}

	path := opts.path(TimeseriesFigure)
	if err := saveGrid(plots, opts.Width*2, opts.Height*4/3, path); err != nil {
		return Figure{}, fmt.Errorf("report: saving %s: %w", path, err)
	}
	opts.logger().WithFields(logrus.Fields{"figure": TimeseriesFigure, "path": path}).Info("wrote timeseries figure")
	return Figure{Name: TimeseriesFigure, Path: path, Caption: "cloud and surface flux time series"}, nil
}
