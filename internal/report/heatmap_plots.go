package report

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"github.com/user/scm_compare_go/internal/analysis"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Contours are the default time-height figures.
var Contours = []ContourSpec{
	{Label: "mean thl [K]", ModelKey: "thetal_mean", RefKey: "thetali_mean", Figure: "contour_thl_mean"},
	{Label: "mean TKE [m2/s2]", ModelKey: "tke_mean", RefKey: "tke_mean", Figure: "contour_TKE_mean"},
	{Label: "mean qv [g/kg]", ModelKey: "qv_mean", RefKey: "qv_mean", Figure: "contour_qv_mean"},
	{Label: "mean ql [g/kg]", ModelKey: "ql_mean", RefKey: "ql_mean", Figure: "contour_ql_mean"},
	{Label: "mean qr [g/kg]", ModelKey: "qr_mean", RefKey: "qr_mean", Figure: "contour_qr_mean"},
	{Label: "mean qt [g/kg]", ModelKey: "qt_mean", RefKey: "qt_mean", Figure: "contour_qt_mean"},
	{Label: "env thl [K]", ModelKey: "env_thetal", RefKey: "env_thetali", Figure: "contour_env_thl", FillFirst: true},
	{Label: "env w [m/s]", ModelKey: "env_w", RefKey: "env_w", Figure: "contour_env_w"},
	{Label: "env qt [g/kg]", ModelKey: "env_qt", RefKey: "env_qt", Figure: "contour_env_qt"},
	{Label: "env ql [g/kg]", ModelKey: "env_ql", RefKey: "env_ql", Figure: "contour_env_ql"},
	{Label: "env qr [g/kg]", ModelKey: "env_qr", RefKey: "env_qr", Figure: "contour_env_qr"},
	{Label: "updr thl [K]", ModelKey: "updraft_thetal", RefKey: "updraft_thetali", Figure: "contour_upd_thl", Updraft: true},
	{Label: "updr area [-]", ModelKey: "updraft_area", RefKey: "updraft_fraction", Figure: "contour_upd_area", Updraft: true},
	{Label: "updr buoyancy [m/s2]", ModelKey: "updraft_buoyancy", RefKey: "updraft_buoyancy", Figure: "contour_upd_buoyancy", Updraft: true},
	{Label: "updr w [m/s]", ModelKey: "updraft_w", RefKey: "updraft_w", Figure: "contour_upd_w", Updraft: true},
	{Label: "updr qt [g/kg]", ModelKey: "updraft_qt", RefKey: "updraft_qt", Figure: "contour_upd_qt", Updraft: true},
	{Label: "updr ql [g/kg]", ModelKey: "updraft_ql", RefKey: "updraft_ql", Figure: "contour_upd_ql", Updraft: true},
	{Label: "updr qr [g/kg]", ModelKey: "updraft_qr", RefKey: "updraft_qr", Figure: "contour_upd_qr", Updraft: true},
	{Label: "massflux_h [kg*K/ms^2]", ModelKey: "massflux_h", RefKey: "massflux_h", Figure: "contour_massflux_h"},
	{Label: "diffusive_flux_h [kg*K/ms^2]", ModelKey: "diffusive_flux_h", RefKey: "diffusive_flux_h", Figure: "contour_diffusive_flux_h"},
	{Label: "total_flux_h [kg*K/ms^2]", ModelKey: "total_flux_h", RefKey: "total_flux_h", Figure: "contour_total_flux_h"},
	{Label: "massflux_qt [g/ms^2]", ModelKey: "massflux_qt", RefKey: "massflux_qt", Figure: "contour_massflux_qt"},
	{Label: "diffusive_flux_qt [g/ms^2]", ModelKey: "diffusive_flux_qt", RefKey: "diffusive_flux_qt", Figure: "contour_diffusive_flux_qt"},
	{Label: "total_flux_qt [g/ms^2]", ModelKey: "total_flux_qt", RefKey: "total_flux_qt", Figure: "contour_total_flux_qt"},
}

// timeHeight is a levels x samples field laid out as a grid with time [h]
// along x and height [km] along y.
type timeHeight struct {
	t, z []float64
	m    mat.Matrix
}

func (g timeHeight) Dims() (c, r int)   { return len(g.t), len(g.z) }
func (g timeHeight) Z(c, r int) float64 { return g.m.At(r, c) }
func (g timeHeight) X(c int) float64    { return g.t[c] }
func (g timeHeight) Y(r int) float64    { return g.z[r] }

// valueRange returns the finite extremes of m, widened when they coincide.
func valueRange(m mat.Matrix) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	switch {
	case lo > hi:
		return 0, 1
	case lo == hi:
		return lo - 0.5, hi + 0.5
	}
	return lo, hi
}

// contourField returns the field drawn for key, masked outside the updraft
// when spec asks for it. fillFirst copies the second sample into the first.
func contourField(v *analysis.View, key string, spec ContourSpec, fillFirst bool) (mat.Matrix, error) {
	m, err := v.Profile(key)
	if err != nil {
		return nil, err
	}
	if spec.Updraft {
		area, err := v.UpdraftArea()
		if err != nil {
			return nil, err
		}
		if m, err = analysis.MaskUpdraft(m, area); err != nil {
			return nil, err
		}
	}
	if fillFirst {
		d := mat.DenseCopyOf(m)
		if r, c := d.Dims(); c > 1 {
			for i := 0; i < r; i++ {
				d.Set(i, 0, d.At(i, 1))
			}
		}
		m = d
	}
	return m, nil
}

// heatmapPanel is a heatmap plot with a vertical color bar to its right.
type heatmapPanel struct {
	plot, bar *plot.Plot
}

// colorBarWidth is the width of the color bar beside each heatmap.
const colorBarWidth = 2 * vg.Centimeter

func (h heatmapPanel) Draw(dc draw.Canvas) {
	w := dc.Max.X - dc.Min.X
	barW := colorBarWidth
	if barW > w/4 {
		barW = w / 4
	}
	h.plot.Draw(draw.Crop(dc, 0, -barW, 0, 0))
	h.bar.Draw(draw.Crop(dc, w-barW, 0, 0, 0))
}

// newHeatmapPanel draws m of v as a time-height heatmap titled title.
func newHeatmapPanel(v *analysis.View, m mat.Matrix, title string) (heatmapPanel, error) {
	z := v.Z()
	hours := v.T()
	for i := range hours {
		hours[i] *= v.TimeUnit() / 3600
	}
	if r, c := m.Dims(); r != len(z) || c != len(hours) {
		return heatmapPanel{}, &analysis.ShapeError{Name: title, Rows: r, Cols: c, WantRows: len(z), WantCols: len(hours)}
	}
	if len(z) < 2 || len(hours) < 2 {
		return heatmapPanel{}, fmt.Errorf("report: %s needs at least 2 levels and 2 samples, have %d x %d", title, len(z), len(hours))
	}

	lo, hi := valueRange(m)
	cm := moreland.SmoothBlueRed()
	cm.SetMax(hi)
	cm.SetMin(lo)

	hm := plotter.NewHeatMap(timeHeight{t: hours, z: z, m: m}, cm.Palette(255))
	hm.Min, hm.Max = lo, hi
	hm.NaN = nanColor

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "t [h]"
	p.Y.Label.Text = "z [km]"
	p.Add(hm)

	bar := plot.New()
	bar.Add(&plotter.ColorBar{ColorMap: cm, Vertical: true})
	bar.HideX()
	bar.Y.Padding = 0
	return heatmapPanel{plot: p, bar: bar}, nil
}

// PlotContours writes one figure per spec with the reference time-height
// field above the model's.
func PlotContours(model, ref *analysis.View, specs []ContourSpec, opts Options) ([]Figure, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	log := opts.logger()

	figs := make([]Figure, 0, len(specs))
	for _, spec := range specs {
		refField, err := contourField(ref, spec.RefKey, spec, false)
		if err != nil {
			return figs, fmt.Errorf("report: figure %s: %w", spec.Figure, err)
		}
		modelField, err := contourField(model, spec.ModelKey, spec, spec.FillFirst)
		if err != nil {
			return figs, fmt.Errorf("report: figure %s: %w", spec.Figure, err)
		}

		top, err := newHeatmapPanel(ref, refField, ref.Source().String()+" "+spec.Label)
		if err != nil {
			return figs, err
		}
		bottom, err := newHeatmapPanel(model, modelField, model.Source().String()+" "+spec.Label)
		if err != nil {
			return figs, err
		}

		path := opts.path(spec.Figure)
		if err := saveGrid([][]drawer{{top}, {bottom}}, opts.Width, opts.Height+opts.Height/3, path); err != nil {
			return figs, fmt.Errorf("report: saving %s: %w", path, err)
		}
		log.WithFields(logrus.Fields{"figure": spec.Figure, "path": path}).Info("wrote contour figure")
		figs = append(figs, Figure{Name: spec.Figure, Path: path, Caption: spec.Label + " over time and height"})
	}
	return figs, nil
}
