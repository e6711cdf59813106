package report

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/sirupsen/logrus"
	"github.com/user/scm_compare_go/internal/analysis"
	"github.com/user/scm_compare_go/internal/parser"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot/vg"
)

// errNoWeight marks a curve whose reference-state weight is not loaded.
var errNoWeight = errors.New("reference profile unavailable")

var (
	dotted = []vg.Length{vg.Points(2), vg.Points(3)}
	dashed = []vg.Length{vg.Points(6), vg.Points(4)}
)

func les(key, label string, dashes []vg.Length) SheetCurve {
	return SheetCurve{Source: parser.Reference, Key: key, Label: label, Color: gray, Width: vg.Points(4), Dashes: dashes}
}

func scm(key, label string, c color.Color) SheetCurve {
	return SheetCurve{Source: parser.Model, Key: key, Label: label, Color: c, Width: vg.Points(2)}
}

// draftPanel compares updraft, environment and domain-mean profiles of one quantity.
func draftPanel(xLabel, upd, env, mean string) Panel {
	p := Panel{XLabel: xLabel, Curves: []SheetCurve{
		les(upd, "les upd", dotted),
		scm(upd, "upd", royalBlue),
	}}
	if env != "" {
		p.Curves = append(p.Curves, les(env, "les env", dashed), scm(env, "env", darkRed))
	}
	if mean != "" {
		p.Curves = append(p.Curves, les(mean, "les mean", nil), scm(mean, "mean", purple))
	}
	return p
}

// pairPanel compares one model profile with one reference profile.
func pairPanel(xLabel, modelKey, refKey string) Panel {
	return Panel{XLabel: xLabel, Curves: []SheetCurve{les(refKey, "les", nil), scm(modelKey, "scm", royalBlue)}}
}

// modelPanel shows model profiles only.
func modelPanel(xLabel string, curves ...SheetCurve) Panel {
	return Panel{XLabel: xLabel, Curves: curves}
}

// Built-in sheets.
var (
	DraftsSheet = Sheet{
		Name: "Drafts", Title: "updraft and environment", Rows: 2, Cols: 3,
		Panels: []Panel{
			withLegend(draftPanel("qv [g/kg]", "updraft_qv", "env_qv", "qv_mean")),
			draftPanel("ql [g/kg]", "updraft_ql", "env_ql", "ql_mean"),
			draftPanel("qr [g/kg]", "updraft_qr", "env_qr", "qr_mean"),
			draftPanel("w [m/s]", "updraft_w", "env_w", ""),
			draftPanel("updraft buoyancy [m/s2]", "updraft_buoyancy", "", ""),
			{XLabel: "updraft area [%]", Curves: []SheetCurve{
				scaled(les("updraft_fraction", "les upd", dotted), 100),
				scaled(scm("updraft_area", "upd", royalBlue), 100),
			}},
		},
	}

	ClosuresSheet = Sheet{
		Name: "Closures", Title: "closures", Rows: 2, Cols: 3,
		Panels: []Panel{
			modelPanel("eddy diffusivity [m2/s]", scm("eddy_diffusivity", "", royalBlue)),
			modelPanel("mixing length ratio [-]", scm("mixing_length_ratio", "", royalBlue)),
			modelPanel("mixing length [m]", scm("mixing_length", "", royalBlue)),
			{XLabel: "nonhydro pressure", Curves: []SheetCurve{
				weighted(les("nh_pressure", "les", nil), "rho"),
				scm("nh_pressure", "scm", royalBlue),
			}},
			modelPanel("turbulent entrainment [1/m]", scm("turbulent_entrainment", "", royalBlue)),
			withLegend(modelPanel("entr/detr [1/m]",
				scm("entrainment_sc", "entr", royalBlue),
				scm("detrainment_sc", "detr", darkOrange),
			)),
		},
	}

	VelocitiesSheet = Sheet{
		Name: "Velocities", Title: "horizontal velocities", Rows: 1, Cols: 2,
		Panels: []Panel{
			withLegend(pairPanel("u [m/s]", "u_mean", "u_translational_mean")),
			pairPanel("v [m/s]", "v_mean", "v_translational_mean"),
		},
	}

	MainSheet = Sheet{
		Name: "Main", Title: "main profiles", Rows: 2, Cols: 3,
		Panels: []Panel{
			withLegend(pairPanel("qt mean [g/kg]", "qt_mean", "qt_mean")),
			pairPanel("ql mean [g/kg]", "ql_mean", "ql_mean"),
			pairPanel("thetal mean [K]", "thetal_mean", "thetali_mean"),
			pairPanel("updraft w [m/s]", "updraft_w", "updraft_w"),
			pairPanel("updraft area [-]", "updraft_area", "updraft_fraction"),
			withLegend(modelPanel("entr detr [1/m]",
				scm("entrainment_sc", "d. entr", royalBlue),
				scm("detrainment_sc", "d. detr", darkOrange),
				dashedCurve(plus(scm("entrainment_sc", "tot entr", royalBlue), "turbulent_entrainment")),
				dashedCurve(plus(scm("detrainment_sc", "tot detr", darkOrange), "turbulent_entrainment")),
			)),
		},
	}

	TKEComponentsSheet = Sheet{
		Name: "TKEComponents", Title: "TKE budget terms", Rows: 2, Cols: 3,
		Panels: []Panel{
			withLegend(pairPanel("tke advection", "tke_advection", "tke_prod_A")),
			pairPanel("tke buoyancy", "tke_buoy", "tke_prod_B"),
			pairPanel("tke dissipation", "tke_dissipation", "tke_prod_D"),
			pairPanel("tke pressure", "tke_pressure", "tke_prod_P"),
			pairPanel("tke transport", "tke_transport", "tke_prod_T"),
			pairPanel("tke shear", "tke_shear", "tke_prod_S"),
		},
	}

	TKEBreakdownSheet = Sheet{
		Name: "TKEBreakdown", Title: "TKE budget breakdown", Rows: 1, Cols: 2,
		Panels: []Panel{
			withLegend(modelPanel("tke components scm",
				scm("tke_advection", "tke_advection", royalBlue),
				scm("tke_buoy", "tke_buoy", darkOrange),
				scm("tke_dissipation", "tke_dissipation", color.Black),
				scm("tke_pressure", "tke_pressure", darkGreen),
				scm("tke_transport", "tke_transport", red),
				scm("tke_shear", "tke_shear", purple),
			)),
			withLegend(modelPanel("tke components les",
				recolor(les("tke_prod_A", "tke_A", nil), royalBlue),
				recolor(les("tke_prod_B", "tke_B", nil), darkOrange),
				recolor(les("tke_prod_D", "tke_D", nil), color.Black),
				recolor(les("tke_prod_P", "tke_P", nil), darkGreen),
				recolor(les("tke_prod_T", "tke_T", nil), red),
				recolor(les("tke_prod_S", "tke_S", nil), purple),
			)),
		},
	}

	VarCovarMeanSheet = Sheet{
		Name: "VarCovarMean", Title: "variances and covariance", Rows: 1, Cols: 3,
		Panels: []Panel{
			withLegend(varCovarPanel("Hvar")),
			varCovarPanel("QTvar"),
			varCovarPanel("HQTcov"),
		},
	}

	VarCovarComponentsSheet = Sheet{
		Name: "VarCovarComponents", Title: "variance budget terms", Rows: 1, Cols: 3,
		Panels: []Panel{
			withLegend(varCovarComponents("Hvar")),
			varCovarComponents("QTvar"),
			varCovarComponents("HQTcov"),
		},
	}
)

// Sheets lists the built-in sheets in the order they are drawn.
var Sheets = []Sheet{
	DraftsSheet, ClosuresSheet, VelocitiesSheet, MainSheet,
	TKEComponentsSheet, TKEBreakdownSheet, VarCovarMeanSheet, VarCovarComponentsSheet,
}

func varCovarPanel(v string) Panel {
	return Panel{XLabel: v, Curves: []SheetCurve{
		les("env_"+v, "les", nil),
		scm(v+"_mean", v+"_mean", crimson),
		scm("env_"+v, "env_"+v, forestGreen),
	}}
}

func varCovarComponents(v string) Panel {
	return modelPanel(v,
		scm(v+"_dissipation", "dissipation", darkGreen),
		scm(v+"_entr_gain", "entr gain", purple),
		dashedCurve(scm(v+"_detr_loss", "detr loss", purple)),
		scm(v+"_shear", "shear", darkOrange),
		scm(v+"_rain", "rain", royalBlue),
	)
}

func withLegend(p Panel) Panel { p.Legend = true; return p }

func scaled(c SheetCurve, s float64) SheetCurve { c.Scale = s; return c }

func weighted(c SheetCurve, ref string) SheetCurve { c.Weight = ref; return c }

func plus(c SheetCurve, key string) SheetCurve { c.Plus = key; return c }

func dashedCurve(c SheetCurve) SheetCurve { c.Dashes = dashed; return c }

func recolor(c SheetCurve, col color.Color) SheetCurve { c.Color = col; c.Width = vg.Points(2); return c }

func sum(a, b mat.Matrix) (mat.Matrix, error) {
	ar, ac := a.Dims()
	br, bc := b.Dims()
	if ar != br || ac != bc {
		return nil, &analysis.ShapeError{Name: "sum", Rows: br, Cols: bc, WantRows: ar, WantCols: ac}
	}
	var s mat.Dense
	s.Add(a, b)
	return &s, nil
}

// sheetValues averages the profile of c over w in its source's view.
func sheetValues(v *analysis.View, c SheetCurve, w analysis.Window) ([]float64, error) {
	m, err := v.Profile(c.Key)
	if err != nil {
		return nil, err
	}
	if c.Plus != "" {
		extra, err := v.Profile(c.Plus)
		if err != nil {
			return nil, err
		}
		m, err = sum(m, extra)
		if err != nil {
			return nil, err
		}
	}
	r, err := analysis.ResolveWindow(v.T(), v.TimeUnit(), w)
	if err != nil {
		return nil, err
	}
	vals, err := analysis.TimeMean(m, r)
	if err != nil {
		return nil, err
	}

	scale := c.Scale
	if scale == 0 {
		scale = 1
	}
	var weight []float64
	if c.Weight != "" {
		var ok bool
		if weight, ok = v.Reference(c.Weight); !ok || len(weight) != len(vals) {
			return nil, fmt.Errorf("%w: %s %q for %d levels", errNoWeight, v.Source(), c.Weight, len(vals))
		}
	}
	for i := range vals {
		vals[i] *= scale
		if weight != nil {
			vals[i] *= weight[i]
		}
	}
	return vals, nil
}

// PlotSheet draws sheet into one file, averaging every curve over w.
func PlotSheet(model, ref *analysis.View, sheet Sheet, w analysis.Window, opts Options) (Figure, error) {
	if err := opts.validate(); err != nil {
		return Figure{}, err
	}
	if sheet.Rows*sheet.Cols < len(sheet.Panels) {
		return Figure{}, fmt.Errorf("report: sheet %s has %d panels for a %d x %d grid", sheet.Name, len(sheet.Panels), sheet.Rows, sheet.Cols)
	}

	z := model.Z()
	plots := make([][]drawer, sheet.Rows)
	for i := range plots {
		plots[i] = make([]drawer, sheet.Cols)
	}
	for n, panel := range sheet.Panels {
		p := newProfilePlot(panel.XLabel, z)
		for _, c := range panel.Curves {
			v := model
			if c.Source == parser.Reference {
				v = ref
			}
			vals, err := sheetValues(v, c, w)
			if errors.Is(err, errNoWeight) {
				opts.logger().WithFields(logrus.Fields{"figure": sheet.Name, "variable": c.Key}).Warnf("skipping curve: %v", err)
				continue
			}
			if err != nil {
				return Figure{}, fmt.Errorf("report: sheet %s panel %q: %w", sheet.Name, panel.XLabel, err)
			}
			label := c.Label
			if !panel.Legend {
				label = ""
			}
			if err := addLine(p, profileXYs(vals, v.Z()), c.Color, c.Width, c.Dashes, label); err != nil {
				return Figure{}, err
			}
		}
		plots[n/sheet.Cols][n%sheet.Cols] = p
	}

	path := opts.path(sheet.Name)
	width := vg.Length(sheet.Cols) * opts.Width * 2 / 3
	height := vg.Length(sheet.Rows) * opts.Height * 2 / 3
	if err := saveGrid(plots, width, height, path); err != nil {
		return Figure{}, fmt.Errorf("report: saving %s: %w", path, err)
	}
	opts.logger().WithFields(logrus.Fields{"figure": sheet.Name, "path": path, "panels": len(sheet.Panels)}).Info("wrote sheet")
	return Figure{Name: sheet.Name, Path: path, Caption: fmt.Sprintf("%s, averaged %s", sheet.Title, w)}, nil
}

// PlotSheets draws each sheet in turn.
func PlotSheets(model, ref *analysis.View, sheets []Sheet, w analysis.Window, opts Options) ([]Figure, error) {
	figs := make([]Figure, 0, len(sheets))
	for _, s := range sheets {
		f, err := PlotSheet(model, ref, s, w, opts)
		if err != nil {
			return figs, err
		}
		figs = append(figs, f)
	}
	return figs, nil
}
