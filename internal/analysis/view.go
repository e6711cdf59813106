package analysis

import (
	"fmt"
	"math"

	"github.com/user/scm_compare_go/internal/parser"
	"gonum.org/v1/gonum/mat"
)

// vaporProfiles are derived as total water minus liquid water.
var vaporProfiles = []struct {
	name, qt, ql string
}{
	{"qv_mean", "qt_mean", "ql_mean"},
	{"env_qv", "env_qt", "env_ql"},
	{"updraft_qv", "updraft_qt", "updraft_ql"},
}

// UpdraftAreaKey is the updraft area fraction profile of each source.
func UpdraftAreaKey(src parser.Source) string {
	if src == parser.Reference {
		return "updraft_fraction"
	}
	return "updraft_area"
}

// View is a read-only view of a Table extended with derived profiles.
// The Table is not modified.
type View struct {
	table   *parser.Table
	derived map[string]*mat.Dense
}

// NewView derives the vapor profiles of t, and for LES the non-hydrostatic
// pressure term, from whichever inputs t holds.
func NewView(t *parser.Table) (*View, error) {
	if t == nil {
		return nil, fmt.Errorf("analysis: nil table")
	}
	v := &View{table: t, derived: make(map[string]*mat.Dense)}

	for _, p := range vaporProfiles {
		qt, ok1 := t.Profiles[p.qt]
		ql, ok2 := t.Profiles[p.ql]
		if !ok1 || !ok2 {
			continue
		}
		if err := sameShape(p.ql, ql, qt); err != nil {
			return nil, err
		}
		var qv mat.Dense
		qv.Sub(qt, ql)
		v.derived[p.name] = &qv
	}

	if t.Source == parser.Reference {
		if _, stored := t.Profiles["nh_pressure"]; !stored {
			frac, ok1 := t.Profiles["updraft_fraction"]
			dpdz, ok2 := t.Profiles["updraft_ddz_p_alpha"]
			if ok1 && ok2 {
				if err := sameShape("updraft_ddz_p_alpha", dpdz, frac); err != nil {
					return nil, err
				}
				var nh mat.Dense
				nh.MulElem(frac, dpdz)
				nh.Scale(-1, &nh)
				v.derived["nh_pressure"] = &nh
			}
		}
	}
	return v, nil
}

func sameShape(name string, m, want mat.Matrix) error {
	r, c := m.Dims()
	wr, wc := want.Dims()
	if r != wr || c != wc {
		return &ShapeError{Name: name, Rows: r, Cols: c, WantRows: wr, WantCols: wc}
	}
	return nil
}

// Source returns the source of the underlying table.
func (v *View) Source() parser.Source { return v.table.Source }

// Z returns the level heights [km].
func (v *View) Z() []float64 { return append([]float64(nil), v.table.Z...) }

// T returns the sample times in units of TimeUnit seconds.
func (v *View) T() []float64 { return append([]float64(nil), v.table.T...) }

// TimeUnit returns the seconds per unit of T.
func (v *View) TimeUnit() float64 { return v.table.TimeUnit }

// Substituted lists the variables that were zero-filled on load.
func (v *View) Substituted() []string { return append([]string(nil), v.table.Substituted...) }

// Reference returns the time-independent per-level profile name, such as
// the reference density.
func (v *View) Reference(name string) ([]float64, bool) {
	r, ok := v.table.Reference[name]
	if !ok {
		return nil, false
	}
	return append([]float64(nil), r...), true
}

// Has reports whether name is a stored or derived profile.
func (v *View) Has(name string) bool {
	_, err := v.Profile(name)
	return err == nil
}

// Profile returns the levels x samples matrix of name.
func (v *View) Profile(name string) (mat.Matrix, error) {
	if m, ok := v.table.Profiles[name]; ok {
		return readOnly{m}, nil
	}
	if m, ok := v.derived[name]; ok {
		return readOnly{m}, nil
	}
	return nil, fmt.Errorf("%w: %s profile %q", ErrUnknownVariable, v.table.Source, name)
}

// UpdraftArea returns the updraft area fraction profile of the view's source.
func (v *View) UpdraftArea() (mat.Matrix, error) {
	return v.Profile(UpdraftAreaKey(v.Source()))
}

// readOnly hides the mutating methods of a Dense.
type readOnly struct{ m *mat.Dense }

func (r readOnly) Dims() (int, int)    { return r.m.Dims() }
func (r readOnly) At(i, j int) float64 { return r.m.At(i, j) }
func (r readOnly) T() mat.Matrix       { return mat.Transpose{Matrix: r} }

// MaskUpdraft copies field, setting entries to NaN where area is zero or NaN.
func MaskUpdraft(field, area mat.Matrix) (*mat.Dense, error) {
	if err := sameShape("updraft mask", area, field); err != nil {
		return nil, err
	}
	r, c := field.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			a := area.At(i, j)
			if a == 0 || math.IsNaN(a) {
				out.Set(i, j, math.NaN())
				continue
			}
			out.Set(i, j, field.At(i, j))
		}
	}
	return out, nil
}
