package analysis

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// finite returns the non-NaN values of data.
func finite(data []float64) []float64 {
	valid := make([]float64, 0, len(data))
	for _, v := range data {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	return valid
}

// nanMean is the mean of the non-NaN values, or NaN when there are none.
func nanMean(data []float64) float64 {
	valid := finite(data)
	if len(valid) == 0 {
		return math.NaN()
	}
	return stat.Mean(valid, nil)
}

// ResolveWindow converts w to inclusive sample indices of t. t is measured
// in units of timeUnit seconds and must be non-decreasing.
//
// The first sample is the first one later than w.Start. The last sample is
// the final one when w.End is -1, and otherwise the last one not later than
// w.End.
func ResolveWindow(t []float64, timeUnit float64, w Window) (Range, error) {
	if timeUnit <= 0 {
		return Range{}, fmt.Errorf("analysis: invalid time unit %g s", timeUnit)
	}
	scale := 3600 / timeUnit
	empty := func() error {
		e := &EmptySelectionError{Window: w, TMin: math.NaN(), TMax: math.NaN()}
		if len(t) > 0 {
			e.TMin = t[0] / scale
			e.TMax = t[len(t)-1] / scale
		}
		return e
	}
	if len(t) == 0 {
		return Range{}, empty()
	}

	tmin := w.Start * scale
	first := -1
	for i, v := range t {
		if v > tmin {
			first = i
			break
		}
	}

	last := -1
	if w.End == -1 {
		last = len(t) - 1
	} else {
		tmax := w.End * scale
		for i, v := range t {
			if v <= tmax {
				last = i
			}
		}
	}

	if first < 0 || last < 0 || last < first {
		return Range{}, empty()
	}
	return Range{First: first, Last: last}, nil
}

// TimeMean averages each row of m over the columns in r. NaN entries are
// excluded; a row with only NaN entries in r averages to NaN.
func TimeMean(m mat.Matrix, r Range) ([]float64, error) {
	rows, cols := m.Dims()
	if r.First < 0 || r.Last >= cols || r.First > r.Last {
		return nil, fmt.Errorf("analysis: range [%d, %d] outside %d samples", r.First, r.Last, cols)
	}
	out := make([]float64, rows)
	buf := make([]float64, r.Len())
	for i := 0; i < rows; i++ {
		for j := range buf {
			buf[j] = m.At(i, r.First+j)
		}
		out[i] = nanMean(buf)
	}
	return out, nil
}

func curve(v *View, key string, w Window) (Curve, error) {
	m, err := v.Profile(key)
	if err != nil {
		return Curve{}, err
	}
	r, err := ResolveWindow(v.T(), v.TimeUnit(), w)
	if err != nil {
		return Curve{}, fmt.Errorf("analysis: %s %s: %w", v.Source(), key, err)
	}
	vals, err := TimeMean(m, r)
	if err != nil {
		return Curve{}, err
	}
	z := v.Z()
	if len(vals) != len(z) {
		_, cols := m.Dims()
		return Curve{}, &ShapeError{Name: key, Rows: len(vals), Cols: cols, WantRows: len(z), WantCols: len(v.T())}
	}
	return Curve{Key: key, Z: z, Values: vals, Range: r}, nil
}

// Compare averages modelKey of model and refKey of ref over w. Each source
// resolves w against its own time coordinate and keeps its own heights.
func Compare(model, ref *View, label, modelKey, refKey string, w Window) (*ProfileComparison, error) {
	mc, err := curve(model, modelKey, w)
	if err != nil {
		return nil, err
	}
	rc, err := curve(ref, refKey, w)
	if err != nil {
		return nil, err
	}
	return &ProfileComparison{Label: label, Model: mc, Reference: rc}, nil
}

// Difference interpolates the reference curve onto the model heights that
// lie inside the reference height range and summarizes model - reference.
func Difference(c *ProfileComparison) Discrepancy {
	d := NewDiscrepancy(c.Label)

	var zs, vs []float64
	for i, z := range c.Reference.Z {
		if !math.IsNaN(c.Reference.Values[i]) {
			zs = append(zs, z)
			vs = append(vs, c.Reference.Values[i])
		}
	}
	if len(zs) < 2 {
		return d
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(zs, vs); err != nil {
		return d
	}

	var diffs []float64
	for i, z := range c.Model.Z {
		if z < zs[0] || z > zs[len(zs)-1] || math.IsNaN(c.Model.Values[i]) {
			continue
		}
		diffs = append(diffs, c.Model.Values[i]-pl.Predict(z))
	}
	if len(diffs) == 0 {
		return d
	}

	d.Levels = len(diffs)
	d.Bias = stat.Mean(diffs, nil)
	sq, maxAbs := 0.0, 0.0
	for _, v := range diffs {
		sq += v * v
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}
	d.RMS = math.Sqrt(sq / float64(len(diffs)))
	d.MaxAbs = maxAbs
	return d
}

// RankDiscrepancies returns the discrepancy of every comparison, largest RMS
// first. Comparisons without overlapping levels sort last.
func RankDiscrepancies(cs []*ProfileComparison) []Discrepancy {
	ranked := make([]Discrepancy, 0, len(cs))
	for _, c := range cs {
		ranked = append(ranked, Difference(c))
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].RMS, ranked[j].RMS
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		return a > b // Descending
	})
	return ranked
}
