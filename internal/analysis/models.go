package analysis

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrEmptySelection is wrapped by EmptySelectionError.
	ErrEmptySelection = errors.New("empty time-window selection")
	// ErrUnknownVariable is returned for profile names a View does not hold.
	ErrUnknownVariable = errors.New("unknown variable")
)

// Window is a time window in hours. End == -1 means through the final sample.
type Window struct {
	Start float64
	End   float64
}

// FullWindow selects every sample after time zero.
var FullWindow = Window{Start: 0, End: -1}

func (w Window) String() string {
	if w.End == -1 {
		return fmt.Sprintf("%g h to end", w.Start)
	}
	return fmt.Sprintf("%g h to %g h", w.Start, w.End)
}

// Range is an inclusive range of sample indices.
type Range struct {
	First, Last int
}

// Len returns the number of samples in r.
func (r Range) Len() int { return r.Last - r.First + 1 }

// EmptySelectionError reports a window that selects no samples.
type EmptySelectionError struct {
	Window Window
	// TMin and TMax are the time bounds of the data, in hours.
	TMin, TMax float64
}

func (e *EmptySelectionError) Error() string {
	return fmt.Sprintf("analysis: window [%g, %g] h selects no samples in data spanning [%g, %g] h",
		e.Window.Start, e.Window.End, e.TMin, e.TMax)
}

func (e *EmptySelectionError) Unwrap() error { return ErrEmptySelection }

// ShapeError reports matrices whose dimensions disagree.
type ShapeError struct {
	Name               string
	Rows, Cols         int
	WantRows, WantCols int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("analysis: %s is %d x %d, want %d x %d", e.Name, e.Rows, e.Cols, e.WantRows, e.WantCols)
}

// Curve is a time-averaged profile against its own vertical coordinate.
type Curve struct {
	Key    string
	Z      []float64 // km
	Values []float64
	Range  Range
}

// ProfileComparison holds the model and reference curves of one variable.
type ProfileComparison struct {
	Label     string
	Model     Curve
	Reference Curve
}

// Discrepancy summarizes how far a model curve is from its reference.
type Discrepancy struct {
	Label  string
	Levels int     // model levels inside the reference height range
	Bias   float64 // mean of model - reference
	RMS    float64
	MaxAbs float64
}

// NewDiscrepancy returns a Discrepancy with NaN statistics.
func NewDiscrepancy(label string) Discrepancy {
	return Discrepancy{Label: label, Bias: math.NaN(), RMS: math.NaN(), MaxAbs: math.NaN()}
}
