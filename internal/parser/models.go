package parser

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// ErrNotFound is returned by a Dataset for keys it does not hold.
var ErrNotFound = errors.New("variable not found")

// Source selects the key layout of a statistics file.
type Source int

const (
	// Model is the single-column model's own statistics output.
	Model Source = iota
	// Reference is the LES statistics output used for comparison.
	Reference
)

func (s Source) String() string {
	switch s {
	case Model:
		return "scm"
	case Reference:
		return "les"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// Variable is a raw numeric array read from a dataset, stored row-major.
type Variable struct {
	Name  string
	Shape []int
	Data  []float64
}

// Dataset is a read-only store of named arrays addressed by hierarchical
// keys such as "profiles/qt_mean".
type Dataset interface {
	Variable(key string) (*Variable, error)
}

// MapDataset is an in-memory Dataset.
type MapDataset map[string]*Variable

// Variable implements Dataset.
func (m MapDataset) Variable(key string) (*Variable, error) {
	v, ok := m[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return v, nil
}

// UnitRule is the conversion applied to a variable while it is normalized.
type UnitRule int

const (
	// Raw leaves values unchanged.
	Raw UnitRule = iota
	// GramsPerKilogram converts a mixing ratio from kg/kg to g/kg.
	GramsPerKilogram
	// ThirdMomentHumidity converts a humidity third moment from kg^3/kg^3 to g^3/kg^3.
	ThirdMomentHumidity
)

// Factor returns the multiplier the rule applies.
func (r UnitRule) Factor() float64 {
	switch r {
	case GramsPerKilogram:
		return 1000
	case ThirdMomentHumidity:
		return 1e9
	default:
		return 1
	}
}

// Table is a Normalized Series Table of vertical profiles.
type Table struct {
	Source Source
	// Z is the height of each level [km].
	Z []float64
	// T is the time of each sample, in units of TimeUnit seconds.
	T        []float64
	TimeUnit float64
	// Profiles holds one levels x samples matrix per variable.
	Profiles map[string]*mat.Dense
	// Reference holds time-independent per-level profiles such as density.
	Reference map[string][]float64
	// Substituted lists the requested variables that were absent from the
	// dataset and were replaced by zeros.
	Substituted []string
}

// Timeseries is a table of scalar series in raw units.
type Timeseries struct {
	Source Source
	// Z is the height of each level [m].
	Z []float64
	// T is the time of each sample [s].
	T           []float64
	TimeUnit    float64
	Series      map[string][]float64
	Substituted []string
}

// Options control how a dataset is normalized.
type Options struct {
	// Strict turns a missing variable into an error instead of a zero-filled
	// substitute.
	Strict bool
	Log    logrus.FieldLogger
}

func (o Options) logger() logrus.FieldLogger {
	if o.Log == nil {
		return logrus.StandardLogger()
	}
	return o.Log
}

// MissingVariableError reports a variable absent from a dataset in strict mode.
type MissingVariableError struct {
	Source   Source
	Variable string
	Key      string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("parser: %s variable %s (key %s) not in dataset", e.Source, e.Variable, e.Key)
}

func (e *MissingVariableError) Unwrap() error { return ErrNotFound }
