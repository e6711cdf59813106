package parser

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
)

// ModelTimeseriesVars are the scalar series read from model output.
var ModelTimeseriesVars = []string{
	"cloud_cover_mean", "cloud_base_mean", "cloud_top_mean",
	"ustar", "lwp_mean", "rwp_mean", "shf", "lhf", "Tsurface", "rd",
}

// referenceSeries maps table names to LES keys.
var referenceSeries = []struct {
	name, key string
}{
	{"cloud_cover_mean", "timeseries/cloud_fraction_mean"},
	{"cloud_top_mean", "timeseries/cloud_top_mean"},
	{"cloud_base_mean", "timeseries/cloud_base_mean"},
	{"ustar", "timeseries/friction_velocity_mean"},
	{"shf", "timeseries/shf_surface_mean"},
	{"lhf", "timeseries/lhf_surface_mean"},
	{"lwp_mean", "timeseries/lwp_mean"},
}

// ReadTimeseries reads the scalar series of ds in raw units. Cloud top and
// cloud base are filtered with FilterCloudTop and FilterCloudBase.
func ReadTimeseries(ds Dataset, src Source, opts Options) (*Timeseries, error) {
	lay, ok := layouts[src]
	if !ok {
		return nil, fmt.Errorf("parser: unknown source %v", src)
	}
	log := opts.logger().WithField("source", src.String())

	z, err := readVector(ds, lay.z)
	if err != nil {
		return nil, fmt.Errorf("parser: reading %s heights: %w", src, err)
	}
	t, err := readVector(ds, lay.t)
	if err != nil {
		return nil, fmt.Errorf("parser: reading %s times: %w", src, err)
	}
	if len(z) == 0 {
		return nil, fmt.Errorf("parser: %s dataset has no levels", src)
	}

	ts := &Timeseries{
		Source:   src,
		Z:        z,
		T:        t,
		TimeUnit: 1,
		Series:   make(map[string][]float64),
	}

	read := func(name, key string) error {
		v, err := ds.Variable(key)
		switch {
		case errors.Is(err, ErrNotFound):
			if opts.Strict {
				return &MissingVariableError{Source: src, Variable: name, Key: key}
			}
			log.WithFields(logrus.Fields{"variable": name, "key": key}).Warn("series missing from dataset; substituting zeros")
			ts.Series[name] = make([]float64, len(t))
			ts.Substituted = append(ts.Substituted, name)
			return nil
		case err != nil:
			return fmt.Errorf("parser: reading %s: %w", key, err)
		}
		if len(v.Data) != len(t) {
			return fmt.Errorf("parser: %s has %d samples, want %d", key, len(v.Data), len(t))
		}
		ts.Series[name] = append([]float64(nil), v.Data...)
		return nil
	}

	switch src {
	case Model:
		for _, name := range ModelTimeseriesVars {
			if err := read(name, "timeseries/"+name); err != nil {
				return nil, err
			}
		}
	case Reference:
		for _, s := range referenceSeries {
			if err := read(s.name, s.key); err != nil {
				return nil, err
			}
		}
		FilterCloudTop(ts.Series["cloud_cover_mean"])
		// The LES statistics carry no rain water path.
		ts.Series["rwp_mean"] = make([]float64, len(t))
	}

	FilterCloudTop(ts.Series["cloud_top_mean"])
	FilterCloudBase(ts.Series["cloud_base_mean"], floats.Max(z))
	return ts, nil
}

// FilterCloudTop replaces non-positive values, which mark samples without
// cloud, with NaN in place.
func FilterCloudTop(vals []float64) {
	for i, v := range vals {
		if v <= 0 {
			vals[i] = math.NaN()
		}
	}
}

// FilterCloudBase replaces values at or above the domain top maxz with NaN
// in place.
func FilterCloudBase(vals []float64, maxz float64) {
	for i, v := range vals {
		if v >= maxz {
			vals[i] = math.NaN()
		}
	}
}
