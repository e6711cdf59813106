package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/ctessum/cdf"
)

// CDFFile is a Dataset backed by a netCDF classic file.
//
// Classic files have no groups, so a hierarchical key like
// "profiles/qt_mean" is looked up verbatim first and then with the group
// separator flattened to an underscore ("profiles_qt_mean").
type CDFFile struct {
	f    *os.File
	ff   *cdf.File
	size int64
}

// OpenCDF opens a netCDF file for reading.
func OpenCDF(path string) (*CDFFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("parser: opening netcdf file: %w", err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("parser: opening netcdf file: %w", err)
	}
	ff, err := cdf.Open(readOnly{f})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("parser: reading netcdf header of %s: %w", path, err)
	}
	return &CDFFile{f: f, ff: ff, size: fi.Size()}, nil
}

// Close releases the underlying file.
func (c *CDFFile) Close() error { return c.f.Close() }

// Variables lists the variable names stored in the file.
func (c *CDFFile) Variables() []string { return c.ff.Header.Variables() }

func (c *CDFFile) resolve(key string) (string, bool) {
	if c.ff.Header.Lengths(key) != nil {
		return key, true
	}
	flat := strings.Replace(key, "/", "_", -1)
	if c.ff.Header.Lengths(flat) != nil {
		return flat, true
	}
	return "", false
}

// Variable implements Dataset. Values of any numeric type are widened to float64.
func (c *CDFFile) Variable(key string) (*Variable, error) {
	name, ok := c.resolve(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	shape := append([]int(nil), c.ff.Header.Lengths(name)...)

	var begin, end []int
	if c.ff.Header.IsRecordVariable(name) {
		shape[0] = int(c.ff.Header.NumRecs(c.size))
		if shape[0] == 0 {
			return &Variable{Name: key, Shape: shape}, nil
		}
		begin = make([]int, len(shape))
		end = make([]int, len(shape))
		for i, n := range shape {
			end[i] = n - 1
		}
	}
	n := 1
	for _, d := range shape {
		n *= d
	}

	r := c.ff.Reader(name, begin, end)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("parser: read netcdf variable %s: %w", name, err)
	}
	data := make([]float64, n)
	switch b := buf.(type) {
	case []float64:
		copy(data, b)
	case []float32:
		for i, v := range b {
			data[i] = float64(v)
		}
	case []int32:
		for i, v := range b {
			data[i] = float64(v)
		}
	case []int16:
		for i, v := range b {
			data[i] = float64(v)
		}
	case []uint8:
		for i, v := range b {
			data[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("parser: netcdf variable %s has unsupported type %T", name, buf)
	}
	return &Variable{Name: key, Shape: shape, Data: data}, nil
}

// readOnly satisfies cdf.ReaderWriterAt for files opened read-only.
type readOnly struct{ *os.File }

func (readOnly) WriteAt([]byte, int64) (int, error) {
	return 0, fmt.Errorf("parser: netcdf dataset is read-only")
}
