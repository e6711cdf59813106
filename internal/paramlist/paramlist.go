package paramlist

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
)

// Build returns the parameter tree for case c.
func Build(c Case) (Tree, error) {
	switch c {
	case Defaults, Soares, Bomex, LifeCycleTan2018, Rico, TRMMLBA, ARMSGP,
		GATEIII, DYCOMSRF01, GABLS, SP:
		// All registered cases currently run with the default closure coefficients.
		return defaults(), nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownCase, c)
	}
}

func defaults() Tree {
	return Tree{
		"turbulence": map[string]any{
			"prandtl_number": 1.0,
			"Ri_bulk_crit":   0.0,
			"EDMF_PrognosticTKE": map[string]any{
				"surface_area":         0.1,
				"surface_scalar_coeff": 0.3,
				"tke_ed_coeff":         0.25,
				"w_entr_coeff":         2.5, // b1
				"w_buoy_coeff":         2.0, // b2
				"tke_diss_coeff":       0.304,
			},
			"EDMF_BulkSteady": map[string]any{
				"surface_area":         0.1,
				"surface_scalar_coeff": 0.3,
				"w_entr_coeff":         2.0, // w_b
				"w_buoy_coeff":         1.0,
				"max_area_factor":      2.0,
			},
			"updraft_microphysics": map[string]any{
				"max_supersaturation": 0.1,
			},
		},
	}
}

// Keys returns the dotted paths of every leaf in t, sorted.
func Keys(t Tree) []string {
	var keys []string
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			if sub, ok := v.(map[string]any); ok {
				walk(prefix+k+".", sub)
				continue
			}
			keys = append(keys, prefix+k)
		}
	}
	walk("", t)
	sort.Strings(keys)
	return keys
}

// pyFloat marshals the way Python's json module writes floats, so integral
// values keep their ".0".
type pyFloat float64

func (f pyFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("paramlist: unsupported value %v", v)
	}
	abs := math.Abs(v)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return []byte(strconv.FormatFloat(v, 'e', -1, 64)), nil
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if v == math.Trunc(v) {
		s += ".0"
	}
	return []byte(s), nil
}

func toJSONValue(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return pyFloat(x), nil
	case Tree:
		return toJSONMap(x)
	case map[string]any:
		return toJSONMap(x)
	default:
		return nil, fmt.Errorf("paramlist: leaf of type %T is not numeric", v)
	}
}

func toJSONMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, v := range m {
		jv, err := toJSONValue(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = jv
	}
	return out, nil
}

// Marshal serializes t as key-sorted JSON indented by four spaces.
func Marshal(t Tree) ([]byte, error) {
	m, err := toJSONMap(t)
	if err != nil {
		return nil, err
	}
	return json.MarshalIndent(m, "", "    ")
}

// Unmarshal parses a parameter file back into a Tree.
func Unmarshal(b []byte) (Tree, error) {
	var t Tree
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("paramlist: %w", err)
	}
	return t, nil
}

// Write serializes t to path, replacing any existing file.
func Write(path string, t Tree) error {
	b, err := Marshal(t)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("paramlist: writing %s: %w", path, err)
	}
	return nil
}

// Read loads a parameter file written by Write.
func Read(path string) (Tree, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("paramlist: reading %s: %w", path, err)
	}
	return Unmarshal(b)
}
