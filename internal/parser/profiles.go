package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// FallbackVariable is always present in both statistics layouts. Its shape
// is used for the zero-filled stand-in of a missing variable.
const FallbackVariable = "w_mean"

// ModelProfileVars are the profile variables read from model output by default.
var ModelProfileVars = []string{
	"temperature_mean", "thetal_mean", "qt_mean", "ql_mean", "qr_mean",
	"buoyancy_mean", "b_mix", "u_mean", "v_mean", "tke_mean",
	"updraft_buoyancy", "updraft_area", "env_qt", "updraft_qt", "env_ql", "updraft_ql", "updraft_thetal",
	"env_qr", "updraft_qr", "env_RH", "updraft_RH", "updraft_w", "env_w", "env_thetal",
	"massflux_h", "diffusive_flux_h", "total_flux_h", "diffusive_flux_u", "diffusive_flux_v",
	"massflux_qt", "diffusive_flux_qt", "total_flux_qt", "turbulent_entrainment",
	"eddy_viscosity", "eddy_diffusivity", "mixing_length", "mixing_length_ratio",
	"entrainment_sc", "detrainment_sc", "massflux", "nh_pressure", "nh_pressure_b", "nh_pressure_adv", "nh_pressure_drag",
	"Hvar_mean", "QTvar_mean", "HQTcov_mean", "env_Hvar", "env_QTvar", "env_HQTcov",
	"Hvar_dissipation", "QTvar_dissipation", "HQTcov_dissipation",
	"Hvar_entr_gain", "QTvar_entr_gain", "HQTcov_entr_gain",
	"Hvar_detr_loss", "QTvar_detr_loss", "HQTcov_detr_loss",
	"Hvar_shear", "QTvar_shear", "HQTcov_shear", "H_third_m", "QT_third_m", "W_third_m",
	"Hvar_rain", "QTvar_rain", "HQTcov_rain", "tke_entr_gain", "tke_detr_loss",
	"tke_advection", "tke_buoy", "tke_dissipation", "tke_pressure", "tke_transport", "tke_shear",
}

// ReferenceProfileVars are the profile variables read from LES output by default.
var ReferenceProfileVars = []string{
	"temperature_mean", "thetali_mean", "qt_mean", "ql_mean", "buoyancy_mean",
	"u_mean", "v_mean", "tke_mean", "v_translational_mean", "u_translational_mean",
	"updraft_buoyancy", "updraft_fraction", "env_thetali", "updraft_thetali",
	"env_qt", "updraft_qt", "env_RH", "updraft_RH", "env_ql", "updraft_ql",
	"diffusive_flux_u", "diffusive_flux_v", "massflux", "massflux_u", "massflux_v", "total_flux_u", "total_flux_v",
	"qr_mean", "env_qr", "updraft_qr", "updraft_w", "env_w", "env_buoyancy", "updraft_ddz_p_alpha",
	"thetali_mean2", "qt_mean2", "env_thetali2", "env_qt2", "env_qt_thetali",
	"tke_prod_A", "tke_prod_B", "tke_prod_D", "tke_prod_P", "tke_prod_T", "tke_prod_S",
	"Hvar_mean", "QTvar_mean", "env_Hvar", "env_QTvar", "env_HQTcov", "H_third_m", "QT_third_m", "W_third_m",
	"massflux_h", "massflux_qt", "total_flux_h", "total_flux_qt", "diffusive_flux_h", "diffusive_flux_qt",
}

// unitRules lists every known variable that is not stored in raw units.
var unitRules = map[string]UnitRule{
	"qt_mean":           GramsPerKilogram,
	"ql_mean":           GramsPerKilogram,
	"qr_mean":           GramsPerKilogram,
	"env_qt":            GramsPerKilogram,
	"env_ql":            GramsPerKilogram,
	"env_qr":            GramsPerKilogram,
	"updraft_qt":        GramsPerKilogram,
	"updraft_ql":        GramsPerKilogram,
	"updraft_qr":        GramsPerKilogram,
	"massflux_qt":       GramsPerKilogram,
	"diffusive_flux_qt": GramsPerKilogram,
	"total_flux_qt":     GramsPerKilogram,
	"qt_mean2":          GramsPerKilogram,
	"env_qt2":           GramsPerKilogram,
	"env_qt_thetali":    GramsPerKilogram,
	"QT_third_m":        ThirdMomentHumidity,
}

// RuleFor returns the unit rule of a variable. Names missing from the
// metadata table are classified by their humidity marker.
func RuleFor(name string) UnitRule {
	if r, ok := unitRules[name]; ok {
		return r
	}
	return inferRule(name)
}

func inferRule(name string) UnitRule {
	switch {
	case strings.Contains(name, "QT_third_m"):
		return ThirdMomentHumidity
	case strings.Contains(name, "qt"), strings.Contains(name, "ql"), strings.Contains(name, "qr"):
		return GramsPerKilogram
	default:
		return Raw
	}
}

type layout struct {
	z, t      string
	profiles  string
	reference map[string]refSpec
}

type refSpec struct {
	key   string
	scale float64
}

var layouts = map[Source]layout{
	Model: {
		z:        "profiles/z_half",
		t:        "profiles/t",
		profiles: "profiles/",
		reference: map[string]refSpec{
			"rho_half": {key: "reference/rho0_half", scale: 1},
		},
	},
	Reference: {
		z:        "z_half",
		t:        "t",
		profiles: "profiles/",
		reference: map[string]refSpec{
			"rho": {key: "profiles/rho", scale: 1},
			"p0":  {key: "profiles/p0", scale: 1.0 / 100}, // Pa -> hPa
		},
	},
}

func readVector(ds Dataset, key string) ([]float64, error) {
	v, err := ds.Variable(key)
	if err != nil {
		return nil, err
	}
	if len(v.Shape) > 1 {
		return nil, fmt.Errorf("parser: %s has shape %v, want a vector", key, v.Shape)
	}
	return append([]float64(nil), v.Data...), nil
}

// ReadProfiles normalizes the requested profile variables of ds into a Table.
// Heights are converted to km and times to hours; humidity variables are
// scaled per RuleFor. Raw arrays are (time, level) and are stored transposed.
func ReadProfiles(ds Dataset, src Source, vars []string, opts Options) (*Table, error) {
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
	if len(z) == 0 || len(t) == 0 {
		return nil, fmt.Errorf("parser: %s dataset has %d levels and %d samples", src, len(z), len(t))
	}
	floats.Scale(1.0/1000, z)
	floats.Scale(1.0/3600, t)

	tab := &Table{
		Source:    src,
		Z:         z,
		T:         t,
		TimeUnit:  3600,
		Profiles:  make(map[string]*mat.Dense, len(vars)),
		Reference: make(map[string][]float64),
	}
	nz, nt := len(z), len(t)

	for name, rs := range lay.reference {
		v, err := readVector(ds, rs.key)
		if err != nil {
			log.WithFields(logrus.Fields{"variable": name, "key": rs.key}).Debugf("reference profile unavailable: %v", err)
			continue
		}
		floats.Scale(rs.scale, v)
		tab.Reference[name] = v
	}

	fallback := func() (*mat.Dense, error) {
		key := lay.profiles + FallbackVariable
		v, err := ds.Variable(key)
		if err != nil {
			return nil, fmt.Errorf("parser: reading fallback variable %s: %w", key, err)
		}
		if _, err := profileMatrix(v, nt, nz); err != nil {
			return nil, err
		}
		return mat.NewDense(nz, nt, nil), nil
	}

	for _, name := range vars {
		key := lay.profiles + name
		v, err := ds.Variable(key)
		switch {
		case errors.Is(err, ErrNotFound):
			if opts.Strict {
				return nil, &MissingVariableError{Source: src, Variable: name, Key: key}
			}
			zeros, ferr := fallback()
			if ferr != nil {
				return nil, ferr
			}
			log.WithFields(logrus.Fields{"variable": name, "key": key}).Warn("variable missing from dataset; substituting zeros")
			tab.Profiles[name] = zeros
			tab.Substituted = append(tab.Substituted, name)
			continue
		case err != nil:
			return nil, fmt.Errorf("parser: reading %s: %w", key, err)
		}

		m, err := profileMatrix(v, nt, nz)
		if err != nil {
			return nil, err
		}
		if f := RuleFor(name).Factor(); f != 1 {
			m.Scale(f, m)
		}
		tab.Profiles[name] = m
	}
	return tab, nil
}

// profileMatrix checks that v is (nt, nz) and returns it as a levels x samples matrix.
func profileMatrix(v *Variable, nt, nz int) (*mat.Dense, error) {
	if len(v.Shape) != 2 || v.Shape[0] != nt || v.Shape[1] != nz {
		return nil, fmt.Errorf("parser: %s has shape %v, want [%d %d] (time, level)", v.Name, v.Shape, nt, nz)
	}
	raw := mat.NewDense(nt, nz, append([]float64(nil), v.Data...))
	return mat.DenseCopyOf(raw.T()), nil
}
