// Package harness prepares the input files of a model test run and
// locates the statistics file the run produces. Steps talk to each other
// only through files on disk.
package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/user/scm_compare_go/internal/paramlist"
)

// OutputRoot is the output prefix the harness forces into every namelist.
const OutputRoot = "./Tests."

// Simulation describes a prepared test run.
type Simulation struct {
	Case      paramlist.Case
	Namelist  map[string]any
	Paramlist paramlist.Tree
	// StatsPath is where the model will write its statistics file,
	// relative to the run directory.
	StatsPath string
}

// NamelistFileName is the file the external namelist generator writes for c.
func NamelistFileName(c paramlist.Case) string {
	return c.String() + ".in"
}

// Setup rewrites the namelist of caseName found in dir so that output goes
// under OutputRoot with the case name as uuid, and writes the harness
// parameter file next to it.
func Setup(dir, caseName string, log logrus.FieldLogger) (*Simulation, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	c, err := paramlist.ParseCase(caseName)
	if err != nil {
		return nil, err
	}

	nlPath := filepath.Join(dir, NamelistFileName(c))
	namelist, err := readJSON(nlPath)
	if err != nil {
		return nil, err
	}
	section(namelist, "output")["output_root"] = OutputRoot
	section(namelist, "meta")["uuid"] = c.String()
	if err := writeJSON(nlPath, namelist); err != nil {
		return nil, err
	}

	tree, err := paramlist.Build(c)
	if err != nil {
		return nil, err
	}
	plPath := filepath.Join(dir, paramlist.HarnessFileName(c))
	if err := paramlist.Write(plPath, tree); err != nil {
		return nil, err
	}

	stats, err := StatsPath(namelist, c)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"case":      c.String(),
		"namelist":  nlPath,
		"paramlist": plPath,
		"stats":     stats,
	}).Info("prepared test run")

	return &Simulation{Case: c, Namelist: namelist, Paramlist: tree, StatsPath: stats}, nil
}

// StatsPath mirrors the model's own output naming:
// <output_root>Output.<simname>.<last five uuid characters>/stats/Stats.<case>.nc
func StatsPath(namelist map[string]any, c paramlist.Case) (string, error) {
	root, err := stringField(namelist, "output", "output_root")
	if err != nil {
		return "", err
	}
	simname, err := stringField(namelist, "meta", "simname")
	if err != nil {
		return "", err
	}
	uuid, err := stringField(namelist, "meta", "uuid")
	if err != nil {
		return "", err
	}
	outpath := root + "Output." + simname + "." + uuidSuffix(uuid)
	return outpath + "/stats/Stats." + c.String() + ".nc", nil
}

// uuidSuffix returns uuid[len-5:] with the model's slicing rules: a negative
// start counts from the end once and is then clamped to 0, so "Rico" gives
// "o" and "SP" gives "SP".
func uuidSuffix(uuid string) string {
	start := len(uuid) - 5
	if start < 0 {
		start += len(uuid)
	}
	if start < 0 {
		start = 0
	}
	return uuid[start:]
}

// Clean removes the run output directories and generated .in files from dir.
// It returns the removed paths.
func Clean(dir string, log logrus.FieldLogger) ([]string, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	var removed []string
	for _, pattern := range []string{"Tests.Output.*", "*.in"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			return removed, err
		}
		for _, m := range matches {
			if err := os.RemoveAll(m); err != nil {
				return removed, fmt.Errorf("harness: removing %s: %w", m, err)
			}
			log.WithField("path", m).Debug("removed")
			removed = append(removed, m)
		}
	}
	sort.Strings(removed)
	return removed, nil
}

func section(m map[string]any, name string) map[string]any {
	if s, ok := m[name].(map[string]any); ok {
		return s
	}
	s := make(map[string]any)
	m[name] = s
	return s
}

func stringField(m map[string]any, sec, key string) (string, error) {
	s, ok := m[sec].(map[string]any)
	if !ok {
		return "", fmt.Errorf("harness: namelist has no %q section", sec)
	}
	switch v := s[key].(type) {
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	default:
		return "", fmt.Errorf("harness: namelist %s.%s is %T, want string", sec, key, s[key])
	}
}

// readJSON keeps numbers as their literal text so rewriting a namelist does
// not turn 1.0 into 1.
func readJSON(path string) (map[string]any, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("harness: reading namelist: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("harness: parsing %s: %w", path, err)
	}
	return m, nil
}

func writeJSON(path string, m map[string]any) error {
	b, err := json.MarshalIndent(m, "", "    ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("harness: writing %s: %w", path, err)
	}
	return nil
}
