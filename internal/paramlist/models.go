package paramlist

import (
	"errors"
	"fmt"
)

// FileName is the parameter file the model reads from its working directory.
const FileName = "paramlist.in"

// ErrUnknownCase is returned by ParseCase for names that are not registered.
var ErrUnknownCase = errors.New("not a valid case name")

// Tree is a nested parameter mapping. Groups are map[string]any, leaves are float64.
type Tree map[string]any

// Case identifies one of the registered simulation cases.
type Case int

const (
	Defaults Case = iota
	Soares
	Bomex
	LifeCycleTan2018
	Rico
	TRMMLBA
	ARMSGP
	GATEIII
	DYCOMSRF01
	GABLS
	SP
)

var caseNames = [...]string{
	Defaults:         "defaults",
	Soares:           "Soares",
	Bomex:            "Bomex",
	LifeCycleTan2018: "life_cycle_Tan2018",
	Rico:             "Rico",
	TRMMLBA:          "TRMM_LBA",
	ARMSGP:           "ARM_SGP",
	GATEIII:          "GATE_III",
	DYCOMSRF01:       "DYCOMS_RF01",
	GABLS:            "GABLS",
	SP:               "SP",
}

// String returns the case name as it is spelled on the command line.
func (c Case) String() string {
	if c < 0 || int(c) >= len(caseNames) {
		return fmt.Sprintf("Case(%d)", int(c))
	}
	return caseNames[c]
}

// Cases returns every registered case in declaration order.
func Cases() []Case {
	out := make([]Case, len(caseNames))
	for i := range caseNames {
		out[i] = Case(i)
	}
	return out
}

// ParseCase maps a case name onto its Case. Matching is exact.
func ParseCase(name string) (Case, error) {
	for i, n := range caseNames {
		if n == name {
			return Case(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCase, name)
}

// HarnessFileName is the per-case parameter file name used by the test harness.
func HarnessFileName(c Case) string {
	return "paramlist_" + c.String() + ".in"
}
