package potential

import (
	"fmt"
	"sort"

	"github.com/san-kum/mdcore/internal/dynamo"
)

func errParams(style, want string) error {
	return dynamo.Configf(style, "expected parameters: %s", want)
}

// PairFactory builds a pair kernel from its global parameters.
type PairFactory func(ntypes int, units dynamo.Units, params []float64) (PairKernel, error)

var pairStyles = map[string]PairFactory{
	"lj/cut": func(n int, _ dynamo.Units, p []float64) (PairKernel, error) { return NewLJCut(n, p) },
	"morse":  func(n int, _ dynamo.Units, p []float64) (PairKernel, error) { return NewMorse(n, p) },
	"yukawa": func(n int, _ dynamo.Units, p []float64) (PairKernel, error) { return NewYukawa(n, p) },
	"soft":   func(n int, _ dynamo.Units, p []float64) (PairKernel, error) { return NewSoft(n, p) },
	"coul/cut": func(n int, u dynamo.Units, p []float64) (PairKernel, error) {
		return NewCoulCut(n, u.Qqrd2e, p)
	},
}

// NewPair builds a registered pair style.
func NewPair(style string, ntypes int, units dynamo.Units, params []float64) (PairKernel, error) {
	f, ok := pairStyles[style]
	if !ok {
		return nil, dynamo.Configf("pair.style", "unknown pair style %q (have %v)", style, PairStyles())
	}
	return f(ntypes, units, params)
}

// PairStyles lists the registered pair styles.
func PairStyles() []string {
	out := make([]string, 0, len(pairStyles))
	for k := range pairStyles {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NewBond builds a bond style.
func NewBond(style string, ntypes int) (BondKernel, error) {
	switch style {
	case "harmonic":
		return NewBondHarmonic(ntypes), nil
	case "fene":
		return NewBondFENE(ntypes), nil
	}
	return nil, dynamo.Configf("bond.style", "unknown bond style %q", style)
}

// NewAngle builds an angle style.
func NewAngle(style string, ntypes int) (AngleKernel, error) {
	if style == "harmonic" {
		return NewAngleHarmonic(ntypes), nil
	}
	return nil, dynamo.Configf("angle.style", "unknown angle style %q", style)
}

// NewList builds a list computer.
func NewList(style string, params []float64) (ListComputer, error) {
	if style == "wall/lj93" {
		return NewWallLJ93(params)
	}
	return nil, dynamo.Configf("fix.style", "unknown style %q", style)
}

// Describe returns a one-line summary of a set.
func Describe(s *Set) string {
	return fmt.Sprintf("%v, cutoff %g", s.Names(), s.Cutoff())
}
