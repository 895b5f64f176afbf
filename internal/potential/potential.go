// Package potential defines the capability interfaces force plugins
// implement and a small catalog of plugins.
//
// A plugin implements only what it needs: PairKernel for per-pair terms
// evaluated over the neighbor list, BondKernel and AngleKernel for bonded
// terms, ListComputer for terms that walk the particles themselves, and
// LongRange for corrections that depend on global state. SinglePairer and
// Restarter are optional on top of those.
package potential

import (
	"github.com/san-kum/mdcore/internal/atom"
	"github.com/san-kum/mdcore/internal/domain"
	"github.com/san-kum/mdcore/internal/dynamo"
	"github.com/san-kum/mdcore/internal/neighbor"
	"gonum.org/v1/gonum/spatial/r3"
)

// PairArgs carries one neighbor-list entry to a pair kernel.
type PairArgs struct {
	TI, TJ     int
	RSq        float64
	FactorLJ   float64
	FactorCoul float64
	QI, QJ     float64
}

// PairKernel evaluates a pairwise term. Eval returns the force divided by
// r, so the force on i is fpair times the separation xi - xj.
type PairKernel interface {
	Name() string
	Coeff(i, j int, params []float64) error
	Init() error
	CutSq(ti, tj int) float64
	Cutoff() float64
	Eval(a *PairArgs) (fpair, evdwl, ecoul float64)
}

// SinglePairer answers on-demand energy queries for one pair.
type SinglePairer interface {
	Single(ti, tj int, rsq, factorLJ float64) (energy, fforce float64)
}

// Restarter can persist and restore its parameters.
type Restarter interface {
	State() ([]byte, error)
	Restore(data []byte) error
}

// BondKernel evaluates a two-body bonded term. fbond is the force over r.
type BondKernel interface {
	Name() string
	Coeff(typ int, params []float64) error
	Init() error
	Eval(typ int, rsq float64) (fbond, energy float64, err error)
}

// AngleKernel evaluates a three-body bend A-B-C from the arm vectors
// d1 = xA - xB and d2 = xC - xB. It returns the forces on A and C; the
// force on B is minus their sum.
type AngleKernel interface {
	Name() string
	Coeff(typ int, params []float64) error
	Init() error
	Eval(typ int, d1, d2 r3.Vec) (f1, f3 r3.Vec, energy float64)
}

// View is what list computers and long-range terms see of a rank.
type View struct {
	Table *atom.Table
	List  *neighbor.List
	Box   *domain.Box
	Units dynamo.Units
	Rank  int
	// F receives forces; it is Table.F unless the driver redirects it.
	F []r3.Vec
}

// Contribution is the global energy and virial of one term on one rank.
type Contribution struct {
	Energy float64
	Virial [6]float64
}

// ListComputer adds forces by walking the particles of a View directly.
type ListComputer interface {
	Name() string
	Compute(v *View) Contribution
}

// LongRange is a correction depending on global counts and the volume.
type LongRange interface {
	Name() string
	Setup(typeCounts []int64, volume float64)
	Compute(v *View) Contribution
}

// Set is the full collection of force terms of a run. Pair kernels are
// summed over the same neighbor list.
type Set struct {
	Pairs  []PairKernel
	Bond   BondKernel
	Angle  AngleKernel
	Lists  []ListComputer
	Long   []LongRange
	NTypes int
}

// Cutoff returns the largest pair cutoff.
func (s *Set) Cutoff() float64 {
	c := 0.0
	for _, p := range s.Pairs {
		c = max(c, p.Cutoff())
	}
	return c
}

// Init finalises every kernel.
func (s *Set) Init() error {
	for _, p := range s.Pairs {
		if err := p.Init(); err != nil {
			return err
		}
	}
	if s.Bond != nil {
		if err := s.Bond.Init(); err != nil {
			return err
		}
	}
	if s.Angle != nil {
		if err := s.Angle.Init(); err != nil {
			return err
		}
	}
	return nil
}

// Single sums the on-demand energy and force over r of every pair term
// that supports it and reaches rsq for the type pair. terms names the
// contributing kernels.
func (s *Set) Single(ti, tj int, rsq, factorLJ float64) (energy, fforce float64, terms []string) {
	for _, p := range s.Pairs {
		sp, ok := p.(SinglePairer)
		if !ok || rsq >= p.CutSq(ti, tj) {
			continue
		}
		e, f := sp.Single(ti, tj, rsq, factorLJ)
		energy += e
		fforce += f
		terms = append(terms, p.Name())
	}
	return energy, fforce, terms
}

// Names lists the active terms.
func (s *Set) Names() []string {
	var out []string
	for _, p := range s.Pairs {
		out = append(out, p.Name())
	}
	if s.Bond != nil {
		out = append(out, "bond "+s.Bond.Name())
	}
	if s.Angle != nil {
		out = append(out, "angle "+s.Angle.Name())
	}
	for _, l := range s.Lists {
		out = append(out, l.Name())
	}
	for _, l := range s.Long {
		out = append(out, l.Name())
	}
	return out
}

func param(params []float64, k int, def float64) float64 {
	if k < len(params) {
		return params[k]
	}
	return def
}
