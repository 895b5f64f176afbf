package compute

import (
	"fmt"
	"sort"

	"github.com/san-kum/mdcore/internal/atom"
	"github.com/san-kum/mdcore/internal/domain"
	"github.com/san-kum/mdcore/internal/dynamo"
	"github.com/san-kum/mdcore/internal/neighbor"
	"github.com/san-kum/mdcore/internal/potential"
	"github.com/san-kum/mdcore/internal/topology"
)

// Input is everything a driver reads for one force evaluation. Forces are
// written to Table.F for owned and ghost particles alike.
type Input struct {
	Table *atom.Table
	List  *neighbor.List
	Set   *potential.Set
	Topo  *topology.Topology
	Box   *domain.Box
	Units dynamo.Units
	Rank  int
	Step  int64

	SpecialLJ   [4]float64
	SpecialCoul [4]float64
}

// Driver evaluates every force term of a Set for one rank.
type Driver interface {
	Name() string
	Compute(in *Input, acc *Accumulator) error
}

var drivers = map[string]func(workers int) Driver{
	"serial":   func(int) Driver { return Serial{} },
	"threaded": func(w int) Driver { return NewThreaded(w) },
}

// New returns the named driver. workers applies to the threaded driver;
// zero means one per CPU.
func New(name string, workers int) (Driver, error) {
	f, ok := drivers[name]
	if !ok {
		return nil, dynamo.Configf("driver", "unknown force driver %q (have %v)", name, Drivers())
	}
	return f(workers), nil
}

// Drivers lists the registered driver names.
func Drivers() []string {
	out := make([]string, 0, len(drivers))
	for k := range drivers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Serial runs every term on the calling goroutine.
type Serial struct{}

func (Serial) Name() string { return "serial" }

func (Serial) Compute(in *Input, acc *Accumulator) error {
	t := in.Table
	t.ZeroForces()
	acc.Reset(t.Len())
	if in.List != nil {
		pairRange(in, 0, in.List.Inum, t.F, acc)
	}
	return bonded(in, acc)
}

// bonded adds the terms that follow the pair loop: bonds, angles, list
// computers and long-range corrections.
func bonded(in *Input, acc *Accumulator) error {
	if err := bonds(in, acc); err != nil {
		return err
	}
	if err := angles(in, acc); err != nil {
		return err
	}
	view := &potential.View{Table: in.Table, List: in.List, Box: in.Box, Units: in.Units, Rank: in.Rank, F: in.Table.F}
	for _, l := range in.Set.Lists {
		c := l.Compute(view)
		acc.Energy[KindList] += c.Energy
		addVirial(acc, c.Virial)
	}
	for _, l := range in.Set.Long {
		c := l.Compute(view)
		acc.Energy[KindLong] += c.Energy
		addVirial(acc, c.Virial)
	}
	return nil
}

func addVirial(acc *Accumulator, v [6]float64) {
	for k := range v {
		acc.Virial[k] += v[k]
	}
}

func missing(in *Input, reason string, idx ...int) error {
	e := &dynamo.DivergenceError{Step: in.Step, Rank: in.Rank, Reason: reason}
	for _, i := range idx {
		if i < 0 {
			continue
		}
		tag, typ, x, v, f := in.Table.State(i)
		e.Particles = append(e.Particles, dynamo.ParticleState{Tag: tag, Type: typ, X: x, V: v, F: f})
	}
	return e
}

func describeMissing(kind string, tags ...int64) string {
	return fmt.Sprintf("%s atoms missing: %v", kind, tags)
}
