package metrics

import (
	"context"
	"fmt"

	"github.com/san-kum/mdcore/internal/atom"
	"github.com/san-kum/mdcore/internal/compute"
	"github.com/san-kum/mdcore/internal/dynamo"
	"gonum.org/v1/gonum/floats"
)

// Summer reduces values across ranks.
type Summer interface {
	AllReduceSum(ctx context.Context, vals ...float64) ([]float64, error)
}

// Sample is one row of thermodynamic output, identical on every rank.
type Sample struct {
	Step   int64   `json:"step"`
	Time   float64 `json:"time"`
	Natoms int64   `json:"natoms"`
	Temp   float64 `json:"temp"`
	KE     float64 `json:"ke"`
	EVdwl  float64 `json:"evdwl"`
	ECoul  float64 `json:"ecoul"`
	EBond  float64 `json:"ebond"`
	EAngle float64 `json:"eangle"`
	EFix   float64 `json:"efix"`
	ELong  float64 `json:"elong"`
	PE     float64 `json:"pe"`
	ETotal float64 `json:"etotal"`
	Press  float64 `json:"press"`
	Volume float64 `json:"volume"`
}

// Columns lists the CSV header of a Sample.
func Columns() []string {
	return []string{"step", "time", "natoms", "temp", "ke", "evdwl", "ecoul", "ebond", "eangle", "efix", "elong", "pe", "etotal", "press", "volume"}
}

// Row formats a Sample in Columns order.
func (s Sample) Row() []string {
	g := func(v float64) string { return fmt.Sprintf("%.10g", v) }
	return []string{
		fmt.Sprint(s.Step), g(s.Time), fmt.Sprint(s.Natoms), g(s.Temp), g(s.KE),
		g(s.EVdwl), g(s.ECoul), g(s.EBond), g(s.EAngle), g(s.EFix), g(s.ELong),
		g(s.PE), g(s.ETotal), g(s.Press), g(s.Volume),
	}
}

// Thermo computes global observables from the owned particles and the
// force tallies of one rank. It is collective: every rank must call it.
type Thermo struct {
	Units  dynamo.Units
	Dim    int
	Volume float64
}

func (th *Thermo) Compute(ctx context.Context, red Summer, t *atom.Table, acc *compute.Accumulator, step int64, dt float64) (Sample, error) {
	mvv, moving := 0.0, 0.0
	for i := 0; i < t.NLocal; i++ {
		v := t.V[i]
		mvv += t.MassOf(i) * (v.X*v.X + v.Y*v.Y + v.Z*v.Z)
		if !t.Frozen[i] {
			moving++
		}
	}

	local := append([]float64{mvv, moving, float64(t.NLocal)}, acc.Flat()...)
	sums, err := red.AllReduceSum(ctx, local...)
	if err != nil {
		return Sample{}, err
	}
	var g compute.Accumulator
	g.SetFlat(sums[3:])

	s := Sample{
		Step:   step,
		Time:   float64(step) * dt,
		Natoms: int64(sums[2]),
		KE:     0.5 * th.Units.Mvv2e * sums[0],
		EVdwl:  g.Energy[compute.KindVdwl],
		ECoul:  g.Energy[compute.KindCoul],
		EBond:  g.Energy[compute.KindBond],
		EAngle: g.Energy[compute.KindAngle],
		EFix:   g.Energy[compute.KindList],
		ELong:  g.Energy[compute.KindLong],
		PE:     floats.Sum(g.Energy[:]),
		Volume: th.Volume,
	}
	s.ETotal = s.KE + s.PE

	dof := float64(th.Dim)*sums[1] - float64(th.Dim)
	if dof > 0 {
		s.Temp = th.Units.Mvv2e * sums[0] / (dof * th.Units.Boltz)
	}
	if th.Volume > 0 {
		trace := g.Virial[0] + g.Virial[1]
		if th.Dim == 3 {
			trace += g.Virial[2]
		}
		s.Press = (dof*th.Units.Boltz*s.Temp + trace) / float64(th.Dim) / th.Volume * th.Units.Nktv2p
	}
	return s, nil
}
