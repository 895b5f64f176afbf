package integrators

import (
	"context"
	"math"
	"math/rand/v2"

	"github.com/san-kum/mdcore/internal/atom"
	"github.com/san-kum/mdcore/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Summer reduces values across ranks.
type Summer interface {
	AllReduceSum(ctx context.Context, vals ...float64) ([]float64, error)
}

// Thermalize assigns Gaussian velocities to the owned particles, removes
// the net momentum and scales the result to temperature temp. Each
// particle draws from a stream seeded by its tag, so the result does not
// depend on how particles are spread over ranks.
func Thermalize(ctx context.Context, t *atom.Table, red Summer, temp float64, seed uint64, u dynamo.Units, dim int) error {
	var p r3.Vec
	mass := 0.0
	for i := 0; i < t.NLocal; i++ {
		if t.Frozen[i] {
			t.V[i] = r3.Vec{}
			continue
		}
		rng := rand.New(rand.NewPCG(seed, uint64(t.Tag[i])))
		v := r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
		if dim == 2 {
			v.Z = 0
		}
		m := t.MassOf(i)
		v = r3.Scale(1/math.Sqrt(m), v)
		t.V[i] = v
		p = r3.Add(p, r3.Scale(m, v))
		mass += m
	}

	sums, err := red.AllReduceSum(ctx, p.X, p.Y, p.Z, mass)
	if err != nil {
		return err
	}
	if sums[3] == 0 {
		return nil
	}
	vcm := r3.Vec{X: sums[0] / sums[3], Y: sums[1] / sums[3], Z: sums[2] / sums[3]}

	ke, count := 0.0, 0.0
	for i := 0; i < t.NLocal; i++ {
		if t.Frozen[i] {
			continue
		}
		t.V[i] = r3.Sub(t.V[i], vcm)
		ke += t.MassOf(i) * r3.Norm2(t.V[i])
		count++
	}
	sums, err = red.AllReduceSum(ctx, ke, count)
	if err != nil {
		return err
	}
	dof := float64(dim)*sums[1] - float64(dim)
	if dof <= 0 || sums[0] == 0 {
		return nil
	}
	current := sums[0] * u.Mvv2e / (dof * u.Boltz)
	scale := math.Sqrt(temp / current)
	for i := 0; i < t.NLocal; i++ {
		t.V[i] = r3.Scale(scale, t.V[i])
	}
	return nil
}
