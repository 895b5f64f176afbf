package integrators

import (
	"github.com/san-kum/mdcore/internal/atom"
	"gonum.org/v1/gonum/spatial/r3"
)

// NVE is the velocity-Verlet integrator. InitialIntegrate runs before the
// force computation of a step and FinalIntegrate after reverse
// communication. Frozen particles are never moved.
type NVE struct {
	dt  float64
	dtf float64
}

// NewNVE returns an integrator with timestep dt. ftm2v converts force over
// mass to acceleration in the run's units.
func NewNVE(dt, ftm2v float64) *NVE {
	return &NVE{dt: dt, dtf: 0.5 * dt * ftm2v}
}

func (n *NVE) Name() string { return "nve" }

// Dt returns the timestep.
func (n *NVE) Dt() float64 { return n.dt }

// InitialIntegrate advances owned velocities by a half step and positions
// by a full step.
func (n *NVE) InitialIntegrate(t *atom.Table) {
	for i := 0; i < t.NLocal; i++ {
		if t.Frozen[i] {
			continue
		}
		dtfm := n.dtf * t.InvMass(i)
		t.V[i] = r3.Add(t.V[i], r3.Scale(dtfm, t.F[i]))
		t.X[i] = r3.Add(t.X[i], r3.Scale(n.dt, t.V[i]))
	}
}

// FinalIntegrate completes the velocity update with the new forces.
func (n *NVE) FinalIntegrate(t *atom.Table) {
	for i := 0; i < t.NLocal; i++ {
		if t.Frozen[i] {
			continue
		}
		dtfm := n.dtf * t.InvMass(i)
		t.V[i] = r3.Add(t.V[i], r3.Scale(dtfm, t.F[i]))
	}
}

// Enforce2D keeps a 2d run in the xy plane by zeroing the z components of
// velocity and force after every force computation.
type Enforce2D struct{}

func (Enforce2D) Name() string { return "enforce2d" }

func (Enforce2D) PostForce(t *atom.Table) {
	for i := 0; i < t.NLocal; i++ {
		t.V[i].Z = 0
		t.F[i].Z = 0
	}
}
