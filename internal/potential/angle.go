package potential

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

type harmonicAngle struct {
	K      float64
	Theta0 float64 // radians
}

// AngleHarmonic is E = K (theta - theta0)^2.
type AngleHarmonic struct {
	coeffs *perType[harmonicAngle]
}

func NewAngleHarmonic(ntypes int) *AngleHarmonic {
	return &AngleHarmonic{coeffs: newPerType[harmonicAngle](ntypes)}
}

func (a *AngleHarmonic) Name() string { return "harmonic" }

// Coeff takes K and theta0 in degrees.
func (a *AngleHarmonic) Coeff(typ int, params []float64) error {
	if len(params) < 2 {
		return errParams("angle harmonic", "k theta0")
	}
	return a.coeffs.put(typ, harmonicAngle{K: params[0], Theta0: params[1] * math.Pi / 180})
}

func (a *AngleHarmonic) Init() error { return a.coeffs.check("angle harmonic") }

func (a *AngleHarmonic) Eval(typ int, d1, d2 r3.Vec) (f1, f3 r3.Vec, energy float64) {
	c := &a.coeffs.Data[typ]
	rsq1, rsq2 := r3.Norm2(d1), r3.Norm2(d2)
	r1, r2 := math.Sqrt(rsq1), math.Sqrt(rsq2)

	cs := r3.Dot(d1, d2) / (r1 * r2)
	cs = math.Max(-1, math.Min(1, cs))
	s := math.Sqrt(1 - cs*cs)
	if s < 0.001 {
		s = 0.001
	}
	s = 1 / s

	dtheta := math.Acos(cs) - c.Theta0
	tk := c.K * dtheta
	energy = tk * dtheta

	k := -2 * tk * s
	a11 := k * cs / rsq1
	a12 := -k / (r1 * r2)
	a22 := k * cs / rsq2

	f1 = r3.Add(r3.Scale(a11, d1), r3.Scale(a12, d2))
	f3 = r3.Add(r3.Scale(a22, d2), r3.Scale(a12, d1))
	return f1, f3, energy
}
