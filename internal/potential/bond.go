package potential

import (
	"fmt"
	"math"

	"gopkg.in/yaml.v3"
)

type harmonicBond struct {
	K  float64 `yaml:"k"`
	R0 float64 `yaml:"r0"`
}

// BondHarmonic is E = K (r - r0)^2.
type BondHarmonic struct {
	coeffs *perType[harmonicBond]
}

func NewBondHarmonic(ntypes int) *BondHarmonic {
	return &BondHarmonic{coeffs: newPerType[harmonicBond](ntypes)}
}

func (b *BondHarmonic) Name() string { return "harmonic" }

func (b *BondHarmonic) Coeff(typ int, params []float64) error {
	if len(params) < 2 {
		return errParams("bond harmonic", "k r0")
	}
	return b.coeffs.put(typ, harmonicBond{K: params[0], R0: params[1]})
}

func (b *BondHarmonic) Init() error { return b.coeffs.check("bond harmonic") }

func (b *BondHarmonic) Eval(typ int, rsq float64) (fbond, energy float64, err error) {
	c := &b.coeffs.Data[typ]
	r := math.Sqrt(rsq)
	dr := r - c.R0
	rk := c.K * dr
	if r > 0 {
		fbond = -2 * rk / r
	}
	return fbond, rk * dr, nil
}

func (b *BondHarmonic) State() ([]byte, error) { return yaml.Marshal(b.coeffs) }

func (b *BondHarmonic) Restore(data []byte) error { return yaml.Unmarshal(data, b.coeffs) }

type feneBond struct {
	K       float64 `yaml:"k"`
	R0      float64 `yaml:"r0"`
	Epsilon float64 `yaml:"epsilon"`
	Sigma   float64 `yaml:"sigma"`
}

// BondFENE is the finitely extensible nonlinear elastic bond with a
// repulsive LJ core cut at 2^(1/6) sigma.
type BondFENE struct {
	coeffs *perType[feneBond]
}

func NewBondFENE(ntypes int) *BondFENE {
	return &BondFENE{coeffs: newPerType[feneBond](ntypes)}
}

func (b *BondFENE) Name() string { return "fene" }

func (b *BondFENE) Coeff(typ int, params []float64) error {
	if len(params) < 4 {
		return errParams("bond fene", "k r0 epsilon sigma")
	}
	return b.coeffs.put(typ, feneBond{K: params[0], R0: params[1], Epsilon: params[2], Sigma: params[3]})
}

func (b *BondFENE) Init() error { return b.coeffs.check("bond fene") }

// Eval fails when the bond is stretched far past R0. A bond just short of
// it is clamped so the force stays finite.
func (b *BondFENE) Eval(typ int, rsq float64) (fbond, energy float64, err error) {
	c := &b.coeffs.Data[typ]
	r0sq := c.R0 * c.R0
	rlogarg := 1 - rsq/r0sq
	if rlogarg < 0.1 {
		if rlogarg <= -3 {
			return 0, 0, fmt.Errorf("bad FENE bond: r=%g with R0=%g", math.Sqrt(rsq), c.R0)
		}
		rlogarg = 0.1
	}
	fbond = -c.K / rlogarg
	energy = -0.5 * c.K * r0sq * math.Log(rlogarg)

	if rsq < math.Cbrt(2)*c.Sigma*c.Sigma {
		sr2 := c.Sigma * c.Sigma / rsq
		sr6 := sr2 * sr2 * sr2
		fbond += 48 * c.Epsilon * sr6 * (sr6 - 0.5) / rsq
		energy += 4*c.Epsilon*sr6*(sr6-1) + c.Epsilon
	}
	return fbond, energy, nil
}

func (b *BondFENE) State() ([]byte, error) { return yaml.Marshal(b.coeffs) }

func (b *BondFENE) Restore(data []byte) error { return yaml.Unmarshal(data, b.coeffs) }
