package potential

import (
	"math"

	"gopkg.in/yaml.v3"
)

type ljCoeff struct {
	Epsilon float64 `yaml:"epsilon"`
	Sigma   float64 `yaml:"sigma"`
	Cut     float64 `yaml:"cut"`

	lj1, lj2, lj3, lj4, offset, cutsq float64
}

// LJCut is the 12-6 Lennard-Jones pair term with an optional energy shift
// at the cutoff and geometric mixing.
type LJCut struct {
	cut    float64
	shift  bool
	coeffs *Table[ljCoeff]
}

// NewLJCut builds lj/cut. params: [cutoff, shift(0|1)].
func NewLJCut(ntypes int, params []float64) (*LJCut, error) {
	return &LJCut{
		cut:    param(params, 0, 2.5),
		shift:  param(params, 1, 0) != 0,
		coeffs: NewTable[ljCoeff](ntypes),
	}, nil
}

func (p *LJCut) Name() string { return "lj/cut" }

// Coeff sets epsilon, sigma and an optional per-pair cutoff.
func (p *LJCut) Coeff(i, j int, params []float64) error {
	if len(params) < 2 {
		return errParams(p.Name(), "epsilon sigma [cut]")
	}
	return p.coeffs.Put(i, j, ljCoeff{Epsilon: params[0], Sigma: params[1], Cut: param(params, 2, p.cut)})
}

func (p *LJCut) Init() error {
	err := p.coeffs.Mix(p.Name(), func(a, b ljCoeff) ljCoeff {
		return ljCoeff{Epsilon: mixEnergy(a.Epsilon, b.Epsilon), Sigma: mixDistance(a.Sigma, b.Sigma), Cut: mixDistance(a.Cut, b.Cut)}
	})
	if err != nil {
		return err
	}
	p.coeffs.Each(func(i, j int, c *ljCoeff) {
		s6 := math.Pow(c.Sigma, 6)
		c.lj1 = 48 * c.Epsilon * s6 * s6
		c.lj2 = 24 * c.Epsilon * s6
		c.lj3 = 4 * c.Epsilon * s6 * s6
		c.lj4 = 4 * c.Epsilon * s6
		c.cutsq = c.Cut * c.Cut
		c.offset = 0
		if p.shift && c.Cut > 0 {
			ratio := c.Sigma / c.Cut
			c.offset = 4 * c.Epsilon * (math.Pow(ratio, 12) - math.Pow(ratio, 6))
		}
		*p.coeffs.At(j, i) = *c
	})
	return nil
}

func (p *LJCut) CutSq(ti, tj int) float64 { return p.coeffs.At(ti, tj).cutsq }

func (p *LJCut) Cutoff() float64 {
	c := 0.0
	p.coeffs.Each(func(_, _ int, v *ljCoeff) { c = max(c, v.Cut) })
	return c
}

func (p *LJCut) Eval(a *PairArgs) (fpair, evdwl, ecoul float64) {
	c := p.coeffs.At(a.TI, a.TJ)
	r2inv := 1 / a.RSq
	r6inv := r2inv * r2inv * r2inv
	forcelj := r6inv * (c.lj1*r6inv - c.lj2)
	fpair = a.FactorLJ * forcelj * r2inv
	evdwl = a.FactorLJ * (r6inv*(c.lj3*r6inv-c.lj4) - c.offset)
	return fpair, evdwl, 0
}

func (p *LJCut) Single(ti, tj int, rsq, factorLJ float64) (energy, fforce float64) {
	f, e, _ := p.Eval(&PairArgs{TI: ti, TJ: tj, RSq: rsq, FactorLJ: factorLJ})
	return e, f
}

// Params returns epsilon, sigma and cutoff of a type pair.
func (p *LJCut) Params(i, j int) (epsilon, sigma, cut float64) {
	c := p.coeffs.At(i, j)
	return c.Epsilon, c.Sigma, c.Cut
}

func (p *LJCut) State() ([]byte, error) { return yaml.Marshal(p.coeffs) }

func (p *LJCut) Restore(data []byte) error {
	t := NewTable[ljCoeff](p.coeffs.N)
	if err := yaml.Unmarshal(data, t); err != nil {
		return err
	}
	p.coeffs = t
	return p.Init()
}
