package potential

import "math"

type yukawaCoeff struct {
	A, Cut        float64
	offset, cutsq float64
}

// Yukawa is the screened Coulomb pair term A exp(-kappa r) / r.
type Yukawa struct {
	kappa  float64
	cut    float64
	shift  bool
	coeffs *Table[yukawaCoeff]
}

// NewYukawa builds yukawa. params: [kappa, cutoff, shift(0|1)].
func NewYukawa(ntypes int, params []float64) (*Yukawa, error) {
	if len(params) < 1 {
		return nil, errParams("yukawa", "kappa [cutoff] [shift]")
	}
	return &Yukawa{kappa: params[0], cut: param(params, 1, 2.5), shift: param(params, 2, 0) != 0, coeffs: NewTable[yukawaCoeff](ntypes)}, nil
}

func (p *Yukawa) Name() string { return "yukawa" }

func (p *Yukawa) Coeff(i, j int, params []float64) error {
	if len(params) < 1 {
		return errParams(p.Name(), "a [cut]")
	}
	return p.coeffs.Put(i, j, yukawaCoeff{A: params[0], Cut: param(params, 1, p.cut)})
}

func (p *Yukawa) Init() error {
	err := p.coeffs.Mix(p.Name(), func(a, b yukawaCoeff) yukawaCoeff {
		return yukawaCoeff{A: mixEnergy(a.A, b.A), Cut: mixDistance(a.Cut, b.Cut)}
	})
	if err != nil {
		return err
	}
	p.coeffs.Each(func(i, j int, c *yukawaCoeff) {
		c.cutsq = c.Cut * c.Cut
		c.offset = 0
		if p.shift {
			c.offset = c.A * math.Exp(-p.kappa*c.Cut) / c.Cut
		}
		*p.coeffs.At(j, i) = *c
	})
	return nil
}

func (p *Yukawa) CutSq(ti, tj int) float64 { return p.coeffs.At(ti, tj).cutsq }

func (p *Yukawa) Cutoff() float64 {
	c := 0.0
	p.coeffs.Each(func(_, _ int, v *yukawaCoeff) { c = max(c, v.Cut) })
	return c
}

func (p *Yukawa) Eval(a *PairArgs) (fpair, evdwl, ecoul float64) {
	c := p.coeffs.At(a.TI, a.TJ)
	r := math.Sqrt(a.RSq)
	rinv := 1 / r
	screening := math.Exp(-p.kappa * r)
	force := c.A * screening * (p.kappa + rinv)
	fpair = a.FactorLJ * force / a.RSq
	evdwl = a.FactorLJ * (c.A*screening*rinv - c.offset)
	return fpair, evdwl, 0
}

func (p *Yukawa) Single(ti, tj int, rsq, factorLJ float64) (energy, fforce float64) {
	f, e, _ := p.Eval(&PairArgs{TI: ti, TJ: tj, RSq: rsq, FactorLJ: factorLJ})
	return e, f
}
