package potential

import "math"

type morseCoeff struct {
	D0, Alpha, R0, Cut   float64
	morse1, offset, cutsq float64
}

// Morse is the Morse pair term. Every type pair must be given.
type Morse struct {
	cut    float64
	shift  bool
	coeffs *Table[morseCoeff]
}

// NewMorse builds morse. params: [cutoff, shift(0|1)].
func NewMorse(ntypes int, params []float64) (*Morse, error) {
	return &Morse{cut: param(params, 0, 3), shift: param(params, 1, 0) != 0, coeffs: NewTable[morseCoeff](ntypes)}, nil
}

func (p *Morse) Name() string { return "morse" }

// Coeff sets D0, alpha, r0 and an optional cutoff.
func (p *Morse) Coeff(i, j int, params []float64) error {
	if len(params) < 3 {
		return errParams(p.Name(), "d0 alpha r0 [cut]")
	}
	return p.coeffs.Put(i, j, morseCoeff{D0: params[0], Alpha: params[1], R0: params[2], Cut: param(params, 3, p.cut)})
}

func (p *Morse) Init() error {
	if err := p.coeffs.Mix(p.Name(), nil); err != nil {
		return err
	}
	p.coeffs.Each(func(i, j int, c *morseCoeff) {
		c.morse1 = 2 * c.D0 * c.Alpha
		c.cutsq = c.Cut * c.Cut
		c.offset = 0
		if p.shift {
			e := math.Exp(-c.Alpha * (c.Cut - c.R0))
			c.offset = c.D0 * (e*e - 2*e)
		}
		*p.coeffs.At(j, i) = *c
	})
	return nil
}

func (p *Morse) CutSq(ti, tj int) float64 { return p.coeffs.At(ti, tj).cutsq }

func (p *Morse) Cutoff() float64 {
	c := 0.0
	p.coeffs.Each(func(_, _ int, v *morseCoeff) { c = max(c, v.Cut) })
	return c
}

func (p *Morse) Eval(a *PairArgs) (fpair, evdwl, ecoul float64) {
	c := p.coeffs.At(a.TI, a.TJ)
	r := math.Sqrt(a.RSq)
	dexp := math.Exp(-c.Alpha * (r - c.R0))
	fpair = a.FactorLJ * c.morse1 * (dexp*dexp - dexp) / r
	evdwl = a.FactorLJ * (c.D0*(dexp*dexp-2*dexp) - c.offset)
	return fpair, evdwl, 0
}

func (p *Morse) Single(ti, tj int, rsq, factorLJ float64) (energy, fforce float64) {
	f, e, _ := p.Eval(&PairArgs{TI: ti, TJ: tj, RSq: rsq, FactorLJ: factorLJ})
	return e, f
}
