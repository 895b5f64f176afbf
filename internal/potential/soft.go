package potential

import "math"

type softCoeff struct {
	A, Cut float64
	cutsq  float64
}

// Soft is the cosine pair term A (1 + cos(pi r / rc)), used to push apart
// overlapping particles.
type Soft struct {
	cut    float64
	coeffs *Table[softCoeff]
}

// NewSoft builds soft. params: [cutoff].
func NewSoft(ntypes int, params []float64) (*Soft, error) {
	return &Soft{cut: param(params, 0, 1.12246), coeffs: NewTable[softCoeff](ntypes)}, nil
}

func (p *Soft) Name() string { return "soft" }

func (p *Soft) Coeff(i, j int, params []float64) error {
	if len(params) < 1 {
		return errParams(p.Name(), "a [cut]")
	}
	return p.coeffs.Put(i, j, softCoeff{A: params[0], Cut: param(params, 1, p.cut)})
}

func (p *Soft) Init() error {
	err := p.coeffs.Mix(p.Name(), func(a, b softCoeff) softCoeff {
		return softCoeff{A: mixEnergy(a.A, b.A), Cut: mixDistance(a.Cut, b.Cut)}
	})
	if err != nil {
		return err
	}
	p.coeffs.Each(func(i, j int, c *softCoeff) {
		c.cutsq = c.Cut * c.Cut
		*p.coeffs.At(j, i) = *c
	})
	return nil
}

func (p *Soft) CutSq(ti, tj int) float64 { return p.coeffs.At(ti, tj).cutsq }

func (p *Soft) Cutoff() float64 {
	c := 0.0
	p.coeffs.Each(func(_, _ int, v *softCoeff) { c = max(c, v.Cut) })
	return c
}

func (p *Soft) Eval(a *PairArgs) (fpair, evdwl, ecoul float64) {
	c := p.coeffs.At(a.TI, a.TJ)
	r := math.Sqrt(a.RSq)
	arg := math.Pi * r / c.Cut
	if r > 0 {
		fpair = a.FactorLJ * c.A * math.Sin(arg) * math.Pi / c.Cut / r
	}
	evdwl = a.FactorLJ * c.A * (1 + math.Cos(arg))
	return fpair, evdwl, 0
}

func (p *Soft) Single(ti, tj int, rsq, factorLJ float64) (energy, fforce float64) {
	f, e, _ := p.Eval(&PairArgs{TI: ti, TJ: tj, RSq: rsq, FactorLJ: factorLJ})
	return e, f
}
