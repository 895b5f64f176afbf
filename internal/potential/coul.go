package potential

import "math"

type coulCoeff struct {
	Cut   float64
	cutsq float64
}

// CoulCut is the cut-off Coulomb pair term.
type CoulCut struct {
	qqrd2e float64
	cut    float64
	coeffs *Table[coulCoeff]
}

// NewCoulCut builds coul/cut. params: [cutoff]. qqrd2e converts q^2/r to
// energy units.
func NewCoulCut(ntypes int, qqrd2e float64, params []float64) (*CoulCut, error) {
	p := &CoulCut{qqrd2e: qqrd2e, cut: param(params, 0, 2.5), coeffs: NewTable[coulCoeff](ntypes)}
	return p, nil
}

func (p *CoulCut) Name() string { return "coul/cut" }

func (p *CoulCut) Coeff(i, j int, params []float64) error {
	return p.coeffs.Put(i, j, coulCoeff{Cut: param(params, 0, p.cut)})
}

// Init fills every pair that was not given with the global cutoff.
func (p *CoulCut) Init() error {
	for i := 1; i <= p.coeffs.N; i++ {
		for j := i; j <= p.coeffs.N; j++ {
			if !p.coeffs.IsSet(i, j) {
				if err := p.coeffs.Put(i, j, coulCoeff{Cut: p.cut}); err != nil {
					return err
				}
			}
			c := p.coeffs.At(i, j)
			c.cutsq = c.Cut * c.Cut
			*p.coeffs.At(j, i) = *c
		}
	}
	return nil
}

func (p *CoulCut) CutSq(ti, tj int) float64 { return p.coeffs.At(ti, tj).cutsq }

func (p *CoulCut) Cutoff() float64 {
	c := 0.0
	p.coeffs.Each(func(_, _ int, v *coulCoeff) { c = max(c, v.Cut) })
	return c
}

func (p *CoulCut) Eval(a *PairArgs) (fpair, evdwl, ecoul float64) {
	rinv := 1 / math.Sqrt(a.RSq)
	force := p.qqrd2e * a.QI * a.QJ * rinv
	fpair = a.FactorCoul * force / a.RSq
	ecoul = a.FactorCoul * force
	return fpair, 0, ecoul
}
