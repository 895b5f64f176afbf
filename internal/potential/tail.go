package potential

import "math"

// LJTail is the long-range tail correction of lj/cut, assuming a uniform
// density beyond the cutoff. Rank 0 reports the whole correction.
type LJTail struct {
	lj     *LJCut
	etail  float64
	ptail  float64
	volume float64
}

// NewLJTail returns the tail correction for lj.
func NewLJTail(lj *LJCut) *LJTail { return &LJTail{lj: lj} }

func (t *LJTail) Name() string { return "lj/tail" }

// Setup computes the energy and pressure integrals from the global type
// counts (indexed by type) and the box volume.
func (t *LJTail) Setup(counts []int64, volume float64) {
	t.etail, t.ptail, t.volume = 0, 0, volume
	n := t.lj.coeffs.N
	for i := 1; i <= n; i++ {
		for j := i; j <= n; j++ {
			eps, sigma, cut := t.lj.Params(i, j)
			if cut <= 0 {
				continue
			}
			sig6 := math.Pow(sigma, 6)
			rc3 := cut * cut * cut
			rc6 := rc3 * rc3
			rc9 := rc3 * rc6
			ni, nj := float64(counts[i]), float64(counts[j])
			e := 8 * math.Pi * ni * nj * eps * sig6 * (sig6 - 3*rc6) / (9 * rc9)
			p := 16 * math.Pi * ni * nj * eps * sig6 * (2*sig6 - 3*rc6) / (9 * rc9)
			if i != j {
				e, p = 2*e, 2*p
			}
			t.etail += e
			t.ptail += p
		}
	}
}

// Energy returns the tail energy of the whole system.
func (t *LJTail) Energy() float64 { return t.etail / t.volume }

func (t *LJTail) Compute(v *View) Contribution {
	if v.Rank != 0 || t.volume == 0 {
		return Contribution{}
	}
	w := t.ptail / t.volume
	return Contribution{Energy: t.etail / t.volume, Virial: [6]float64{w, w, w}}
}
