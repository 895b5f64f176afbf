package analysis

import (
	"math"

	"github.com/san-kum/mdcore/internal/atom"
	"github.com/san-kum/mdcore/internal/neighbor"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// PairCounts histograms the separations of every owned particle of t
// from its neighbors in a full list. Bin k covers [k, k+1)*cutoff/bins.
func PairCounts(t *atom.Table, l *neighbor.List, cutoff float64, bins int) []float64 {
	hist := make([]float64, bins)
	width := cutoff / float64(bins)
	for i := 0; i < l.Inum; i++ {
		for _, e := range l.Neighbors(i) {
			r := r3.Norm(r3.Sub(t.X[i], t.X[neighbor.Index(e)]))
			if k := int(r / width); k < bins {
				hist[k]++
			}
		}
	}
	return hist
}

// RDF accumulates pair counts into g(r).
type RDF struct {
	Cutoff    float64
	Bins      int
	Dimension int

	hist    []float64
	norm    []float64
	samples int
}

func NewRDF(cutoff float64, bins, dimension int) *RDF {
	return &RDF{
		Cutoff:    cutoff,
		Bins:      bins,
		Dimension: dimension,
		hist:      make([]float64, bins),
		norm:      make([]float64, bins),
	}
}

// shell returns the volume (area in 2d) of bin k.
func (r *RDF) shell(k int) float64 {
	w := r.Cutoff / float64(r.Bins)
	lo, hi := float64(k)*w, float64(k+1)*w
	if r.Dimension == 2 {
		return math.Pi * (hi*hi - lo*lo)
	}
	return 4.0 / 3.0 * math.Pi * (hi*hi*hi - lo*lo*lo)
}

// Add folds one sample of global pair counts taken over natoms particles
// in a box of the given volume.
func (r *RDF) Add(counts []float64, natoms int64, volume float64) {
	if len(counts) != r.Bins || natoms == 0 {
		return
	}
	n := float64(natoms)
	density := n / volume
	floats.Add(r.hist, counts)
	for k := range r.norm {
		r.norm[k] += n * density * r.shell(k)
	}
	r.samples++
}

// Samples returns the number of samples added.
func (r *RDF) Samples() int { return r.samples }

// Result returns the bin centres and g(r) averaged over every sample.
func (r *RDF) Result() (radius, g []float64) {
	radius = make([]float64, r.Bins)
	g = make([]float64, r.Bins)
	w := r.Cutoff / float64(r.Bins)
	for k := range g {
		radius[k] = (float64(k) + 0.5) * w
		if r.norm[k] > 0 {
			g[k] = r.hist[k] / r.norm[k]
		}
	}
	return radius, g
}

// Coordination integrates g(r) up to rmax for the given number density.
func (r *RDF) Coordination(rmax, density float64) float64 {
	radius, g := r.Result()
	sum := 0.0
	for k := range g {
		if radius[k] > rmax {
			break
		}
		sum += g[k] * r.shell(k)
	}
	return density * sum
}
