package analysis

import (
	"github.com/san-kum/mdcore/internal/atom"
	"github.com/san-kum/mdcore/internal/domain"
	"gonum.org/v1/gonum/spatial/r3"
)

// OriginProps name the custom properties holding each particle's
// unwrapped position at the start of the measurement. They travel with
// the particle through exchange and restarts.
var OriginProps = []string{"msd_x0", "msd_y0", "msd_z0"}

func hasOrigins(extras []string) (int, bool) {
	for k, n := range extras {
		if n == OriginProps[0] {
			return k, true
		}
	}
	return 0, false
}

// StampOrigins appends the origin properties to extras and sets them on
// every record to its unwrapped position. Records that already carry
// origins are left alone.
func StampOrigins(box *domain.Box, extras []string, recs []atom.Record) ([]string, []atom.Record) {
	if _, ok := hasOrigins(extras); ok {
		return extras, recs
	}
	out := make([]atom.Record, len(recs))
	for i, r := range recs {
		x := box.Unmap(r.X, r.Image)
		r.Extra = append(append([]float64(nil), r.Extra...), x.X, x.Y, x.Z)
		out[i] = r
	}
	return append(append([]string(nil), extras...), OriginProps...), out
}

// Displacement returns the summed squared displacement of the owned
// particles of t from their origins, and how many were counted.
func Displacement(t *atom.Table, box *domain.Box) (sum float64, n int) {
	x0, y0, z0 := t.Extra(OriginProps[0]), t.Extra(OriginProps[1]), t.Extra(OriginProps[2])
	if x0 == nil || y0 == nil || z0 == nil {
		return 0, 0
	}
	for i := 0; i < t.NLocal; i++ {
		x := box.Unmap(t.X[i], t.Image[i])
		sum += r3.Norm2(r3.Sub(x, r3.Vec{X: x0[i], Y: y0[i], Z: z0[i]}))
	}
	return sum, t.NLocal
}

// MSDPoint is one mean squared displacement sample.
type MSDPoint struct {
	Step int64   `json:"step"`
	Time float64 `json:"time"`
	MSD  float64 `json:"msd"`
}

// Diffusion estimates the diffusion coefficient from the slope of the
// second half of an MSD series, MSD = 2 d D t.
func Diffusion(points []MSDPoint, dimension int) float64 {
	if len(points) < 4 {
		return 0
	}
	half := points[len(points)/2:]
	xs := make([]float64, len(half))
	ys := make([]float64, len(half))
	for k, p := range half {
		xs[k], ys[k] = p.Time, p.MSD
	}
	_, slope := linearFit(xs, ys)
	return slope / (2 * float64(dimension))
}
