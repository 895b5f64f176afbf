package potential

import (
	"github.com/san-kum/mdcore/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// WallLJ93 is a flat 9-3 Lennard-Jones wall at the lo or hi face of a
// non-periodic axis, acting on owned particles within its cutoff.
type WallLJ93 struct {
	axis   int
	face   int // -1 lo, +1 hi
	cutoff float64

	c1, c2, c3, c4, offset float64
}

// NewWallLJ93 builds wall/lj93. params: [axis(0..2), face(-1|1), epsilon,
// sigma, cutoff].
func NewWallLJ93(params []float64) (*WallLJ93, error) {
	if len(params) < 5 {
		return nil, errParams("wall/lj93", "axis face epsilon sigma cutoff")
	}
	w := &WallLJ93{axis: int(params[0]), face: int(params[1]), cutoff: params[4]}
	if w.axis < 0 || w.axis > 2 {
		return nil, dynamo.Configf("wall/lj93", "axis must be 0, 1 or 2, got %d", w.axis)
	}
	if w.face != -1 && w.face != 1 {
		return nil, dynamo.Configf("wall/lj93", "face must be -1 or 1, got %d", w.face)
	}
	eps, sigma := params[2], params[3]
	s3 := sigma * sigma * sigma
	s9 := s3 * s3 * s3
	w.c1 = 6.0 / 5.0 * eps * s9
	w.c2 = 3 * eps * s3
	w.c3 = 2.0 / 15.0 * eps * s9
	w.c4 = eps * s3
	rinv := 1 / w.cutoff
	r2inv := rinv * rinv
	r4inv := r2inv * r2inv
	w.offset = w.c3*r4inv*r4inv*rinv - w.c4*r2inv*rinv
	return w, nil
}

func (w *WallLJ93) Name() string { return "wall/lj93" }

// Check rejects a wall on a periodic axis.
func (w *WallLJ93) Check(periodic [3]bool) error {
	if periodic[w.axis] {
		return dynamo.Configf("wall/lj93", "axis %d is periodic", w.axis)
	}
	return nil
}

func (w *WallLJ93) Compute(v *View) Contribution {
	var out Contribution
	lo := [3]float64{v.Box.Lo.X, v.Box.Lo.Y, v.Box.Lo.Z}[w.axis]
	hi := [3]float64{v.Box.Hi.X, v.Box.Hi.Y, v.Box.Hi.Z}[w.axis]
	t := v.Table
	for i := 0; i < t.NLocal; i++ {
		x := [3]float64{t.X[i].X, t.X[i].Y, t.X[i].Z}[w.axis]
		delta := x - lo
		side := 1.0
		if w.face > 0 {
			delta = hi - x
			side = -1
		}
		if delta <= 0 || delta >= w.cutoff {
			continue
		}
		rinv := 1 / delta
		r2inv := rinv * rinv
		r4inv := r2inv * r2inv
		r10inv := r4inv * r4inv * r2inv
		fwall := side * (w.c1*r10inv - w.c2*r4inv)
		var f r3.Vec
		switch w.axis {
		case 0:
			f.X = fwall
		case 1:
			f.Y = fwall
		default:
			f.Z = fwall
		}
		v.F[i] = r3.Add(v.F[i], f)
		out.Energy += w.c3*r4inv*r4inv*rinv - w.c4*r2inv*rinv - w.offset
	}
	return out
}
