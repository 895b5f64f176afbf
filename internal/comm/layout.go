package comm

import (
	"math"

	"github.com/san-kum/mdcore/internal/atom"
	"github.com/san-kum/mdcore/internal/domain"
	"gonum.org/v1/gonum/spatial/r3"
)

// Layout describes how the box is cut into sub-boxes. Coordinates are box
// coordinates for orthogonal boxes and fractional (lamda) coordinates for
// triclinic boxes. Every rank derives the same cuts from the same formula,
// so ownership of a coordinate never depends on who asks.
type Layout struct {
	Grid     [3]int
	Lo, Hi   [3]float64
	Periodic [3]bool
	Dim      int
	Lamda    bool
}

// NewLayout cuts box into the given grid.
func NewLayout(box *domain.Box, grid [3]int) *Layout {
	l := &Layout{Grid: grid, Periodic: box.Periodic, Dim: box.Dimension, Lamda: box.Triclinic}
	if box.Triclinic {
		l.Hi = [3]float64{1, 1, 1}
	} else {
		l.Lo = [3]float64{box.Lo.X, box.Lo.Y, box.Lo.Z}
		l.Hi = [3]float64{box.Hi.X, box.Hi.Y, box.Hi.Z}
	}
	return l
}

// Size returns the number of ranks.
func (l *Layout) Size() int { return l.Grid[0] * l.Grid[1] * l.Grid[2] }

// Split returns the i-th cut along dimension d; Split(d, 0) is lo and
// Split(d, Grid[d]) is hi exactly.
func (l *Layout) Split(d, i int) float64 {
	if i >= l.Grid[d] {
		return l.Hi[d]
	}
	return l.Lo[d] + (l.Hi[d]-l.Lo[d])*float64(i)/float64(l.Grid[d])
}

// Index returns the grid slab along d holding coordinate c under the
// half-open rule Split(i) <= c < Split(i+1). Coordinates outside the box
// are clamped to the edge slabs.
func (l *Layout) Index(d int, c float64) int {
	p := l.Grid[d]
	i := int(math.Floor((c - l.Lo[d]) / (l.Hi[d] - l.Lo[d]) * float64(p)))
	if i < 0 {
		i = 0
	}
	if i > p-1 {
		i = p - 1
	}
	for i > 0 && c < l.Split(d, i) {
		i--
	}
	for i < p-1 && c >= l.Split(d, i+1) {
		i++
	}
	return i
}

// Coords returns the grid position of rank.
func (l *Layout) Coords(rank int) [3]int {
	return [3]int{rank % l.Grid[0], rank / l.Grid[0] % l.Grid[1], rank / (l.Grid[0] * l.Grid[1])}
}

// Rank returns the rank at grid position loc, wrapping around each axis.
func (l *Layout) Rank(loc [3]int) int {
	for d := 0; d < 3; d++ {
		loc[d] = ((loc[d] % l.Grid[d]) + l.Grid[d]) % l.Grid[d]
	}
	return loc[0] + loc[1]*l.Grid[0] + loc[2]*l.Grid[0]*l.Grid[1]
}

// Owner returns the rank owning a comm-space coordinate.
func (l *Layout) Owner(c r3.Vec) int {
	return l.Rank([3]int{l.Index(0, c.X), l.Index(1, c.Y), l.Index(2, c.Z)})
}

// SubBox returns the bounds of rank's sub-box in comm coordinates.
func (l *Layout) SubBox(rank int) (lo, hi [3]float64) {
	loc := l.Coords(rank)
	for d := 0; d < 3; d++ {
		lo[d] = l.Split(d, loc[d])
		hi[d] = l.Split(d, loc[d]+1)
	}
	return lo, hi
}

func component(v r3.Vec, d int) float64 {
	switch d {
	case 0:
		return v.X
	case 1:
		return v.Y
	}
	return v.Z
}

func axisName(d int) string {
	return [3]string{"x", "y", "z"}[d]
}

// Distribute splits wrapped box-coordinate records by owning rank.
func (l *Layout) Distribute(box *domain.Box, recs []atom.Record) [][]atom.Record {
	out := make([][]atom.Record, l.Size())
	for _, r := range recs {
		c := r.X
		if l.Lamda {
			c = box.ToLamda(c)
		}
		o := l.Owner(c)
		out[o] = append(out[o], r)
	}
	return out
}
