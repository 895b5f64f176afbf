package comm

import (
	"math"
	"testing"

	"github.com/san-kum/mdcore/internal/atom"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestIndexHalfOpen(t *testing.T) {
	for _, p := range []int{1, 2, 3, 7} {
		l := NewLayout(cube(10), [3]int{p, 1, 1})
		for i := 1; i < p; i++ {
			cut := l.Split(0, i)
			if got := l.Index(0, cut); got != i {
				t.Errorf("p=%d: Index(cut %d) = %d", p, i, got)
			}
			below := math.Nextafter(cut, math.Inf(-1))
			if got := l.Index(0, below); got != i-1 {
				t.Errorf("p=%d: Index(just below cut %d) = %d", p, i, got)
			}
		}
		if l.Split(0, p) != 10 {
			t.Errorf("last cut = %g, want hi exactly", l.Split(0, p))
		}
	}
}

func TestBoundaryParticleHasOneOwner(t *testing.T) {
	box := cube(12)
	l := NewLayout(box, [3]int{3, 2, 1})
	recs := []atom.Record{
		{Tag: 1, X: r3.Vec{X: 4, Y: 6, Z: 0}},
		{Tag: 2, X: r3.Vec{X: 8, Y: 0, Z: 11.999}},
		{Tag: 3, X: r3.Vec{X: 0, Y: 5.999999999999, Z: 3}},
	}
	parts := l.Distribute(box, recs)
	seen := map[int64]int{}
	for rank, p := range parts {
		lo, hi := l.SubBox(rank)
		for _, r := range p {
			seen[r.Tag]++
			c := [3]float64{r.X.X, r.X.Y, r.X.Z}
			for d := 0; d < 3; d++ {
				if c[d] < lo[d] || c[d] >= hi[d] {
					t.Errorf("tag %d at %v assigned to rank %d with box %v-%v", r.Tag, r.X, rank, lo, hi)
				}
			}
		}
	}
	for _, r := range recs {
		if seen[r.Tag] != 1 {
			t.Errorf("tag %d owned %d times", r.Tag, seen[r.Tag])
		}
	}
	if got := l.Owner(r3.Vec{X: 4, Y: 6}); got != l.Rank([3]int{1, 1, 0}) {
		t.Errorf("Owner on corner = %d", got)
	}
}

func TestNeighborsWrap(t *testing.T) {
	box := cube(12)
	l := NewLayout(box, [3]int{3, 1, 1})
	w := NewWorld(3)
	c := New(w.Endpoint(0), l, box)
	if c.Neighbor[0] != [2]int{2, 1} {
		t.Errorf("x neighbors of rank 0 = %v", c.Neighbor[0])
	}
	if c.Neighbor[1] != [2]int{0, 0} {
		t.Errorf("y neighbors of rank 0 = %v", c.Neighbor[1])
	}
}
