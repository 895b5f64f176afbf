package comm

import (
	"context"
	"math/rand"

	"github.com/san-kum/mdcore/internal/atom"
	"github.com/san-kum/mdcore/internal/domain"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// runWorld runs fn once per rank of grid, each in its own goroutine, and
// returns the first error.
func runWorld(box *domain.Box, grid [3]int, fn func(ctx context.Context, c *Comm) error) error {
	layout := NewLayout(box, grid)
	w := NewWorld(layout.Size())
	g, ctx := errgroup.WithContext(context.Background())
	for r := 0; r < layout.Size(); r++ {
		c := New(w.Endpoint(r), layout, box)
		g.Go(func() error { return fn(ctx, c) })
	}
	return g.Wait()
}

func randomRecords(box *domain.Box, n int, seed int64) []atom.Record {
	rng := rand.New(rand.NewSource(seed))
	prd := box.Prd()
	recs := make([]atom.Record, n)
	for i := range recs {
		recs[i] = atom.Record{
			Tag:  int64(i + 1),
			Type: 1,
			X: r3.Vec{
				X: box.Lo.X + rng.Float64()*prd.X,
				Y: box.Lo.Y + rng.Float64()*prd.Y,
				Z: box.Lo.Z + rng.Float64()*prd.Z,
			},
		}
	}
	return recs
}

func tableOf(recs []atom.Record) *atom.Table {
	t := atom.New(1)
	for _, r := range recs {
		t.AddOwned(r)
	}
	return t
}

func cube(l float64) *domain.Box {
	b, err := domain.NewBox(r3.Vec{}, r3.Vec{X: l, Y: l, Z: l}, [3]bool{true, true, true}, 3)
	if err != nil {
		panic(err)
	}
	return b
}

func newBox(periodic [3]bool) (*domain.Box, error) {
	return domain.NewBox(r3.Vec{}, r3.Vec{X: 20, Y: 20, Z: 20}, periodic, 3)
}
