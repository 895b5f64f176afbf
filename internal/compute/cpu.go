package compute

import (
	"github.com/san-kum/mdcore/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// minChunk is the smallest number of owned particles handed to a worker.
const minChunk = 64

// Threaded splits the pair loop over workers. Each worker keeps private
// force and tally buffers, merged in chunk order after the loop, so the
// result for a given worker count never depends on scheduling.
type Threaded struct {
	workers int

	forces [][]r3.Vec
	accs   []Accumulator
}

func NewThreaded(workers int) *Threaded {
	return &Threaded{workers: dynamo.Workers(workers)}
}

func (c *Threaded) Name() string { return "threaded" }

// Workers returns the configured worker count.
func (c *Threaded) Workers() int { return c.workers }

func (c *Threaded) Compute(in *Input, acc *Accumulator) error {
	t := in.Table
	n := t.Len()
	t.ZeroForces()
	acc.Reset(n)
	if in.List == nil || in.List.Inum == 0 {
		return bonded(in, acc)
	}

	chunks := dynamo.Chunks(in.List.Inum, c.workers, minChunk)
	c.grow(len(chunks), n, acc.PerAtom)

	dynamo.ParallelFor(in.List.Inum, c.workers, minChunk, func(chunk, start, end int) {
		pairRange(in, start, end, c.forces[chunk], &c.accs[chunk])
	})

	for w := range chunks {
		local := c.forces[w]
		for i := 0; i < n; i++ {
			t.F[i] = r3.Add(t.F[i], local[i])
		}
		acc.Add(&c.accs[w])
	}
	return bonded(in, acc)
}

func (c *Threaded) grow(chunks, n int, perAtom bool) {
	for len(c.forces) < chunks {
		c.forces = append(c.forces, nil)
		c.accs = append(c.accs, Accumulator{})
	}
	for w := 0; w < chunks; w++ {
		if cap(c.forces[w]) < n {
			c.forces[w] = make([]r3.Vec, n)
		} else {
			c.forces[w] = c.forces[w][:n]
			clear(c.forces[w])
		}
		c.accs[w].PerAtom = perAtom
		c.accs[w].Reset(n)
	}
}
