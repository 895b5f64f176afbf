package neighbor

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Bins is a uniform grid over a rank's sub-box and ghost halo. Particles
// are counting-sorted into bins so each bin's members are in index order.
type Bins struct {
	Lo   r3.Vec
	Size r3.Vec
	N    [3]int

	inv     r3.Vec
	stencil [][3]int

	start []int32
	atoms []int32
	bin   []int32
}

// Setup lays bins of edge at least cutneigh*factor over [lo, hi] and
// builds the stencil of bins that can hold a particle within cutneigh.
func (b *Bins) Setup(lo, hi r3.Vec, cutneigh, factor float64, dim int) {
	want := cutneigh * factor
	ext := r3.Sub(hi, lo)
	count := func(l float64) int {
		n := int(l / want)
		if n < 1 {
			n = 1
		}
		return n
	}
	b.Lo = lo
	b.N = [3]int{count(ext.X), count(ext.Y), count(ext.Z)}
	if dim == 2 {
		b.N[2] = 1
	}
	b.Size = r3.Vec{X: ext.X / float64(b.N[0]), Y: ext.Y / float64(b.N[1]), Z: ext.Z / float64(b.N[2])}
	b.inv = r3.Vec{X: 1 / b.Size.X, Y: 1 / b.Size.Y, Z: 1 / b.Size.Z}

	sx := int(math.Ceil(cutneigh / b.Size.X))
	sy := int(math.Ceil(cutneigh / b.Size.Y))
	sz := int(math.Ceil(cutneigh / b.Size.Z))
	if dim == 2 {
		sz = 0
	}
	cutsq := cutneigh * cutneigh
	b.stencil = b.stencil[:0]
	for k := -sz; k <= sz; k++ {
		for j := -sy; j <= sy; j++ {
			for i := -sx; i <= sx; i++ {
				if b.binDistance(i, j, k) < cutsq {
					b.stencil = append(b.stencil, [3]int{i, j, k})
				}
			}
		}
	}
}

// binDistance is the squared closest distance between points in two bins
// offset by (i, j, k).
func (b *Bins) binDistance(i, j, k int) float64 {
	d := func(n int, size float64) float64 {
		switch {
		case n > 0:
			return float64(n-1) * size
		case n < 0:
			return float64(n+1) * size
		}
		return 0
	}
	dx, dy, dz := d(i, b.Size.X), d(j, b.Size.Y), d(k, b.Size.Z)
	return dx*dx + dy*dy + dz*dz
}

// Stencil returns the bin offsets scanned around each particle.
func (b *Bins) Stencil() [][3]int { return b.stencil }

// Coord returns the bin coordinates of x, clamped to the grid.
func (b *Bins) Coord(x r3.Vec) [3]int {
	c := [3]int{
		int(math.Floor((x.X - b.Lo.X) * b.inv.X)),
		int(math.Floor((x.Y - b.Lo.Y) * b.inv.Y)),
		int(math.Floor((x.Z - b.Lo.Z) * b.inv.Z)),
	}
	for d := 0; d < 3; d++ {
		if c[d] < 0 {
			c[d] = 0
		}
		if c[d] >= b.N[d] {
			c[d] = b.N[d] - 1
		}
	}
	return c
}

// Bin returns the flat bin index of x.
func (b *Bins) Bin(x r3.Vec) int {
	c := b.Coord(x)
	return b.flat(c)
}

func (b *Bins) flat(c [3]int) int {
	return c[0] + c[1]*b.N[0] + c[2]*b.N[0]*b.N[1]
}

// Fill sorts the first n positions of x into bins.
func (b *Bins) Fill(x []r3.Vec, n int) {
	nbins := b.N[0] * b.N[1] * b.N[2]
	b.start = resize(b.start, nbins+1)
	for k := range b.start {
		b.start[k] = 0
	}
	b.bin = resize(b.bin, n)
	for i := 0; i < n; i++ {
		k := int32(b.Bin(x[i]))
		b.bin[i] = k
		b.start[k+1]++
	}
	for k := 0; k < nbins; k++ {
		b.start[k+1] += b.start[k]
	}
	b.atoms = resize(b.atoms, n)
	fill := append([]int32(nil), b.start[:nbins]...)
	for i := 0; i < n; i++ {
		k := b.bin[i]
		b.atoms[fill[k]] = int32(i)
		fill[k]++
	}
}

// Members returns the particles in bin c, or nil if c is off the grid.
func (b *Bins) Members(c [3]int) []int32 {
	for d := 0; d < 3; d++ {
		if c[d] < 0 || c[d] >= b.N[d] {
			return nil
		}
	}
	k := b.flat(c)
	return b.atoms[b.start[k]:b.start[k+1]]
}

// Of returns the bin coordinates particle i was sorted into.
func (b *Bins) Of(i int) [3]int {
	k := int(b.bin[i])
	nxy := b.N[0] * b.N[1]
	return [3]int{k % b.N[0], k % nxy / b.N[0], k / nxy}
}

func resize(s []int32, n int) []int32 {
	if cap(s) < n {
		return make([]int32, n)
	}
	return s[:n]
}
