// Package domain owns the global simulation box: bounds, tilt factors,
// periodicity, the real/fractional coordinate mapping and lattices.
package domain

import (
	"math"

	"github.com/san-kum/mdcore/internal/atom"
	"github.com/san-kum/mdcore/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Box is the global simulation cell. For triclinic cells the edge vectors
// are a = (xprd,0,0), b = (xy,yprd,0), c = (xz,yz,zprd).
type Box struct {
	Lo, Hi     r3.Vec
	XY, XZ, YZ float64
	Periodic   [3]bool
	Dimension  int
	Triclinic  bool

	prd  r3.Vec
	h    [6]float64
	hInv [6]float64
}

// NewBox returns an orthogonal box.
func NewBox(lo, hi r3.Vec, periodic [3]bool, dimension int) (*Box, error) {
	b := &Box{Lo: lo, Hi: hi, Periodic: periodic, Dimension: dimension}
	if err := b.init(); err != nil {
		return nil, err
	}
	return b, nil
}

// NewTriclinic returns a box with tilt factors xy, xz, yz.
func NewTriclinic(lo, hi r3.Vec, xy, xz, yz float64, periodic [3]bool, dimension int) (*Box, error) {
	b := &Box{Lo: lo, Hi: hi, XY: xy, XZ: xz, YZ: yz, Periodic: periodic, Dimension: dimension, Triclinic: true}
	if err := b.init(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Box) init() error {
	if b.Dimension != 2 && b.Dimension != 3 {
		return dynamo.Configf("dimension", "must be 2 or 3, got %d", b.Dimension)
	}
	b.prd = r3.Sub(b.Hi, b.Lo)
	if !(b.prd.X > 0) || !(b.prd.Y > 0) || !(b.prd.Z > 0) {
		return dynamo.Configf("box", "hi must exceed lo on every axis (lo=%v hi=%v)", b.Lo, b.Hi)
	}
	if b.Dimension == 2 {
		if !b.Periodic[2] {
			return dynamo.Configf("box", "2d simulation requires a periodic z axis")
		}
		if b.XZ != 0 || b.YZ != 0 {
			return dynamo.Configf("box", "2d simulation cannot tilt xz or yz")
		}
	}
	if b.Triclinic {
		if math.Abs(b.XY) > 0.5*b.prd.X || math.Abs(b.XZ) > 0.5*b.prd.X || math.Abs(b.YZ) > 0.5*b.prd.Y {
			return dynamo.Configf("box", "tilt factors (%g,%g,%g) exceed half the box length", b.XY, b.XZ, b.YZ)
		}
		if (b.XY != 0 && !b.Periodic[1]) || (b.XZ != 0 || b.YZ != 0) && !b.Periodic[2] {
			return dynamo.Configf("box", "tilt requires the second axis of the tilt to be periodic")
		}
	}

	b.h = [6]float64{b.prd.X, b.prd.Y, b.prd.Z, b.YZ, b.XZ, b.XY}
	h := b.h
	b.hInv = [6]float64{
		1 / h[0],
		1 / h[1],
		1 / h[2],
		-h[3] / (h[1] * h[2]),
		(h[3]*h[5] - h[1]*h[4]) / (h[0] * h[1] * h[2]),
		-h[5] / (h[0] * h[1]),
	}
	return nil
}

// Prd returns the box edge lengths.
func (b *Box) Prd() r3.Vec { return b.prd }

// Volume returns the cell volume, or area in 2d.
func (b *Box) Volume() float64 {
	if b.Dimension == 2 {
		return b.prd.X * b.prd.Y
	}
	return b.prd.X * b.prd.Y * b.prd.Z
}

// ToLamda maps a box coordinate to fractional coordinates in [0,1) per axis.
func (b *Box) ToLamda(x r3.Vec) r3.Vec {
	d := r3.Sub(x, b.Lo)
	hi := &b.hInv
	return r3.Vec{
		X: hi[0]*d.X + hi[5]*d.Y + hi[4]*d.Z,
		Y: hi[1]*d.Y + hi[3]*d.Z,
		Z: hi[2] * d.Z,
	}
}

// FromLamda is the inverse of ToLamda.
func (b *Box) FromLamda(l r3.Vec) r3.Vec {
	h := &b.h
	return r3.Vec{
		X: h[0]*l.X + h[5]*l.Y + h[4]*l.Z + b.Lo.X,
		Y: h[1]*l.Y + h[3]*l.Z + b.Lo.Y,
		Z: h[2]*l.Z + b.Lo.Z,
	}
}

// wrapAxis maps c into [lo,hi) and returns the number of periods removed.
// Values already inside are returned unchanged so wrapping is idempotent.
func wrapAxis(c, lo, hi, prd float64) (float64, int32) {
	if c >= lo && c < hi {
		return c, 0
	}
	n := math.Floor((c - lo) / prd)
	c -= n * prd
	if c >= hi {
		c -= prd
		n++
	}
	if c < lo {
		c = lo
	}
	return c, int32(n)
}

// Wrap maps x into the canonical periodic image and updates the image
// counters. Non-periodic axes are left untouched.
func (b *Box) Wrap(x r3.Vec, image *[3]int32) r3.Vec {
	var n [3]int32
	if !b.Triclinic {
		if b.Periodic[0] {
			x.X, n[0] = wrapAxis(x.X, b.Lo.X, b.Hi.X, b.prd.X)
		}
		if b.Periodic[1] {
			x.Y, n[1] = wrapAxis(x.Y, b.Lo.Y, b.Hi.Y, b.prd.Y)
		}
		if b.Periodic[2] {
			x.Z, n[2] = wrapAxis(x.Z, b.Lo.Z, b.Hi.Z, b.prd.Z)
		}
	} else {
		l := b.ToLamda(x)
		if !b.InsideLamda(l) {
			if b.Periodic[0] {
				l.X, n[0] = wrapAxis(l.X, 0, 1, 1)
			}
			if b.Periodic[1] {
				l.Y, n[1] = wrapAxis(l.Y, 0, 1, 1)
			}
			if b.Periodic[2] {
				l.Z, n[2] = wrapAxis(l.Z, 0, 1, 1)
			}
			x = b.FromLamda(l)
		}
	}
	if image != nil {
		image[0] += n[0]
		image[1] += n[1]
		image[2] += n[2]
	}
	return x
}

// InsideLamda reports whether a fractional coordinate lies in [0,1) on
// every periodic axis.
func (b *Box) InsideLamda(l r3.Vec) bool {
	c := [3]float64{l.X, l.Y, l.Z}
	for d := 0; d < 3; d++ {
		if b.Periodic[d] && (c[d] < 0 || c[d] >= 1) {
			return false
		}
	}
	return true
}

// Inside reports whether x lies within [lo,hi) on every axis.
func (b *Box) Inside(x r3.Vec) bool {
	l := x
	lo, hi := b.Lo, b.Hi
	if b.Triclinic {
		l = b.ToLamda(x)
		lo, hi = r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}
	}
	return l.X >= lo.X && l.X < hi.X && l.Y >= lo.Y && l.Y < hi.Y && l.Z >= lo.Z && l.Z < hi.Z
}

// RemapAll wraps every owned particle of t. Applying it twice is a no-op.
func (b *Box) RemapAll(t *atom.Table) {
	for i := 0; i < t.NLocal; i++ {
		t.X[i] = b.Wrap(t.X[i], &t.Image[i])
	}
}

// MinimumImage returns the shortest periodic image of a separation vector.
func (b *Box) MinimumImage(d r3.Vec) r3.Vec {
	if b.Periodic[2] && math.Abs(d.Z) > 0.5*b.prd.Z {
		n := math.Round(d.Z / b.prd.Z)
		d.Z -= n * b.prd.Z
		d.Y -= n * b.YZ
		d.X -= n * b.XZ
	}
	if b.Periodic[1] && math.Abs(d.Y) > 0.5*b.prd.Y {
		n := math.Round(d.Y / b.prd.Y)
		d.Y -= n * b.prd.Y
		d.X -= n * b.XY
	}
	if b.Periodic[0] && math.Abs(d.X) > 0.5*b.prd.X {
		n := math.Round(d.X / b.prd.X)
		d.X -= n * b.prd.X
	}
	return d
}

// ShiftVector returns the real-space displacement of the periodic image
// (n0, n1, n2).
func (b *Box) ShiftVector(n [3]int32) r3.Vec {
	a, c, e := float64(n[0]), float64(n[1]), float64(n[2])
	return r3.Vec{
		X: a*b.prd.X + c*b.XY + e*b.XZ,
		Y: c*b.prd.Y + e*b.YZ,
		Z: e * b.prd.Z,
	}
}

// Unmap returns the unwrapped position of a particle at x with image flags.
func (b *Box) Unmap(x r3.Vec, image [3]int32) r3.Vec {
	return r3.Add(x, b.ShiftVector(image))
}

// BBox returns the real-space bounding box of the fractional region
// [llo, lhi].
func (b *Box) BBox(llo, lhi r3.Vec) (lo, hi r3.Vec) {
	inf := math.Inf(1)
	lo = r3.Vec{X: inf, Y: inf, Z: inf}
	hi = r3.Scale(-1, lo)
	for c := 0; c < 8; c++ {
		l := llo
		if c&1 != 0 {
			l.X = lhi.X
		}
		if c&2 != 0 {
			l.Y = lhi.Y
		}
		if c&4 != 0 {
			l.Z = lhi.Z
		}
		x := b.FromLamda(l)
		lo = r3.Vec{X: math.Min(lo.X, x.X), Y: math.Min(lo.Y, x.Y), Z: math.Min(lo.Z, x.Z)}
		hi = r3.Vec{X: math.Max(hi.X, x.X), Y: math.Max(hi.Y, x.Y), Z: math.Max(hi.Z, x.Z)}
	}
	return lo, hi
}

// Heights returns the perpendicular widths of the cell along each axis.
// For orthogonal cells these are the edge lengths.
func (b *Box) Heights() r3.Vec {
	if !b.Triclinic {
		return b.prd
	}
	// distance between opposite faces = 1 / |row of h^-1|
	hi := &b.hInv
	return r3.Vec{
		X: 1 / math.Sqrt(hi[0]*hi[0]+hi[5]*hi[5]+hi[4]*hi[4]),
		Y: 1 / math.Sqrt(hi[1]*hi[1]+hi[3]*hi[3]),
		Z: 1 / hi[2],
	}
}
