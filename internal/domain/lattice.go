package domain

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/mdcore/internal/dynamo"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// LatticeSpec describes a lattice as it appears in configuration.
type LatticeSpec struct {
	Style string `yaml:"style"`
	// Scale is the lattice constant, or the reduced density for lj units.
	Scale  float64    `yaml:"scale"`
	Orient [3][3]int  `yaml:"orient,omitempty"`
	Origin [3]float64 `yaml:"origin,omitempty"`
	// Custom cell vectors and basis, in units of the lattice constant.
	A1    [3]float64   `yaml:"a1,omitempty"`
	A2    [3]float64   `yaml:"a2,omitempty"`
	A3    [3]float64   `yaml:"a3,omitempty"`
	Basis [][3]float64 `yaml:"basis,omitempty"`
}

type cell struct {
	a1, a2, a3 r3.Vec
	basis      []r3.Vec
	dim        int // 0 means either
}

var cells = map[string]cell{
	"sc":  {a1: r3.Vec{X: 1}, a2: r3.Vec{Y: 1}, a3: r3.Vec{Z: 1}, basis: []r3.Vec{{}}, dim: 3},
	"bcc": {a1: r3.Vec{X: 1}, a2: r3.Vec{Y: 1}, a3: r3.Vec{Z: 1}, basis: []r3.Vec{{}, {X: 0.5, Y: 0.5, Z: 0.5}}, dim: 3},
	"fcc": {a1: r3.Vec{X: 1}, a2: r3.Vec{Y: 1}, a3: r3.Vec{Z: 1}, dim: 3, basis: []r3.Vec{
		{}, {X: 0.5, Y: 0.5}, {X: 0.5, Z: 0.5}, {Y: 0.5, Z: 0.5},
	}},
	"hcp": {a1: r3.Vec{X: 1}, a2: r3.Vec{Y: math.Sqrt(3)}, a3: r3.Vec{Z: math.Sqrt(8.0 / 3.0)}, dim: 3, basis: []r3.Vec{
		{}, {X: 0.5, Y: 0.5}, {X: 0.5, Y: 5.0 / 6.0, Z: 0.5}, {Y: 1.0 / 3.0, Z: 0.5},
	}},
	"diamond": {a1: r3.Vec{X: 1}, a2: r3.Vec{Y: 1}, a3: r3.Vec{Z: 1}, dim: 3, basis: []r3.Vec{
		{}, {Y: 0.5, Z: 0.5}, {X: 0.5, Z: 0.5}, {X: 0.5, Y: 0.5},
		{X: 0.25, Y: 0.25, Z: 0.25}, {X: 0.25, Y: 0.75, Z: 0.75}, {X: 0.75, Y: 0.25, Z: 0.75}, {X: 0.75, Y: 0.75, Z: 0.25},
	}},
	"sq":  {a1: r3.Vec{X: 1}, a2: r3.Vec{Y: 1}, a3: r3.Vec{Z: 1}, basis: []r3.Vec{{}}, dim: 2},
	"sq2": {a1: r3.Vec{X: 1}, a2: r3.Vec{Y: 1}, a3: r3.Vec{Z: 1}, basis: []r3.Vec{{}, {X: 0.5, Y: 0.5}}, dim: 2},
	"hex": {a1: r3.Vec{X: 1}, a2: r3.Vec{Y: math.Sqrt(3)}, a3: r3.Vec{Z: 1}, basis: []r3.Vec{{}, {X: 0.5, Y: 0.5}}, dim: 2},
}

// LatticeStyles lists the recognised lattice styles.
func LatticeStyles() []string {
	names := make([]string, 0, len(cells)+1)
	for k := range cells {
		names = append(names, k)
	}
	names = append(names, "custom")
	sort.Strings(names)
	return names
}

// Lattice maps between lattice coordinates (unit-cell multiples) and box
// coordinates: x = R * P * (p + origin), with P the scaled primitive cell
// and R the rows of the normalised orient vectors.
type Lattice struct {
	Style   string
	Basis   []r3.Vec
	Origin  r3.Vec
	Spacing r3.Vec // extent of one unit cell along x, y, z in box units

	scale     float64
	primitive [3][3]float64
	priminv   [3][3]float64
	rotrow    [3][3]float64
}

// NewLattice validates spec and builds the transform. ljUnits selects the
// reduced-density interpretation of Scale.
func NewLattice(spec LatticeSpec, dimension int, ljUnits bool) (*Lattice, error) {
	var c cell
	switch spec.Style {
	case "custom":
		if len(spec.Basis) == 0 {
			return nil, dynamo.Configf("lattice.basis", "custom lattice needs at least one basis atom")
		}
		c = cell{a1: vec(spec.A1), a2: vec(spec.A2), a3: vec(spec.A3)}
		for _, b := range spec.Basis {
			for _, v := range b {
				if v < 0 || v >= 1 {
					return nil, dynamo.Configf("lattice.basis", "basis coordinate %g outside [0,1)", v)
				}
			}
			c.basis = append(c.basis, vec(b))
		}
	default:
		var ok bool
		c, ok = cells[spec.Style]
		if !ok {
			return nil, dynamo.Configf("lattice.style", "unknown style %q", spec.Style)
		}
		c.basis = append([]r3.Vec(nil), c.basis...)
	}
	if c.dim != 0 && c.dim != dimension {
		return nil, dynamo.Configf("lattice.style", "style %s cannot be used in a %dd simulation", spec.Style, dimension)
	}
	if !(spec.Scale > 0) {
		return nil, dynamo.Configf("lattice.scale", "must be positive, got %g", spec.Scale)
	}

	orient := spec.Orient
	if orient == ([3][3]int{}) {
		orient = [3][3]int{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	}
	if err := checkCell(c, orient, dimension); err != nil {
		return nil, err
	}

	l := &Lattice{Style: spec.Style, Basis: c.basis, Origin: vec(spec.Origin)}
	if l.Origin.X < 0 || l.Origin.X >= 1 || l.Origin.Y < 0 || l.Origin.Y >= 1 || l.Origin.Z < 0 || l.Origin.Z >= 1 {
		return nil, dynamo.Configf("lattice.origin", "components must lie in [0,1)")
	}

	l.scale = spec.Scale
	if ljUnits {
		vol := cellVolume(c, dimension)
		l.scale = math.Pow(float64(len(c.basis))/vol/spec.Scale, 1/float64(dimension))
	}

	prim := mat.NewDense(3, 3, nil)
	for col, a := range []r3.Vec{c.a1, c.a2, c.a3} {
		prim.Set(0, col, a.X*l.scale)
		prim.Set(1, col, a.Y*l.scale)
		prim.Set(2, col, a.Z*l.scale)
	}
	var inv mat.Dense
	if err := inv.Inverse(prim); err != nil {
		return nil, dynamo.Configf("lattice", "singular primitive cell: %v", err)
	}
	rot := mat.NewDense(3, 3, nil)
	for r, o := range orient {
		v := r3.Unit(ivec(o))
		rot.Set(r, 0, v.X)
		rot.Set(r, 1, v.Y)
		rot.Set(r, 2, v.Z)
	}
	l.primitive = dense33(prim)
	l.priminv = dense33(&inv)
	l.rotrow = dense33(rot)

	lo, hi := l.cellBBox()
	l.Spacing = r3.Sub(hi, lo)
	return l, nil
}

func checkCell(c cell, orient [3][3]int, dimension int) error {
	a1, a2, a3 := c.a1, c.a2, c.a3
	if r3.Norm(a1) == 0 || r3.Norm(a2) == 0 || r3.Norm(a3) == 0 {
		return dynamo.Configf("lattice", "cell vectors must be non-zero")
	}
	if r3.Norm(r3.Cross(a1, a2)) < 1e-12 || r3.Norm(r3.Cross(a2, a3)) < 1e-12 || r3.Norm(r3.Cross(a1, a3)) < 1e-12 {
		return dynamo.Configf("lattice", "cell vectors are collinear")
	}
	cm := mat.NewDense(3, 3, []float64{a1.X, a2.X, a3.X, a1.Y, a2.Y, a3.Y, a1.Z, a2.Z, a3.Z})
	if mat.Det(cm) <= 0 {
		return dynamo.Configf("lattice", "cell vectors are not right-handed")
	}

	ox, oy, oz := ivec(orient[0]), ivec(orient[1]), ivec(orient[2])
	if r3.Norm(ox) == 0 || r3.Norm(oy) == 0 || r3.Norm(oz) == 0 {
		return dynamo.Configf("lattice.orient", "orient vectors must be non-zero")
	}
	if r3.Dot(ox, oy) != 0 || r3.Dot(oy, oz) != 0 || r3.Dot(ox, oz) != 0 {
		return dynamo.Configf("lattice.orient", "orient vectors are not mutually orthogonal")
	}
	if r3.Dot(r3.Cross(ox, oy), oz) <= 0 {
		return dynamo.Configf("lattice.orient", "orient vectors are not right-handed")
	}

	if dimension == 2 {
		if a1.Z != 0 || a2.Z != 0 || a3.X != 0 || a3.Y != 0 {
			return dynamo.Configf("lattice", "2d cell vectors must lie in the xy plane with a3 along z")
		}
		if orient[0][2] != 0 || orient[1][2] != 0 || orient[2] != [3]int{0, 0, 1} {
			return dynamo.Configf("lattice.orient", "2d orient must keep z along z")
		}
		for _, b := range c.basis {
			if b.Z != 0 {
				return dynamo.Configf("lattice.basis", "2d basis atoms must have z = 0")
			}
		}
	}
	return nil
}

func cellVolume(c cell, dimension int) float64 {
	if dimension == 2 {
		return math.Abs(c.a1.X*c.a2.Y - c.a1.Y*c.a2.X)
	}
	return math.Abs(r3.Dot(c.a1, r3.Cross(c.a2, c.a3)))
}

func vec(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }

func ivec(a [3]int) r3.Vec {
	return r3.Vec{X: float64(a[0]), Y: float64(a[1]), Z: float64(a[2])}
}

func dense33(m *mat.Dense) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

func mul33(m *[3][3]float64, v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

func mul33T(m *[3][3]float64, v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m[0][0]*v.X + m[1][0]*v.Y + m[2][0]*v.Z,
		Y: m[0][1]*v.X + m[1][1]*v.Y + m[2][1]*v.Z,
		Z: m[0][2]*v.X + m[1][2]*v.Y + m[2][2]*v.Z,
	}
}

// LatticeToBox converts lattice coordinates to box coordinates.
func (l *Lattice) LatticeToBox(p r3.Vec) r3.Vec {
	return mul33(&l.rotrow, mul33(&l.primitive, r3.Add(p, l.Origin)))
}

// BoxToLattice is the inverse of LatticeToBox.
func (l *Lattice) BoxToLattice(x r3.Vec) r3.Vec {
	return r3.Sub(mul33(&l.priminv, mul33T(&l.rotrow, x)), l.Origin)
}

// Scale returns the lattice constant in box units.
func (l *Lattice) Scale() float64 { return l.scale }

func (l *Lattice) cellBBox() (lo, hi r3.Vec) {
	inf := math.Inf(1)
	lo = r3.Vec{X: inf, Y: inf, Z: inf}
	hi = r3.Scale(-1, lo)
	for c := 0; c < 8; c++ {
		p := r3.Vec{X: float64(c & 1), Y: float64(c >> 1 & 1), Z: float64(c >> 2 & 1)}
		x := mul33(&l.rotrow, mul33(&l.primitive, p))
		lo = r3.Vec{X: math.Min(lo.X, x.X), Y: math.Min(lo.Y, x.Y), Z: math.Min(lo.Z, x.Z)}
		hi = r3.Vec{X: math.Max(hi.X, x.X), Y: math.Max(hi.Y, x.Y), Z: math.Max(hi.Z, x.Z)}
	}
	return lo, hi
}

// Site is one lattice point generated inside a box.
type Site struct {
	X     r3.Vec
	Basis int
}

// Sites returns every lattice point inside box, in a deterministic order.
// On periodic axes a point within a small tolerance of hi is dropped so
// that a box of whole cells does not duplicate its lo face.
func (l *Lattice) Sites(box *Box) []Site {
	prd := box.Prd()
	eps := r3.Scale(1e-6, prd)
	if box.Triclinic {
		eps = r3.Vec{X: 1e-6, Y: 1e-6, Z: 1e-6}
	}

	var plo, phi r3.Vec
	first := true
	for c := 0; c < 8; c++ {
		l3 := r3.Vec{X: float64(c & 1), Y: float64(c >> 1 & 1), Z: float64(c >> 2 & 1)}
		p := l.BoxToLattice(box.FromLamda(l3))
		if first {
			plo, phi, first = p, p, false
			continue
		}
		plo = r3.Vec{X: math.Min(plo.X, p.X), Y: math.Min(plo.Y, p.Y), Z: math.Min(plo.Z, p.Z)}
		phi = r3.Vec{X: math.Max(phi.X, p.X), Y: math.Max(phi.Y, p.Y), Z: math.Max(phi.Z, p.Z)}
	}
	ilo := [3]int{int(math.Floor(plo.X)) - 1, int(math.Floor(plo.Y)) - 1, int(math.Floor(plo.Z)) - 1}
	ihi := [3]int{int(math.Ceil(phi.X)) + 1, int(math.Ceil(phi.Y)) + 1, int(math.Ceil(phi.Z)) + 1}
	if box.Dimension == 2 {
		ilo[2], ihi[2] = 0, 0
	}

	inside := func(x r3.Vec) bool {
		c, lo, hi := x, box.Lo, box.Hi
		if box.Triclinic {
			c, lo, hi = box.ToLamda(x), r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}
		}
		cs, los, his, es := [3]float64{c.X, c.Y, c.Z}, [3]float64{lo.X, lo.Y, lo.Z}, [3]float64{hi.X, hi.Y, hi.Z}, [3]float64{eps.X, eps.Y, eps.Z}
		for d := 0; d < box.Dimension; d++ {
			if box.Periodic[d] {
				if cs[d] < los[d]-es[d] || cs[d] >= his[d]-2*es[d] {
					return false
				}
			} else if cs[d] < los[d] || cs[d] > his[d] {
				return false
			}
		}
		return true
	}

	var sites []Site
	for k := ilo[2]; k <= ihi[2]; k++ {
		for j := ilo[1]; j <= ihi[1]; j++ {
			for i := ilo[0]; i <= ihi[0]; i++ {
				for m, b := range l.Basis {
					p := r3.Add(r3.Vec{X: float64(i), Y: float64(j), Z: float64(k)}, b)
					x := l.LatticeToBox(p)
					if box.Dimension == 2 {
						x.Z = 0
					}
					if inside(x) {
						sites = append(sites, Site{X: x, Basis: m})
					}
				}
			}
		}
	}
	return sites
}

func (l *Lattice) String() string {
	return fmt.Sprintf("%s lattice, constant %.6g, %d basis atoms, spacing (%.6g %.6g %.6g)",
		l.Style, l.scale, len(l.Basis), l.Spacing.X, l.Spacing.Y, l.Spacing.Z)
}
