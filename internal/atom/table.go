// Package atom holds the per-partition particle property table.
//
// Owned particles occupy indices [0, NLocal) and ghosts follow at
// [NLocal, NLocal+NGhost). Every per-particle slice is indexed by local
// index and kept the same length.
package atom

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Table is the struct-of-arrays particle store of one partition.
type Table struct {
	NLocal int
	NGhost int
	NTypes int

	Tag    []int64
	Type   []int
	X      []r3.Vec
	V      []r3.Vec
	F      []r3.Vec
	Q      []float64
	RMass  []float64
	Image  [][3]int32
	Frozen []bool

	// Mass is indexed by type (1..NTypes) and used when PerAtomMass is false.
	Mass        []float64
	PerAtomMass bool

	extraNames []string
	extra      [][]float64

	tagMap map[int64][]int32
}

// New returns an empty table for ntypes particle types with the given
// custom per-particle scalar properties.
func New(ntypes int, extras ...string) *Table {
	t := &Table{
		NTypes:     ntypes,
		Mass:       make([]float64, ntypes+1),
		extraNames: append([]string(nil), extras...),
		extra:      make([][]float64, len(extras)),
	}
	for i := range t.Mass {
		t.Mass[i] = 1
	}
	return t
}

// Len returns the number of owned plus ghost particles.
func (t *Table) Len() int { return t.NLocal + t.NGhost }

// Extras returns the names of the custom per-particle properties.
func (t *Table) Extras() []string { return t.extraNames }

// Extra returns the column of a custom property, or nil if it is unknown.
func (t *Table) Extra(name string) []float64 {
	for k, n := range t.extraNames {
		if n == name {
			return t.extra[k]
		}
	}
	return nil
}

// MassOf returns the mass of particle i.
func (t *Table) MassOf(i int) float64 {
	if t.PerAtomMass {
		return t.RMass[i]
	}
	return t.Mass[t.Type[i]]
}

// InvMass returns 1/m for particle i, or 0 for frozen particles.
func (t *Table) InvMass(i int) float64 {
	if t.Frozen[i] {
		return 0
	}
	return 1 / t.MassOf(i)
}

// Validate checks the type and mass columns of the owned particles.
func (t *Table) Validate() error {
	for i := 0; i < t.NLocal; i++ {
		if t.Type[i] < 1 || t.Type[i] > t.NTypes {
			return fmt.Errorf("atom: particle %d has type %d outside [1,%d]", t.Tag[i], t.Type[i], t.NTypes)
		}
		m := t.MassOf(i)
		if !(m > 0) || math.IsInf(m, 0) {
			return fmt.Errorf("atom: particle %d has invalid mass %g", t.Tag[i], m)
		}
	}
	return nil
}

func (t *Table) push(r *Record) int {
	t.Tag = append(t.Tag, r.Tag)
	t.Type = append(t.Type, int(r.Type))
	t.X = append(t.X, r.X)
	t.V = append(t.V, r.V)
	t.F = append(t.F, r3.Vec{})
	t.Q = append(t.Q, r.Q)
	t.RMass = append(t.RMass, r.RMass)
	t.Image = append(t.Image, r.Image)
	t.Frozen = append(t.Frozen, r.Flags&FlagFrozen != 0)
	for k := range t.extra {
		v := 0.0
		if k < len(r.Extra) {
			v = r.Extra[k]
		}
		t.extra[k] = append(t.extra[k], v)
	}
	return len(t.Tag) - 1
}

// AddOwned appends an owned particle. Ghosts must have been cleared first.
func (t *Table) AddOwned(r Record) int {
	if t.NGhost != 0 {
		panic("atom: AddOwned with ghosts present")
	}
	i := t.push(&r)
	t.NLocal++
	return i
}

// AddGhost appends a ghost particle after all owned particles.
func (t *Table) AddGhost(r Record) int {
	i := t.push(&r)
	t.NGhost++
	return i
}

// Remove deletes owned particle i by moving the last owned particle into its
// slot. Ghosts must have been cleared first.
func (t *Table) Remove(i int) {
	if t.NGhost != 0 {
		panic("atom: Remove with ghosts present")
	}
	last := t.NLocal - 1
	if i != last {
		t.copyAtom(last, i)
	}
	t.truncate(last)
	t.NLocal--
}

func (t *Table) copyAtom(src, dst int) {
	t.Tag[dst] = t.Tag[src]
	t.Type[dst] = t.Type[src]
	t.X[dst] = t.X[src]
	t.V[dst] = t.V[src]
	t.F[dst] = t.F[src]
	t.Q[dst] = t.Q[src]
	t.RMass[dst] = t.RMass[src]
	t.Image[dst] = t.Image[src]
	t.Frozen[dst] = t.Frozen[src]
	for k := range t.extra {
		t.extra[k][dst] = t.extra[k][src]
	}
}

func (t *Table) truncate(n int) {
	t.Tag = t.Tag[:n]
	t.Type = t.Type[:n]
	t.X = t.X[:n]
	t.V = t.V[:n]
	t.F = t.F[:n]
	t.Q = t.Q[:n]
	t.RMass = t.RMass[:n]
	t.Image = t.Image[:n]
	t.Frozen = t.Frozen[:n]
	for k := range t.extra {
		t.extra[k] = t.extra[k][:n]
	}
}

// ClearGhosts drops every ghost particle and the tag map.
func (t *Table) ClearGhosts() {
	t.truncate(t.NLocal)
	t.NGhost = 0
	t.tagMap = nil
}

// ZeroForces resets the force of every owned and ghost particle.
func (t *Table) ZeroForces() {
	for i := range t.F {
		t.F[i] = r3.Vec{}
	}
}

// Record returns a copy of particle i.
func (t *Table) Record(i int) Record {
	r := Record{
		Tag:   t.Tag[i],
		Type:  int32(t.Type[i]),
		Image: t.Image[i],
		X:     t.X[i],
		V:     t.V[i],
		Q:     t.Q[i],
		RMass: t.RMass[i],
	}
	if t.Frozen[i] {
		r.Flags |= FlagFrozen
	}
	if len(t.extra) > 0 {
		r.Extra = make([]float64, len(t.extra))
		for k := range t.extra {
			r.Extra[k] = t.extra[k][i]
		}
	}
	return r
}

// SetRecord overwrites particle i with r, keeping its force.
func (t *Table) SetRecord(i int, r Record) {
	t.Tag[i] = r.Tag
	t.Type[i] = int(r.Type)
	t.X[i] = r.X
	t.V[i] = r.V
	t.Q[i] = r.Q
	t.RMass[i] = r.RMass
	t.Image[i] = r.Image
	t.Frozen[i] = r.Flags&FlagFrozen != 0
	for k := range t.extra {
		v := 0.0
		if k < len(r.Extra) {
			v = r.Extra[k]
		}
		t.extra[k][i] = v
	}
}

// State returns the diagnostic view of particle i.
func (t *Table) State(i int) (tag int64, typ int, x, v, f r3.Vec) {
	return t.Tag[i], t.Type[i], t.X[i], t.V[i], t.F[i]
}

// BuildMap indexes every owned and ghost particle by tag. A tag can map to
// several local indices when periodic images of it are present as ghosts;
// the owned copy, if any, is listed first.
func (t *Table) BuildMap() {
	m := make(map[int64][]int32, t.Len())
	for i := 0; i < t.Len(); i++ {
		m[t.Tag[i]] = append(m[t.Tag[i]], int32(i))
	}
	t.tagMap = m
}

// Lookup returns the local indices of a tag.
func (t *Table) Lookup(tag int64) []int32 {
	return t.tagMap[tag]
}

// Closest returns the local index of the image of tag nearest to ref, or -1
// if no copy of the particle is present on this partition.
func (t *Table) Closest(tag int64, ref r3.Vec) int {
	idx := t.tagMap[tag]
	if len(idx) == 0 {
		return -1
	}
	best := int(idx[0])
	bestD := r3.Norm2(r3.Sub(t.X[best], ref))
	for _, j := range idx[1:] {
		d := r3.Norm2(r3.Sub(t.X[j], ref))
		if d < bestD {
			best, bestD = int(j), d
		}
	}
	return best
}
