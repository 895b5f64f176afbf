// Package topology holds bonded interactions and the special-neighbor
// levels derived from them.
//
// A Topology is built once and then only read, so every rank can share the
// same value.
package topology

import (
	"fmt"
	"sort"
)

// Special levels between two particles.
const (
	None = 0
	L12  = 1
	L13  = 2
	L14  = 3
)

// Bond joins particles A and B. The rank owning A evaluates it.
type Bond struct {
	Type int   `yaml:"type"`
	A    int64 `yaml:"a"`
	B    int64 `yaml:"b"`
}

// Angle is the bend A-B-C centred on B. The rank owning B evaluates it.
type Angle struct {
	Type int   `yaml:"type"`
	A    int64 `yaml:"a"`
	B    int64 `yaml:"b"`
	C    int64 `yaml:"c"`
}

type special struct {
	tag   int64
	level int8
}

// Topology is an immutable set of bonds and angles indexed by tag.
type Topology struct {
	Bonds  []Bond
	Angles []Angle

	bondsOf  map[int64][]int32
	anglesOf map[int64][]int32
	specials map[int64][]special
	maxLevel int
}

// New validates bonds and angles and derives 1-2, 1-3 and 1-4 neighbors
// from the bond graph.
func New(bonds []Bond, angles []Angle) (*Topology, error) {
	t := &Topology{
		Bonds:    append([]Bond(nil), bonds...),
		Angles:   append([]Angle(nil), angles...),
		bondsOf:  make(map[int64][]int32),
		anglesOf: make(map[int64][]int32),
		specials: make(map[int64][]special),
	}
	adj := make(map[int64][]int64)
	for k, b := range t.Bonds {
		if b.A <= 0 || b.B <= 0 || b.A == b.B {
			return nil, fmt.Errorf("topology: bond %d joins invalid tags %d-%d", k, b.A, b.B)
		}
		if b.Type < 1 {
			return nil, fmt.Errorf("topology: bond %d has type %d", k, b.Type)
		}
		t.bondsOf[b.A] = append(t.bondsOf[b.A], int32(k))
		adj[b.A] = append(adj[b.A], b.B)
		adj[b.B] = append(adj[b.B], b.A)
	}
	for k, a := range t.Angles {
		if a.A <= 0 || a.B <= 0 || a.C <= 0 || a.A == a.B || a.B == a.C || a.A == a.C {
			return nil, fmt.Errorf("topology: angle %d has invalid tags %d-%d-%d", k, a.A, a.B, a.C)
		}
		if a.Type < 1 {
			return nil, fmt.Errorf("topology: angle %d has type %d", k, a.Type)
		}
		t.anglesOf[a.B] = append(t.anglesOf[a.B], int32(k))
	}

	for tag := range adj {
		level := map[int64]int8{tag: -1}
		frontier := []int64{tag}
		for l := int8(L12); l <= L14; l++ {
			var next []int64
			for _, u := range frontier {
				for _, v := range adj[u] {
					if _, seen := level[v]; !seen {
						level[v] = l
						next = append(next, v)
					}
				}
			}
			frontier = next
		}
		var sp []special
		for other, l := range level {
			if l > 0 {
				sp = append(sp, special{tag: other, level: l})
				if int(l) > t.maxLevel {
					t.maxLevel = int(l)
				}
			}
		}
		sort.Slice(sp, func(i, j int) bool { return sp[i].tag < sp[j].tag })
		t.specials[tag] = sp
	}
	return t, nil
}

// Empty reports whether there are no bonded interactions.
func (t *Topology) Empty() bool {
	return t == nil || (len(t.Bonds) == 0 && len(t.Angles) == 0)
}

// Level returns the special level of the pair (a, b), or None.
func (t *Topology) Level(a, b int64) int {
	if t == nil {
		return None
	}
	sp := t.specials[a]
	k := sort.Search(len(sp), func(i int) bool { return sp[i].tag >= b })
	if k < len(sp) && sp[k].tag == b {
		return int(sp[k].level)
	}
	return None
}

// HasSpecials reports whether tag has any special partner.
func (t *Topology) HasSpecials(tag int64) bool {
	return t != nil && len(t.specials[tag]) > 0
}

// Specials calls fn for every special partner of tag in tag order.
func (t *Topology) Specials(tag int64, fn func(partner int64, level int)) {
	if t == nil {
		return
	}
	for _, s := range t.specials[tag] {
		fn(s.tag, int(s.level))
	}
}

// BondsOf returns the indices of the bonds evaluated by the owner of tag.
func (t *Topology) BondsOf(tag int64) []int32 {
	if t == nil {
		return nil
	}
	return t.bondsOf[tag]
}

// AnglesOf returns the indices of the angles centred on tag.
func (t *Topology) AnglesOf(tag int64) []int32 {
	if t == nil {
		return nil
	}
	return t.anglesOf[tag]
}

// MaxLevel returns the deepest special level present.
func (t *Topology) MaxLevel() int {
	if t == nil {
		return 0
	}
	return t.maxLevel
}

// Chain returns the bonds and angles of a linear chain of n particles with
// consecutive tags starting at first. angleType 0 skips the angles.
func Chain(first int64, n, bondType, angleType int) ([]Bond, []Angle) {
	var bonds []Bond
	var angles []Angle
	for k := 0; k+1 < n; k++ {
		bonds = append(bonds, Bond{Type: bondType, A: first + int64(k), B: first + int64(k) + 1})
	}
	if angleType > 0 {
		for k := 0; k+2 < n; k++ {
			a := first + int64(k)
			angles = append(angles, Angle{Type: angleType, A: a, B: a + 1, C: a + 2})
		}
	}
	return bonds, angles
}
