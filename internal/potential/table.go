package potential

import (
	"fmt"
	"math"
)

// Table is a symmetric per-type-pair coefficient arena for types 1..N,
// allocated once and addressed by index.
type Table[T any] struct {
	N    int    `yaml:"n"`
	Data []T    `yaml:"data"`
	Set  []bool `yaml:"set"`
}

// NewTable allocates a table for ntypes types.
func NewTable[T any](ntypes int) *Table[T] {
	n := ntypes + 1
	return &Table[T]{N: ntypes, Data: make([]T, n*n), Set: make([]bool, n*n)}
}

func (t *Table[T]) idx(i, j int) int { return i*(t.N+1) + j }

// Put stores v for (i, j) and (j, i).
func (t *Table[T]) Put(i, j int, v T) error {
	if i < 1 || j < 1 || i > t.N || j > t.N {
		return fmt.Errorf("potential: type pair (%d,%d) outside 1..%d", i, j, t.N)
	}
	t.Data[t.idx(i, j)], t.Data[t.idx(j, i)] = v, v
	t.Set[t.idx(i, j)], t.Set[t.idx(j, i)] = true, true
	return nil
}

// At returns the coefficients of (i, j).
func (t *Table[T]) At(i, j int) *T { return &t.Data[t.idx(i, j)] }

// IsSet reports whether (i, j) was given explicitly or by mixing.
func (t *Table[T]) IsSet(i, j int) bool { return t.Set[t.idx(i, j)] }

// Mix fills unset cross pairs from the diagonal with fn. Without fn every
// pair must have been set.
func (t *Table[T]) Mix(name string, fn func(a, b T) T) error {
	for i := 1; i <= t.N; i++ {
		for j := i; j <= t.N; j++ {
			if t.IsSet(i, j) {
				continue
			}
			if fn == nil || i == j || !t.IsSet(i, i) || !t.IsSet(j, j) {
				return fmt.Errorf("potential: %s coefficients for types %d %d are not set", name, i, j)
			}
			if err := t.Put(i, j, fn(*t.At(i, i), *t.At(j, j))); err != nil {
				return err
			}
		}
	}
	return nil
}

// Each calls fn for every pair i <= j.
func (t *Table[T]) Each(fn func(i, j int, v *T)) {
	for i := 1; i <= t.N; i++ {
		for j := i; j <= t.N; j++ {
			fn(i, j, t.At(i, j))
		}
	}
}

func mixEnergy(a, b float64) float64   { return math.Sqrt(a * b) }
func mixDistance(a, b float64) float64 { return math.Sqrt(a * b) }

// perType is a per-type coefficient list for bonded styles.
type perType[T any] struct {
	Data []T    `yaml:"data"`
	Set  []bool `yaml:"set"`
}

func newPerType[T any](ntypes int) *perType[T] {
	return &perType[T]{Data: make([]T, ntypes+1), Set: make([]bool, ntypes+1)}
}

func (p *perType[T]) put(typ int, v T) error {
	if typ < 1 || typ >= len(p.Data) {
		return fmt.Errorf("potential: type %d outside 1..%d", typ, len(p.Data)-1)
	}
	p.Data[typ], p.Set[typ] = v, true
	return nil
}

func (p *perType[T]) check(name string) error {
	for k := 1; k < len(p.Set); k++ {
		if !p.Set[k] {
			return fmt.Errorf("potential: %s coefficients for type %d are not set", name, k)
		}
	}
	return nil
}
