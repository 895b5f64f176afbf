package neighbor

import (
	"context"

	"github.com/san-kum/mdcore/internal/atom"
	"github.com/san-kum/mdcore/internal/topology"
	"gonum.org/v1/gonum/spatial/r3"
)

// Reducer combines a flag across ranks.
type Reducer interface {
	AllReduceOr(ctx context.Context, flag bool) (bool, error)
}

// Stats counts list activity over a run.
type Stats struct {
	Builds     int64
	Dangerous  int64
	Occasional int64
	LastBuild  int64
	Pairs      int
}

// Builder owns a rank's bins and perpetual neighbor list.
type Builder struct {
	cfg  Config
	topo *topology.Topology
	dim  int

	bins  Bins
	xhold []r3.Vec
	ago   int
	list  *List

	Stats Stats
}

// NewBuilder validates cfg. topo may be nil.
func NewBuilder(cfg Config, topo *topology.Topology, dim int) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Builder{cfg: cfg, topo: topo, dim: dim, ago: -1}, nil
}

// Config returns the builder's settings.
func (b *Builder) Config() Config { return b.cfg }

// List returns the most recent perpetual list.
func (b *Builder) List() *List { return b.list }

// Setup places the bin grid over the region [lo, hi], which must cover
// the sub-box and its ghost halo.
func (b *Builder) Setup(lo, hi r3.Vec) {
	b.bins.Setup(lo, hi, b.cfg.CutNeigh(), b.cfg.BinFactor, b.dim)
}

// Bins exposes the bin grid of the last build.
func (b *Builder) Bins() *Bins { return &b.bins }

// Due advances the step counter and reports whether a rebuild should be
// considered this step.
func (b *Builder) Due() bool {
	b.ago++
	return b.ago >= b.cfg.Delay && b.ago%b.cfg.Every == 0
}

// Moved reports whether any owned particle moved more than half the skin
// since the last build, or the owned count changed.
func (b *Builder) Moved(t *atom.Table) bool {
	if len(b.xhold) != t.NLocal {
		return true
	}
	trigger := 0.25 * b.cfg.Skin * b.cfg.Skin
	for i := 0; i < t.NLocal; i++ {
		if r3.Norm2(r3.Sub(t.X[i], b.xhold[i])) > trigger {
			return true
		}
	}
	return false
}

// Decide makes the collective rebuild decision for this step. Every rank
// must call it every step.
func (b *Builder) Decide(ctx context.Context, t *atom.Table, red Reducer) (bool, error) {
	if !b.Due() {
		return false, nil
	}
	if !b.cfg.Check {
		return true, nil
	}
	flag, err := red.AllReduceOr(ctx, b.Moved(t))
	if err != nil {
		return false, err
	}
	if flag && b.ago == max(b.cfg.Every, b.cfg.Delay) {
		b.Stats.Dangerous++
	}
	return flag, nil
}

// Build bins every owned and ghost particle of t and rebuilds the
// perpetual list. Positions of owned particles are remembered for the
// displacement check.
func (b *Builder) Build(t *atom.Table, step int64) *List {
	b.list = b.build(t, b.cfg.Full(), b.cfg.Newton, b.cfg.CutNeigh(), b.list)
	b.xhold = append(b.xhold[:0], t.X[:t.NLocal]...)
	b.ago = 0
	b.Stats.Builds++
	b.Stats.LastBuild = step
	b.Stats.Pairs = b.list.Pairs()
	return b.list
}

// BuildOccasional returns a fresh full list within cutoff for diagnostics.
// It does not touch the perpetual list or the displacement history.
func (b *Builder) BuildOccasional(t *atom.Table, cutoff float64) *List {
	b.Stats.Occasional++
	return b.build(t, true, false, cutoff, nil)
}

func (b *Builder) build(t *atom.Table, full, newton bool, cut float64, reuse *List) *List {
	n := t.Len()
	b.bins.Fill(t.X, n)

	l := reuse
	if l == nil {
		l = &List{}
	}
	l.Full, l.Newton, l.Inum = full, newton, t.NLocal
	l.Offsets = append(l.Offsets[:0], 0)
	l.Neigh = l.Neigh[:0]

	cutsq := cut * cut
	specials := !b.topo.Empty()
	for i := 0; i < t.NLocal; i++ {
		xi := t.X[i]
		ci := b.bins.Of(i)
		sp := specials && b.topo.HasSpecials(t.Tag[i])
		for _, s := range b.bins.Stencil() {
			for _, j32 := range b.bins.Members([3]int{ci[0] + s[0], ci[1] + s[1], ci[2] + s[2]}) {
				j := int(j32)
				if j == i {
					continue
				}
				if !full && !keepHalf(i, j, t.NLocal, xi, t.X[j], newton) {
					continue
				}
				if r3.Norm2(r3.Sub(xi, t.X[j])) >= cutsq {
					continue
				}
				level := 0
				if sp {
					level = b.topo.Level(t.Tag[i], t.Tag[j])
				}
				if level != 0 {
					lj, coul := b.cfg.SpecialLJ[level], b.cfg.SpecialCoul[level]
					if lj == 0 && coul == 0 {
						continue
					}
					if lj == 1 && coul == 1 {
						level = 0
					}
				}
				l.Neigh = append(l.Neigh, encode(j, level))
			}
		}
		l.Offsets = append(l.Offsets, int32(len(l.Neigh)))
	}
	return l
}

// keepHalf assigns each unordered pair to one entry. Two owned particles
// go to the lower local index. An owned-ghost pair is kept on both ranks
// without newton; with newton it is kept only where the ghost lies above
// the owned particle in z, then y, then x.
func keepHalf(i, j, nlocal int, xi, xj r3.Vec, newton bool) bool {
	if j < nlocal {
		return j > i
	}
	if !newton {
		return true
	}
	if xj.Z != xi.Z {
		return xj.Z > xi.Z
	}
	if xj.Y != xi.Y {
		return xj.Y > xi.Y
	}
	return xj.X > xi.X
}
