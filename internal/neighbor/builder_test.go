package neighbor

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"sync"
	"testing"

	"github.com/san-kum/mdcore/internal/atom"
	"github.com/san-kum/mdcore/internal/comm"
	"github.com/san-kum/mdcore/internal/domain"
	"github.com/san-kum/mdcore/internal/topology"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

type pair [2]int64

func norm(a, b int64) pair {
	if a > b {
		a, b = b, a
	}
	return pair{a, b}
}

// ranked builds ghosts and a list on every rank of grid and returns the
// per-rank tables and lists.
func ranked(t *testing.T, box *domain.Box, grid [3]int, recs []atom.Record, cfg Config, topo *topology.Topology) ([]*atom.Table, []*List) {
	t.Helper()
	layout := comm.NewLayout(box, grid)
	world := comm.NewWorld(layout.Size())
	parts := layout.Distribute(box, recs)
	tables := make([]*atom.Table, layout.Size())
	lists := make([]*List, layout.Size())
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(context.Background())
	for r := 0; r < layout.Size(); r++ {
		c := comm.New(world.Endpoint(r), layout, box)
		g.Go(func() error {
			if err := c.Setup(cfg.CutNeigh()); err != nil {
				return err
			}
			tb := atom.New(1)
			for _, rec := range parts[c.Rank()] {
				tb.AddOwned(rec)
			}
			if err := c.Borders(ctx, tb); err != nil {
				return err
			}
			b, err := NewBuilder(cfg, topo, box.Dimension)
			if err != nil {
				return err
			}
			lo, hi := c.SubLo, c.SubHi
			cn := cfg.CutNeigh()
			b.Setup(r3.Vec{X: lo[0] - cn, Y: lo[1] - cn, Z: lo[2] - cn}, r3.Vec{X: hi[0] + cn, Y: hi[1] + cn, Z: hi[2] + cn})
			l := b.Build(tb, 0)
			mu.Lock()
			tables[c.Rank()], lists[c.Rank()] = tb, l
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	return tables, lists
}

func bruteForce(box *domain.Box, recs []atom.Record, cut float64) map[pair]bool {
	out := map[pair]bool{}
	for i := range recs {
		for j := i + 1; j < len(recs); j++ {
			d := box.MinimumImage(r3.Sub(recs[i].X, recs[j].X))
			if r3.Norm2(d) < cut*cut {
				out[norm(recs[i].Tag, recs[j].Tag)] = true
			}
		}
	}
	return out
}

func collect(tables []*atom.Table, lists []*List) (map[pair]int, int) {
	seen := map[pair]int{}
	entries := 0
	for r, l := range lists {
		tb := tables[r]
		for i := 0; i < l.Inum; i++ {
			for _, j := range l.Neighbors(i) {
				seen[norm(tb.Tag[i], tb.Tag[Index(j)])]++
				entries++
			}
		}
	}
	return seen, entries
}

func gas(box *domain.Box, n int, seed int64) []atom.Record {
	rng := rand.New(rand.NewSource(seed))
	prd := box.Prd()
	recs := make([]atom.Record, n)
	for i := range recs {
		recs[i] = atom.Record{Tag: int64(i + 1), Type: 1, X: r3.Vec{
			X: box.Lo.X + rng.Float64()*prd.X,
			Y: box.Lo.Y + rng.Float64()*prd.Y,
			Z: box.Lo.Z + rng.Float64()*prd.Z,
		}}
	}
	return recs
}

func cube(t *testing.T, l float64) *domain.Box {
	box, err := domain.NewBox(r3.Vec{}, r3.Vec{X: l, Y: l, Z: l}, [3]bool{true, true, true}, 3)
	if err != nil {
		t.Fatal(err)
	}
	return box
}

func TestTwoParticleScenario(t *testing.T) {
	box := cube(t, 10)
	cfg := DefaultConfig()
	recs := []atom.Record{
		{Tag: 1, Type: 1, X: r3.Vec{}},
		{Tag: 2, Type: 1, X: r3.Vec{X: 2}},
	}
	tables, lists := ranked(t, box, [3]int{1, 1, 1}, recs, cfg, nil)
	if got := lists[0].Pairs(); got != 1 {
		t.Fatalf("pairs = %d, want 1", got)
	}

	tb := tables[0]
	b, _ := NewBuilder(cfg, nil, 3)
	b.Setup(r3.Vec{X: -3, Y: -3, Z: -3}, r3.Vec{X: 13, Y: 13, Z: 13})
	b.Build(tb, 0)
	if b.Moved(tb) {
		t.Fatal("no particle moved yet")
	}
	tb.X[1] = r3.Vec{X: 2.1}
	if b.Moved(tb) {
		t.Error("0.1 is below skin/2 and must not trigger")
	}
	tb.X[1] = r3.Vec{X: 2.2}
	if !b.Moved(tb) {
		t.Error("0.2 exceeds skin/2 and must trigger a rebuild")
	}
}

func TestHalfListMatchesBruteForce(t *testing.T) {
	box := cube(t, 18)
	recs := gas(box, 700, 5)
	want := bruteForce(box, recs, 2.8)

	for _, grid := range [][3]int{{1, 1, 1}, {2, 1, 1}, {2, 2, 2}, {3, 2, 1}} {
		for _, newton := range []bool{true, false} {
			cfg := DefaultConfig()
			cfg.Newton = newton
			tables, lists := ranked(t, box, grid, recs, cfg, nil)
			seen, _ := collect(tables, lists)
			for p := range want {
				n := seen[p]
				if newton && n != 1 {
					t.Errorf("grid %v newton: pair %v stored %d times", grid, p, n)
				}
				if !newton && n < 1 {
					t.Errorf("grid %v newton off: pair %v missing", grid, p)
				}
			}
			if len(seen) != len(want) {
				t.Errorf("grid %v newton=%v: %d distinct pairs, want %d", grid, newton, len(seen), len(want))
			}
		}
	}
}

func TestFullListDoublesHalf(t *testing.T) {
	box := cube(t, 15)
	recs := gas(box, 500, 9)
	grid := [3]int{2, 1, 1}

	cfg := DefaultConfig()
	tHalf, lHalf := ranked(t, box, grid, recs, cfg, nil)
	_, halfEntries := collect(tHalf, lHalf)

	cfg.Style = "full"
	tFull, lFull := ranked(t, box, grid, recs, cfg, nil)
	seen, fullEntries := collect(tFull, lFull)

	if fullEntries != 2*halfEntries {
		t.Errorf("full entries %d, want 2 x %d", fullEntries, halfEntries)
	}
	for p, n := range seen {
		if n != 2 {
			t.Errorf("pair %v appears %d times in full lists", p, n)
		}
	}
}

func TestLargerSkinIsSuperset(t *testing.T) {
	box := cube(t, 16)
	recs := gas(box, 400, 13)
	cfg := DefaultConfig()
	cfg.Skin = 0.1
	small, ls := ranked(t, box, [3]int{2, 2, 1}, recs, cfg, nil)
	cfg.Skin = 0.6
	big, lb := ranked(t, box, [3]int{2, 2, 1}, recs, cfg, nil)
	a, _ := collect(small, ls)
	b, _ := collect(big, lb)
	for p := range a {
		if b[p] == 0 {
			t.Errorf("pair %v lost when skin grew", p)
		}
	}
	if len(b) <= len(a) {
		t.Errorf("larger skin found %d pairs, smaller %d", len(b), len(a))
	}
}

func TestSpecialTagging(t *testing.T) {
	box := cube(t, 20)
	var recs []atom.Record
	for k := 0; k < 5; k++ {
		recs = append(recs, atom.Record{Tag: int64(k + 1), Type: 1, X: r3.Vec{X: 5 + 0.9*float64(k), Y: 5, Z: 5}})
	}
	bonds, _ := topology.Chain(1, 5, 1, 0)
	topo, err := topology.New(bonds, nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg := DefaultConfig()
	cfg.Cutoff = 4
	cfg.SpecialLJ = [4]float64{1, 0, 0, 0.5}
	cfg.SpecialCoul = [4]float64{1, 0, 0, 0.5}
	tables, lists := ranked(t, box, [3]int{1, 1, 1}, recs, cfg, topo)

	levels := map[pair]int{}
	tb := tables[0]
	for i := 0; i < lists[0].Inum; i++ {
		for _, j := range lists[0].Neighbors(i) {
			levels[norm(tb.Tag[i], tb.Tag[Index(j)])] = SpecialLevel(j)
		}
	}
	// Chain 1-2-3-4-5 spaced 0.9 apart: 1-2 and 1-3 partners are
	// dropped, 1-4 partners tagged, 1-5 plain.
	want := map[pair]int{{1, 4}: topology.L14, {2, 5}: topology.L14, {1, 5}: 0}
	if len(levels) != len(want) {
		t.Fatalf("list holds %v, want %v", levels, want)
	}
	for p, l := range want {
		got, ok := levels[p]
		if !ok || got != l {
			t.Errorf("pair %v level %d (present %v), want %d", p, got, ok, l)
		}
	}
}

type orFunc func(bool) bool

func (f orFunc) AllReduceOr(_ context.Context, flag bool) (bool, error) { return f(flag), nil }

func TestDecideSchedule(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Every, cfg.Delay = 2, 4
	b, err := NewBuilder(cfg, nil, 3)
	if err != nil {
		t.Fatal(err)
	}
	tb := atom.New(1)
	tb.AddOwned(atom.Record{Tag: 1, Type: 1})
	b.Setup(r3.Vec{}, r3.Vec{X: 10, Y: 10, Z: 10})
	b.Build(tb, 0)
	tb.X[0] = r3.Vec{X: 1}

	var rebuilt []int
	for step := 1; step <= 8; step++ {
		ok, err := b.Decide(context.Background(), tb, orFunc(func(f bool) bool { return f }))
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			rebuilt = append(rebuilt, step)
			b.Build(tb, int64(step))
		}
	}
	sort.Ints(rebuilt)
	if len(rebuilt) != 1 || rebuilt[0] != 4 {
		t.Errorf("rebuilt at %v, want [4]", rebuilt)
	}
	if b.Stats.Dangerous != 1 {
		t.Errorf("dangerous = %d, want 1", b.Stats.Dangerous)
	}
}

func TestOccasionalListLeavesPerpetual(t *testing.T) {
	box := cube(t, 12)
	tables, _ := ranked(t, box, [3]int{1, 1, 1}, gas(box, 200, 1), DefaultConfig(), nil)
	tb := tables[0]
	b, _ := NewBuilder(DefaultConfig(), nil, 3)
	b.Setup(r3.Vec{X: -3, Y: -3, Z: -3}, r3.Vec{X: 15, Y: 15, Z: 15})
	perp := b.Build(tb, 0)
	n := perp.Pairs()
	occ := b.BuildOccasional(tb, 1.5)
	if !occ.Full || occ == perp {
		t.Fatal("occasional list must be a separate full list")
	}
	if perp.Pairs() != n || b.Stats.Builds != 1 || b.Stats.Occasional != 1 {
		t.Errorf("perpetual list changed: %d -> %d, builds %d", n, perp.Pairs(), b.Stats.Builds)
	}
	for i := 0; i < occ.Inum; i++ {
		for _, j := range occ.Neighbors(i) {
			if d := math.Sqrt(r3.Norm2(r3.Sub(tb.X[i], tb.X[Index(j)]))); d >= 1.5 {
				t.Fatalf("occasional neighbor at %g beyond 1.5", d)
			}
		}
	}
}

func TestSpecialEncoding(t *testing.T) {
	e := encode(123456, topology.L13)
	if Index(e) != 123456 || SpecialLevel(e) != topology.L13 {
		t.Errorf("encode round trip: %d %d", Index(e), SpecialLevel(e))
	}
}
