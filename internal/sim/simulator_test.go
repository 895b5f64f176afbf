package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/san-kum/mdcore/internal/atom"
	"github.com/san-kum/mdcore/internal/domain"
	"github.com/san-kum/mdcore/internal/dynamo"
	"github.com/san-kum/mdcore/internal/metrics"
	"github.com/san-kum/mdcore/internal/neighbor"
	"github.com/san-kum/mdcore/internal/potential"
	"github.com/san-kum/mdcore/internal/restart"
	"github.com/san-kum/mdcore/internal/topology"
	"gonum.org/v1/gonum/spatial/r3"
)

var periodic = [3]bool{true, true, true}

func ljForces(cut float64, shift bool) ForceFactory {
	return func() (*potential.Set, error) {
		s := 0.0
		if shift {
			s = 1
		}
		lj, err := potential.NewLJCut(1, []float64{cut, s})
		if err != nil {
			return nil, err
		}
		if err := lj.Coeff(1, 1, []float64{1, 1}); err != nil {
			return nil, err
		}
		return &potential.Set{Pairs: []potential.PairKernel{lj}, NTypes: 1}, nil
	}
}

func baseConfig(procs int) Config {
	u, _ := dynamo.LookupUnits("lj")
	return Config{
		Steps:       20,
		Dt:          0.005,
		Units:       u,
		Neighbor:    neighbor.DefaultConfig(),
		Driver:      "serial",
		Procs:       procs,
		ThermoEvery: 10,
		Temperature: 1.0,
		Seed:        12345,
	}
}

// fccSystem is an lj fcc crystal of n^3 cells at reduced density 0.8442.
func fccSystem(t *testing.T, n int) *System {
	t.Helper()
	l, err := domain.NewLattice(domain.LatticeSpec{Style: "fcc", Scale: 0.8442}, 3, true)
	if err != nil {
		t.Fatal(err)
	}
	side := float64(n) * l.Scale()
	box, err := domain.NewBox(r3.Vec{}, r3.Vec{X: side, Y: side, Z: side}, periodic, 3)
	if err != nil {
		t.Fatal(err)
	}
	sys := &System{Box: box, NTypes: 1, Mass: []float64{0, 1}, Forces: ljForces(2.5, true)}
	for k, s := range l.Sites(box) {
		sys.Atoms = append(sys.Atoms, atom.Record{Tag: int64(k + 1), Type: 1, X: s.X})
	}
	return sys
}

// gasSystem places particles on a coarse grid in a periodic box.
func gasSystem(t *testing.T, nx, ny, nz int, spacing float64) *System {
	t.Helper()
	hi := r3.Vec{X: float64(nx) * spacing, Y: float64(ny) * spacing, Z: float64(nz) * spacing}
	box, err := domain.NewBox(r3.Vec{}, hi, periodic, 3)
	if err != nil {
		t.Fatal(err)
	}
	sys := &System{Box: box, NTypes: 1, Mass: []float64{0, 1}, Forces: ljForces(2.5, false)}
	tag := int64(1)
	for i := 0; i < nx; i++ {
		for j := 0; j < ny; j++ {
			for k := 0; k < nz; k++ {
				x := r3.Vec{X: (float64(i) + 0.5) * spacing, Y: (float64(j) + 0.5) * spacing, Z: (float64(k) + 0.5) * spacing}
				sys.Atoms = append(sys.Atoms, atom.Record{Tag: tag, Type: 1, X: x})
				tag++
			}
		}
	}
	return sys
}

func run(t *testing.T, sys *System, cfg Config) *Result {
	t.Helper()
	res, err := New(sys, cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return res
}

func compareFinal(t *testing.T, a, b *restart.Snapshot, tol float64) {
	t.Helper()
	if len(a.Atoms) != len(b.Atoms) {
		t.Fatalf("atom counts differ: %d vs %d", len(a.Atoms), len(b.Atoms))
	}
	for i := range a.Atoms {
		ra, rb := a.Atoms[i], b.Atoms[i]
		if ra.Tag != rb.Tag {
			t.Fatalf("tag order differs at %d: %d vs %d", i, ra.Tag, rb.Tag)
		}
		// compare unwrapped positions so a particle sitting on a periodic
		// face does not count as a difference.
		box, _ := a.Box.Box()
		xa := box.Unmap(ra.X, ra.Image)
		xb := box.Unmap(rb.X, rb.Image)
		if d := r3.Norm(r3.Sub(xa, xb)); d > tol {
			t.Fatalf("tag %d: positions differ by %g", ra.Tag, d)
		}
		if d := r3.Norm(r3.Sub(ra.V, rb.V)); d > tol {
			t.Fatalf("tag %d: velocities differ by %g", ra.Tag, d)
		}
	}
}

func TestSimulatorRun(t *testing.T) {
	sys := fccSystem(t, 4)
	cfg := baseConfig(1)
	s := New(sys, cfg)
	drift := metrics.NewEnergyDrift()
	s.AddMetric(drift)
	var seen []int64
	s.AddObserver(ObserverFunc(func(smp metrics.Sample) { seen = append(seen, smp.Step) }))

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(res.Thermo) != 3 {
		t.Fatalf("expected 3 thermo rows, got %d", len(res.Thermo))
	}
	if want := []int64{0, 10, 20}; len(seen) != 3 || seen[0] != want[0] || seen[2] != want[2] {
		t.Errorf("observer saw steps %v", seen)
	}
	if math.Abs(res.Thermo[0].Temp-1.0) > 1e-9 {
		t.Errorf("initial temperature %g, expected 1", res.Thermo[0].Temp)
	}
	if res.Thermo[0].Natoms != 256 || res.Final == nil || len(res.Final.Atoms) != 256 {
		t.Errorf("atoms not conserved")
	}
	if res.Metrics["energy_drift"] > 1e-3 {
		t.Errorf("energy drift %g", res.Metrics["energy_drift"])
	}
	if res.Neighbor.Builds < 1 {
		t.Errorf("expected at least the setup build, got %d", res.Neighbor.Builds)
	}
}

func TestDecompositionDoesNotChangeTrajectory(t *testing.T) {
	sys := fccSystem(t, 7)
	ref := run(t, sys, baseConfig(1))

	for _, tc := range []struct {
		name   string
		procs  int
		grid   [3]int
		driver string
	}{
		{"2x1x1", 2, [3]int{2, 1, 1}, "serial"},
		{"2x2x1 threaded", 4, [3]int{2, 2, 1}, "threaded"},
		{"2x2x2", 8, [3]int{2, 2, 2}, "serial"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseConfig(tc.procs)
			cfg.Grid = tc.grid
			cfg.Driver = tc.driver
			cfg.Threads = 2
			got := run(t, sys, cfg)
			if got.Grid != tc.grid {
				t.Fatalf("grid %v, expected %v", got.Grid, tc.grid)
			}
			compareFinal(t, ref.Final, got.Final, 1e-8)
			for i := range ref.Thermo {
				a, b := ref.Thermo[i].ETotal, got.Thermo[i].ETotal
				if math.Abs(a-b) > 1e-8*math.Abs(a) {
					t.Errorf("step %d: etotal %g vs %g", ref.Thermo[i].Step, a, b)
				}
			}
		})
	}
}

// tiltedFCC shears an fcc crystal of n^3 cells into a triclinic box by
// mapping every site through its fractional coordinates.
func tiltedFCC(t *testing.T, n int, xy, xz, yz float64) *System {
	t.Helper()
	sys := fccSystem(t, n)
	ortho := sys.Box
	box, err := domain.NewTriclinic(ortho.Lo, ortho.Hi, xy, xz, yz, periodic, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i := range sys.Atoms {
		sys.Atoms[i].X = box.FromLamda(ortho.ToLamda(sys.Atoms[i].X))
	}
	sys.Box = box
	return sys
}

func TestTriclinicDecompositionDoesNotChangeTrajectory(t *testing.T) {
	sys := tiltedFCC(t, 7, 1.3, -0.9, 0.7)
	ref := run(t, sys, baseConfig(1))

	for _, grid := range [][3]int{{2, 1, 1}, {2, 2, 1}, {1, 1, 2}, {2, 2, 2}} {
		t.Run(fmt.Sprintf("%dx%dx%d", grid[0], grid[1], grid[2]), func(t *testing.T) {
			cfg := baseConfig(grid[0] * grid[1] * grid[2])
			cfg.Grid = grid
			got := run(t, sys, cfg)
			if got.Grid != grid {
				t.Fatalf("grid %v, expected %v", got.Grid, grid)
			}
			compareFinal(t, ref.Final, got.Final, 1e-8)
			for i := range ref.Thermo {
				a, b := ref.Thermo[i].ETotal, got.Thermo[i].ETotal
				if math.Abs(a-b) > 1e-8*math.Abs(a) {
					t.Errorf("step %d: etotal %g vs %g", ref.Thermo[i].Step, a, b)
				}
			}
		})
	}
}

func TestNewtonOffMatchesNewtonOn(t *testing.T) {
	sys := fccSystem(t, 7)
	on := baseConfig(2)
	off := baseConfig(2)
	off.Neighbor.Newton = false
	full := baseConfig(2)
	full.Neighbor.Style = "full"

	ref := run(t, sys, on)
	compareFinal(t, ref.Final, run(t, sys, off).Final, 1e-8)
	compareFinal(t, ref.Final, run(t, sys, full).Final, 1e-8)
}

func TestSmallBoxRejected(t *testing.T) {
	sys := gasSystem(t, 3, 3, 3, 1.3)
	_, err := New(sys, baseConfig(1)).Run(context.Background())
	if !errors.Is(err, dynamo.ErrConfiguration) {
		t.Fatalf("expected a configuration error, got %v", err)
	}
}

func TestRunawayParticleAbortsAllRanks(t *testing.T) {
	sys := gasSystem(t, 16, 4, 4, 1.5)
	sys.HasVelocities = true
	// tag 1 sits at x=0.75 on rank 0 and jumps to rank 2 in one step.
	sys.Atoms[0].V = r3.Vec{X: 12 / 0.005}
	cfg := baseConfig(4)
	cfg.Grid = [3]int{4, 1, 1}
	cfg.Temperature = 0

	_, err := New(sys, cfg).Run(context.Background())
	if !errors.Is(err, dynamo.ErrDivergence) {
		t.Fatalf("expected divergence, got %v", err)
	}
	var de *dynamo.DivergenceError
	if !errors.As(err, &de) {
		t.Fatalf("expected *DivergenceError, got %T", err)
	}
	if de.Step != 1 || de.Rank != 0 || len(de.Particles) != 1 || de.Particles[0].Tag != 1 {
		t.Errorf("unexpected diagnosis: %v", de)
	}
}

func TestJumpPastSubDomainIsFatal(t *testing.T) {
	tests := []struct {
		name string
		grid [3]int
		jump float64
	}{
		{"one rank", [3]int{1, 1, 1}, 30},
		{"two ranks", [3]int{2, 1, 1}, 18},
		{"two ranks past box", [3]int{2, 1, 1}, 30},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := gasSystem(t, 16, 4, 4, 1.5)
			sys.HasVelocities = true
			sys.Atoms[0].V = r3.Vec{X: tt.jump / 0.005}
			cfg := baseConfig(tt.grid[0] * tt.grid[1] * tt.grid[2])
			cfg.Grid = tt.grid
			cfg.Temperature = 0

			_, err := New(sys, cfg).Run(context.Background())
			var de *dynamo.DivergenceError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DivergenceError, got %v", err)
			}
			if de.Step != 1 || de.Rank != 0 || len(de.Particles) != 1 || de.Particles[0].Tag != 1 {
				t.Errorf("unexpected diagnosis: %v", de)
			}
		})
	}
}

func TestCancelledRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(fccSystem(t, 4), baseConfig(1)).Run(ctx)
	if !errors.Is(err, dynamo.ErrAborted) {
		t.Fatalf("expected abort, got %v", err)
	}
}

type memCheckpoints struct {
	mu    sync.Mutex
	snaps []*restart.Snapshot
}

func (m *memCheckpoints) Checkpoint(_ context.Context, s *restart.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, s)
	return nil
}

func TestCheckpointResume(t *testing.T) {
	sys := fccSystem(t, 7)
	cfg := baseConfig(2)
	cfg.CheckpointEvery = 10

	ck := &memCheckpoints{}
	s := New(sys, cfg)
	s.SetRunID("run-1")
	s.SetCheckpointer(ck)
	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(ck.snaps) != 2 || ck.snaps[0].Step != 10 || ck.snaps[0].RunID != "run-1" {
		t.Fatalf("unexpected checkpoints %d", len(ck.snaps))
	}

	resumed, err := FromSnapshot(ck.snaps[0], nil, ljForces(2.5, true))
	if err != nil {
		t.Fatal(err)
	}
	cfg.Steps = 10
	cfg.CheckpointEvery = 0
	cfg.Procs = 4
	got := run(t, resumed, cfg)
	if got.Final.Step != 20 {
		t.Fatalf("resumed run ended at step %d", got.Final.Step)
	}
	compareFinal(t, res.Final, got.Final, 1e-8)
}

func TestBondedChainAcrossRanks(t *testing.T) {
	box, err := domain.NewBox(r3.Vec{}, r3.Vec{X: 12, Y: 6, Z: 6}, periodic, 3)
	if err != nil {
		t.Fatal(err)
	}
	bonds, _ := topology.Chain(1, 10, 1, 0)
	topo, err := topology.New(bonds, nil)
	if err != nil {
		t.Fatal(err)
	}
	sys := &System{Box: box, NTypes: 1, Mass: []float64{0, 1}, Topology: topo}
	for k := 0; k < 10; k++ {
		sys.Atoms = append(sys.Atoms, atom.Record{Tag: int64(k + 1), Type: 1, X: r3.Vec{X: 1 + 0.97*float64(k), Y: 3, Z: 3}})
	}
	sys.Forces = func() (*potential.Set, error) {
		set, err := ljForces(math.Pow(2, 1.0/6), true)()
		if err != nil {
			return nil, err
		}
		fene := potential.NewBondFENE(1)
		if err := fene.Coeff(1, []float64{30, 1.5, 1, 1}); err != nil {
			return nil, err
		}
		set.Bond = fene
		return set, nil
	}

	cfg := baseConfig(1)
	cfg.Steps = 50
	cfg.Neighbor.Cutoff = math.Pow(2, 1.0/6)
	cfg.Neighbor.SpecialLJ = [4]float64{1, 0, 1, 1}
	ref := run(t, sys, cfg)

	cfg.Procs = 2
	cfg.Grid = [3]int{2, 1, 1}
	got := run(t, sys, cfg)
	compareFinal(t, ref.Final, got.Final, 1e-8)
	if ref.Thermo[0].EBond <= 0 {
		t.Errorf("expected positive bond energy, got %g", ref.Thermo[0].EBond)
	}
}

func TestTwoDimensionalRun(t *testing.T) {
	l, err := domain.NewLattice(domain.LatticeSpec{Style: "hex", Scale: 0.8}, 2, true)
	if err != nil {
		t.Fatal(err)
	}
	sx, sy := 10*l.Spacing.X, 6*l.Spacing.Y
	box, err := domain.NewBox(r3.Vec{Z: -0.5}, r3.Vec{X: sx, Y: sy, Z: 0.5}, periodic, 2)
	if err != nil {
		t.Fatal(err)
	}
	sys := &System{Box: box, NTypes: 1, Mass: []float64{0, 1}, Forces: ljForces(2.5, true)}
	for k, s := range l.Sites(box) {
		sys.Atoms = append(sys.Atoms, atom.Record{Tag: int64(k + 1), Type: 1, X: s.X})
	}
	cfg := baseConfig(2)
	res := run(t, sys, cfg)
	for _, r := range res.Final.Atoms {
		if r.V.Z != 0 || r.X.Z != sys.Atoms[r.Tag-1].X.Z {
			t.Fatalf("tag %d left the plane: x=%v v=%v", r.Tag, r.X, r.V)
		}
	}
	if math.Abs(res.Thermo[0].Temp-1) > 1e-9 {
		t.Errorf("2d temperature %g", res.Thermo[0].Temp)
	}
}

func TestEnsembleSeeds(t *testing.T) {
	sys := fccSystem(t, 4)
	cfg := baseConfig(1)
	cfg.Steps = 5
	e := NewEnsemble(sys, cfg, 3, 100)
	e.SetLimit(2)
	var mu sync.Mutex
	created := 0
	e.OnCreate(func(int, *Simulator) {
		mu.Lock()
		created++
		mu.Unlock()
	})
	results, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if created != 3 || len(results) != 3 {
		t.Fatalf("expected 3 replicas, got %d", len(results))
	}
	if results[0].Final.Atoms[0].V == results[1].Final.Atoms[0].V {
		t.Error("replicas with different seeds produced the same velocities")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero dt", func(c *Config) { c.Dt = 0 }},
		{"no procs", func(c *Config) { c.Procs = 0 }},
		{"negative steps", func(c *Config) { c.Steps = -1 }},
		{"negative skin", func(c *Config) { c.Neighbor.Skin = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig(1)
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, dynamo.ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestStructuralSamplingIndependentOfGrid(t *testing.T) {
	sys := fccSystem(t, 7)
	var results []*Result
	for _, procs := range []int{1, 4} {
		cfg := baseConfig(procs)
		cfg.RDFBins = 50
		cfg.RDFCutoff = 2.5
		cfg.MSD = true
		results = append(results, run(t, sys, cfg))
	}
	ref, got := results[0], results[1]
	if ref.RDF.Samples() != 3 || len(ref.MSD) != 3 {
		t.Fatalf("expected 3 samples, got %d and %d", ref.RDF.Samples(), len(ref.MSD))
	}

	radius, g := ref.RDF.Result()
	_, g4 := got.RDF.Result()
	peak := 0
	for k := range g {
		if math.Abs(g[k]-g4[k]) > 1e-9 {
			t.Fatalf("bin %d: g=%g on one rank, %g on four", k, g[k], g4[k])
		}
		if g[k] > g[peak] {
			peak = k
		}
	}
	if radius[peak] < 1.0 || radius[peak] > 1.25 {
		t.Errorf("first peak at r=%g", radius[peak])
	}
	if g[0] != 0 {
		t.Errorf("pairs found at r<0.05")
	}

	if ref.MSD[0].MSD != 0 || !(ref.MSD[2].MSD > 0) {
		t.Errorf("msd series %v", ref.MSD)
	}
	for k := range ref.MSD {
		if math.Abs(ref.MSD[k].MSD-got.MSD[k].MSD) > 1e-9 {
			t.Errorf("msd at step %d differs: %g vs %g", ref.MSD[k].Step, ref.MSD[k].MSD, got.MSD[k].MSD)
		}
	}
	if len(ref.Final.Extras) != 3 {
		t.Errorf("origins not carried in the snapshot: %v", ref.Final.Extras)
	}
}
