package sim

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/san-kum/mdcore/internal/analysis"
	"github.com/san-kum/mdcore/internal/atom"
	"github.com/san-kum/mdcore/internal/compute"
	"github.com/san-kum/mdcore/internal/dynamo"
	"github.com/san-kum/mdcore/internal/integrators"
	"github.com/san-kum/mdcore/internal/metrics"
	"github.com/san-kum/mdcore/internal/neighbor"
	"github.com/san-kum/mdcore/internal/potential"
	"github.com/san-kum/mdcore/internal/restart"
	"github.com/san-kum/mdcore/internal/telemetry"
	"github.com/san-kum/mdcore/internal/topology"
	"gonum.org/v1/gonum/spatial/r3"
)

// Rank runs the per-step pipeline of one partition.
type Rank struct {
	env Context
	sys *System

	table  *atom.Table
	topo   *topology.Topology
	neigh  *neighbor.Builder
	set    *potential.Set
	driver compute.Driver
	nve    *integrators.NVE
	post   []PostForcer
	acc    compute.Accumulator
	thermo metrics.Thermo

	step int64
	prev []r3.Vec

	reported struct {
		builds, dangerous, exchanged int64
	}
}

// NewRank builds the components of one partition. owned are the records
// this rank starts with.
func NewRank(env Context, sys *System, owned []atom.Record) (*Rank, error) {
	cfg := env.Config
	t := atom.New(sys.NTypes, sys.Extras...)
	copy(t.Mass, sys.Mass)
	t.PerAtomMass = sys.PerAtomMass
	for _, rec := range owned {
		t.AddOwned(rec)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrConfiguration, err)
	}

	nb, err := neighbor.NewBuilder(cfg.Neighbor, sys.Topology, env.Box.Dimension)
	if err != nil {
		return nil, err
	}
	nb.Stats.Builds = sys.Counters.Builds
	nb.Stats.Dangerous = sys.Counters.Dangerous
	nb.Stats.LastBuild = sys.Counters.LastBuild

	set, err := sys.Forces()
	if err != nil {
		return nil, err
	}
	if err := restorePotentials(set, sys.Potentials); err != nil {
		return nil, err
	}
	if err := set.Init(); err != nil {
		return nil, err
	}
	for _, l := range set.Lists {
		if c, ok := l.(interface{ Check([3]bool) error }); ok {
			if err := c.Check(env.Box.Periodic); err != nil {
				return nil, err
			}
		}
	}
	if set.Cutoff() > cfg.Neighbor.Cutoff {
		return nil, dynamo.Configf("neighbor.cutoff", "pair cutoff %g exceeds neighbor cutoff %g", set.Cutoff(), cfg.Neighbor.Cutoff)
	}

	drv, err := compute.New(cfg.Driver, cfg.Threads)
	if err != nil {
		return nil, err
	}

	r := &Rank{
		env:    env,
		sys:    sys,
		table:  t,
		topo:   sys.Topology,
		neigh:  nb,
		set:    set,
		driver: drv,
		nve:    integrators.NewNVE(cfg.Dt, cfg.Units.Ftm2v),
		thermo: metrics.Thermo{Units: cfg.Units, Dim: env.Box.Dimension, Volume: env.Box.Volume()},
		step:   sys.Step,
	}
	r.acc.PerAtom = cfg.PerAtom
	if env.Box.Dimension == 2 {
		r.post = append(r.post, integrators.Enforce2D{})
	}
	return r, nil
}

func restorePotentials(set *potential.Set, states map[string]string) error {
	if len(states) == 0 {
		return nil
	}
	for name, k := range restarters(set) {
		data, ok := states[name]
		if !ok {
			continue
		}
		if err := k.Restore([]byte(data)); err != nil {
			return fmt.Errorf("restore %s: %w", name, err)
		}
	}
	return nil
}

func restarters(set *potential.Set) map[string]potential.Restarter {
	out := map[string]potential.Restarter{}
	for _, p := range set.Pairs {
		if k, ok := p.(potential.Restarter); ok {
			out[p.Name()] = k
		}
	}
	if k, ok := set.Bond.(potential.Restarter); ok {
		out["bond "+set.Bond.Name()] = k
	}
	if k, ok := set.Angle.(potential.Restarter); ok {
		out["angle "+set.Angle.Name()] = k
	}
	return out
}

func (r *Rank) ID() int                           { return r.env.Comm.Rank() }
func (r *Rank) Table() *atom.Table                { return r.table }
func (r *Rank) CurrentStep() int64                { return r.step }
func (r *Rank) Neighbor() *neighbor.Builder       { return r.neigh }
func (r *Rank) Accumulator() *compute.Accumulator { return &r.acc }

// Setup fixes the halo, prepares long-range terms and velocities, and runs
// the first neighbor build and force computation. It is collective.
func (r *Rank) Setup(ctx context.Context) error {
	c := r.env.Comm
	cfg := r.env.Config
	if err := c.Setup(cfg.Neighbor.CutNeigh()); err != nil {
		return err
	}
	r.setupBins()

	if len(r.set.Long) > 0 {
		local := make([]float64, r.table.NTypes+1)
		for i := 0; i < r.table.NLocal; i++ {
			local[r.table.Type[i]]++
		}
		sums, err := c.AllReduceSum(ctx, local...)
		if err != nil {
			return err
		}
		counts := make([]int64, len(sums))
		for k, v := range sums {
			counts[k] = int64(v)
		}
		for _, l := range r.set.Long {
			l.Setup(counts, r.env.Box.Volume())
		}
	}

	if cfg.Temperature > 0 && !r.sys.HasVelocities {
		err := integrators.Thermalize(ctx, r.table, c, cfg.Temperature, cfg.Seed, cfg.Units, r.env.Box.Dimension)
		if err != nil {
			return err
		}
	}

	if err := r.reneighbor(ctx); err != nil {
		return err
	}
	if err := r.force(ctx); err != nil {
		return err
	}
	r.env.Logger.Debug("setup done",
		"owned", r.table.NLocal, "ghosts", r.table.NGhost, "pairs", r.neigh.List().Pairs(),
		"sublo", c.SubLo, "subhi", c.SubHi)
	return nil
}

// setupBins sizes the bins over the sub-box plus the ghost halo.
func (r *Rank) setupBins() {
	c := r.env.Comm
	var lo, hi r3.Vec
	if c.Layout.Lamda {
		llo := r3.Vec{X: c.SubLo[0] - c.CutGhost[0], Y: c.SubLo[1] - c.CutGhost[1], Z: c.SubLo[2] - c.CutGhost[2]}
		lhi := r3.Vec{X: c.SubHi[0] + c.CutGhost[0], Y: c.SubHi[1] + c.CutGhost[1], Z: c.SubHi[2] + c.CutGhost[2]}
		lo, hi = r.env.Box.BBox(llo, lhi)
	} else {
		cn := r.env.Config.Neighbor.CutNeigh()
		lo = r3.Vec{X: c.SubLo[0] - cn, Y: c.SubLo[1] - cn, Z: c.SubLo[2] - cn}
		hi = r3.Vec{X: c.SubHi[0] + cn, Y: c.SubHi[1] + cn, Z: c.SubHi[2] + cn}
	}
	r.neigh.Setup(lo, hi)
}

// reneighbor remaps, migrates and re-ghosts the particles and rebuilds the
// neighbor list, in that order.
func (r *Rank) reneighbor(ctx context.Context) error {
	t := r.table
	c := r.env.Comm
	t.ClearGhosts()
	r.env.Box.RemapAll(t)
	c.ToComm(t)
	if err := c.Exchange(ctx, t, r.step); err != nil {
		return err
	}
	if err := c.Borders(ctx, t); err != nil {
		return err
	}
	c.FromComm(t)
	t.BuildMap()
	r.neigh.Build(t, r.step)
	return nil
}

// force evaluates every term, returns ghost contributions to their owners
// and applies post-force constraints.
func (r *Rank) force(ctx context.Context) error {
	in := &compute.Input{
		Table:       r.table,
		List:        r.neigh.List(),
		Set:         r.set,
		Topo:        r.topo,
		Box:         r.env.Box,
		Units:       r.env.Config.Units,
		Rank:        r.ID(),
		Step:        r.step,
		SpecialLJ:   r.env.Config.Neighbor.SpecialLJ,
		SpecialCoul: r.env.Config.Neighbor.SpecialCoul,
	}
	if err := r.driver.Compute(in, &r.acc); err != nil {
		return err
	}
	if err := r.env.Comm.ReverseComm(ctx, r.table, r.acc.Columns()...); err != nil {
		return err
	}
	for _, p := range r.post {
		p.PostForce(r.table)
	}
	return r.checkFinite()
}

func (r *Rank) checkFinite() error {
	t := r.table
	var bad []dynamo.ParticleState
	for i := 0; i < t.NLocal; i++ {
		f := t.F[i]
		if math.IsNaN(f.X+f.Y+f.Z) || math.IsInf(f.X+f.Y+f.Z, 0) {
			tag, typ, x, v, ff := t.State(i)
			bad = append(bad, dynamo.ParticleState{Tag: tag, Type: typ, X: x, V: v, F: ff})
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return &dynamo.DivergenceError{Step: r.step, Rank: r.ID(), Reason: "non-finite force", Particles: bad}
}

// Step advances one timestep. It is collective.
func (r *Rank) Step(ctx context.Context) error {
	start := time.Now()
	r.step++
	r.prev = append(r.prev[:0], r.table.X[:r.table.NLocal]...)
	r.nve.InitialIntegrate(r.table)
	if err := r.env.Comm.CheckJumps(r.table, r.prev, r.step); err != nil {
		return err
	}

	rebuild, err := r.neigh.Decide(ctx, r.table, r.env.Comm)
	if err != nil {
		return err
	}
	if rebuild {
		err = r.reneighbor(ctx)
	} else {
		err = r.env.Comm.ForwardComm(ctx, r.table)
	}
	if err != nil {
		return err
	}

	if err := r.force(ctx); err != nil {
		return err
	}
	r.nve.FinalIntegrate(r.table)
	r.report(time.Since(start))
	return nil
}

func (r *Rank) report(elapsed time.Duration) {
	st := r.neigh.Stats
	ex := r.env.Comm.Stats.Exchanged
	r.env.Telemetry.Step(telemetry.Rank{
		Rank:      r.ID(),
		Owned:     r.table.NLocal,
		Ghosts:    r.table.NGhost,
		Pairs:     st.Pairs,
		Builds:    st.Builds - r.reported.builds,
		Dangerous: st.Dangerous - r.reported.dangerous,
		Exchanged: ex - r.reported.exchanged,
		Elapsed:   elapsed,
	})
	if st.Dangerous > r.reported.dangerous {
		r.env.Logger.Warn("dangerous neighbor build", "step", r.step)
	}
	r.reported.builds, r.reported.dangerous, r.reported.exchanged = st.Builds, st.Dangerous, ex
}

// Thermo computes the global observables of the current step. It is
// collective.
func (r *Rank) Thermo(ctx context.Context) (metrics.Sample, error) {
	return r.thermo.Compute(ctx, r.env.Comm, r.table, &r.acc, r.step, r.env.Config.Dt)
}

// PairCounts histograms pair separations out to cutoff from an
// occasional full list and sums the counts over every rank. It is
// collective.
func (r *Rank) PairCounts(ctx context.Context, cutoff float64, bins int) ([]float64, error) {
	l := r.neigh.BuildOccasional(r.table, cutoff)
	hist := analysis.PairCounts(r.table, l, cutoff, bins)
	return r.env.Comm.AllReduceSum(ctx, hist...)
}

// MSD returns the global mean squared displacement from the stamped
// origins. It is collective.
func (r *Rank) MSD(ctx context.Context) (float64, error) {
	sum, n := analysis.Displacement(r.table, r.env.Box)
	tot, err := r.env.Comm.AllReduceSum(ctx, sum, float64(n))
	if err != nil {
		return 0, err
	}
	if tot[1] == 0 {
		return 0, nil
	}
	return tot[0] / tot[1], nil
}

// Snapshot gathers the full state on rank 0. Other ranks get nil.
func (r *Rank) Snapshot(ctx context.Context) (*restart.Snapshot, error) {
	t := r.table
	nextra := len(t.Extras())
	recs := make([]atom.Record, t.NLocal)
	for i := range recs {
		recs[i] = t.Record(i)
	}
	parts, err := r.env.Comm.Gather(ctx, 0, atom.EncodeRecords(nil, recs, nextra))
	if err != nil || parts == nil {
		return nil, err
	}

	st := r.neigh.Stats
	snap := &restart.Snapshot{
		Step:        r.step,
		Units:       r.env.Config.Units.Name,
		Box:         restart.FromBox(r.env.Box),
		NTypes:      t.NTypes,
		Mass:        append([]float64(nil), t.Mass...),
		PerAtomMass: t.PerAtomMass,
		Extras:      append([]string(nil), t.Extras()...),
		Neighbor:    restart.Counters{Builds: st.Builds, Dangerous: st.Dangerous, LastBuild: st.LastBuild},
		Potentials:  map[string]string{},
	}
	for _, p := range parts {
		got, err := atom.DecodeRecords(p, nextra)
		if err != nil {
			return nil, err
		}
		snap.Atoms = append(snap.Atoms, got...)
	}
	snap.SortAtoms()
	for name, k := range restarters(r.set) {
		data, err := k.State()
		if err != nil {
			return nil, fmt.Errorf("save %s: %w", name, err)
		}
		snap.Potentials[name] = string(data)
	}
	return snap, nil
}
