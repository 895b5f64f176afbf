package sim

import (
	"context"
	"time"

	"github.com/san-kum/mdcore/internal/analysis"
	"github.com/san-kum/mdcore/internal/atom"
	"github.com/san-kum/mdcore/internal/domain"
	"github.com/san-kum/mdcore/internal/dynamo"
	"github.com/san-kum/mdcore/internal/metrics"
	"github.com/san-kum/mdcore/internal/neighbor"
	"github.com/san-kum/mdcore/internal/potential"
	"github.com/san-kum/mdcore/internal/restart"
	"github.com/san-kum/mdcore/internal/topology"
)

// ForceFactory builds a fresh force set. Every rank gets its own.
type ForceFactory func() (*potential.Set, error)

// Config holds the run parameters shared by every rank.
type Config struct {
	Steps    int64
	Dt       float64
	Units    dynamo.Units
	Neighbor neighbor.Config

	Driver  string
	Threads int

	// Procs is the number of ranks; Grid fixes the processor grid per
	// axis where nonzero.
	Procs int
	Grid  [3]int

	ThermoEvery     int64
	CheckpointEvery int64

	// Temperature seeds Gaussian velocities when the system has none.
	Temperature float64
	Seed        uint64

	PerAtom bool
	// MaxTemp marks samples above it as unstable in the summary metrics.
	MaxTemp float64

	// RDFBins > 0 samples g(r) out to RDFCutoff at every thermo step.
	RDFBins   int
	RDFCutoff float64
	MSD       bool
}

func (c Config) Validate() error {
	if c.Steps < 0 {
		return dynamo.Configf("steps", "must not be negative, got %d", c.Steps)
	}
	if !(c.Dt > 0) {
		return dynamo.Configf("dt", "must be positive, got %g", c.Dt)
	}
	if c.Procs < 1 {
		return dynamo.Configf("procs", "need at least one rank, got %d", c.Procs)
	}
	if c.ThermoEvery < 0 || c.CheckpointEvery < 0 {
		return dynamo.Configf("thermo_every", "intervals must not be negative")
	}
	if c.Temperature < 0 {
		return dynamo.Configf("temperature", "must not be negative, got %g", c.Temperature)
	}
	if c.RDFBins < 0 {
		return dynamo.Configf("rdf.bins", "must not be negative, got %d", c.RDFBins)
	}
	if c.RDFBins > 0 && !(c.RDFCutoff > 0 && c.RDFCutoff <= c.Neighbor.CutNeigh()) {
		return dynamo.Configf("rdf.cutoff", "must lie in (0, %g], got %g", c.Neighbor.CutNeigh(), c.RDFCutoff)
	}
	return c.Neighbor.Validate()
}

// System is the initial state of a run.
type System struct {
	Box         *domain.Box
	Atoms       []atom.Record
	NTypes      int
	Mass        []float64
	PerAtomMass bool
	Extras      []string
	Topology    *topology.Topology
	Forces      ForceFactory

	// Step is the step the run starts from; nonzero on resume.
	Step int64
	// HasVelocities disables velocity creation.
	HasVelocities bool
	Counters      restart.Counters
	Potentials    map[string]string
}

func (s *System) validate() error {
	if s.Box == nil {
		return dynamo.Configf("box", "no simulation box")
	}
	if s.Forces == nil {
		return dynamo.Configf("potentials", "no force terms")
	}
	if len(s.Atoms) == 0 {
		return dynamo.Configf("atoms", "system has no particles")
	}
	if len(s.Mass) != s.NTypes+1 {
		return dynamo.Configf("mass", "need a mass for each of %d types", s.NTypes)
	}
	for ty := 1; ty <= s.NTypes; ty++ {
		if !s.PerAtomMass && !(s.Mass[ty] > 0) {
			return dynamo.Configf("mass", "type %d has mass %g", ty, s.Mass[ty])
		}
	}
	return nil
}

// Observer receives every thermo sample on rank 0.
type Observer interface {
	OnThermo(s metrics.Sample)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(metrics.Sample)

func (f ObserverFunc) OnThermo(s metrics.Sample) { f(s) }

// Checkpointer persists periodic snapshots.
type Checkpointer interface {
	Checkpoint(ctx context.Context, snap *restart.Snapshot) error
}

// PostForcer adjusts forces after reverse communication.
type PostForcer interface {
	PostForce(t *atom.Table)
}

// Result summarises a finished run.
type Result struct {
	RunID     string
	Grid      [3]int
	Thermo    []metrics.Sample
	Metrics   map[string]float64
	Neighbor  neighbor.Stats
	Exchanged int64
	// Pairs and Ghosts are summed over ranks at the end of the run.
	Pairs   int64
	Ghosts  int64
	Final   *restart.Snapshot
	Elapsed time.Duration

	// RDF and MSD are set when the run samples them.
	RDF *analysis.RDF
	MSD []analysis.MSDPoint
}

// FromSnapshot rebuilds a System from a snapshot. The topology and force
// terms are not stored in snapshots and come from the caller; stored
// potential parameters override the ones forces sets.
func FromSnapshot(snap *restart.Snapshot, topo *topology.Topology, forces ForceFactory) (*System, error) {
	box, err := snap.Box.Box()
	if err != nil {
		return nil, err
	}
	return &System{
		Box:           box,
		Atoms:         snap.Atoms,
		NTypes:        snap.NTypes,
		Mass:          snap.Mass,
		PerAtomMass:   snap.PerAtomMass,
		Extras:        snap.Extras,
		Topology:      topo,
		Forces:        forces,
		Step:          snap.Step,
		HasVelocities: true,
		Counters:      snap.Neighbor,
		Potentials:    snap.Potentials,
	}, nil
}
