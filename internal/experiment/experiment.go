package experiment

import (
	"context"
	"fmt"

	"github.com/san-kum/mdcore/internal/config"
	"github.com/san-kum/mdcore/internal/dynamo"
	"github.com/san-kum/mdcore/internal/metrics"
	"github.com/san-kum/mdcore/internal/restart"
	"github.com/san-kum/mdcore/internal/sim"
)

// Experiment pairs a configuration with the system and run settings built
// from it.
type Experiment struct {
	cfg       *config.Config
	sys       *sim.System
	simCfg    sim.Config
	simulator *sim.Simulator
}

// New builds the system cfg describes.
func New(cfg *config.Config, reg *Registry) (*Experiment, error) {
	sys, err := BuildSystem(cfg, reg)
	if err != nil {
		return nil, err
	}
	return newExperiment(cfg, sys)
}

// Resume continues from snap. The chains and force terms come from cfg;
// cfg.Steps further steps are run.
func Resume(cfg *config.Config, reg *Registry, snap *restart.Snapshot) (*Experiment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if snap.Units != cfg.Units {
		return nil, dynamo.Configf("units", "snapshot uses %s units, configuration %s", snap.Units, cfg.Units)
	}
	if snap.NTypes != cfg.Types {
		return nil, dynamo.Configf("types", "snapshot has %d types, configuration %d", snap.NTypes, cfg.Types)
	}
	topo, err := Topology(cfg, len(snap.Atoms))
	if err != nil {
		return nil, err
	}
	forces, err := reg.Forces(cfg)
	if err != nil {
		return nil, err
	}
	sys, err := sim.FromSnapshot(snap, topo, forces)
	if err != nil {
		return nil, err
	}
	return newExperiment(cfg, sys)
}

func newExperiment(cfg *config.Config, sys *sim.System) (*Experiment, error) {
	simCfg, err := SimConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &Experiment{cfg: cfg, sys: sys, simCfg: simCfg}, nil
}

func (e *Experiment) Config() *config.Config { return e.cfg }
func (e *Experiment) System() *sim.System    { return e.sys }
func (e *Experiment) SimConfig() sim.Config  { return e.simCfg }

func (e *Experiment) Setup(ms []metrics.Metric) error {
	e.simulator = sim.New(e.sys, e.simCfg)
	for _, m := range ms {
		e.simulator.AddMetric(m)
	}
	return nil
}

func (e *Experiment) Run(ctx context.Context) (*sim.Result, error) {
	if e.simulator == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	return e.simulator.Run(ctx)
}

// GetSimulator returns the underlying simulator for adding observers.
func (e *Experiment) GetSimulator() *sim.Simulator {
	return e.simulator
}
