package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/mdcore/internal/analysis"
	"github.com/san-kum/mdcore/internal/atom"
	"github.com/san-kum/mdcore/internal/comm"
	"github.com/san-kum/mdcore/internal/dynamo"
	"github.com/san-kum/mdcore/internal/logging"
	"github.com/san-kum/mdcore/internal/metrics"
	"github.com/san-kum/mdcore/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

// Simulator runs a System on a set of ranks, one goroutine each. A fatal
// error on any rank cancels the others, and Run returns that error.
type Simulator struct {
	sys *System
	cfg Config

	runID     string
	logger    *slog.Logger
	telemetry *telemetry.Recorder
	ckpt      Checkpointer
	metrics   []metrics.Metric
	observers []Observer
}

func New(sys *System, cfg Config) *Simulator {
	return &Simulator{
		sys:       sys,
		cfg:       cfg,
		logger:    logging.Discard(),
		metrics:   make([]metrics.Metric, 0),
		observers: make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m metrics.Metric) { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer)     { s.observers = append(s.observers, o) }

func (s *Simulator) SetRunID(id string)                 { s.runID = id }
func (s *Simulator) SetLogger(l *slog.Logger)           { s.logger = l }
func (s *Simulator) SetTelemetry(r *telemetry.Recorder) { s.telemetry = r }
func (s *Simulator) SetCheckpointer(c Checkpointer)     { s.ckpt = c }

func (s *Simulator) Run(ctx context.Context) (*Result, error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}
	if err := s.sys.validate(); err != nil {
		return nil, err
	}

	box := s.sys.Box
	grid, err := comm.Factor(s.cfg.Procs, box.Prd(), box.Dimension, s.cfg.Grid)
	if err != nil {
		return nil, err
	}
	layout := comm.NewLayout(box, grid)
	world := comm.NewWorld(layout.Size())

	sys := *s.sys
	atoms := make([]atom.Record, len(sys.Atoms))
	copy(atoms, sys.Atoms)
	for i := range atoms {
		atoms[i].X = box.Wrap(atoms[i].X, &atoms[i].Image)
	}
	if s.cfg.MSD {
		sys.Extras, atoms = analysis.StampOrigins(box, sys.Extras, atoms)
	}
	parts := layout.Distribute(box, atoms)

	for _, m := range s.metrics {
		m.Reset()
	}
	result := &Result{RunID: s.runID, Grid: grid, Metrics: make(map[string]float64)}
	if s.cfg.RDFBins > 0 {
		result.RDF = analysis.NewRDF(s.cfg.RDFCutoff, s.cfg.RDFBins, box.Dimension)
	}
	s.logger.Info("run start",
		"atoms", len(atoms), "grid", grid, "steps", s.cfg.Steps, "driver", s.cfg.Driver,
		"first_step", sys.Step)

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	for r := 0; r < layout.Size(); r++ {
		c := comm.New(world.Endpoint(r), layout, box)
		c.Natoms = int64(len(atoms))
		env := Context{
			Box:       box,
			Comm:      c,
			Config:    s.cfg,
			Logger:    logging.ForRank(s.logger, r),
			Telemetry: s.telemetry,
		}
		owned := parts[r]
		g.Go(func() error {
			return s.runRank(gctx, env, &sys, owned, result)
		})
	}
	err = g.Wait()
	result.Elapsed = time.Since(start)
	if err != nil {
		s.logger.Error("run failed", "err", err)
		return result, err
	}

	for _, m := range s.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	s.logger.Info("run done", "elapsed", result.Elapsed, "builds", result.Neighbor.Builds,
		"dangerous", result.Neighbor.Dangerous, "exchanged", result.Exchanged)
	return result, nil
}

// runRank drives one rank through setup and every step. Only rank 0
// writes to res.
func (s *Simulator) runRank(ctx context.Context, env Context, sys *System, owned []atom.Record, res *Result) error {
	r, err := NewRank(env, sys, owned)
	if err != nil {
		return err
	}
	if err := r.Setup(ctx); err != nil {
		return err
	}
	root := r.ID() == 0

	thermo := func() error {
		smp, err := r.Thermo(ctx)
		if err != nil {
			return err
		}
		if root {
			s.record(res, smp)
		}
		return s.sample(ctx, r, res, smp)
	}
	if err := thermo(); err != nil {
		return err
	}

	end := sys.Step + s.cfg.Steps
	for r.CurrentStep() < end {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("rank %d at step %d: %w", r.ID(), r.CurrentStep(), dynamo.ErrAborted)
		}
		if err := r.Step(ctx); err != nil {
			return err
		}
		step := r.CurrentStep()
		if step == end || (s.cfg.ThermoEvery > 0 && step%s.cfg.ThermoEvery == 0) {
			if err := thermo(); err != nil {
				return err
			}
		}
		if s.ckpt != nil && s.cfg.CheckpointEvery > 0 && step%s.cfg.CheckpointEvery == 0 {
			snap, err := r.Snapshot(ctx)
			if err != nil {
				return err
			}
			if root {
				snap.RunID = s.runID
				if err := s.ckpt.Checkpoint(ctx, snap); err != nil {
					return fmt.Errorf("checkpoint at step %d: %w", step, err)
				}
			}
		}
	}

	snap, err := r.Snapshot(ctx)
	if err != nil {
		return err
	}
	t := r.Table()
	sums, err := env.Comm.AllReduceSum(ctx,
		float64(env.Comm.Stats.Exchanged), float64(r.Neighbor().List().Pairs()), float64(t.NGhost))
	if err != nil {
		return err
	}
	if root {
		snap.RunID = s.runID
		res.Final = snap
		res.Neighbor = r.Neighbor().Stats
		res.Exchanged = int64(sums[0])
		res.Pairs = int64(sums[1])
		res.Ghosts = int64(sums[2])
	}
	return nil
}

// sample takes the optional structural diagnostics alongside a thermo
// sample. It is collective.
func (s *Simulator) sample(ctx context.Context, r *Rank, res *Result, smp metrics.Sample) error {
	root := r.ID() == 0
	if s.cfg.RDFBins > 0 {
		hist, err := r.PairCounts(ctx, s.cfg.RDFCutoff, s.cfg.RDFBins)
		if err != nil {
			return err
		}
		if root {
			res.RDF.Add(hist, smp.Natoms, smp.Volume)
		}
	}
	if s.cfg.MSD {
		v, err := r.MSD(ctx)
		if err != nil {
			return err
		}
		if root {
			res.MSD = append(res.MSD, analysis.MSDPoint{Step: smp.Step, Time: smp.Time, MSD: v})
		}
	}
	return nil
}

func (s *Simulator) record(res *Result, smp metrics.Sample) {
	res.Thermo = append(res.Thermo, smp)
	for _, m := range s.metrics {
		m.Observe(smp)
	}
	for _, o := range s.observers {
		o.OnThermo(smp)
	}
	s.telemetry.Thermo(smp.Temp, smp.ETotal)
	s.logger.Info("thermo", "step", smp.Step, "temp", smp.Temp, "pe", smp.PE, "etotal", smp.ETotal, "press", smp.Press)
}
