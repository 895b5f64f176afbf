package sim

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Ensemble runs independent replicas of a System that differ only in the
// velocity seed. Replica i uses seed seedStart+i.
type Ensemble struct {
	sys       *System
	cfg       Config
	numRuns   int
	seedStart uint64
	limit     int
	setup     func(i int, s *Simulator)
}

func NewEnsemble(sys *System, cfg Config, numRuns int, seedStart uint64) *Ensemble {
	return &Ensemble{sys: sys, cfg: cfg, numRuns: numRuns, seedStart: seedStart}
}

// OnCreate registers a hook applied to each replica's Simulator before it
// runs, for attaching metrics and observers.
func (e *Ensemble) OnCreate(fn func(i int, s *Simulator)) { e.setup = fn }

// SetLimit bounds how many replicas run at once; zero or less runs all.
func (e *Ensemble) SetLimit(n int) { e.limit = n }

// Run returns one Result per replica in seed order. The first failing
// replica cancels the rest.
func (e *Ensemble) Run(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, e.numRuns)

	g, gctx := errgroup.WithContext(ctx)
	if e.limit > 0 {
		g.SetLimit(e.limit)
	}
	for i := 0; i < e.numRuns; i++ {
		cfg := e.cfg
		cfg.Seed = e.seedStart + uint64(i)
		g.Go(func() error {
			s := New(e.sys, cfg)
			if e.setup != nil {
				e.setup(i, s)
			}
			res, err := s.Run(gctx)
			if err != nil {
				return fmt.Errorf("replica seed %d: %w", cfg.Seed, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
