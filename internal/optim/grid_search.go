package optim

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/mdcore/internal/config"
	"github.com/san-kum/mdcore/internal/experiment"
	"golang.org/x/sync/errgroup"
)

// Setters maps sweepable parameter names to the config field they set.
var Setters = map[string]func(cfg *config.Config, v float64){
	"dt":          func(cfg *config.Config, v float64) { cfg.Dt = v },
	"temp":        func(cfg *config.Config, v float64) { cfg.Temperature = v },
	"density":     func(cfg *config.Config, v float64) { cfg.Lattice.Scale = v },
	"skin":        func(cfg *config.Config, v float64) { cfg.Neighbor.Skin = v },
	"bin_factor":  func(cfg *config.Config, v float64) { cfg.Neighbor.BinFactor = v },
	"check_every": func(cfg *config.Config, v float64) { cfg.Neighbor.Every = int(v) },
}

// Parameters lists the names Setters accepts.
func Parameters() []string {
	names := make([]string, 0, len(Setters))
	for name := range Setters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply returns a copy of base with params set.
func Apply(base *config.Config, params map[string]float64) (*config.Config, error) {
	cfg := *base
	for name, v := range params {
		set, ok := Setters[name]
		if !ok {
			return nil, fmt.Errorf("unknown parameter %q (have %v)", name, Parameters())
		}
		set(&cfg, v)
	}
	return &cfg, nil
}

// Trial is one evaluated point of a search.
type Trial struct {
	Params map[string]float64
	Value  float64
	Err    error
}

// GridSearch evaluates every combination of parameter values and keeps the
// one with the smallest metric.
type GridSearch struct {
	paramNames []string
	ranges     [][]float64
	workers    int
}

func NewGridSearch(params []string, ranges [][]float64) *GridSearch {
	return &GridSearch{paramNames: params, ranges: ranges, workers: 1}
}

// SetWorkers bounds how many trials run at once.
func (g *GridSearch) SetWorkers(n int) { g.workers = max(n, 1) }

// Points enumerates the grid with the last parameter varying fastest.
func (g *GridSearch) Points() []map[string]float64 {
	var out []map[string]float64
	g.pointsRecursive(0, make(map[string]float64), &out)
	return out
}

func (g *GridSearch) pointsRecursive(depth int, current map[string]float64, out *[]map[string]float64) {
	if depth == len(g.paramNames) {
		*out = append(*out, current)
		return
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		g.pointsRecursive(depth+1, newParams, out)
	}
}

// Search runs build for every grid point and returns the best trial and all
// trials in grid order. A trial that fails to build or run is recorded with
// its error and never wins; Search fails only when ctx is cancelled or no
// trial succeeds.
func (g *GridSearch) Search(
	ctx context.Context,
	buildExperiment func(params map[string]float64) (*experiment.Experiment, error),
	metricName string,
) (Trial, []Trial, error) {
	if len(g.paramNames) != len(g.ranges) {
		return Trial{}, nil, fmt.Errorf("%d parameters but %d ranges", len(g.paramNames), len(g.ranges))
	}
	points := g.Points()
	trials := make([]Trial, len(points))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.workers)
	for i, p := range points {
		eg.Go(func() error {
			trials[i] = evaluate(ctx, p, buildExperiment, metricName)
			return ctx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return Trial{}, trials, err
	}

	best := Trial{Value: math.Inf(1)}
	for _, t := range trials {
		if t.Err == nil && t.Value < best.Value {
			best = t
		}
	}
	if best.Params == nil {
		return best, trials, fmt.Errorf("all %d trials failed: %w", len(trials), trials[0].Err)
	}
	return best, trials, nil
}

func evaluate(
	ctx context.Context,
	params map[string]float64,
	buildExperiment func(map[string]float64) (*experiment.Experiment, error),
	metricName string,
) Trial {
	t := Trial{Params: params}
	exp, err := buildExperiment(params)
	if err != nil {
		t.Err = err
		return t
	}

	result, err := exp.Run(ctx)
	if err != nil {
		t.Err = err
		return t
	}

	val, ok := result.Metrics[metricName]
	if !ok {
		t.Err = fmt.Errorf("run did not report metric %q", metricName)
		return t
	}
	t.Value = val
	return t
}
