package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/mdcore/internal/config"
	"github.com/san-kum/mdcore/internal/dynamo"
	"github.com/san-kum/mdcore/internal/metrics"
	"github.com/san-kum/mdcore/internal/potential"
	"github.com/san-kum/mdcore/internal/sim"
)

// Registry resolves the names a configuration refers to: force styles and
// end-of-run metrics.
type Registry struct {
	metrics map[string]func(cfg *config.Config) metrics.Metric
}

func NewRegistry() *Registry {
	r := &Registry{
		metrics: make(map[string]func(cfg *config.Config) metrics.Metric),
	}

	r.metrics["energy"] = func(*config.Config) metrics.Metric { return metrics.NewEnergy() }
	r.metrics["energy_drift"] = func(*config.Config) metrics.Metric { return metrics.NewEnergyDrift() }
	r.metrics["temperature"] = func(*config.Config) metrics.Metric { return metrics.NewTemperature() }
	r.metrics["stability"] = func(cfg *config.Config) metrics.Metric { return metrics.NewStability(cfg.MaxTemp) }

	return r
}

func (r *Registry) GetMetric(name string, cfg *config.Config) (metrics.Metric, error) {
	fn, ok := r.metrics[name]
	if !ok {
		return nil, fmt.Errorf("unknown metric: %s", name)
	}
	return fn(cfg), nil
}

func (r *Registry) ListMetrics() []string {
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) DefaultMetrics(cfg *config.Config) []metrics.Metric {
	return metrics.Standard(cfg.MaxTemp)
}

// Forces returns a factory building the force terms cfg describes. The
// factory is run once here so configuration errors surface before any
// rank starts.
func (r *Registry) Forces(cfg *config.Config) (sim.ForceFactory, error) {
	units, err := dynamo.LookupUnits(cfg.Units)
	if err != nil {
		return nil, err
	}
	factory := func() (*potential.Set, error) { return buildSet(cfg, units) }
	set, err := factory()
	if err != nil {
		return nil, err
	}
	if err := set.Init(); err != nil {
		return nil, fmt.Errorf("%w: %v", dynamo.ErrConfiguration, err)
	}
	return factory, nil
}

func buildSet(cfg *config.Config, units dynamo.Units) (*potential.Set, error) {
	set := &potential.Set{NTypes: cfg.Types}
	for _, pc := range cfg.Pair {
		p, err := potential.NewPair(pc.Style, cfg.Types, units, pc.Params)
		if err != nil {
			return nil, err
		}
		for _, c := range pc.Coeffs {
			if err := p.Coeff(c.I, c.J, c.Params); err != nil {
				return nil, err
			}
		}
		set.Pairs = append(set.Pairs, p)
		if lj, ok := p.(*potential.LJCut); ok && cfg.Tail {
			if cfg.Dimension != 3 {
				return nil, dynamo.Configf("tail", "tail correction needs a 3d box")
			}
			set.Long = append(set.Long, potential.NewLJTail(lj))
		}
	}
	if cfg.Tail && len(set.Long) == 0 {
		return nil, dynamo.Configf("tail", "tail correction needs an lj/cut pair style")
	}

	if b := cfg.Bond; b != nil {
		k, err := potential.NewBond(b.Style, bondedTypes(b, chainType(cfg, false)))
		if err != nil {
			return nil, err
		}
		for _, c := range b.Coeffs {
			if err := k.Coeff(c.Type, c.Params); err != nil {
				return nil, err
			}
		}
		set.Bond = k
	}
	if a := cfg.Angle; a != nil {
		k, err := potential.NewAngle(a.Style, bondedTypes(a, chainType(cfg, true)))
		if err != nil {
			return nil, err
		}
		for _, c := range a.Coeffs {
			if err := k.Coeff(c.Type, c.Params); err != nil {
				return nil, err
			}
		}
		set.Angle = k
	}

	for _, f := range cfg.Fixes {
		l, err := potential.NewList(f.Style, f.Params)
		if err != nil {
			return nil, err
		}
		set.Lists = append(set.Lists, l)
	}
	return set, nil
}

func chainType(cfg *config.Config, angle bool) int {
	if cfg.Chains == nil {
		return 0
	}
	if angle {
		return cfg.Chains.AngleType
	}
	return cfg.Chains.BondType
}

// bondedTypes is the number of bond or angle types in use.
func bondedTypes(b *config.BondedConfig, used int) int {
	n := max(used, 1)
	for _, c := range b.Coeffs {
		n = max(n, c.Type)
	}
	return n
}
