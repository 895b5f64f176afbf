package experiment

import (
	"context"
	"errors"
	"testing"

	"github.com/san-kum/mdcore/internal/atom"
	"github.com/san-kum/mdcore/internal/config"
	"github.com/san-kum/mdcore/internal/dynamo"
	"github.com/san-kum/mdcore/internal/potential"
	"github.com/san-kum/mdcore/internal/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestBuildSystemFCC(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Box.Cells = [3]int{4, 4, 4}
	sys, err := BuildSystem(cfg, NewRegistry())
	require.NoError(t, err)

	assert.Len(t, sys.Atoms, 256)
	assert.InDelta(t, 256/sys.Box.Volume(), 0.8442, 1e-9)
	assert.Equal(t, []float64{0, 1}, sys.Mass)
	assert.Nil(t, sys.Topology)
	for k, a := range sys.Atoms {
		assert.Equal(t, int64(k+1), a.Tag)
		assert.True(t, sys.Box.Inside(a.X), "tag %d outside the box", a.Tag)
	}
}

func TestBuildSystemPolymer(t *testing.T) {
	cfg := config.GetPreset("polymer")
	sys, err := BuildSystem(cfg, NewRegistry())
	require.NoError(t, err)
	require.Len(t, sys.Atoms, 250)
	require.NotNil(t, sys.Topology)

	// chains run along x inside one row of the lattice.
	assert.Equal(t, 1, sys.Topology.Level(1, 2))
	assert.Equal(t, topology.None, sys.Topology.Level(10, 11))
	d := sys.Atoms[1].X.X - sys.Atoms[0].X.X
	assert.Less(t, d, 1.5)

	set, err := sys.Forces()
	require.NoError(t, err)
	assert.NotNil(t, set.Bond)
	assert.Equal(t, "fene", set.Bond.Name())
}

func TestBuildSystem2D(t *testing.T) {
	cfg := config.GetPreset("lj-2d")
	sys, err := BuildSystem(cfg, NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, 2, sys.Box.Dimension)
	assert.Len(t, sys.Atoms, 2*20*12)
	for _, a := range sys.Atoms {
		assert.Zero(t, a.X.Z)
	}
}

func TestBasisTypesAndCharges(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Box.Cells = [3]int{2, 2, 2}
	cfg.Types = 2
	cfg.Mass = []float64{1, 2}
	cfg.Charge = []float64{1, -1}
	cfg.BasisTypes = []int{1, 2, 2, 2}
	cfg.Pair[0].Coeffs = append(cfg.Pair[0].Coeffs, config.PairCoeff{I: 2, J: 2, Params: []float64{1, 1}})
	sys, err := BuildSystem(cfg, NewRegistry())
	require.NoError(t, err)

	counts := map[int32]int{}
	for _, a := range sys.Atoms {
		counts[a.Type]++
		if a.Type == 1 {
			assert.Equal(t, 1.0, a.Q)
		} else {
			assert.Equal(t, -1.0, a.Q)
		}
	}
	assert.Equal(t, 8, counts[1])
	assert.Equal(t, 24, counts[2])
}

func TestFrozenTypesStayPut(t *testing.T) {
	reg := NewRegistry()
	cfg := config.DefaultConfig()
	cfg.Box.Cells = [3]int{4, 4, 4}
	cfg.Types = 2
	cfg.Mass = []float64{1, 1}
	cfg.BasisTypes = []int{1, 2, 2, 2}
	cfg.FrozenTypes = []int{1}
	cfg.Pair[0].Coeffs = append(cfg.Pair[0].Coeffs, config.PairCoeff{I: 2, J: 2, Params: []float64{1, 1}})
	cfg.Steps = 20

	e, err := New(cfg, reg)
	require.NoError(t, err)
	start := map[int64]r3.Vec{}
	for _, a := range e.System().Atoms {
		assert.Equal(t, a.Type == 1, a.Flags&atom.FlagFrozen != 0, "tag %d", a.Tag)
		start[a.Tag] = a.X
	}

	require.NoError(t, e.Setup(nil))
	res, err := e.Run(context.Background())
	require.NoError(t, err)

	moved := 0
	for _, a := range res.Final.Atoms {
		if a.Type == 1 {
			assert.Equal(t, start[a.Tag], a.X, "frozen tag %d moved", a.Tag)
			assert.Equal(t, r3.Vec{}, a.V)
		} else if a.X != start[a.Tag] {
			moved++
		}
	}
	assert.Positive(t, moved)
}

func TestForcesRejectBadStyles(t *testing.T) {
	reg := NewRegistry()
	cases := map[string]func(*config.Config){
		"pair style": func(c *config.Config) { c.Pair[0].Style = "lj/long" },
		"bond style": func(c *config.Config) { c.Bond = &config.BondedConfig{Style: "morse"} },
		"fix style":  func(c *config.Config) { c.Fixes = []config.FixConfig{{Style: "langevin"}} },
		"tail": func(c *config.Config) {
			c.Pair = []config.PairConfig{{Style: "soft", Params: []float64{1}}}
			c.Tail = true
		},
		"missing coeffs": func(c *config.Config) { c.Pair[0].Coeffs = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			mutate(cfg)
			_, err := reg.Forces(cfg)
			assert.True(t, errors.Is(err, dynamo.ErrConfiguration), "got %v", err)
		})
	}
}

func TestTailCorrection(t *testing.T) {
	cfg := config.GetPreset("fcc-crystal")
	forces, err := NewRegistry().Forces(cfg)
	require.NoError(t, err)
	set, err := forces()
	require.NoError(t, err)
	require.Len(t, set.Long, 1)
	_, ok := set.Long[0].(*potential.LJTail)
	assert.True(t, ok)
}

func TestChainsMustDivide(t *testing.T) {
	cfg := config.GetPreset("polymer")
	cfg.Chains.Length = 7
	_, err := BuildSystem(cfg, NewRegistry())
	assert.True(t, errors.Is(err, dynamo.ErrConfiguration))
}

func TestRegistryMetrics(t *testing.T) {
	reg := NewRegistry()
	assert.Equal(t, []string{"energy", "energy_drift", "stability", "temperature"}, reg.ListMetrics())
	m, err := reg.GetMetric("energy_drift", config.DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, "energy_drift", m.Name())
	_, err = reg.GetMetric("entropy", config.DefaultConfig())
	assert.Error(t, err)
}

func TestExperimentRunAndResume(t *testing.T) {
	reg := NewRegistry()
	cfg := config.DefaultConfig()
	cfg.Box.Cells = [3]int{4, 4, 4}
	cfg.Steps = 10
	cfg.ThermoEvery = 5

	e, err := New(cfg, reg)
	require.NoError(t, err)
	_, err = e.Run(context.Background())
	assert.Error(t, err, "run before setup")

	require.NoError(t, e.Setup(reg.DefaultMetrics(cfg)))
	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res.Final)
	assert.Len(t, res.Thermo, 3)
	assert.Contains(t, res.Metrics, "energy_drift")

	r, err := Resume(cfg, reg, res.Final)
	require.NoError(t, err)
	assert.Equal(t, int64(10), r.System().Step)
	assert.True(t, r.System().HasVelocities)
	require.NoError(t, r.Setup(nil))
	res2, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(20), res2.Final.Step)

	other := config.DefaultConfig()
	other.Units = "metal"
	_, err = Resume(other, reg, res.Final)
	assert.True(t, errors.Is(err, dynamo.ErrConfiguration))
}
