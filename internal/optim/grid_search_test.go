package optim

import (
	"context"
	"errors"
	"testing"

	"github.com/san-kum/mdcore/internal/config"
	"github.com/san-kum/mdcore/internal/dynamo"
	"github.com/san-kum/mdcore/internal/experiment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Box.Cells = [3]int{4, 4, 4}
	cfg.Steps = 10
	cfg.ThermoEvery = 5
	return cfg
}

func builder(t *testing.T, base *config.Config) func(map[string]float64) (*experiment.Experiment, error) {
	return func(params map[string]float64) (*experiment.Experiment, error) {
		cfg, err := Apply(base, params)
		if err != nil {
			return nil, err
		}
		reg := experiment.NewRegistry()
		exp, err := experiment.New(cfg, reg)
		if err != nil {
			return nil, err
		}
		if err := exp.Setup(reg.DefaultMetrics(cfg)); err != nil {
			return nil, err
		}
		return exp, nil
	}
}

func TestPointsOrder(t *testing.T) {
	g := NewGridSearch([]string{"dt", "temp"}, [][]float64{{1, 2}, {3, 4, 5}})
	pts := g.Points()
	require.Len(t, pts, 6)
	assert.Equal(t, map[string]float64{"dt": 1, "temp": 3}, pts[0])
	assert.Equal(t, map[string]float64{"dt": 1, "temp": 5}, pts[2])
	assert.Equal(t, map[string]float64{"dt": 2, "temp": 3}, pts[3])
}

func TestApplyCopies(t *testing.T) {
	base := smallConfig()
	cfg, err := Apply(base, map[string]float64{"dt": 0.002, "skin": 0.5, "check_every": 2})
	require.NoError(t, err)
	assert.Equal(t, 0.002, cfg.Dt)
	assert.Equal(t, 0.5, cfg.Neighbor.Skin)
	assert.Equal(t, 2, cfg.Neighbor.Every)
	assert.Zero(t, base.Dt)

	_, err = Apply(base, map[string]float64{"nope": 1})
	assert.Error(t, err)
}

func TestSearchPicksLowestTemperature(t *testing.T) {
	g := NewGridSearch([]string{"temp"}, [][]float64{{2.0, 0.5}})
	g.SetWorkers(2)

	best, trials, err := g.Search(context.Background(), builder(t, smallConfig()), "temperature")
	require.NoError(t, err)
	require.Len(t, trials, 2)
	assert.Equal(t, 0.5, best.Params["temp"])
	assert.Less(t, trials[1].Value, trials[0].Value)
}

func TestSearchSkipsFailedTrials(t *testing.T) {
	g := NewGridSearch([]string{"dt"}, [][]float64{{-1, 0.005}})

	best, trials, err := g.Search(context.Background(), builder(t, smallConfig()), "energy")
	require.NoError(t, err)
	assert.True(t, errors.Is(trials[0].Err, dynamo.ErrConfiguration))
	assert.Equal(t, 0.005, best.Params["dt"])
}

func TestSearchAllFailed(t *testing.T) {
	g := NewGridSearch([]string{"dt"}, [][]float64{{-1}})

	_, _, err := g.Search(context.Background(), builder(t, smallConfig()), "energy")
	assert.Error(t, err)
}
