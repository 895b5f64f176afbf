package config

import (
	"math"
	"sort"

	"github.com/san-kum/mdcore/internal/domain"
)

// Presets build ready-to-run configurations. Each call returns a fresh
// value the caller may modify.
var Presets = map[string]func() *Config{
	"lj-liquid": func() *Config {
		cfg := DefaultConfig()
		cfg.Temperature = 1.44
		cfg.Steps = 2000
		cfg.ThermoEvery = 100
		return cfg
	},
	"fcc-crystal": func() *Config {
		cfg := DefaultConfig()
		cfg.Box.Cells = [3]int{6, 6, 6}
		cfg.Temperature = 0.1
		cfg.Steps = 1000
		cfg.Pair[0].Params = []float64{2.5, 1}
		cfg.Tail = true
		return cfg
	},
	"polymer": func() *Config {
		wca := math.Pow(2, 1.0/6)
		cfg := DefaultConfig()
		cfg.Lattice = domain.LatticeSpec{Style: "sc", Scale: 0.85}
		cfg.Box.Cells = [3]int{10, 5, 5}
		cfg.Chains = &Chains{Length: 10, BondType: 1}
		cfg.Pair = []PairConfig{{
			Style:  "lj/cut",
			Params: []float64{wca, 1},
			Coeffs: []PairCoeff{{I: 1, J: 1, Params: []float64{1, 1}}},
		}}
		cfg.Bond = &BondedConfig{
			Style:  "fene",
			Coeffs: []TypeCoeff{{Type: 1, Params: []float64{30, 1.5, 1, 1}}},
		}
		cfg.Special.LJ = [3]float64{0, 1, 1}
		cfg.Neighbor.Cutoff = wca
		cfg.Neighbor.Skin = 0.4
		cfg.Steps = 2000
		return cfg
	},
	"lj-2d": func() *Config {
		cfg := DefaultConfig()
		cfg.Dimension = 2
		cfg.Lattice = domain.LatticeSpec{Style: "hex", Scale: 0.7}
		cfg.Box.Cells = [3]int{20, 12, 1}
		cfg.Temperature = 0.5
		cfg.Steps = 2000
		return cfg
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	fn, ok := Presets[name]
	if !ok {
		return nil
	}
	return fn()
}

// ListPresets returns the preset names in order.
func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
