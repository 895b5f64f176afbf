package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/mdcore/internal/dynamo"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Units != "lj" {
		t.Errorf("expected lj units, got %s", cfg.Units)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	dt, err := cfg.TimeStep()
	if err != nil || dt != 0.005 {
		t.Errorf("expected the lj default timestep, got %g (%v)", dt, err)
	}
}

func TestPresetsValidate(t *testing.T) {
	for _, name := range ListPresets() {
		t.Run(name, func(t *testing.T) {
			cfg := GetPreset(name)
			if cfg == nil {
				t.Fatal("expected preset, got nil")
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("preset %s invalid: %v", name, err)
			}
		})
	}
}

func TestGetPresetIsACopy(t *testing.T) {
	a := GetPreset("polymer")
	a.Chains.Length = 3
	a.Pair[0].Params[0] = 9
	b := GetPreset("polymer")
	if b.Chains.Length != 10 || b.Pair[0].Params[0] == 9 {
		t.Error("preset shared state between calls")
	}
	if GetPreset("nonexistent") != nil {
		t.Error("expected nil for nonexistent preset")
	}
}

func TestListPresets(t *testing.T) {
	names := ListPresets()
	want := []string{"fcc-crystal", "lj-2d", "lj-liquid", "polymer"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("expected %v, got %v", want, names)
		}
	}
}

func TestParseOverDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
units: metal
steps: 50
neighbor:
  skin: 1.0
  style: full
special:
  lj: [0, 0.5, 1]
procs: 4
grid: [2, 2, 1]
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Units != "metal" || cfg.Steps != 50 || cfg.Procs != 4 {
		t.Errorf("fields not decoded: %+v", cfg)
	}
	n := cfg.NeighborConfig()
	if n.Skin != 1.0 || n.Style != "full" || n.Cutoff != 2.5 || !n.Newton {
		t.Errorf("neighbor merge wrong: %+v", n)
	}
	if n.SpecialLJ != [4]float64{1, 0, 0.5, 1} {
		t.Errorf("special weights %v", n.SpecialLJ)
	}
	dt, _ := cfg.TimeStep()
	if dt != 0.001 {
		t.Errorf("expected metal timestep, got %g", dt)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	cfg := GetPreset("polymer")
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Chains == nil || got.Chains.Length != 10 || got.Bond == nil || got.Bond.Style != "fene" {
		t.Errorf("chains or bonds lost: %+v", got)
	}
	if got.Neighbor.Cutoff != cfg.Neighbor.Cutoff || got.Special != cfg.Special {
		t.Errorf("neighbor settings lost")
	}
}

func TestLoadIntoRefinesPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refine.yaml")
	if err := os.WriteFile(path, []byte("steps: 10\nprocs: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg := GetPreset("polymer")
	if err := LoadInto(path, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Steps != 10 || cfg.Procs != 2 || cfg.Chains == nil || cfg.Lattice.Style != "sc" {
		t.Errorf("preset not refined: %+v", cfg)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"units", func(c *Config) { c.Units = "cgs" }, "units"},
		{"dimension", func(c *Config) { c.Dimension = 4 }, "dimension"},
		{"mass count", func(c *Config) { c.Types = 2 }, "mass"},
		{"zero mass", func(c *Config) { c.Mass[0] = 0 }, "mass"},
		{"coeff type", func(c *Config) { c.Pair[0].Coeffs[0].J = 3 }, "pair.coeffs"},
		{"chain without bond", func(c *Config) { c.Chains = &Chains{Length: 4, BondType: 1} }, "bond"},
		{"special weight", func(c *Config) { c.Special.LJ[1] = 2 }, "special"},
		{"2d grid", func(c *Config) { c.Dimension = 2; c.Grid = [3]int{1, 1, 2} }, "grid"},
		{"empty box", func(c *Config) { c.Box.Cells = [3]int{} }, "box"},
		{"frozen type", func(c *Config) { c.FrozenTypes = []int{2} }, "frozen_types"},
		{"neighbor style", func(c *Config) { c.Neighbor.Style = "both" }, "neighbor.style"},
		{"rdf cutoff", func(c *Config) { c.Analysis = Analysis{RDFBins: 10, RDFCutoff: 5} }, "analysis.rdf_cutoff"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var ce *dynamo.ConfigError
			if !errors.As(err, &ce) {
				t.Fatalf("expected a configuration error, got %v", err)
			}
			if ce.Field != tt.field {
				t.Errorf("expected field %s, got %s", tt.field, ce.Field)
			}
		})
	}
}
