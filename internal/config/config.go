// Package config holds the YAML run description: the box and lattice the
// particles are created on, the force field, the neighbor and
// decomposition settings, and run control.
package config

import (
	"os"

	"github.com/san-kum/mdcore/internal/domain"
	"github.com/san-kum/mdcore/internal/dynamo"
	"github.com/san-kum/mdcore/internal/logging"
	"github.com/san-kum/mdcore/internal/neighbor"
	"gopkg.in/yaml.v3"
)

const (
	DefaultUnits       = "lj"
	DefaultSteps       = 1000
	DefaultTemperature = 1.0
	DefaultSeed        = 87287
	DefaultThermoEvery = 100
	DefaultProcs       = 1
)

type Config struct {
	Units     string `yaml:"units"`
	Dimension int    `yaml:"dimension"`
	// Dt of zero selects the unit system's default timestep.
	Dt          float64 `yaml:"dt"`
	Steps       int64   `yaml:"steps"`
	Temperature float64 `yaml:"temperature"`
	Seed        uint64  `yaml:"seed"`

	Box     BoxConfig          `yaml:"box"`
	Lattice domain.LatticeSpec `yaml:"lattice"`
	// BasisTypes assigns a particle type to each basis site; missing
	// entries get type 1.
	BasisTypes []int     `yaml:"basis_types,omitempty"`
	Types      int       `yaml:"types"`
	Mass       []float64 `yaml:"mass"`
	// Charge is per type and feeds coul/cut.
	Charge []float64 `yaml:"charge,omitempty"`
	// FrozenTypes lists types whose particles never move.
	FrozenTypes []int   `yaml:"frozen_types,omitempty,flow"`
	Chains      *Chains `yaml:"chains,omitempty"`

	Pair     []PairConfig    `yaml:"pair"`
	Bond     *BondedConfig   `yaml:"bond,omitempty"`
	Angle    *BondedConfig   `yaml:"angle,omitempty"`
	Fixes    []FixConfig     `yaml:"fixes,omitempty"`
	Tail     bool            `yaml:"tail"`
	Neighbor neighbor.Config `yaml:"neighbor"`
	Special  Special         `yaml:"special"`

	Procs   int    `yaml:"procs"`
	Grid    [3]int `yaml:"grid"`
	Driver  string `yaml:"driver"`
	Threads int    `yaml:"threads"`

	ThermoEvery     int64   `yaml:"thermo_every"`
	CheckpointEvery int64   `yaml:"checkpoint_every"`
	PerAtom         bool    `yaml:"per_atom"`
	MaxTemp         float64 `yaml:"max_temp"`

	Analysis Analysis `yaml:"analysis"`

	Log logging.Config `yaml:"log"`
}

// BoxConfig is either a whole number of lattice cells from the origin or
// explicit bounds. Tilt is xy, xz, yz and makes the box triclinic.
type BoxConfig struct {
	Cells    [3]int     `yaml:"cells,omitempty"`
	Lo       [3]float64 `yaml:"lo,omitempty"`
	Hi       [3]float64 `yaml:"hi,omitempty"`
	Tilt     [3]float64 `yaml:"tilt,omitempty"`
	Periodic [3]bool    `yaml:"periodic"`
}

// Triclinic reports whether any tilt factor is set.
func (b BoxConfig) Triclinic() bool { return b.Tilt != [3]float64{} }

// Chains links consecutive tags into linear molecules of Length particles.
type Chains struct {
	Length    int `yaml:"length"`
	BondType  int `yaml:"bond_type"`
	AngleType int `yaml:"angle_type"`
}

type PairConfig struct {
	Style  string      `yaml:"style"`
	Params []float64   `yaml:"params,flow"`
	Coeffs []PairCoeff `yaml:"coeffs"`
}

type PairCoeff struct {
	I      int       `yaml:"i"`
	J      int       `yaml:"j"`
	Params []float64 `yaml:"params,flow"`
}

type BondedConfig struct {
	Style  string      `yaml:"style"`
	Coeffs []TypeCoeff `yaml:"coeffs"`
}

type TypeCoeff struct {
	Type   int       `yaml:"type"`
	Params []float64 `yaml:"params,flow"`
}

type FixConfig struct {
	Style  string    `yaml:"style"`
	Params []float64 `yaml:"params,flow"`
}

// Analysis selects the diagnostics sampled with every thermo output.
type Analysis struct {
	RDFBins   int     `yaml:"rdf_bins"`
	RDFCutoff float64 `yaml:"rdf_cutoff"`
	MSD       bool    `yaml:"msd"`
}

// Special holds the 1-2, 1-3 and 1-4 weights.
type Special struct {
	LJ   [3]float64 `yaml:"lj,flow"`
	Coul [3]float64 `yaml:"coul,flow"`
}

func DefaultConfig() *Config {
	return &Config{
		Units:       DefaultUnits,
		Dimension:   3,
		Steps:       DefaultSteps,
		Temperature: DefaultTemperature,
		Seed:        DefaultSeed,
		Box: BoxConfig{
			Cells:    [3]int{5, 5, 5},
			Periodic: [3]bool{true, true, true},
		},
		Lattice: domain.LatticeSpec{Style: "fcc", Scale: 0.8442},
		Types:   1,
		Mass:    []float64{1},
		Pair: []PairConfig{{
			Style:  "lj/cut",
			Params: []float64{2.5},
			Coeffs: []PairCoeff{{I: 1, J: 1, Params: []float64{1, 1}}},
		}},
		Neighbor:    neighbor.DefaultConfig(),
		Procs:       DefaultProcs,
		Driver:      "serial",
		ThermoEvery: DefaultThermoEvery,
		Log:         logging.Config{Level: "info"},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, dynamo.Configf("yaml", "%v", err)
	}
	return cfg, nil
}

// LoadInto decodes the file at path over cfg, so a file can refine a
// preset.
func LoadInto(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return dynamo.Configf("yaml", "%v", err)
	}
	return nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// TimeStep returns Dt, or the unit system's default when Dt is unset.
func (c *Config) TimeStep() (float64, error) {
	if c.Dt > 0 {
		return c.Dt, nil
	}
	u, err := dynamo.LookupUnits(c.Units)
	if err != nil {
		return 0, err
	}
	return u.Dt, nil
}

// NeighborConfig returns the neighbor settings with the special weights
// filled in.
func (c *Config) NeighborConfig() neighbor.Config {
	n := c.Neighbor
	n.SpecialLJ = [4]float64{1, c.Special.LJ[0], c.Special.LJ[1], c.Special.LJ[2]}
	n.SpecialCoul = [4]float64{1, c.Special.Coul[0], c.Special.Coul[1], c.Special.Coul[2]}
	return n
}

// Validate checks everything that can be checked without building the
// system. Box, lattice and potential errors surface when the system is
// built.
func (c *Config) Validate() error {
	if _, err := dynamo.LookupUnits(c.Units); err != nil {
		return err
	}
	if c.Dimension != 2 && c.Dimension != 3 {
		return dynamo.Configf("dimension", "must be 2 or 3, got %d", c.Dimension)
	}
	if c.Dimension == 2 {
		if c.Box.Tilt[1] != 0 || c.Box.Tilt[2] != 0 {
			return dynamo.Configf("box.tilt", "2d boxes only allow an xy tilt")
		}
		if c.Grid[2] > 1 {
			return dynamo.Configf("grid", "2d runs need one rank along z")
		}
	}
	if c.Dt < 0 {
		return dynamo.Configf("dt", "must not be negative, got %g", c.Dt)
	}
	if c.Steps < 0 {
		return dynamo.Configf("steps", "must not be negative, got %d", c.Steps)
	}
	if c.Temperature < 0 {
		return dynamo.Configf("temperature", "must not be negative, got %g", c.Temperature)
	}
	if c.Types < 1 {
		return dynamo.Configf("types", "need at least one particle type, got %d", c.Types)
	}
	if len(c.Mass) != c.Types {
		return dynamo.Configf("mass", "need %d masses, got %d", c.Types, len(c.Mass))
	}
	for k, m := range c.Mass {
		if !(m > 0) {
			return dynamo.Configf("mass", "type %d has mass %g", k+1, m)
		}
	}
	if len(c.Charge) != 0 && len(c.Charge) != c.Types {
		return dynamo.Configf("charge", "need %d charges, got %d", c.Types, len(c.Charge))
	}
	for _, ty := range c.BasisTypes {
		if ty < 1 || ty > c.Types {
			return dynamo.Configf("basis_types", "type %d out of range 1..%d", ty, c.Types)
		}
	}
	for _, ty := range c.FrozenTypes {
		if ty < 1 || ty > c.Types {
			return dynamo.Configf("frozen_types", "type %d out of range 1..%d", ty, c.Types)
		}
	}
	if c.Box.Cells == [3]int{} {
		for d := 0; d < c.Dimension; d++ {
			if !(c.Box.Hi[d] > c.Box.Lo[d]) {
				return dynamo.Configf("box", "hi must exceed lo along axis %d", d)
			}
		}
	} else {
		for d := 0; d < c.Dimension; d++ {
			if c.Box.Cells[d] < 1 {
				return dynamo.Configf("box.cells", "need at least one cell along axis %d", d)
			}
		}
	}
	if len(c.Pair) == 0 {
		return dynamo.Configf("pair", "no pair style")
	}
	for _, p := range c.Pair {
		for _, cf := range p.Coeffs {
			if cf.I < 1 || cf.J < 1 || cf.I > c.Types || cf.J > c.Types {
				return dynamo.Configf("pair.coeffs", "%s coefficient for types %d %d out of range", p.Style, cf.I, cf.J)
			}
		}
	}
	if c.Chains != nil {
		if c.Chains.Length < 2 {
			return dynamo.Configf("chains.length", "must be at least 2, got %d", c.Chains.Length)
		}
		if c.Bond == nil {
			return dynamo.Configf("bond", "chains need a bond style")
		}
		if c.Chains.AngleType > 0 && c.Angle == nil {
			return dynamo.Configf("angle", "chains with angles need an angle style")
		}
	}
	for _, w := range append(c.Special.LJ[:], c.Special.Coul[:]...) {
		if w < 0 || w > 1 {
			return dynamo.Configf("special", "weights must lie in [0,1], got %g", w)
		}
	}
	if c.Procs < 1 {
		return dynamo.Configf("procs", "need at least one rank, got %d", c.Procs)
	}
	if c.ThermoEvery < 0 || c.CheckpointEvery < 0 {
		return dynamo.Configf("thermo_every", "intervals must not be negative")
	}
	if a := c.Analysis; a.RDFBins > 0 && !(a.RDFCutoff > 0 && a.RDFCutoff <= c.Neighbor.CutNeigh()) {
		return dynamo.Configf("analysis.rdf_cutoff", "must lie in (0, %g], got %g", c.Neighbor.CutNeigh(), a.RDFCutoff)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return c.NeighborConfig().Validate()
}
