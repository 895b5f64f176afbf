// Package neighbor builds and maintains per-rank neighbor lists by binning
// owned and ghost particles.
package neighbor

import "github.com/san-kum/mdcore/internal/dynamo"

// Config holds the neighbor list settings.
type Config struct {
	Cutoff float64 `yaml:"cutoff"`
	Skin   float64 `yaml:"skin"`
	// Every and Delay control how often a rebuild is considered; Check
	// restricts rebuilds to steps where some particle moved more than
	// half the skin.
	Every int  `yaml:"check_every"`
	Delay int  `yaml:"delay"`
	Check bool `yaml:"check"`

	Style  string `yaml:"style"`
	Newton bool   `yaml:"newton"`
	// BinFactor scales the bin edge relative to cutoff+skin.
	BinFactor float64 `yaml:"bin_factor"`

	// Special weights for 1-2, 1-3 and 1-4 partners; index 0 is unused.
	SpecialLJ   [4]float64 `yaml:"-"`
	SpecialCoul [4]float64 `yaml:"-"`
}

// DefaultConfig returns the usual LJ settings.
func DefaultConfig() Config {
	return Config{
		Cutoff:      2.5,
		Skin:        0.3,
		Every:       1,
		Delay:       0,
		Check:       true,
		Style:       "half",
		Newton:      true,
		BinFactor:   1,
		SpecialLJ:   [4]float64{1, 0, 0, 0},
		SpecialCoul: [4]float64{1, 0, 0, 0},
	}
}

// CutNeigh returns cutoff + skin.
func (c Config) CutNeigh() float64 { return c.Cutoff + c.Skin }

// Full reports whether the list stores every pair in both directions.
func (c Config) Full() bool { return c.Style == "full" }

func (c Config) Validate() error {
	if !(c.Cutoff > 0) {
		return dynamo.Configf("neighbor.cutoff", "must be positive, got %g", c.Cutoff)
	}
	if c.Skin < 0 {
		return dynamo.Configf("neighbor.skin", "must not be negative, got %g", c.Skin)
	}
	if c.Every < 1 {
		return dynamo.Configf("neighbor.check_every", "must be at least 1, got %d", c.Every)
	}
	if c.Delay < 0 {
		return dynamo.Configf("neighbor.delay", "must not be negative, got %d", c.Delay)
	}
	if c.Style != "half" && c.Style != "full" {
		return dynamo.Configf("neighbor.style", "must be half or full, got %q", c.Style)
	}
	if !(c.BinFactor > 0) {
		return dynamo.Configf("neighbor.bin_factor", "must be positive, got %g", c.BinFactor)
	}
	for k := 1; k < 4; k++ {
		if c.SpecialLJ[k] < 0 || c.SpecialLJ[k] > 1 || c.SpecialCoul[k] < 0 || c.SpecialCoul[k] > 1 {
			return dynamo.Configf("special", "weights must lie in [0,1]")
		}
	}
	return nil
}
