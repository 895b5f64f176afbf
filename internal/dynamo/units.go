package dynamo

import "fmt"

// Units holds the conversion constants of a unit system.
type Units struct {
	Name   string
	Boltz  float64 // Boltzmann constant
	Mvv2e  float64 // mass*velocity^2 to energy
	Ftm2v  float64 // force/mass*time to velocity
	Nktv2p float64 // energy/volume to pressure
	Qqrd2e float64 // q*q/r to energy
	Dt     float64 // default timestep
}

var unitSystems = map[string]Units{
	"lj": {
		Name: "lj", Boltz: 1, Mvv2e: 1, Ftm2v: 1, Nktv2p: 1, Qqrd2e: 1, Dt: 0.005,
	},
	"real": {
		Name:   "real",
		Boltz:  0.0019872067,
		Mvv2e:  48.88821291 * 48.88821291,
		Ftm2v:  1.0 / 48.88821291 / 48.88821291,
		Nktv2p: 68568.415,
		Qqrd2e: 332.06371,
		Dt:     1.0,
	},
	"metal": {
		Name:   "metal",
		Boltz:  8.617343e-5,
		Mvv2e:  1.0364269e-4,
		Ftm2v:  1.0 / 1.0364269e-4,
		Nktv2p: 1.6021765e6,
		Qqrd2e: 14.399645,
		Dt:     0.001,
	},
}

// LookupUnits returns the constants for a named unit system.
func LookupUnits(name string) (Units, error) {
	u, ok := unitSystems[name]
	if !ok {
		return Units{}, Configf("units", "unknown unit system %q", name)
	}
	return u, nil
}

func (u Units) String() string {
	return fmt.Sprintf("%s (boltz=%g)", u.Name, u.Boltz)
}
