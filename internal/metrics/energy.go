package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Energy is the mean total energy over the observed samples.
type Energy struct {
	name   string
	values []float64
}

func NewEnergy() *Energy {
	return &Energy{name: "energy"}
}

func (e *Energy) Name() string { return e.name }

func (e *Energy) Observe(s Sample) {
	e.values = append(e.values, s.ETotal)
}

func (e *Energy) Value() float64 {
	if len(e.values) == 0 {
		return 0
	}
	return stat.Mean(e.values, nil)
}

// StdDev is the fluctuation of the total energy.
func (e *Energy) StdDev() float64 {
	if len(e.values) < 2 {
		return 0
	}
	return stat.StdDev(e.values, nil)
}

func (e *Energy) Reset() {
	e.values = e.values[:0]
}

// EnergyDrift is the largest relative deviation of the total energy from
// the first sample.
type EnergyDrift struct {
	name          string
	initialEnergy float64
	currentEnergy float64
	maxDrift      float64
	samples       int
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{name: "energy_drift"}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(s Sample) {
	energy := s.ETotal
	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.currentEnergy = energy
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.currentEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}

// Temperature is the mean temperature.
type Temperature struct {
	sum     float64
	samples int
}

func NewTemperature() *Temperature { return &Temperature{} }

func (t *Temperature) Name() string { return "temperature" }

func (t *Temperature) Observe(s Sample) {
	t.sum += s.Temp
	t.samples++
}

func (t *Temperature) Value() float64 {
	if t.samples == 0 {
		return 0
	}
	return t.sum / float64(t.samples)
}

func (t *Temperature) Reset() {
	t.sum = 0
	t.samples = 0
}
