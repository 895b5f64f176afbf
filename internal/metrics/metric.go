package metrics

// Metric folds a stream of thermo samples into a single number.
type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

// Standard returns the metrics reported at the end of every run.
func Standard(maxTemp float64) []Metric {
	return []Metric{NewEnergy(), NewEnergyDrift(), NewTemperature(), NewStability(maxTemp)}
}
