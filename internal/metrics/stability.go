package metrics

import (
	"math"
)

// Stability is the fraction of thermo samples that look physical: finite
// energy and pressure, the particle count of the first sample, and a
// temperature at or below the ceiling when one is set.
type Stability struct {
	ceiling  float64
	natoms   int64
	bad      int
	observed int
}

func NewStability(ceiling float64) *Stability {
	return &Stability{ceiling: ceiling}
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) Observe(x Sample) {
	if s.observed == 0 {
		s.natoms = x.Natoms
	}
	s.observed++
	if !s.physical(x) {
		s.bad++
	}
}

func (s *Stability) physical(x Sample) bool {
	switch {
	case math.IsNaN(x.ETotal) || math.IsInf(x.ETotal, 0):
		return false
	case math.IsNaN(x.Press) || math.IsInf(x.Press, 0):
		return false
	case x.Natoms != s.natoms:
		return false
	case s.ceiling > 0 && x.Temp > s.ceiling:
		return false
	}
	return true
}

func (s *Stability) Value() float64 {
	if s.observed == 0 {
		return 1
	}
	return float64(s.observed-s.bad) / float64(s.observed)
}

func (s *Stability) Reset() {
	s.natoms = 0
	s.bad = 0
	s.observed = 0
}
