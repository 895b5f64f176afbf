package compute

// Energy kinds tallied separately.
const (
	KindVdwl = iota
	KindCoul
	KindBond
	KindAngle
	KindList
	KindLong
	numKinds
)

var kindNames = [numKinds]string{"evdwl", "ecoul", "ebond", "eangle", "efix", "elong"}

// KindName returns the thermo label of an energy kind.
func KindName(k int) string { return kindNames[k] }

// Accumulator holds one rank's energies and virial for a step. The virial
// components are xx, yy, zz, xy, xz, yz.
type Accumulator struct {
	Energy [numKinds]float64
	Virial [6]float64

	// Per-particle tallies, kept only when PerAtom is set. They cover
	// owned and ghost particles and must be reverse communicated.
	PerAtom bool
	EAtom   []float64
	VAtom   [6][]float64
}

// Reset zeroes the tallies for n owned plus ghost particles.
func (a *Accumulator) Reset(n int) {
	a.Energy = [numKinds]float64{}
	a.Virial = [6]float64{}
	if !a.PerAtom {
		return
	}
	a.EAtom = zeroed(a.EAtom, n)
	for k := range a.VAtom {
		a.VAtom[k] = zeroed(a.VAtom[k], n)
	}
}

func zeroed(s []float64, n int) []float64 {
	if cap(s) < n {
		return make([]float64, n)
	}
	s = s[:n]
	for i := range s {
		s[i] = 0
	}
	return s
}

// Add folds o into a.
func (a *Accumulator) Add(o *Accumulator) {
	for k := range a.Energy {
		a.Energy[k] += o.Energy[k]
	}
	for k := range a.Virial {
		a.Virial[k] += o.Virial[k]
	}
	if a.PerAtom && o.PerAtom {
		for i := range o.EAtom {
			a.EAtom[i] += o.EAtom[i]
		}
		for k := range a.VAtom {
			for i := range o.VAtom[k] {
				a.VAtom[k][i] += o.VAtom[k][i]
			}
		}
	}
}

// Total returns the sum of every energy kind.
func (a *Accumulator) Total() float64 {
	s := 0.0
	for _, e := range a.Energy {
		s += e
	}
	return s
}

// Columns returns the per-particle columns for reverse communication.
func (a *Accumulator) Columns() [][]float64 {
	if !a.PerAtom {
		return nil
	}
	return [][]float64{a.EAtom, a.VAtom[0], a.VAtom[1], a.VAtom[2], a.VAtom[3], a.VAtom[4], a.VAtom[5]}
}

// Flat returns the global tallies as one slice, for reductions.
func (a *Accumulator) Flat() []float64 {
	out := make([]float64, 0, numKinds+6)
	out = append(out, a.Energy[:]...)
	return append(out, a.Virial[:]...)
}

// SetFlat is the inverse of Flat.
func (a *Accumulator) SetFlat(v []float64) {
	copy(a.Energy[:], v[:numKinds])
	copy(a.Virial[:], v[numKinds:numKinds+6])
}

// tallyPair adds the energy and virial of pair (i, j) with separation d.
// share is 1 when this rank accounts for the whole pair and 0.5 when the
// pair is also seen by the rank owning j or from j's own list.
func (a *Accumulator) tallyPair(i, j int, iShare, jShare, evdwl, ecoul, fpair, dx, dy, dz float64) {
	w := iShare + jShare
	a.Energy[KindVdwl] += w * evdwl
	a.Energy[KindCoul] += w * ecoul
	v := [6]float64{dx * dx * fpair, dy * dy * fpair, dz * dz * fpair, dx * dy * fpair, dx * dz * fpair, dy * dz * fpair}
	for k := range v {
		a.Virial[k] += w * v[k]
	}
	if a.PerAtom {
		e := 0.5 * (evdwl + ecoul)
		if iShare > 0 {
			a.EAtom[i] += e
			for k := range v {
				a.VAtom[k][i] += 0.5 * v[k]
			}
		}
		if jShare > 0 {
			a.EAtom[j] += e
			for k := range v {
				a.VAtom[k][j] += 0.5 * v[k]
			}
		}
	}
}
