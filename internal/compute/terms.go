package compute

import (
	"github.com/san-kum/mdcore/internal/neighbor"
	"github.com/san-kum/mdcore/internal/potential"
	"gonum.org/v1/gonum/spatial/r3"
)

// pairRange evaluates the pair kernels for list entries [start, end),
// writing forces into f and tallies into acc.
func pairRange(in *Input, start, end int, f []r3.Vec, acc *Accumulator) {
	t := in.Table
	l := in.List
	nlocal := t.NLocal
	kernels := in.Set.Pairs
	specLJ, specCoul := specials(in)
	var args potential.PairArgs

	for i := start; i < end; i++ {
		xi := t.X[i]
		args.TI = t.Type[i]
		args.QI = chargeOf(t.Q, i)
		var fi r3.Vec

		for _, jj := range l.Neighbors(i) {
			j := neighbor.Index(jj)
			lvl := neighbor.SpecialLevel(jj)
			d := r3.Sub(xi, t.X[j])
			rsq := r3.Norm2(d)

			args.TJ = t.Type[j]
			args.RSq = rsq
			args.QJ = chargeOf(t.Q, j)
			args.FactorLJ = specLJ[lvl]
			args.FactorCoul = specCoul[lvl]

			var fpair, evdwl, ecoul float64
			hit := false
			for _, k := range kernels {
				if rsq >= k.CutSq(args.TI, args.TJ) {
					continue
				}
				fp, ev, ec := k.Eval(&args)
				fpair += fp
				evdwl += ev
				ecoul += ec
				hit = true
			}
			if !hit {
				continue
			}

			fi = r3.Add(fi, r3.Scale(fpair, d))
			var iShare, jShare float64
			switch {
			case l.Full:
				iShare = 0.5
			case l.Newton || j < nlocal:
				f[j] = r3.Sub(f[j], r3.Scale(fpair, d))
				iShare, jShare = 0.5, 0.5
			default:
				// The ghost's owner stores the same pair and applies its half.
				iShare = 0.5
			}
			acc.tallyPair(i, j, iShare, jShare, evdwl, ecoul, fpair, d.X, d.Y, d.Z)
		}
		f[i] = r3.Add(f[i], fi)
	}
}

func specials(in *Input) (lj, coul [4]float64) {
	lj, coul = in.SpecialLJ, in.SpecialCoul
	lj[0], coul[0] = 1, 1
	return lj, coul
}

func chargeOf(q []float64, i int) float64 {
	if i < len(q) {
		return q[i]
	}
	return 0
}

// bonds evaluates every bond whose first particle is owned here. The
// partner is the nearest image present, owned or ghost, and its force is
// returned to its owner by reverse communication.
func bonds(in *Input, acc *Accumulator) error {
	t := in.Table
	topo := in.Topo
	kern := in.Set.Bond
	if kern == nil || topo.Empty() {
		return nil
	}
	for i := 0; i < t.NLocal; i++ {
		for _, b := range topo.BondsOf(t.Tag[i]) {
			bond := topo.Bonds[b]
			j := t.Closest(bond.B, t.X[i])
			if j < 0 {
				return missing(in, describeMissing("bond", bond.A, bond.B), i)
			}
			d := r3.Sub(t.X[i], t.X[j])
			fbond, e, err := kern.Eval(bond.Type, r3.Norm2(d))
			if err != nil {
				return missing(in, err.Error(), i, j)
			}
			t.F[i] = r3.Add(t.F[i], r3.Scale(fbond, d))
			t.F[j] = r3.Sub(t.F[j], r3.Scale(fbond, d))
			acc.Energy[KindBond] += e
			v := [6]float64{d.X * d.X * fbond, d.Y * d.Y * fbond, d.Z * d.Z * fbond, d.X * d.Y * fbond, d.X * d.Z * fbond, d.Y * d.Z * fbond}
			addVirial(acc, v)
			if acc.PerAtom {
				acc.EAtom[i] += 0.5 * e
				acc.EAtom[j] += 0.5 * e
				for k := range v {
					acc.VAtom[k][i] += 0.5 * v[k]
					acc.VAtom[k][j] += 0.5 * v[k]
				}
			}
		}
	}
	return nil
}

// angles evaluates every angle whose centre particle is owned here.
func angles(in *Input, acc *Accumulator) error {
	t := in.Table
	topo := in.Topo
	kern := in.Set.Angle
	if kern == nil || topo.Empty() {
		return nil
	}
	for i2 := 0; i2 < t.NLocal; i2++ {
		for _, a := range topo.AnglesOf(t.Tag[i2]) {
			ang := topo.Angles[a]
			i1 := t.Closest(ang.A, t.X[i2])
			i3 := t.Closest(ang.C, t.X[i2])
			if i1 < 0 || i3 < 0 {
				return missing(in, describeMissing("angle", ang.A, ang.B, ang.C), i2)
			}
			d1 := r3.Sub(t.X[i1], t.X[i2])
			d2 := r3.Sub(t.X[i3], t.X[i2])
			f1, f3, e := kern.Eval(ang.Type, d1, d2)
			t.F[i1] = r3.Add(t.F[i1], f1)
			t.F[i2] = r3.Sub(t.F[i2], r3.Add(f1, f3))
			t.F[i3] = r3.Add(t.F[i3], f3)
			acc.Energy[KindAngle] += e
			v := [6]float64{
				d1.X*f1.X + d2.X*f3.X,
				d1.Y*f1.Y + d2.Y*f3.Y,
				d1.Z*f1.Z + d2.Z*f3.Z,
				d1.X*f1.Y + d2.X*f3.Y,
				d1.X*f1.Z + d2.X*f3.Z,
				d1.Y*f1.Z + d2.Y*f3.Z,
			}
			addVirial(acc, v)
			if acc.PerAtom {
				for _, p := range [3]int{i1, i2, i3} {
					acc.EAtom[p] += e / 3
					for k := range v {
						acc.VAtom[k][p] += v[k] / 3
					}
				}
			}
		}
	}
	return nil
}
