package comm

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/mdcore/internal/atom"
	"github.com/san-kum/mdcore/internal/domain"
	"github.com/san-kum/mdcore/internal/dynamo"
	"gonum.org/v1/gonum/spatial/r3"
)

// Swap is one directed ghost transfer recorded by Borders and replayed by
// ForwardComm and ReverseComm.
type Swap struct {
	Dim       int
	Dir       int // 0 sends toward lo, 1 toward hi
	SendProc  int
	RecvProc  int
	SendList  []int
	FirstRecv int
	NRecv     int
	PBC       [3]int32
}

// Stats counts traffic since the last reset.
type Stats struct {
	Exchanged int64
	Ghosts    int64
	Swaps     int
}

// Comm is one rank's communicator.
type Comm struct {
	*Endpoint

	Layout *Layout
	Box    *domain.Box

	Loc          [3]int
	Neighbor     [3][2]int
	SubLo, SubHi [3]float64
	CutGhost     [3]float64

	// Natoms is the global particle count checked after every exchange.
	// Zero disables the check.
	Natoms int64

	swaps []Swap
	Stats Stats
}

// New returns the communicator of ep's rank over layout.
func New(ep *Endpoint, layout *Layout, box *domain.Box) *Comm {
	c := &Comm{Endpoint: ep, Layout: layout, Box: box}
	c.Loc = layout.Coords(ep.Rank())
	for d := 0; d < 3; d++ {
		lo, hi := c.Loc, c.Loc
		lo[d]--
		hi[d]++
		c.Neighbor[d] = [2]int{layout.Rank(lo), layout.Rank(hi)}
	}
	c.SubLo, c.SubHi = layout.SubBox(ep.Rank())
	return c
}

// Setup fixes the ghost cutoff. The halo must fit within half of the
// sub-box along every axis that is periodic or split between ranks.
func (c *Comm) Setup(cutneigh float64) error {
	if !(cutneigh > 0) {
		return dynamo.Configf("neighbor.cutoff", "cutoff+skin must be positive, got %g", cutneigh)
	}
	h := c.Box.Heights()
	for d := 0; d < c.Layout.Dim; d++ {
		cg := cutneigh
		width := c.SubHi[d] - c.SubLo[d]
		realWidth := width
		if c.Layout.Lamda {
			hd := component(h, d)
			cg = cutneigh / hd
			realWidth = width * hd
		}
		c.CutGhost[d] = cg
		if (c.Layout.Periodic[d] || c.Layout.Grid[d] > 1) && cg > 0.5*width {
			return dynamo.Configf("neighbor.cutoff",
				"cutoff+skin %g exceeds half the sub-domain width %g along %s", cutneigh, realWidth, axisName(d))
		}
	}
	return nil
}

// Swaps returns the swap plan of the last Borders call.
func (c *Comm) Swaps() []Swap { return c.swaps }

// adjacent reports whether slab index idx is adjacent to this rank along d.
func (c *Comm) adjacent(d, idx int) bool {
	p, m := c.Layout.Grid[d], c.Loc[d]
	if c.Layout.Periodic[d] {
		return idx == (m+1)%p || idx == (m-1+p)%p
	}
	return idx == m+1 || idx == m-1
}

// CheckJumps reports owned particles whose move since prev spans more
// than one sub-box width along some axis. prev holds the positions of the
// owned particles, in box coordinates, before the move.
func (c *Comm) CheckJumps(t *atom.Table, prev []r3.Vec, step int64) error {
	var bad []dynamo.ParticleState
	for i := 0; i < t.NLocal && i < len(prev); i++ {
		from, to := prev[i], t.X[i]
		if c.Layout.Lamda {
			from, to = c.Box.ToLamda(from), c.Box.ToLamda(to)
		}
		delta := r3.Sub(to, from)
		for d := 0; d < c.Layout.Dim; d++ {
			if math.Abs(component(delta, d)) > c.SubHi[d]-c.SubLo[d] {
				bad = append(bad, particleState(t, i))
				break
			}
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return &dynamo.DivergenceError{
		Step: step, Rank: c.Rank(),
		Reason:    fmt.Sprintf("%d particles moved more than one sub-domain in a step", len(bad)),
		Particles: bad,
	}
}

func particleState(t *atom.Table, i int) dynamo.ParticleState {
	tag, typ, x, v, f := t.State(i)
	return dynamo.ParticleState{Tag: tag, Type: typ, X: x, V: v, F: f}
}

// Exchange migrates owned particles that left the sub-box to the rank that
// now owns them, one dimension at a time, so a particle crossing an edge or
// corner is forwarded through the intermediate rank. Positions must be in
// comm coordinates and inside the global box on periodic axes, and t must
// hold no ghosts.
func (c *Comm) Exchange(ctx context.Context, t *atom.Table, step int64) error {
	nextra := len(t.Extras())
	size := atom.RecordSize(nextra)

	for d := 0; d < c.Layout.Dim; d++ {
		p := c.Layout.Grid[d]
		if p == 1 {
			continue
		}

		var leavers []atom.Record
		var bad []dynamo.ParticleState
		for i := 0; i < t.NLocal; {
			idx := c.Layout.Index(d, component(t.X[i], d))
			if idx == c.Loc[d] {
				i++
				continue
			}
			if !c.adjacent(d, idx) {
				bad = append(bad, particleState(t, i))
			}
			leavers = append(leavers, t.Record(i))
			t.Remove(i)
		}
		if len(bad) > 0 {
			return &dynamo.DivergenceError{
				Step: step, Rank: c.Rank(),
				Reason:    fmt.Sprintf("%d particles moved more than one sub-domain along %s", len(bad), axisName(d)),
				Particles: bad,
			}
		}
		c.Stats.Exchanged += int64(len(leavers))

		kindLo := "exchange/" + axisName(d) + "/lo"
		kindHi := "exchange/" + axisName(d) + "/hi"
		body := atom.EncodeRecords(c.Buffer(), leavers, nextra)
		if p > 2 {
			if err := c.Send(ctx, c.Neighbor[d][1], kindHi, len(leavers), atom.EncodeRecords(c.Buffer(), leavers, nextra)); err != nil {
				return err
			}
		}
		if err := c.Send(ctx, c.Neighbor[d][0], kindLo, len(leavers), body); err != nil {
			return err
		}

		recvFrom := []struct {
			rank int
			kind string
		}{{c.Neighbor[d][1], kindLo}}
		if p > 2 {
			recvFrom = append(recvFrom, struct {
				rank int
				kind string
			}{c.Neighbor[d][0], kindHi})
		}
		for _, src := range recvFrom {
			msg, err := c.RecvSized(ctx, src.rank, src.kind, size, -1)
			if err != nil {
				return err
			}
			recs, err := atom.DecodeRecords(msg.Body, nextra)
			if err != nil {
				return err
			}
			c.Release(msg.Body)
			for _, r := range recs {
				if c.Layout.Index(d, component(r.X, d)) == c.Loc[d] {
					t.AddOwned(r)
				}
			}
		}
	}

	if c.Natoms > 0 {
		total, err := c.AllReduceSum(ctx, float64(t.NLocal))
		if err != nil {
			return err
		}
		if int64(total[0]) != c.Natoms {
			return &dynamo.DivergenceError{
				Step: step, Rank: c.Rank(),
				Reason: fmt.Sprintf("lost atoms: %d present, %d expected", int64(total[0]), c.Natoms),
			}
		}
	}
	return nil
}

// shift returns the displacement applied to particles sent across the
// periodic boundary, in the coordinates particles are in during Borders.
func (c *Comm) shift(pbc [3]int32) r3.Vec {
	if c.Layout.Lamda {
		return r3.Vec{X: float64(pbc[0]), Y: float64(pbc[1]), Z: float64(pbc[2])}
	}
	return c.Box.ShiftVector(pbc)
}

// Borders replaces the ghost set with copies of the owned and earlier ghost
// particles within CutGhost of each sub-box face and records the swap plan.
// Along each dimension the swap toward lo is done first; both swaps of a
// dimension only scan particles present when the dimension started, and
// later dimensions also forward ghosts received earlier, which fills the
// edge and corner regions.
func (c *Comm) Borders(ctx context.Context, t *atom.Table) error {
	t.ClearGhosts()
	c.swaps = c.swaps[:0]
	nextra := len(t.Extras())
	size := atom.RecordSize(nextra)

	for d := 0; d < c.Layout.Dim; d++ {
		p := c.Layout.Grid[d]
		nlast := t.Len()
		for dir := 0; dir < 2; dir++ {
			sw := Swap{Dim: d, Dir: dir, SendProc: c.Neighbor[d][dir], RecvProc: c.Neighbor[d][1-dir]}
			edge := (dir == 0 && c.Loc[d] == 0) || (dir == 1 && c.Loc[d] == p-1)
			send := !edge || c.Layout.Periodic[d]
			if edge && send {
				if dir == 0 {
					sw.PBC[d] = 1
				} else {
					sw.PBC[d] = -1
				}
			}

			var recs []atom.Record
			if send {
				lo, hi := c.SubLo[d], c.SubHi[d]
				cg := c.CutGhost[d]
				shift := c.shift(sw.PBC)
				for i := 0; i < nlast; i++ {
					x := component(t.X[i], d)
					var in bool
					if dir == 0 {
						in = x >= lo-cg && x < lo+cg
					} else {
						in = x >= hi-cg && x < hi+cg
					}
					if !in {
						continue
					}
					sw.SendList = append(sw.SendList, i)
					r := t.Record(i)
					r.X = r3.Add(r.X, shift)
					recs = append(recs, r)
				}
			}

			kind := fmt.Sprintf("borders/%d", len(c.swaps))
			if err := c.Send(ctx, sw.SendProc, kind, len(recs), atom.EncodeRecords(c.Buffer(), recs, nextra)); err != nil {
				return err
			}
			msg, err := c.RecvSized(ctx, sw.RecvProc, kind, size, -1)
			if err != nil {
				return err
			}
			in, err := atom.DecodeRecords(msg.Body, nextra)
			if err != nil {
				return err
			}
			c.Release(msg.Body)
			sw.FirstRecv = t.Len()
			sw.NRecv = len(in)
			for _, r := range in {
				t.AddGhost(r)
			}
			c.swaps = append(c.swaps, sw)
		}
	}
	c.Stats.Ghosts += int64(t.NGhost)
	c.Stats.Swaps = len(c.swaps)
	return nil
}

// ForwardComm refreshes ghost positions from their owners using the swap
// plan of the last Borders call. Positions are in box coordinates.
func (c *Comm) ForwardComm(ctx context.Context, t *atom.Table) error {
	vals := make([]float64, 0, 64)
	for k := range c.swaps {
		sw := &c.swaps[k]
		shift := c.Box.ShiftVector(sw.PBC)
		vals = vals[:0]
		for _, i := range sw.SendList {
			x := r3.Add(t.X[i], shift)
			vals = append(vals, x.X, x.Y, x.Z)
		}
		kind := fmt.Sprintf("forward/%d", k)
		if err := c.Send(ctx, sw.SendProc, kind, len(sw.SendList), atom.EncodeFloats(c.Buffer(), vals)); err != nil {
			return err
		}
		msg, err := c.RecvSized(ctx, sw.RecvProc, kind, 24, sw.NRecv)
		if err != nil {
			return err
		}
		in, err := atom.DecodeFloats(msg.Body)
		if err != nil {
			return err
		}
		c.Release(msg.Body)
		for n := 0; n < sw.NRecv; n++ {
			t.X[sw.FirstRecv+n] = r3.Vec{X: in[3*n], Y: in[3*n+1], Z: in[3*n+2]}
		}
	}
	return nil
}

// ReverseComm adds the forces accumulated on ghosts, and any extra
// per-particle columns, into the particles they mirror. Swaps are replayed
// in reverse so ghosts of ghosts reach their owner.
func (c *Comm) ReverseComm(ctx context.Context, t *atom.Table, extra ...[]float64) error {
	stride := 3 + len(extra)
	vals := make([]float64, 0, 64)
	for k := len(c.swaps) - 1; k >= 0; k-- {
		sw := &c.swaps[k]
		vals = vals[:0]
		for n := 0; n < sw.NRecv; n++ {
			g := sw.FirstRecv + n
			f := t.F[g]
			vals = append(vals, f.X, f.Y, f.Z)
			for _, col := range extra {
				vals = append(vals, col[g])
			}
		}
		kind := fmt.Sprintf("reverse/%d", k)
		if err := c.Send(ctx, sw.RecvProc, kind, sw.NRecv, atom.EncodeFloats(c.Buffer(), vals)); err != nil {
			return err
		}
		msg, err := c.RecvSized(ctx, sw.SendProc, kind, 8*stride, len(sw.SendList))
		if err != nil {
			return err
		}
		in, err := atom.DecodeFloats(msg.Body)
		if err != nil {
			return err
		}
		c.Release(msg.Body)
		for n, i := range sw.SendList {
			o := n * stride
			t.F[i] = r3.Add(t.F[i], r3.Vec{X: in[o], Y: in[o+1], Z: in[o+2]})
			for e, col := range extra {
				col[i] += in[o+3+e]
			}
		}
	}
	return nil
}

// ToComm converts owned positions to comm coordinates. It is a no-op for
// orthogonal boxes.
func (c *Comm) ToComm(t *atom.Table) {
	if !c.Layout.Lamda {
		return
	}
	for i := 0; i < t.NLocal; i++ {
		t.X[i] = c.Box.ToLamda(t.X[i])
	}
}

// FromComm converts owned and ghost positions back to box coordinates.
func (c *Comm) FromComm(t *atom.Table) {
	if !c.Layout.Lamda {
		return
	}
	for i := 0; i < t.Len(); i++ {
		t.X[i] = c.Box.FromLamda(t.X[i])
	}
}
