package domain

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/san-kum/mdcore/internal/atom"
	"github.com/san-kum/mdcore/internal/dynamo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

var allPeriodic = [3]bool{true, true, true}

func TestWrapBoundsAndIdempotence(t *testing.T) {
	box, err := NewBox(r3.Vec{X: -5, Y: 0, Z: 2}, r3.Vec{X: 5, Y: 3, Z: 9}, allPeriodic, 3)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	for n := 0; n < 10000; n++ {
		x := r3.Vec{X: rng.NormFloat64() * 40, Y: rng.NormFloat64() * 40, Z: rng.NormFloat64() * 40}
		var img [3]int32
		w := box.Wrap(x, &img)
		require.True(t, box.Inside(w), "wrap(%v) = %v outside box", x, w)
		again := box.Wrap(w, &img)
		require.Equal(t, w, again)

		back := box.Unmap(w, img)
		assert.InDelta(t, x.X, back.X, 1e-9)
		assert.InDelta(t, x.Y, back.Y, 1e-9)
		assert.InDelta(t, x.Z, back.Z, 1e-9)
	}
}

func TestWrapEdgeValues(t *testing.T) {
	box, err := NewBox(r3.Vec{}, r3.Vec{X: 10, Y: 10, Z: 10}, allPeriodic, 3)
	require.NoError(t, err)

	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{10, 0},
		{-1e-17, 0},
		{-10, 0},
		{9.999999999999998, 9.999999999999998},
		{25, 5},
	}
	for _, c := range cases {
		got := box.Wrap(r3.Vec{X: c.in, Y: 1, Z: 1}, nil)
		assert.Equal(t, c.want, got.X, "wrap(%v)", c.in)
		assert.Less(t, got.X, 10.0)
	}
}

func TestWrapNonPeriodicUntouched(t *testing.T) {
	box, err := NewBox(r3.Vec{}, r3.Vec{X: 10, Y: 10, Z: 10}, [3]bool{true, false, true}, 3)
	require.NoError(t, err)
	got := box.Wrap(r3.Vec{X: 11, Y: 12, Z: -1}, nil)
	assert.Equal(t, r3.Vec{X: 1, Y: 12, Z: 9}, got)
}

func TestRemapAllIdempotent(t *testing.T) {
	box, err := NewTriclinic(r3.Vec{}, r3.Vec{X: 8, Y: 6, Z: 5}, 1.5, -0.5, 0.7, allPeriodic, 3)
	require.NoError(t, err)

	tb := atom.New(1)
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 500; i++ {
		tb.AddOwned(atom.Record{Tag: int64(i + 1), Type: 1, X: r3.Vec{X: rng.Float64()*40 - 20, Y: rng.Float64()*40 - 20, Z: rng.Float64()*40 - 20}})
	}
	box.RemapAll(tb)
	first := append([]r3.Vec(nil), tb.X...)
	for i := range first {
		l := box.ToLamda(first[i])
		require.True(t, l.X >= 0 && l.X < 1 && l.Y >= 0 && l.Y < 1 && l.Z >= 0 && l.Z < 1, "lamda %v", l)
	}
	box.RemapAll(tb)
	for i := range first {
		assert.InDelta(t, first[i].X, tb.X[i].X, 1e-12)
		assert.InDelta(t, first[i].Y, tb.X[i].Y, 1e-12)
		assert.InDelta(t, first[i].Z, tb.X[i].Z, 1e-12)
	}
}

func TestLamdaRoundTrip(t *testing.T) {
	box, err := NewTriclinic(r3.Vec{X: 1, Y: 2, Z: 3}, r3.Vec{X: 9, Y: 8, Z: 7}, 2, 1, -1, allPeriodic, 3)
	require.NoError(t, err)
	x := r3.Vec{X: 4.2, Y: 5.5, Z: 6.1}
	back := box.FromLamda(box.ToLamda(x))
	assert.InDelta(t, 0, r3.Norm(r3.Sub(back, x)), 1e-12)

	corner := box.FromLamda(r3.Vec{X: 1, Y: 1, Z: 1})
	assert.InDelta(t, 9+2+1, corner.X, 1e-12)
	assert.InDelta(t, 8-1, corner.Y, 1e-12)
}

func TestMinimumImage(t *testing.T) {
	box, err := NewBox(r3.Vec{}, r3.Vec{X: 10, Y: 10, Z: 10}, allPeriodic, 3)
	require.NoError(t, err)
	d := box.MinimumImage(r3.Vec{X: 9, Y: -6, Z: 4})
	assert.Equal(t, r3.Vec{X: -1, Y: 4, Z: 4}, d)
}

func TestBoxRejectsBadGeometry(t *testing.T) {
	cases := []struct {
		name string
		make func() (*Box, error)
	}{
		{"inverted", func() (*Box, error) { return NewBox(r3.Vec{X: 1}, r3.Vec{Y: 1, Z: 1}, allPeriodic, 3) }},
		{"bad dimension", func() (*Box, error) { return NewBox(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, allPeriodic, 4) }},
		{"2d nonperiodic z", func() (*Box, error) {
			return NewBox(r3.Vec{}, r3.Vec{X: 1, Y: 1, Z: 1}, [3]bool{true, true, false}, 2)
		}},
		{"excess tilt", func() (*Box, error) {
			return NewTriclinic(r3.Vec{}, r3.Vec{X: 4, Y: 4, Z: 4}, 3, 0, 0, allPeriodic, 3)
		}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := c.make()
			require.Error(t, err)
			assert.True(t, errors.Is(err, dynamo.ErrConfiguration))
		})
	}
}

func TestHeights(t *testing.T) {
	box, err := NewTriclinic(r3.Vec{}, r3.Vec{X: 4, Y: 4, Z: 4}, 2, 0, 0, allPeriodic, 3)
	require.NoError(t, err)
	h := box.Heights()
	assert.InDelta(t, 4/math.Sqrt(1.25), h.X, 1e-12)
	assert.InDelta(t, 4, h.Y, 1e-12)
}
