package analysis

import (
	"math"
	"testing"

	"github.com/san-kum/mdcore/internal/atom"
	"github.com/san-kum/mdcore/internal/domain"
	"github.com/san-kum/mdcore/internal/neighbor"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestRDFUniformCountsGiveOne(t *testing.T) {
	for _, dim := range []int{2, 3} {
		r := NewRDF(2.0, 20, dim)
		natoms, volume := int64(500), 625.0
		density := float64(natoms) / volume
		counts := make([]float64, r.Bins)
		for k := range counts {
			counts[k] = float64(natoms) * density * r.shell(k)
		}
		r.Add(counts, natoms, volume)
		r.Add(counts, natoms, volume)

		radius, g := r.Result()
		if r.Samples() != 2 {
			t.Errorf("expected 2 samples, got %d", r.Samples())
		}
		if math.Abs(radius[0]-0.05) > 1e-12 {
			t.Errorf("first bin centre %g", radius[0])
		}
		for k, v := range g {
			if math.Abs(v-1) > 1e-12 {
				t.Fatalf("dim %d bin %d: g=%g, expected 1", dim, k, v)
			}
		}
		if c := r.Coordination(2.0, density); math.Abs(c-density*4.0/3.0*math.Pi*8) > 1e-9 && dim == 3 {
			t.Errorf("coordination %g", c)
		}
	}
}

func TestRDFIgnoresMismatchedSample(t *testing.T) {
	r := NewRDF(1, 4, 3)
	r.Add([]float64{1, 2}, 10, 1)
	r.Add(make([]float64, 4), 0, 1)
	if r.Samples() != 0 {
		t.Errorf("bad samples were accepted")
	}
}

func TestPairCounts(t *testing.T) {
	tab := atom.New(1)
	tab.AddOwned(atom.Record{Tag: 1, Type: 1, X: r3.Vec{}})
	tab.AddOwned(atom.Record{Tag: 2, Type: 1, X: r3.Vec{X: 0.55}})
	tab.AddGhost(atom.Record{Tag: 3, Type: 1, X: r3.Vec{Y: 1.25}})
	l := &neighbor.List{
		Full:    true,
		Inum:    2,
		Offsets: []int32{0, 2, 3},
		Neigh:   []uint32{1, 2, 0},
	}
	hist := PairCounts(tab, l, 1.0, 4)
	// 0-1 and 1-0 at 0.55 land in bin 2; 0-2 at 1.25 is beyond the cutoff.
	want := []float64{0, 0, 2, 0}
	for k := range want {
		if hist[k] != want[k] {
			t.Fatalf("expected %v, got %v", want, hist)
		}
	}
}

func TestDisplacementFollowsImages(t *testing.T) {
	box, err := domain.NewBox(r3.Vec{}, r3.Vec{X: 10, Y: 10, Z: 10}, [3]bool{true, true, true}, 3)
	if err != nil {
		t.Fatal(err)
	}
	recs := []atom.Record{
		{Tag: 1, Type: 1, X: r3.Vec{X: 9.5, Y: 5, Z: 5}},
		{Tag: 2, Type: 1, X: r3.Vec{X: 1, Y: 1, Z: 1}, Image: [3]int32{1, 0, 0}},
	}
	extras, stamped := StampOrigins(box, nil, recs)
	if len(extras) != 3 || stamped[1].Extra[0] != 11 {
		t.Fatalf("origins not stamped: %v %v", extras, stamped[1].Extra)
	}
	if len(recs[0].Extra) != 0 {
		t.Fatal("input records were modified")
	}
	again, _ := StampOrigins(box, extras, stamped)
	if len(again) != 3 {
		t.Fatal("origins stamped twice")
	}

	tab := atom.New(1, extras...)
	for _, r := range stamped {
		tab.AddOwned(r)
	}
	// particle 1 crosses the hi face: wrapped to 0.5 with image +1.
	tab.X[0] = r3.Vec{X: 0.5, Y: 5, Z: 5}
	tab.Image[0] = [3]int32{1, 0, 0}
	sum, n := Displacement(tab, box)
	if n != 2 || math.Abs(sum-1.0) > 1e-12 {
		t.Errorf("expected sum 1 over 2 particles, got %g over %d", sum, n)
	}
}

func TestDiffusion(t *testing.T) {
	var pts []MSDPoint
	for k := 0; k < 20; k++ {
		tm := float64(k) * 0.5
		pts = append(pts, MSDPoint{Step: int64(k), Time: tm, MSD: 6 * 0.25 * tm})
	}
	if d := Diffusion(pts, 3); math.Abs(d-0.25) > 1e-9 {
		t.Errorf("expected D=0.25, got %g", d)
	}
	if Diffusion(pts[:2], 3) != 0 {
		t.Error("expected zero for a short series")
	}
}

func TestDominantFrequency(t *testing.T) {
	const n, dt, f = 256, 0.1, 1.25
	data := make([]float64, n)
	for i := range data {
		data[i] = 3 + math.Sin(2*math.Pi*f*float64(i)*dt)
	}
	if got := DominantFrequency(data, dt); math.Abs(got-f) > 1e-9 {
		t.Errorf("expected %g, got %g", f, got)
	}
	freq, power := Spectrum(data, dt)
	if len(freq) != n/2 || len(power) != n/2 {
		t.Errorf("expected %d bins, got %d", n/2, len(power))
	}
	if power[0] > 1e-9 {
		t.Errorf("mean not removed: %g", power[0])
	}
}

func TestBlockAverage(t *testing.T) {
	series := make([]float64, 100)
	for i := range series {
		series[i] = 2
	}
	mean, se := BlockAverage(series, 5)
	if mean != 2 || se != 0 {
		t.Errorf("constant series: mean %g stderr %g", mean, se)
	}
	mean, se = BlockAverage([]float64{1, 2, 3}, 1)
	if mean != 2 || !math.IsNaN(se) {
		t.Errorf("single block: mean %g stderr %g", mean, se)
	}
}
