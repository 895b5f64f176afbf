package atom

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func TestRecordCodec(t *testing.T) {
	in := []Record{
		{Tag: 7, Type: 2, Flags: FlagFrozen, Image: [3]int32{-1, 0, 3}, X: r3.Vec{X: 1.5, Y: -2, Z: 1e-9}, V: r3.Vec{Z: 4}, Q: -1, RMass: 12, Extra: []float64{3}},
		{Tag: 1 << 40, Type: 1, X: r3.Vec{X: 0.25}},
	}
	buf := EncodeRecords([]byte{0xff}, in, 1)
	if len(buf) != 1+2*RecordSize(1) {
		t.Fatalf("encoded length %d", len(buf))
	}
	out, err := DecodeRecords(buf[1:], 1)
	if err != nil {
		t.Fatal(err)
	}
	if out[0].Tag != 7 || out[0].Image != in[0].Image || out[0].X != in[0].X || out[0].Extra[0] != 3 || out[0].Flags != FlagFrozen {
		t.Errorf("first record mismatch: %+v", out[0])
	}
	if out[1].Tag != 1<<40 || out[1].Extra[0] != 0 {
		t.Errorf("second record mismatch: %+v", out[1])
	}

	if _, err := DecodeRecords(buf[1:len(buf)-1], 1); err == nil {
		t.Error("expected error for truncated buffer")
	}
}

func TestTableRecordRoundTrip(t *testing.T) {
	tb := New(1, "a", "b")
	r := Record{Tag: 3, Type: 1, X: r3.Vec{X: 1}, Extra: []float64{1, 2}}
	tb.AddOwned(r)
	got := tb.Record(0)
	if got.Tag != 3 || got.Extra[1] != 2 {
		t.Errorf("Record(0) = %+v", got)
	}
}
