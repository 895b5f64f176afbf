package atom

import (
	"encoding/binary"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Record flags.
const (
	FlagFrozen uint32 = 1 << iota
)

// Record is the full state of one particle as it travels between
// partitions or into a restart file.
type Record struct {
	Tag   int64
	Type  int32
	Flags uint32
	Image [3]int32
	X     r3.Vec
	V     r3.Vec
	Q     float64
	RMass float64
	Extra []float64
}

const recordBase = 8 + 4 + 4 + 3*4 + 3*8 + 3*8 + 8 + 8

// RecordSize returns the encoded size of a record carrying nextra custom
// properties. Every record of a message has the same size.
func RecordSize(nextra int) int {
	return recordBase + 8*nextra
}

var order = binary.LittleEndian

func putF(b []byte, v float64) { order.PutUint64(b, math.Float64bits(v)) }
func getF(b []byte) float64    { return math.Float64frombits(order.Uint64(b)) }

// EncodeRecords appends the fixed-size encoding of recs to dst. Records with
// fewer extras than nextra are zero-padded.
func EncodeRecords(dst []byte, recs []Record, nextra int) []byte {
	size := RecordSize(nextra)
	off := len(dst)
	need := off + size*len(recs)
	if cap(dst) < need {
		grown := make([]byte, off, need)
		copy(grown, dst)
		dst = grown
	}
	dst = dst[:need]

	for i := range recs {
		r := &recs[i]
		b := dst[off+i*size : off+(i+1)*size]
		order.PutUint64(b[0:], uint64(r.Tag))
		order.PutUint32(b[8:], uint32(r.Type))
		order.PutUint32(b[12:], r.Flags)
		order.PutUint32(b[16:], uint32(r.Image[0]))
		order.PutUint32(b[20:], uint32(r.Image[1]))
		order.PutUint32(b[24:], uint32(r.Image[2]))
		putF(b[28:], r.X.X)
		putF(b[36:], r.X.Y)
		putF(b[44:], r.X.Z)
		putF(b[52:], r.V.X)
		putF(b[60:], r.V.Y)
		putF(b[68:], r.V.Z)
		putF(b[76:], r.Q)
		putF(b[84:], r.RMass)
		for k := 0; k < nextra; k++ {
			v := 0.0
			if k < len(r.Extra) {
				v = r.Extra[k]
			}
			putF(b[recordBase+8*k:], v)
		}
	}
	return dst
}

// DecodeRecords decodes a buffer produced by EncodeRecords. The buffer length
// must be an exact multiple of the record size.
func DecodeRecords(src []byte, nextra int) ([]Record, error) {
	size := RecordSize(nextra)
	if len(src)%size != 0 {
		return nil, fmt.Errorf("atom: buffer of %d bytes is not a multiple of record size %d", len(src), size)
	}
	n := len(src) / size
	recs := make([]Record, n)
	for i := range recs {
		b := src[i*size : (i+1)*size]
		r := &recs[i]
		r.Tag = int64(order.Uint64(b[0:]))
		r.Type = int32(order.Uint32(b[8:]))
		r.Flags = order.Uint32(b[12:])
		r.Image[0] = int32(order.Uint32(b[16:]))
		r.Image[1] = int32(order.Uint32(b[20:]))
		r.Image[2] = int32(order.Uint32(b[24:]))
		r.X = r3.Vec{X: getF(b[28:]), Y: getF(b[36:]), Z: getF(b[44:])}
		r.V = r3.Vec{X: getF(b[52:]), Y: getF(b[60:]), Z: getF(b[68:])}
		r.Q = getF(b[76:])
		r.RMass = getF(b[84:])
		if nextra > 0 {
			r.Extra = make([]float64, nextra)
			for k := range r.Extra {
				r.Extra[k] = getF(b[recordBase+8*k:])
			}
		}
	}
	return recs, nil
}

// EncodeFloats appends vals to dst as little-endian float64s.
func EncodeFloats(dst []byte, vals []float64) []byte {
	off := len(dst)
	need := off + 8*len(vals)
	if cap(dst) < need {
		grown := make([]byte, off, need)
		copy(grown, dst)
		dst = grown
	}
	dst = dst[:need]
	for i, v := range vals {
		putF(dst[off+8*i:], v)
	}
	return dst
}

// DecodeFloats is the inverse of EncodeFloats.
func DecodeFloats(src []byte) ([]float64, error) {
	if len(src)%8 != 0 {
		return nil, fmt.Errorf("atom: float buffer of %d bytes is not a multiple of 8", len(src))
	}
	out := make([]float64, len(src)/8)
	for i := range out {
		out[i] = getF(src[8*i:])
	}
	return out, nil
}
