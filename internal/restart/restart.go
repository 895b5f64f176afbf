// Package restart persists the full state of a run so it can be resumed.
//
// A snapshot is a zstd stream holding a magic string, a YAML header with
// the geometry, counters and potential parameters, and the particle
// records in the same fixed-size layout used on the wire.
package restart

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/klauspost/compress/zstd"
	"github.com/san-kum/mdcore/internal/atom"
	"github.com/san-kum/mdcore/internal/domain"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

const (
	magic   = "MDSNAP01"
	Version = 1
)

// ErrFormat reports a stream that is not a snapshot.
var ErrFormat = errors.New("restart: not a snapshot")

// BoxState is the serialisable form of a domain.Box.
type BoxState struct {
	Lo        [3]float64 `yaml:"lo"`
	Hi        [3]float64 `yaml:"hi"`
	XY        float64    `yaml:"xy,omitempty"`
	XZ        float64    `yaml:"xz,omitempty"`
	YZ        float64    `yaml:"yz,omitempty"`
	Periodic  [3]bool    `yaml:"periodic"`
	Dimension int        `yaml:"dimension"`
	Triclinic bool       `yaml:"triclinic,omitempty"`
}

// FromBox captures b.
func FromBox(b *domain.Box) BoxState {
	return BoxState{
		Lo: [3]float64{b.Lo.X, b.Lo.Y, b.Lo.Z}, Hi: [3]float64{b.Hi.X, b.Hi.Y, b.Hi.Z},
		XY: b.XY, XZ: b.XZ, YZ: b.YZ,
		Periodic: b.Periodic, Dimension: b.Dimension, Triclinic: b.Triclinic,
	}
}

// Box rebuilds the domain.Box.
func (s BoxState) Box() (*domain.Box, error) {
	lo := r3.Vec{X: s.Lo[0], Y: s.Lo[1], Z: s.Lo[2]}
	hi := r3.Vec{X: s.Hi[0], Y: s.Hi[1], Z: s.Hi[2]}
	if s.Triclinic {
		return domain.NewTriclinic(lo, hi, s.XY, s.XZ, s.YZ, s.Periodic, s.Dimension)
	}
	return domain.NewBox(lo, hi, s.Periodic, s.Dimension)
}

// Counters are the neighbor statistics carried across a restart.
type Counters struct {
	Builds    int64 `yaml:"builds"`
	Dangerous int64 `yaml:"dangerous"`
	LastBuild int64 `yaml:"last_build"`
}

// Snapshot is the complete state of a run at the end of a step.
type Snapshot struct {
	Version     int               `yaml:"version"`
	RunID       string            `yaml:"run_id,omitempty"`
	Step        int64             `yaml:"step"`
	Units       string            `yaml:"units"`
	Box         BoxState          `yaml:"box"`
	NTypes      int               `yaml:"ntypes"`
	Mass        []float64         `yaml:"mass"`
	PerAtomMass bool              `yaml:"per_atom_mass,omitempty"`
	Extras      []string          `yaml:"extras,omitempty"`
	Neighbor    Counters          `yaml:"neighbor"`
	Potentials  map[string]string `yaml:"potentials,omitempty"`
	Natoms      int64             `yaml:"natoms"`

	Atoms []atom.Record `yaml:"-"`
}

// SortAtoms orders the records by tag so equal states encode identically.
func (s *Snapshot) SortAtoms() {
	sort.Slice(s.Atoms, func(i, j int) bool { return s.Atoms[i].Tag < s.Atoms[j].Tag })
}

// Write encodes s to w.
func (s *Snapshot) Write(w io.Writer) error {
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	s.Version = Version
	s.Natoms = int64(len(s.Atoms))
	header, err := yaml.Marshal(s)
	if err != nil {
		zw.Close()
		return fmt.Errorf("restart: encode header: %w", err)
	}

	bw := bufio.NewWriter(zw)
	bw.WriteString(magic)
	var n [8]byte
	binary.LittleEndian.PutUint64(n[:], uint64(len(header)))
	bw.Write(n[:])
	bw.Write(header)
	bw.Write(atom.EncodeRecords(nil, s.Atoms, len(s.Extras)))
	if err := bw.Flush(); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// Read decodes a snapshot from r.
func Read(r io.Reader) (*Snapshot, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("restart: %w", err)
	}
	if len(data) < len(magic)+8 || string(data[:len(magic)]) != magic {
		return nil, ErrFormat
	}
	data = data[len(magic):]
	hlen := binary.LittleEndian.Uint64(data)
	data = data[8:]
	if uint64(len(data)) < hlen {
		return nil, fmt.Errorf("%w: truncated header", ErrFormat)
	}

	s := &Snapshot{}
	if err := yaml.Unmarshal(data[:hlen], s); err != nil {
		return nil, fmt.Errorf("restart: decode header: %w", err)
	}
	if s.Version != Version {
		return nil, fmt.Errorf("restart: unsupported version %d", s.Version)
	}
	s.Atoms, err = atom.DecodeRecords(data[hlen:], len(s.Extras))
	if err != nil {
		return nil, fmt.Errorf("restart: %w", err)
	}
	if int64(len(s.Atoms)) != s.Natoms {
		return nil, fmt.Errorf("restart: header lists %d atoms, found %d", s.Natoms, len(s.Atoms))
	}
	return s, nil
}

// Marshal returns the encoded snapshot.
func (s *Snapshot) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := s.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes an encoded snapshot.
func Unmarshal(data []byte) (*Snapshot, error) {
	return Read(bytes.NewReader(data))
}

// Save writes s to path atomically.
func (s *Snapshot) Save(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := s.Write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads a snapshot file.
func Load(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
