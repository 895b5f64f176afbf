package restart

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/san-kum/mdcore/internal/atom"
	"github.com/san-kum/mdcore/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func sample(t *testing.T) *Snapshot {
	t.Helper()
	box, err := domain.NewTriclinic(r3.Vec{}, r3.Vec{X: 10, Y: 8, Z: 6}, 1, 0.5, -0.5, [3]bool{true, true, true}, 3)
	require.NoError(t, err)
	s := &Snapshot{
		RunID: "abc", Step: 400, Units: "lj", Box: FromBox(box),
		NTypes: 2, Mass: []float64{0, 1, 2}, Extras: []string{"charge2"},
		Neighbor:   Counters{Builds: 17, Dangerous: 1, LastBuild: 390},
		Potentials: map[string]string{"lj/cut": "1:\n  1:\n    epsilon: 1\n"},
	}
	for tag := int64(5); tag >= 1; tag-- {
		s.Atoms = append(s.Atoms, atom.Record{
			Tag: tag, Type: int32(1 + tag%2), Image: [3]int32{int32(tag), 0, -1},
			X: r3.Vec{X: float64(tag)}, V: r3.Vec{Y: -float64(tag)}, Extra: []float64{0.1 * float64(tag)},
		})
	}
	return s
}

func TestRoundTrip(t *testing.T) {
	s := sample(t)
	s.SortAtoms()
	var buf bytes.Buffer
	require.NoError(t, s.Write(&buf))

	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, s.Step, got.Step)
	assert.Equal(t, s.Box, got.Box)
	assert.Equal(t, s.Neighbor, got.Neighbor)
	assert.Equal(t, s.Potentials, got.Potentials)
	assert.Equal(t, s.Atoms, got.Atoms)
	assert.Equal(t, int64(1), got.Atoms[0].Tag)

	box, err := got.Box.Box()
	require.NoError(t, err)
	assert.True(t, box.Triclinic)
	assert.Equal(t, 1.0, box.XY)
}

func TestSaveLoad(t *testing.T) {
	s := sample(t)
	path := filepath.Join(t.TempDir(), "run.snap")
	require.NoError(t, s.Save(path))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, got.Atoms, 5)
}

func TestRejectsForeignData(t *testing.T) {
	data, err := (&Snapshot{}).Marshal()
	require.NoError(t, err)
	_, err = Unmarshal(data[:len(data)-3])
	assert.Error(t, err)

	var buf bytes.Buffer
	_, err = Read(&buf)
	assert.Error(t, err)
}
