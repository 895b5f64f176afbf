package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/san-kum/mdcore/internal/dynamo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for _, s := range []string{"", "debug", "INFO", "warn", "error"} {
		_, err := ParseLevel(s)
		assert.NoError(t, err, s)
	}
	_, err := ParseLevel("loud")
	assert.ErrorIs(t, err, dynamo.ErrConfiguration)
}

func TestRankAttribute(t *testing.T) {
	var buf bytes.Buffer
	l, closeFn, err := New(Config{Level: "info", JSON: true}, &buf)
	require.NoError(t, err)
	defer closeFn()

	ForRank(l, 3).Info("borders", "ghosts", 12)
	ForRank(l, 3).Debug("hidden")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "borders", rec["msg"])
	assert.Equal(t, 3.0, rec["rank"])
	assert.Equal(t, 12.0, rec["ghosts"])
}

func TestFileCopy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	var buf bytes.Buffer
	l, closeFn, err := New(Config{File: path}, &buf)
	require.NoError(t, err)
	l.With("step", 5).Warn("dangerous build")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"step":5`)
	assert.True(t, strings.Contains(buf.String(), "dangerous build"))
}
