// Package storage keeps finished runs on disk: a metadata.json and a
// thermo.csv per run directory, plus the final snapshot.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/san-kum/mdcore/internal/metrics"
	"github.com/san-kum/mdcore/internal/restart"
)

const (
	metadataFile = "metadata.json"
	thermoFile   = "thermo.csv"
	configFile   = "config.yaml"
	snapshotFile = "final.snap"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Experiment  string             `json:"experiment"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        uint64             `json:"seed"`
	Dt          float64            `json:"dt"`
	Steps       int64              `json:"steps"`
	Units       string             `json:"units"`
	Dimension   int                `json:"dimension"`
	Natoms      int64              `json:"natoms"`
	Procs       [3]int             `json:"procs"`
	Driver      string             `json:"driver"`
	Potentials  []string           `json:"potentials"`
	Builds      int64              `json:"neighbor_builds"`
	Dangerous   int64              `json:"dangerous_builds"`
	ResumedFrom string             `json:"resumed_from,omitempty"`
	Metrics     map[string]float64 `json:"metrics"`
}

// NewID returns a fresh run identifier.
func NewID() string {
	return uuid.NewString()
}

// Dir returns the directory of a run.
func (s *Store) Dir(runID string) string {
	return filepath.Join(s.baseDir, runID)
}

// Save writes the metadata and thermo rows of a run. meta.ID is assigned
// when empty.
func (s *Store) Save(meta RunMetadata, samples []metrics.Sample) (string, error) {
	if meta.ID == "" {
		meta.ID = NewID()
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	runDir := s.Dir(meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()
	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, thermoFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write(metrics.Columns()); err != nil {
		return "", err
	}
	for _, smp := range samples {
		if err := w.Write(smp.Row()); err != nil {
			return "", err
		}
	}
	w.Flush()
	return meta.ID, w.Error()
}

// List returns the metadata of every stored run, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(runID), metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadThermo reads the thermo table of a run as named columns.
func (s *Store) LoadThermo(runID string) (map[string][]float64, error) {
	cols, _, err := readColumns(filepath.Join(s.Dir(runID), thermoFile))
	return cols, err
}

// SaveSeries writes a named table of float columns next to the thermo
// rows, as <name>.csv.
func (s *Store) SaveSeries(runID, name string, header []string, cols ...[]float64) error {
	if len(header) != len(cols) {
		return fmt.Errorf("storage: %d headers for %d columns", len(header), len(cols))
	}
	f, err := os.Create(filepath.Join(s.Dir(runID), name+".csv"))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for i := 0; len(cols) > 0 && i < len(cols[0]); i++ {
		row := make([]string, len(cols))
		for j, c := range cols {
			row[j] = strconv.FormatFloat(c[i], 'g', -1, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// LoadSeries reads a table written by SaveSeries. The header gives the
// column order.
func (s *Store) LoadSeries(runID, name string) (map[string][]float64, []string, error) {
	return readColumns(filepath.Join(s.Dir(runID), name+".csv"))
}

func readColumns(path string) (map[string][]float64, []string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, errors.New("storage: empty table")
	}

	header := records[0]
	cols := make(map[string][]float64, len(header))
	for _, rec := range records[1:] {
		if len(rec) != len(header) {
			return nil, nil, fmt.Errorf("storage: row has %d fields, header %d", len(rec), len(header))
		}
		for j, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("storage: column %s: %w", header[j], err)
			}
			cols[header[j]] = append(cols[header[j]], v)
		}
	}
	return cols, header, nil
}

// SaveConfig stores the configuration a run was started with.
func (s *Store) SaveConfig(runID string, data []byte) error {
	return os.WriteFile(filepath.Join(s.Dir(runID), configFile), data, 0644)
}

// ConfigPath returns where SaveConfig put the configuration of a run.
func (s *Store) ConfigPath(runID string) string {
	return filepath.Join(s.Dir(runID), configFile)
}

// SaveSnapshot stores the final state of a run.
func (s *Store) SaveSnapshot(runID string, snap *restart.Snapshot) error {
	return snap.Save(filepath.Join(s.Dir(runID), snapshotFile))
}

func (s *Store) LoadSnapshot(runID string) (*restart.Snapshot, error) {
	return restart.Load(filepath.Join(s.Dir(runID), snapshotFile))
}
