package storage

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
)

type ExportData struct {
	Run    RunMetadata                     `json:"run"`
	Thermo map[string][]float64            `json:"thermo"`
	Series map[string]map[string][]float64 `json:"series,omitempty"`
}

// ExportedSeries are the optional tables Export picks up.
var ExportedSeries = []string{"rdf", "msd"}

// Export collects a stored run into one document.
func (s *Store) Export(runID string) (*ExportData, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	cols, err := s.LoadThermo(runID)
	if err != nil {
		return nil, err
	}
	data := &ExportData{Run: *meta, Thermo: cols}
	for _, name := range ExportedSeries {
		series, _, err := s.LoadSeries(runID, name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if data.Series == nil {
			data.Series = make(map[string]map[string][]float64)
		}
		data.Series[name] = series
	}
	return data, nil
}

// WriteJSON encodes d indented.
func (d *ExportData) WriteJSON(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(d)
}

// ExportJSON writes a stored run to path, or to stdout when path is "-".
func (s *Store) ExportJSON(runID, path string) error {
	data, err := s.Export(runID)
	if err != nil {
		return err
	}
	if path == "-" {
		return data.WriteJSON(os.Stdout)
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return data.WriteJSON(file)
}
