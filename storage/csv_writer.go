package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"homes-scraper/models"
)

// CSVWriter writes each session's records to a flattened CSV file under
// <dir>/<name>/.
type CSVWriter struct {
	dir string
	now func() time.Time
}

// NewCSVWriter creates the output directory if needed.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}
	return &CSVWriter{dir: dir, now: time.Now}, nil
}

// Persist writes all records, header first, and returns the file path.
func (c *CSVWriter) Persist(_ context.Context, name string, records []*models.ListingRecord) (string, error) {
	path := filepath.Join(c.dir, name, fmt.Sprintf("properties_%s_%s.csv", name, c.now().Format(fileStamp)))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("csv: create session dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("csv: create file %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Columns()); err != nil {
		return "", fmt.Errorf("csv: write header: %w", err)
	}
	for _, r := range records {
		if err := w.Write(Flatten(r)); err != nil {
			return "", fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("csv: flush: %w", err)
	}
	return path, f.Close()
}

// Close is a no-op; files are closed after every Persist.
func (c *CSVWriter) Close() error {
	return nil
}
