package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"homes-scraper/models"
)

const fileStamp = "20060102_150405"

// JSONWriter writes each session's records, nested, to a JSON array file.
type JSONWriter struct {
	dir string
	now func() time.Time
}

// NewJSONWriter creates the output directory if needed.
func NewJSONWriter(dir string) (*JSONWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("json: create output dir: %w", err)
	}
	return &JSONWriter{dir: dir, now: time.Now}, nil
}

func (j *JSONWriter) Persist(_ context.Context, name string, records []*models.ListingRecord) (string, error) {
	path := filepath.Join(j.dir, name, fmt.Sprintf("properties_%s_%s.json", name, j.now().Format(fileStamp)))
	if records == nil {
		records = []*models.ListingRecord{}
	}
	if err := writeJSONFile(path, records); err != nil {
		return "", fmt.Errorf("json: %w", err)
	}
	return path, nil
}

func (j *JSONWriter) Close() error {
	return nil
}

// WriteSummary stores a session report next to the session's output.
func WriteSummary(dir string, report *models.SessionReport) (string, error) {
	path := filepath.Join(dir, report.Name,
		fmt.Sprintf("summary_%s_%s.json", report.Name, report.FinishedAt.Format(fileStamp)))
	if err := writeJSONFile(path, report); err != nil {
		return "", fmt.Errorf("summary: %w", err)
	}
	return path, nil
}

// WriteQueueSummary stores the totals of a whole queue run at the top of
// the output directory.
func WriteQueueSummary(dir string, summary *models.QueueSummary) (string, error) {
	path := filepath.Join(dir,
		fmt.Sprintf("queue_%s_final_summary.json", summary.FinishedAt.Format(fileStamp)))
	if err := writeJSONFile(path, summary); err != nil {
		return "", fmt.Errorf("queue summary: %w", err)
	}
	return path, nil
}

// writeJSONFile writes v through a temp file and a rename so readers never
// observe a half-written file.
func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
