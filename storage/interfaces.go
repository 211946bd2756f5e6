package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"homes-scraper/models"
)

// RecordWriter is the interface any storage backend must satisfy.
// Persist stores one session's records and returns where they went.
type RecordWriter interface {
	Persist(ctx context.Context, name string, records []*models.ListingRecord) (string, error)
	Close() error
}

// MultiWriter fans records out to several backends. Every backend is tried;
// errors are joined.
type MultiWriter struct {
	writers []RecordWriter
}

// NewMultiWriter combines writers in order.
func NewMultiWriter(writers ...RecordWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (m *MultiWriter) Persist(ctx context.Context, name string, records []*models.ListingRecord) (string, error) {
	var (
		locations []string
		errs      []error
	)
	for _, w := range m.writers {
		loc, err := w.Persist(ctx, name, records)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if loc != "" {
			locations = append(locations, loc)
		}
	}
	return strings.Join(locations, ", "), errors.Join(errs...)
}

func (m *MultiWriter) Close() error {
	var errs []error
	for _, w := range m.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close: %w", err))
		}
	}
	return errors.Join(errs...)
}
