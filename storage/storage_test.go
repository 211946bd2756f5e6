package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homes-scraper/models"
	"homes-scraper/utils"
)

var fixedNow = time.Date(2024, 5, 1, 12, 30, 0, 0, time.Local)

func sampleRecords(n int) []*models.ListingRecord {
	out := make([]*models.ListingRecord, n)
	for i := range out {
		r := models.NewListingRecord(fmt.Sprintf("https://www.homes.com/property/%d/", i), fixedNow)
		r.Price = "$450,000"
		r.InteriorFeatures = []string{"fireplace", "hardwood floor"}
		r.Utilities = map[string]string{"sewer": "Public Sewer"}
		r.PriceHistory = []models.PriceEvent{{Date: "01/15/2024", Event: "Listed", Price: "$450,000"}}
		out[i] = r
	}
	return out
}

func TestFlattenMatchesColumns(t *testing.T) {
	r := sampleRecords(1)[0]
	row := Flatten(r)
	cols := Columns()
	require.Len(t, row, len(cols))

	get := func(name string) string {
		for i, c := range cols {
			if c == name {
				return row[i]
			}
		}
		t.Fatalf("column %q missing", name)
		return ""
	}

	assert.Equal(t, "$450,000", get("price"))
	assert.Equal(t, "fireplace; hardwood floor", get("interior_features"))
	assert.Equal(t, models.Unknown, get("other_rooms"))
	assert.Equal(t, "Public Sewer", get("utilities_sewer"))
	assert.Equal(t, models.Unknown, get("utilities_water"))
	assert.Equal(t, models.Unknown, get("parking_garage_spaces"))
	assert.Equal(t, "01/15/2024 Listed $450,000", get("price_history"))
	assert.Equal(t, models.Unknown, get("elementary_school_name"))
	assert.Equal(t, models.Unknown, get("heat_risk_score"))
}

func TestCSVWriterPersist(t *testing.T) {
	dir := t.TempDir()
	w, err := NewCSVWriter(dir)
	require.NoError(t, err)
	w.now = func() time.Time { return fixedNow }

	path, err := w.Persist(context.Background(), "austin", sampleRecords(3))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "austin", "properties_austin_20240501_123000.csv"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, Columns(), rows[0])
	assert.Equal(t, "https://www.homes.com/property/2/", rows[3][0])
}

func TestJSONWriterPersistEmpty(t *testing.T) {
	dir := t.TempDir()
	w, err := NewJSONWriter(dir)
	require.NoError(t, err)

	path, err := w.Persist(context.Background(), "empty", nil)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(string(data)))
}

func TestJSONWriterKeepsNestedFields(t *testing.T) {
	dir := t.TempDir()
	w, err := NewJSONWriter(dir)
	require.NoError(t, err)

	path, err := w.Persist(context.Background(), "austin", sampleRecords(2))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []*models.ListingRecord
	require.NoError(t, json.Unmarshal(data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "Public Sewer", got[0].Utilities["sewer"])
	assert.Equal(t, "Listed", got[1].PriceHistory[0].Event)
}

func TestWriteSummary(t *testing.T) {
	dir := t.TempDir()
	report := &models.SessionReport{
		Name:       "austin",
		Target:     100,
		Achieved:   40,
		StopReason: models.StopExhausted,
		FinishedAt: fixedNow,
	}

	path, err := WriteSummary(dir, report)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "austin", "summary_austin_20240501_123000.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stop_reason": "pagination_exhausted"`)
}

func TestWriteQueueSummary(t *testing.T) {
	dir := t.TempDir()
	summary := models.NewQueueSummary([]*models.SessionReport{
		{Name: "austin", Target: 100, Achieved: 100, StopReason: models.StopTargetReached},
		{Name: "dallas", Target: 50, Achieved: 20, StopReason: models.StopFatal, Fatal: "browser gone"},
	}, fixedNow)

	path, err := WriteQueueSummary(dir, summary)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "queue_20240501_123000_final_summary.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got models.QueueSummary
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 150, got.TotalTarget)
	assert.Equal(t, 120, got.TotalAchieved)
	assert.InDelta(t, 80.0, got.SuccessRate, 0.001)
	require.Len(t, got.Sessions, 2)
	assert.Equal(t, models.StopFatal, got.Sessions[1].StopReason)
	assert.Equal(t, "browser gone", got.Sessions[1].Fatal)
}

func newTestStore(dir string, interval, keep int) *CheckpointStore {
	s := NewCheckpointStore(dir, "austin", interval, keep, utils.NewDiscardLogger())
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestCheckpointInterval(t *testing.T) {
	s := newTestStore(t.TempDir(), 50, 2)
	records := sampleRecords(120)

	for n := 1; n <= len(records); n++ {
		cp, err := s.MaybeCheckpoint(records[:n])
		require.NoError(t, err)
		if n%50 == 0 {
			require.NotNil(t, cp, "expected checkpoint at %d", n)
			assert.Equal(t, n, cp.Count)
		} else {
			assert.Nil(t, cp, "unexpected checkpoint at %d", n)
		}
	}
	assert.Equal(t, 2, s.Written())

	// Same count again does not re-snapshot.
	cp, err := s.MaybeCheckpoint(records[:100])
	require.NoError(t, err)
	assert.Nil(t, cp)
}

func TestCheckpointKeepsNewestTwo(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(dir, 50, 2)
	records := sampleRecords(150)

	for _, n := range []int{50, 100, 150} {
		_, err := s.MaybeCheckpoint(records[:n])
		require.NoError(t, err)
	}

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 150, list[0].Count)
	assert.Equal(t, 100, list[1].Count)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestCheckpointContents(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(dir, 2, 2)

	cp, err := s.MaybeCheckpoint(sampleRecords(2))
	require.NoError(t, err)
	require.NotNil(t, cp)
	assert.Equal(t, "checkpoint_austin_2props_20240501_123000.json", filepath.Base(cp.Path))

	data, err := os.ReadFile(cp.Path)
	require.NoError(t, err)
	var got checkpointFile
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 2, got.Count)
	assert.Len(t, got.Records, 2)
}

func TestCheckpointIgnoresOtherSessions(t *testing.T) {
	dir := t.TempDir()
	other := filepath.Join(dir, "checkpoint_dallas_50props_20240501_123000.json")
	require.NoError(t, os.WriteFile(other, []byte("{}"), 0644))

	s := newTestStore(dir, 1, 1)
	_, err := s.MaybeCheckpoint(sampleRecords(1))
	require.NoError(t, err)
	_, err = s.MaybeCheckpoint(sampleRecords(2))
	require.NoError(t, err)

	_, err = os.Stat(other)
	assert.NoError(t, err, "other session's checkpoint must survive pruning")

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].Count)
}

func TestBuildInsert(t *testing.T) {
	records := sampleRecords(2)
	query, args, err := buildInsert("austin", records)
	require.NoError(t, err)

	n := len(listingColumns)
	assert.Len(t, args, 2*n)
	assert.Contains(t, query, "ON CONFLICT (url) DO NOTHING")
	assert.Contains(t, query, fmt.Sprintf("$%d)", 2*n))
	assert.NotContains(t, query, fmt.Sprintf("$%d", 2*n+1))
	assert.Equal(t, "austin", args[0])
	assert.Equal(t, records[1].URL, args[n+1])

	var d details
	require.NoError(t, json.Unmarshal([]byte(args[n-1].(string)), &d))
	assert.Equal(t, "Public Sewer", d.Utilities["sewer"])
}

func TestDocumentIDStable(t *testing.T) {
	a := DocumentID("https://www.homes.com/property/1/")
	b := DocumentID("https://www.homes.com/property/1/")
	c := DocumentID("https://www.homes.com/property/2/")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestElasticTransportVerifiesTLSByDefault(t *testing.T) {
	assert.False(t, elasticTransport(false).TLSClientConfig.InsecureSkipVerify)
	assert.True(t, elasticTransport(true).TLSClientConfig.InsecureSkipVerify)
}

type stubWriter struct {
	loc    string
	err    error
	got    int
	closed bool
}

func (s *stubWriter) Persist(_ context.Context, _ string, records []*models.ListingRecord) (string, error) {
	s.got = len(records)
	return s.loc, s.err
}

func (s *stubWriter) Close() error {
	s.closed = true
	return nil
}

func TestMultiWriterTriesEveryBackend(t *testing.T) {
	boom := errors.New("boom")
	a := &stubWriter{loc: "a.csv"}
	b := &stubWriter{err: boom}
	c := &stubWriter{loc: "c.json"}
	m := NewMultiWriter(a, b, c)

	loc, err := m.Persist(context.Background(), "austin", sampleRecords(3))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "a.csv, c.json", loc)
	assert.Equal(t, 3, c.got)

	require.NoError(t, m.Close())
	assert.True(t, a.closed && b.closed && c.closed)
}
