package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"homes-scraper/models"
	"homes-scraper/utils"
)

var checkpointName = regexp.MustCompile(`^checkpoint_(.+)_(\d+)props_(\d{8}_\d{6})\.json$`)

type checkpointFile struct {
	Name      string                  `json:"name"`
	Count     int                     `json:"count"`
	CreatedAt time.Time               `json:"created_at"`
	Records   []*models.ListingRecord `json:"records"`
}

// CheckpointStore snapshots a session's records every Interval records and
// keeps only the newest Keep snapshots. Snapshots are for operators; the
// crawler never reads them back.
type CheckpointStore struct {
	dir      string
	name     string
	interval int
	keep     int
	logger   *utils.Logger
	now      func() time.Time

	lastCount int
	written   int
}

// NewCheckpointStore creates a store writing into dir for the session name.
func NewCheckpointStore(dir, name string, interval, keep int, logger *utils.Logger) *CheckpointStore {
	if keep < 1 {
		keep = 1
	}
	return &CheckpointStore{
		dir:      dir,
		name:     name,
		interval: interval,
		keep:     keep,
		logger:   logger,
		now:      time.Now,
	}
}

// Written returns how many snapshots this store has produced.
func (s *CheckpointStore) Written() int {
	return s.written
}

// MaybeCheckpoint writes a snapshot when len(records) is a positive multiple
// of the interval not yet snapshotted. It returns nil, nil otherwise.
func (s *CheckpointStore) MaybeCheckpoint(records []*models.ListingRecord) (*models.Checkpoint, error) {
	n := len(records)
	if s.interval <= 0 || n == 0 || n%s.interval != 0 || n == s.lastCount {
		return nil, nil
	}
	return s.Write(records)
}

// Write snapshots records unconditionally, then prunes old snapshots.
func (s *CheckpointStore) Write(records []*models.ListingRecord) (*models.Checkpoint, error) {
	now := s.now()
	n := len(records)
	path := filepath.Join(s.dir,
		fmt.Sprintf("checkpoint_%s_%dprops_%s.json", s.name, n, now.Format(fileStamp)))

	snapshot := make([]*models.ListingRecord, n)
	copy(snapshot, records)
	if err := writeJSONFile(path, checkpointFile{Name: s.name, Count: n, CreatedAt: now, Records: snapshot}); err != nil {
		return nil, fmt.Errorf("checkpoint: %w", err)
	}
	s.lastCount = n
	s.written++
	s.logger.Info("[checkpoint] Saved %d records to %s", n, path)

	if err := s.prune(); err != nil {
		s.logger.Warn("[checkpoint] Prune failed: %v", err)
	}
	return &models.Checkpoint{Name: s.name, Path: path, Count: n, CreatedAt: now}, nil
}

// List returns this session's snapshots, newest (largest count) first.
func (s *CheckpointStore) List() ([]models.Checkpoint, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("checkpoint: list: %w", err)
	}

	var out []models.Checkpoint
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := checkpointName.FindStringSubmatch(e.Name())
		if m == nil || m[1] != s.name {
			continue
		}
		count, _ := strconv.Atoi(m[2])
		created, _ := time.ParseInLocation(fileStamp, m[3], time.Local)
		out = append(out, models.Checkpoint{
			Name:      s.name,
			Path:      filepath.Join(s.dir, e.Name()),
			Count:     count,
			CreatedAt: created,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *CheckpointStore) prune() error {
	all, err := s.List()
	if err != nil {
		return err
	}
	for i := s.keep; i < len(all); i++ {
		if err := os.Remove(all[i].Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("checkpoint: remove %s: %w", all[i].Path, err)
		}
		s.logger.Debug("[checkpoint] Removed old snapshot %s", all[i].Path)
	}
	return nil
}
