package scraper

import (
	"time"

	"github.com/google/uuid"

	"homes-scraper/models"
	"homes-scraper/utils"
)

// CrawlSession is the state of one search URL's crawl. It is owned by the
// controller's call stack and passed explicitly to every step.
type CrawlSession struct {
	ID        string
	Name      string
	SearchURL string
	Target    int

	Records []*models.ListingRecord
	// Visited grows on every visit attempt, successful or not.
	Visited *utils.URLSet
	kept    *utils.URLSet

	Page                int
	ConsecutiveFailures int
	Failures            int
	Recoveries          int
	StartedAt           time.Time
}

// maxPrealloc bounds the up-front record capacity; the slice grows past it
// as records arrive.
const maxPrealloc = 256

// NewCrawlSession starts a session on page 1.
func NewCrawlSession(name, searchURL string, target int, now time.Time) *CrawlSession {
	return &CrawlSession{
		ID:        uuid.NewString(),
		Name:      name,
		SearchURL: searchURL,
		Target:    target,
		Records:   make([]*models.ListingRecord, 0, min(max(target, 0), maxPrealloc)),
		Visited:   utils.NewURLSet(),
		kept:      utils.NewURLSet(),
		Page:      1,
		StartedAt: now,
	}
}

// Done reports whether the target has been reached.
func (s *CrawlSession) Done() bool {
	return len(s.Records) >= s.Target
}

// Remaining is the number of records still wanted.
func (s *CrawlSession) Remaining() int {
	if n := s.Target - len(s.Records); n > 0 {
		return n
	}
	return 0
}

// Append adds rec unless the target is reached or its URL is already kept.
func (s *CrawlSession) Append(rec *models.ListingRecord) bool {
	if rec == nil || s.Done() || !s.kept.Add(rec.URL) {
		return false
	}
	s.Records = append(s.Records, rec)
	return true
}

// MarkVisited returns false when url was attempted before.
func (s *CrawlSession) MarkVisited(url string) bool {
	return s.Visited.Add(url)
}

// RecordFailure counts a failed visit and returns the consecutive count.
func (s *CrawlSession) RecordFailure() int {
	s.Failures++
	s.ConsecutiveFailures++
	return s.ConsecutiveFailures
}

func (s *CrawlSession) RecordSuccess() {
	s.ConsecutiveFailures = 0
}
