package scraper

import (
	"testing"
	"time"

	"homes-scraper/models"
)

func TestSessionAppend(t *testing.T) {
	now := time.Now()
	s := NewCrawlSession("austin", testSearchURL, 2, now)

	a := models.NewListingRecord("https://www.zillow.com/homedetails/a/", now)
	b := models.NewListingRecord("https://www.zillow.com/homedetails/b/", now)
	c := models.NewListingRecord("https://www.zillow.com/homedetails/c/", now)

	if !s.Append(a) {
		t.Fatal("first record refused")
	}
	if s.Append(models.NewListingRecord(a.URL, now)) {
		t.Error("duplicate URL accepted")
	}
	if !s.Append(b) {
		t.Fatal("second record refused")
	}
	if s.Append(c) {
		t.Error("record beyond target accepted")
	}
	if s.Append(nil) {
		t.Error("nil record accepted")
	}
	if !s.Done() || s.Remaining() != 0 {
		t.Errorf("Done() = %v, Remaining() = %d; want true, 0", s.Done(), s.Remaining())
	}
	if len(s.Records) != 2 {
		t.Errorf("len(Records) = %d; want 2", len(s.Records))
	}
}

func TestSessionFailures(t *testing.T) {
	s := NewCrawlSession("austin", testSearchURL, 5, time.Now())

	for i := 1; i <= 3; i++ {
		if got := s.RecordFailure(); got != i {
			t.Errorf("RecordFailure() = %d; want %d", got, i)
		}
	}
	s.RecordSuccess()
	if s.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d after success; want 0", s.ConsecutiveFailures)
	}
	if s.Failures != 3 {
		t.Errorf("Failures = %d; want 3", s.Failures)
	}
}

func TestSessionCapacityIsBounded(t *testing.T) {
	s := NewCrawlSession("austin", testSearchURL, 50_000_000, time.Now())
	if got := cap(s.Records); got > maxPrealloc {
		t.Errorf("cap(Records) = %d; want at most %d", got, maxPrealloc)
	}
	if s.Remaining() != 50_000_000 {
		t.Errorf("Remaining() = %d; want 50000000", s.Remaining())
	}

	small := NewCrawlSession("austin", testSearchURL, 3, time.Now())
	if got := cap(small.Records); got != 3 {
		t.Errorf("cap(Records) = %d; want 3", got)
	}
}

func TestSessionsAreIndependent(t *testing.T) {
	now := time.Now()
	a := NewCrawlSession("austin", testSearchURL, 5, now)
	a.MarkVisited("https://www.zillow.com/homedetails/a/")
	a.Append(models.NewListingRecord("https://www.zillow.com/homedetails/a/", now))

	b := NewCrawlSession("austin", testSearchURL, 5, now)
	if a.ID == b.ID {
		t.Error("sessions share an id")
	}
	if !b.MarkVisited("https://www.zillow.com/homedetails/a/") {
		t.Error("visited set leaked between sessions")
	}
	if len(b.Records) != 0 || b.Page != 1 {
		t.Errorf("fresh session: records=%d page=%d; want 0, 1", len(b.Records), b.Page)
	}
}
