package services

import (
	"testing"
	"time"

	"homes-scraper/models"
	"homes-scraper/utils"
)

func newTestLogger() *utils.Logger { return utils.NewDiscardLogger() }

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
	}{
		{"$450,000", 450000},
		{"$2,845/mo", 2845},
		{"$1,200.50", 1200.50},
		{"N/A", 0},
		{"", 0},
		{"Contact agent", 0},
	}

	for _, tt := range tests {
		got := parsePrice(tt.raw)
		if got != tt.want {
			t.Errorf("parsePrice(%q) = %.2f; want %.2f", tt.raw, got, tt.want)
		}
	}
}

func TestParseArea(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"1,850", 1850},
		{"950", 950},
		{"N/A", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := parseArea(tt.raw); got != tt.want {
			t.Errorf("parseArea(%q) = %d; want %d", tt.raw, got, tt.want)
		}
	}
}

func TestCleanerDropsEmptyURL(t *testing.T) {
	c := NewCleaner(newTestLogger())
	records := []*models.ListingRecord{
		models.NewListingRecord("", time.Now()),
		models.NewListingRecord("https://www.zillow.com/homedetails/1/", time.Now()),
		nil,
	}

	cleaned := c.Clean(records)
	if len(cleaned) != 1 {
		t.Errorf("expected 1 record after dropping empty URL, got %d", len(cleaned))
	}
}

func TestCleanerDeduplicatesURL(t *testing.T) {
	c := NewCleaner(newTestLogger())
	records := []*models.ListingRecord{
		models.NewListingRecord("https://www.zillow.com/homedetails/1/", time.Now()),
		models.NewListingRecord(" https://www.zillow.com/homedetails/1/ ", time.Now()),
	}

	cleaned := c.Clean(records)
	if len(cleaned) != 1 {
		t.Errorf("expected 1 record after deduplication, got %d", len(cleaned))
	}
}

func TestCleanerNormalisesText(t *testing.T) {
	c := NewCleaner(newTestLogger())
	r := models.NewListingRecord("https://www.zillow.com/homedetails/1/", time.Now())
	r.Address = "  123 Maple St,\n   Austin, TX 78701 "
	r.Region = "   "

	cleaned := c.Clean([]*models.ListingRecord{r})
	if got := cleaned[0].Address; got != "123 Maple St, Austin, TX 78701" {
		t.Errorf("Address = %q", got)
	}
	if got := cleaned[0].Region; got != models.Unknown {
		t.Errorf("Region = %q; want %q", got, models.Unknown)
	}
	if r.Region != "   " {
		t.Error("Clean modified its input")
	}
}
