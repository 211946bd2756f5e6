package scraper

import (
	"errors"
	"strconv"

	"homes-scraper/models"
)

// Site holds the selectors the crawler relies on. Only semantic hooks are
// used (element ids, title and href attributes); generated class names
// change too often to be worth targeting.
type Site struct {
	// ListContainer is present once search results have rendered.
	ListContainer string
	// Item matches one result card inside the container.
	Item string
	// DetailPattern is the href fragment every listing link carries.
	DetailPattern string
	// NextPage is the pagination control.
	NextPage string
}

// DefaultSite returns the selectors for the listing site's search pages.
func DefaultSite() Site {
	return Site{
		ListContainer: "#grid-search-results ul",
		Item:          "#grid-search-results ul > li",
		DetailPattern: "/homedetails/",
		NextPage:      `a[title="Next page"]`,
	}
}

// detailAnchor selects the in-page anchor pointing at path.
func (s Site) detailAnchor(path string) string {
	return "a[href*=" + strconv.Quote(path) + "]"
}

var (
	// ErrInvalidTarget is returned by Run for a non-positive target.
	ErrInvalidTarget = models.NewScrapeError(models.ErrCodeInvalidInput, "target must be greater than zero", nil)
	// ErrResultsUnavailable means the result list never rendered, which is
	// almost always bot detection.
	ErrResultsUnavailable = errors.New("scraper: search results unavailable")
	// ErrUnrecoverable means the browser could not be brought back.
	ErrUnrecoverable = errors.New("scraper: browser unrecoverable")
)
