package extract

import (
	"errors"
	"fmt"
	"time"

	"homes-scraper/models"
)

// Report summarises one extraction run.
type Report struct {
	Filled []string
	Missed []*Miss
	// Failed maps a composite extractor name to the panic it raised.
	Failed map[string]string
}

func (r *Report) String() string {
	return fmt.Sprintf("filled=%d missed=%d failed=%d", len(r.Filled), len(r.Missed), len(r.Failed))
}

// Extract builds a fresh record for url from html.
func Extract(url, html string, now time.Time) (*models.ListingRecord, *Report) {
	rec := models.NewListingRecord(url, now)
	return rec, Fill(rec, html)
}

// Fill runs every rule and composite extractor against html and writes the
// results into rec. It never panics and never returns an error: a field
// whose strategies all miss keeps its Unknown sentinel.
func Fill(rec *models.ListingRecord, html string) *Report {
	p := NewPage(html)
	report := &Report{Failed: map[string]string{}}

	for _, rule := range Rules {
		v, err := rule.Run(p)
		if err != nil {
			var miss *Miss
			if errors.As(err, &miss) {
				report.Missed = append(report.Missed, miss)
			}
			continue
		}
		if msg := isolate(func() { rule.Set(rec, v) }); msg != "" {
			report.Failed[rule.Field] = msg
			continue
		}
		report.Filled = append(report.Filled, rule.Field)
	}

	for _, c := range Composites {
		if msg := isolate(func() { c.Fill(p, rec) }); msg != "" {
			report.Failed[c.Name] = msg
			continue
		}
		report.Filled = append(report.Filled, c.Name)
	}
	return report
}

func isolate(fn func()) (msg string) {
	defer func() {
		if rec := recover(); rec != nil {
			msg = fmt.Sprint(rec)
		}
	}()
	fn()
	return ""
}
