package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"homes-scraper/models"
)

const maxSourceMatches = 20

// Miss reports that no strategy produced a valid value for a field.
type Miss struct {
	Field string
	Tried []string
	// Panics lists strategies that panicked instead of returning.
	Panics []string
}

func (m *Miss) Error() string {
	return fmt.Sprintf("extract: %s: no valid value after %d strategies", m.Field, len(m.Tried))
}

// Strategy produces candidate values for a field, most likely first.
type Strategy struct {
	Name       string
	Candidates func(p *Page) []string
}

// Rule binds a field to its ordered strategies, a sanity check and a setter.
type Rule struct {
	Field      string
	Strategies []Strategy
	// Valid rejects false positives. Nil accepts any non-empty value.
	Valid func(v string) bool
	Set   func(r *models.ListingRecord, v string)
}

// Run tries each strategy in order and returns the first candidate that
// passes Valid. It never panics; a failing strategy counts as a miss.
func (r Rule) Run(p *Page) (string, error) {
	miss := &Miss{Field: r.Field}
	for _, s := range r.Strategies {
		miss.Tried = append(miss.Tried, s.Name)
		cands, panicked := candidates(s, p)
		if panicked != "" {
			miss.Panics = append(miss.Panics, s.Name+": "+panicked)
			continue
		}
		for _, c := range cands {
			c = strings.TrimSpace(c)
			if c == "" || c == models.Unknown {
				continue
			}
			if r.Valid == nil || r.Valid(c) {
				return c, nil
			}
		}
	}
	return "", miss
}

func candidates(s Strategy, p *Page) (out []string, panicked string) {
	defer func() {
		if rec := recover(); rec != nil {
			out, panicked = nil, fmt.Sprint(rec)
		}
	}()
	return s.Candidates(p), ""
}

// firstGroup formats a regexp match as its first capture group, or the
// whole match when the pattern has no groups.
func firstGroup(m []string) string {
	if len(m) > 1 {
		return m[1]
	}
	return m[0]
}

func applyAll(re *regexp.Regexp, text string, format func([]string) string) []string {
	if format == nil {
		format = firstGroup
	}
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, maxSourceMatches) {
		if v := format(m); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Selector takes the visible text of each element matching sel, optionally
// narrowed by re.
func Selector(sel string, re *regexp.Regexp) Strategy {
	name := "selector:" + sel
	return Strategy{
		Name: name,
		Candidates: func(p *Page) []string {
			texts := p.TextOf(sel)
			if re == nil {
				return texts
			}
			var out []string
			for _, t := range texts {
				out = append(out, applyAll(re, t, nil)...)
			}
			return out
		},
	}
}

// Attr takes an attribute of each element matching sel.
func Attr(sel, attr string) Strategy {
	return Strategy{
		Name: "attr:" + sel + "@" + attr,
		Candidates: func(p *Page) []string {
			var out []string
			p.Doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
				if v, ok := s.Attr(attr); ok {
					out = append(out, v)
				}
			})
			return out
		},
	}
}

// Text matches re against the page's visible text.
func Text(re *regexp.Regexp, format func([]string) string) Strategy {
	return Strategy{
		Name: "text:" + re.String(),
		Candidates: func(p *Page) []string {
			return applyAll(re, p.Text(), format)
		},
	}
}

// Source matches re against the raw HTML, including embedded JSON blobs.
func Source(re *regexp.Regexp, format func([]string) string) Strategy {
	return Strategy{
		Name: "source:" + re.String(),
		Candidates: func(p *Page) []string {
			return applyAll(re, p.Source, format)
		},
	}
}
