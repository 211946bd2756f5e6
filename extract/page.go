// Package extract turns a detail-page HTML snapshot into a ListingRecord.
// Everything here is a pure function of the HTML, so the same snapshot
// always yields the same record.
package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is a parsed detail-page snapshot.
type Page struct {
	Doc    *goquery.Document
	Source string

	text     string
	textDone bool
}

// NewPage parses html. A document that fails to parse still yields a Page
// with an empty tree, so every field simply misses.
func NewPage(html string) *Page {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader("<html><body></body></html>"))
	}
	return &Page{Doc: doc, Source: html}
}

// Text returns the visible text of the body, one block per line.
func (p *Page) Text() string {
	if !p.textDone {
		body := p.Doc.Find("body")
		if body.Length() == 0 {
			body = p.Doc.Selection
		}
		p.text = VisibleText(body)
		p.textDone = true
	}
	return p.text
}

// TextOf returns the visible text of every element matching selector.
func (p *Page) TextOf(selector string) []string {
	var out []string
	p.Doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if t := VisibleText(s); t != "" {
			out = append(out, t)
		}
	})
	return out
}

var blockTags = map[string]bool{
	"address": true, "article": true, "aside": true, "br": true, "dd": true,
	"div": true, "dl": true, "dt": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "li": true, "main": true, "nav": true,
	"ol": true, "p": true, "section": true, "table": true, "tbody": true,
	"td": true, "th": true, "thead": true, "tr": true, "ul": true,
}

var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"svg": true, "#comment": true,
}

var (
	spaceRun = regexp.MustCompile(`[ \t\r\f\v\x{00a0}]+`)
)

// VisibleText approximates innerText: text nodes in document order, block
// elements on their own lines, inline boundaries as single spaces.
func VisibleText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(s *goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, c *goquery.Selection) {
			name := goquery.NodeName(c)
			switch {
			case name == "#text":
				b.WriteString(c.Text())
			case skipTags[name]:
			case blockTags[name]:
				b.WriteByte('\n')
				walk(c)
				b.WriteByte('\n')
			default:
				b.WriteByte(' ')
				walk(c)
				b.WriteByte(' ')
			}
		})
	}
	walk(sel)

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
