package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"

	"homes-scraper/browser"
	"homes-scraper/config"
	"homes-scraper/models"
	"homes-scraper/utils"
)

const testSearchURL = "https://www.zillow.com/austin-tx/"

var errDead = errors.New("fake: target closed")

// fakeWorld is a scripted listing site shared by every browser the fake
// launcher starts.
type fakeWorld struct {
	pages [][]string
	// detail renders a listing page; nil renders a one-field page.
	detail   func(url string) string
	failURLs map[string]bool
	// crashAfter kills the browser once this many detail pages have been
	// closed. Zero never crashes.
	crashAfter int
	crashed    bool
	// failLaunchAfter makes every launch after this many fail. Zero never fails.
	failLaunchAfter int
	noResults       bool
	// blockAfterCrash hides the result list once the crash has happened.
	blockAfterCrash bool

	visits     int
	launches   int
	nextClicks int
	browsers   []*fakeBrowser
}

func newWorld(pages ...[]string) *fakeWorld {
	return &fakeWorld{pages: pages, failURLs: map[string]bool{}}
}

// linkPages builds result pages holding sizes[i] listings each.
func linkPages(sizes ...int) [][]string {
	var pages [][]string
	n := 0
	for _, size := range sizes {
		var page []string
		for i := 0; i < size; i++ {
			n++
			page = append(page, fmt.Sprintf("/homedetails/%d-Maple-St-Austin-TX/%d_zpid/", n, 1000+n))
		}
		pages = append(pages, page)
	}
	return pages
}

func absolute(path string) string {
	return "https://www.zillow.com" + path
}

func (w *fakeWorld) launcher() browser.Launcher {
	return func(ctx context.Context) (browser.Browser, error) {
		w.launches++
		if w.failLaunchAfter > 0 && w.launches > w.failLaunchAfter {
			return nil, fmt.Errorf("fake: launch %d refused", w.launches)
		}
		b := &fakeBrowser{w: w}
		b.main = &fakePage{b: b, url: "about:blank"}
		w.browsers = append(w.browsers, b)
		return b, nil
	}
}

func (w *fakeWorld) resultsHTML(page int) string {
	if w.noResults || (w.blockAfterCrash && w.crashed) {
		return `<html><body><div id="captcha">Press and hold</div></body></html>`
	}
	var sb strings.Builder
	sb.WriteString(`<html><body><div id="grid-search-results"><ul>`)
	for i, href := range w.pages[page-1] {
		fmt.Fprintf(&sb, `<li><article><a href="%s?rtoken=%d">Home</a></article></li>`, href, i)
		if i == 0 {
			sb.WriteString(`<li><div class="ad">Sponsored</div></li>`)
		}
	}
	sb.WriteString(`</ul></div><nav>`)
	disabled := "false"
	if page >= len(w.pages) {
		disabled = "true"
	}
	fmt.Fprintf(&sb, `<a title="Next page" href="#" aria-disabled="%s">Next</a>`, disabled)
	sb.WriteString(`</nav></body></html>`)
	return sb.String()
}

func (w *fakeWorld) detailHTML(u string) string {
	if w.detail != nil {
		return w.detail(u)
	}
	return `<html><body><h1>Listing</h1><p>Built in 1998</p></body></html>`
}

type fakeBrowser struct {
	w       *fakeWorld
	main    *fakePage
	closed  bool
	crashed bool
	tabs    int
}

func (b *fakeBrowser) dead() bool {
	return b.closed || b.crashed
}

func (b *fakeBrowser) Page() browser.Page { return b.main }

func (b *fakeBrowser) NewPage(ctx context.Context) (browser.Page, error) {
	if b.dead() {
		return nil, errDead
	}
	b.tabs++
	return &fakePage{b: b, url: "about:blank"}, nil
}

func (b *fakeBrowser) Close() error {
	b.closed = true
	return nil
}

type pageState struct {
	url        string
	resultPage int
}

type fakePage struct {
	b          *fakeBrowser
	url        string
	resultPage int
	history    []pageState
	closed     bool
	evals      int
}

func (p *fakePage) dead() bool { return p.closed || p.b.dead() }

func (p *fakePage) Navigate(ctx context.Context, u string) error {
	if p.dead() {
		return errDead
	}
	w := p.b.w
	if u == testSearchURL {
		p.history = append(p.history, pageState{p.url, p.resultPage})
		p.url, p.resultPage = u, 1
		return nil
	}
	if w.failURLs[stripQuery(u)] {
		return models.NewScrapeError(models.ErrCodeNavigation, "navigate "+u, errors.New("net::ERR_CONNECTION_RESET"))
	}
	p.history = append(p.history, pageState{p.url, p.resultPage})
	p.url, p.resultPage = u, 0
	w.visits++
	return nil
}

func (p *fakePage) URL(ctx context.Context) (string, error) {
	if p.dead() {
		return "", errDead
	}
	return p.url, nil
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	if p.dead() {
		return "", errDead
	}
	return p.html(), nil
}

func (p *fakePage) html() string {
	switch {
	case p.resultPage > 0:
		return p.b.w.resultsHTML(p.resultPage)
	case p.url == "about:blank":
		return `<html><body></body></html>`
	default:
		return p.b.w.detailHTML(p.url)
	}
}

func (p *fakePage) find(selector string) (*goquery.Selection, error) {
	if p.dead() {
		return nil, errDead
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(p.html()))
	if err != nil {
		return nil, err
	}
	return doc.Find(selector), nil
}

func (p *fakePage) Count(ctx context.Context, selector string) (int, error) {
	sel, err := p.find(selector)
	if err != nil {
		return 0, err
	}
	return sel.Length(), nil
}

func (p *fakePage) Attr(ctx context.Context, selector, name string) (string, bool, error) {
	sel, err := p.find(selector)
	if err != nil {
		return "", false, err
	}
	if sel.Length() == 0 {
		return "", false, browser.ErrNotFound
	}
	v, ok := sel.First().Attr(name)
	return v, ok, nil
}

func (p *fakePage) Eval(ctx context.Context, js string) error {
	if p.dead() {
		return errDead
	}
	p.evals++
	return nil
}

func (p *fakePage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	n, err := p.Count(ctx, selector)
	if err != nil {
		return err
	}
	if n == 0 {
		return browser.ErrTimeout
	}
	return nil
}

func (p *fakePage) Click(ctx context.Context, selector string) error {
	sel, err := p.find(selector)
	if err != nil {
		return err
	}
	if sel.Length() == 0 {
		return browser.ErrNotFound
	}
	el := sel.First()
	if title, _ := el.Attr("title"); title == "Next page" {
		if p.resultPage > 0 && p.resultPage < len(p.b.w.pages) {
			p.history = append(p.history, pageState{p.url, p.resultPage})
			p.resultPage++
			p.b.w.nextClicks++
		}
		return nil
	}
	href, _ := el.Attr("href")
	base, _ := url.Parse(p.url)
	ref, err := url.Parse(href)
	if err != nil {
		return err
	}
	return p.Navigate(ctx, base.ResolveReference(ref).String())
}

func (p *fakePage) ScrollBy(ctx context.Context, px int) error {
	if p.dead() {
		return errDead
	}
	return nil
}

func (p *fakePage) Back(ctx context.Context) error {
	if p.dead() {
		return errDead
	}
	if len(p.history) == 0 {
		return errors.New("fake: no history")
	}
	last := p.history[len(p.history)-1]
	p.history = p.history[:len(p.history)-1]
	p.url, p.resultPage = last.url, last.resultPage
	return nil
}

func (p *fakePage) Close() error {
	if p == p.b.main || p.closed {
		return nil
	}
	p.closed = true
	w := p.b.w
	if w.crashAfter > 0 && !w.crashed && w.visits >= w.crashAfter {
		w.crashed = true
		p.b.crashed = true
	}
	return nil
}

func stripQuery(u string) string {
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		return u[:i]
	}
	return u
}

// memWriter records every Persist call.
type memWriter struct {
	calls   int
	records []*models.ListingRecord
	err     error
}

func (m *memWriter) Persist(_ context.Context, name string, records []*models.ListingRecord) (string, error) {
	m.calls++
	m.records = append([]*models.ListingRecord(nil), records...)
	if m.err != nil {
		return "", m.err
	}
	return "mem://" + name, nil
}

func (m *memWriter) Close() error { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		VisitStrategy:         config.StrategyTab,
		MaxPages:              20,
		CheckpointInterval:    50,
		CheckpointKeep:        2,
		FailureThresholdClick: 5,
		FailureThresholdTab:   15,
		MaxRecoveryAttempts:   3,
		ResultWait:            time.Second,
		NavTimeout:            time.Second,
		ScrollSteps:           2,
		ScrollStepPx:          800,
		OutputDir:             t.TempDir(),
	}
}

func newTestController(cfg *config.Config, w *fakeWorld, writer *memWriter) *Controller {
	c := NewController(cfg, w.launcher(), writer, utils.NewDiscardLogger())
	c.backoff = 0
	c.stepWait = 0
	c.poll = time.Millisecond
	return c
}
