package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"homes-scraper/browser"
	"homes-scraper/models"
	"homes-scraper/utils"
)

const (
	defaultStepWait = 3 * time.Second
	defaultPoll     = 250 * time.Millisecond
	nextPageWait    = 5 * time.Second
)

// Discovery finds listing links on a result page and moves between pages.
type Discovery struct {
	site       Site
	resultWait time.Duration
	steps      int
	stepPx     int
	stepWait   time.Duration
	poll       time.Duration
	logger     *utils.Logger
}

// NewDiscovery creates a Discovery that scrolls steps times by stepPx pixels.
func NewDiscovery(site Site, resultWait time.Duration, steps, stepPx int, logger *utils.Logger) *Discovery {
	return &Discovery{
		site:       site,
		resultWait: resultWait,
		steps:      steps,
		stepPx:     stepPx,
		stepWait:   defaultStepWait,
		poll:       defaultPoll,
		logger:     logger,
	}
}

// WaitForResults blocks until the result list is present.
func (d *Discovery) WaitForResults(ctx context.Context, page browser.Page) error {
	if err := page.WaitFor(ctx, d.site.ListContainer, d.resultWait); err != nil {
		return resultsUnavailable(err)
	}
	return nil
}

// Collect waits for the result list, scrolls to trigger lazy loading and
// returns the listing URLs in page order.
func (d *Discovery) Collect(ctx context.Context, page browser.Page) ([]string, error) {
	if err := d.WaitForResults(ctx, page); err != nil {
		return nil, err
	}
	if err := d.Scroll(ctx, page); err != nil {
		return nil, err
	}

	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovery: snapshot: %w", err)
	}
	base, err := page.URL(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovery: current url: %w", err)
	}

	links := ParseLinks(html, base, d.site)
	d.logger.Info("[discovery] Collected %d listing links", len(links))
	return links, nil
}

// Scroll moves down in steps, polling after each one until more result
// cards appear or the step window elapses, then returns to the top.
func (d *Discovery) Scroll(ctx context.Context, page browser.Page) error {
	count, err := page.Count(ctx, d.site.Item)
	if err != nil {
		return fmt.Errorf("discovery: count items: %w", err)
	}
	d.logger.Debug("[discovery] Initial items loaded: %d", count)

	for i := 0; i < d.steps; i++ {
		if err := page.ScrollBy(ctx, d.stepPx); err != nil {
			return fmt.Errorf("discovery: scroll step %d: %w", i+1, err)
		}
		grown, err := d.waitForGrowth(ctx, page, count)
		if err != nil {
			return err
		}
		if grown > count {
			d.logger.Debug("[discovery] Step %d loaded %d more items", i+1, grown-count)
			count = grown
		}
	}
	if err := page.Eval(ctx, "window.scrollTo(0, 0)"); err != nil {
		d.logger.Debug("[discovery] Scroll to top failed: %v", err)
	}
	return nil
}

func (d *Discovery) waitForGrowth(ctx context.Context, page browser.Page, before int) (int, error) {
	deadline := time.Now().Add(d.stepWait)
	for {
		n, err := page.Count(ctx, d.site.Item)
		if err != nil {
			return before, fmt.Errorf("discovery: count items: %w", err)
		}
		if n > before || !time.Now().Before(deadline) {
			return n, nil
		}
		select {
		case <-ctx.Done():
			return before, ctx.Err()
		case <-time.After(d.poll):
		}
	}
}

// Paginate clicks the next-page control. It returns false when the control
// is missing or disabled, which is the normal end of results.
func (d *Discovery) Paginate(ctx context.Context, page browser.Page) (bool, error) {
	if err := page.WaitFor(ctx, d.site.NextPage, nextPageWait); err != nil {
		if errors.Is(err, browser.ErrTimeout) || errors.Is(err, browser.ErrNotFound) {
			d.logger.Info("[discovery] Next page control not found, assuming end of results")
			return false, nil
		}
		return false, fmt.Errorf("discovery: find next page: %w", err)
	}

	disabled, _, err := page.Attr(ctx, d.site.NextPage, "aria-disabled")
	if err != nil && !errors.Is(err, browser.ErrNotFound) {
		return false, fmt.Errorf("discovery: read next page state: %w", err)
	}
	if disabled == "true" {
		d.logger.Info("[discovery] Next page control disabled, last page reached")
		return false, nil
	}

	if err := page.Click(ctx, d.site.NextPage); err != nil {
		return false, fmt.Errorf("discovery: click next page: %w", err)
	}
	if err := d.WaitForResults(ctx, page); err != nil {
		return false, err
	}
	return true, nil
}

// ParseLinks extracts listing URLs from a result page snapshot. Cards with
// no detail link (ads, promos) are skipped. URLs are made absolute, lose
// their query and fragment, and keep first-seen order without duplicates.
func ParseLinks(html, base string, site Site) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		baseURL = &url.URL{}
	}

	seen := utils.NewURLSet()
	links := []string{}
	doc.Find(site.Item).Each(func(_ int, item *goquery.Selection) {
		item.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			if !strings.Contains(href, site.DetailPattern) {
				return true
			}
			if abs := canonicalURL(baseURL, href); abs != "" && seen.Add(abs) {
				links = append(links, abs)
			}
			return false
		})
	})
	return links
}

func canonicalURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	abs.RawQuery = ""
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String()
}

func resultsUnavailable(err error) error {
	return models.NewScrapeError(models.ErrCodeResultsUnavailable, "result list did not render",
		fmt.Errorf("%w: %w", ErrResultsUnavailable, err))
}
