package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"homes-scraper/browser"
	"homes-scraper/models"
	"homes-scraper/utils"
)

// Visitor opens one listing's detail page, hands it to fn and restores the
// result page afterwards on every exit path.
type Visitor interface {
	Visit(ctx context.Context, url string, fn func(browser.Page) error) error
}

const (
	detailScrollSteps = 4
	detailScrollPx    = 900
)

const dismissOverlaysJS = `(() => {
	document.body.dispatchEvent(new KeyboardEvent('keydown', {key: 'Escape', bubbles: true}));
	document.querySelectorAll('[role="dialog"] button[aria-label*="lose"], button[aria-label="Close"]').forEach(b => b.click());
})()`

const expandSectionsJS = `(() => {
	document.querySelectorAll('button').forEach(b => {
		if ((b.textContent || '').trim().startsWith('Show more')) b.click();
	});
})()`

// prepareDetail gets lazily rendered sections into the DOM before the
// snapshot. Every step is best effort.
func prepareDetail(ctx context.Context, page browser.Page, logger *utils.Logger) {
	if err := page.Eval(ctx, dismissOverlaysJS); err != nil {
		logger.Debug("[visitor] Overlay dismissal failed: %v", err)
	}
	for i := 0; i < detailScrollSteps; i++ {
		if err := page.ScrollBy(ctx, detailScrollPx); err != nil {
			logger.Debug("[visitor] Detail scroll failed: %v", err)
			break
		}
	}
	if err := page.Eval(ctx, expandSectionsJS); err != nil {
		logger.Debug("[visitor] Show more expansion failed: %v", err)
	}
}

// TabVisitor opens every listing in a fresh tab so the result page is never
// disturbed.
type TabVisitor struct {
	health     *Health
	navTimeout time.Duration
	logger     *utils.Logger
}

func NewTabVisitor(health *Health, navTimeout time.Duration, logger *utils.Logger) *TabVisitor {
	return &TabVisitor{health: health, navTimeout: navTimeout, logger: logger}
}

func (v *TabVisitor) Visit(ctx context.Context, target string, fn func(browser.Page) error) (err error) {
	b := v.health.Browser()
	if b == nil {
		return visitErr(target, errors.New("no browser"))
	}
	tab, err := b.NewPage(ctx)
	if err != nil {
		return visitErr(target, fmt.Errorf("open tab: %w", err))
	}
	defer func() {
		if cerr := tab.Close(); cerr != nil {
			v.logger.Debug("[visitor] Closing tab: %v", cerr)
		}
	}()

	if err := tab.Navigate(ctx, target); err != nil {
		return visitErr(target, err)
	}
	if err := tab.WaitFor(ctx, "body", v.navTimeout); err != nil {
		return visitErr(target, fmt.Errorf("wait for body: %w", err))
	}
	prepareDetail(ctx, tab, v.logger)

	if err := fn(tab); err != nil {
		return visitErr(target, err)
	}
	return nil
}

// ClickVisitor clicks the listing card on the result page and comes back
// through the health manager afterwards.
type ClickVisitor struct {
	health     *Health
	discovery  *Discovery
	site       Site
	navTimeout time.Duration
	logger     *utils.Logger
}

func NewClickVisitor(health *Health, discovery *Discovery, site Site, navTimeout time.Duration, logger *utils.Logger) *ClickVisitor {
	return &ClickVisitor{health: health, discovery: discovery, site: site, navTimeout: navTimeout, logger: logger}
}

func (v *ClickVisitor) Visit(ctx context.Context, target string, fn func(browser.Page) error) (err error) {
	page := v.health.Page()
	if page == nil {
		return visitErr(target, errors.New("no browser"))
	}
	defer func() {
		if rerr := v.health.ReturnToResults(ctx); rerr != nil {
			err = errors.Join(err, rerr)
			return
		}
		if serr := v.discovery.Scroll(ctx, v.health.Page()); serr != nil {
			v.logger.Debug("[visitor] Re-scroll after return failed: %v", serr)
		}
	}()

	if err := page.Eval(ctx, dismissOverlaysJS); err != nil {
		v.logger.Debug("[visitor] Overlay dismissal failed: %v", err)
	}
	if cerr := page.Click(ctx, v.site.detailAnchor(pathOf(target))); cerr != nil {
		v.logger.Debug("[visitor] Card click failed for %s: %v", target, cerr)
	}
	if current, _ := page.URL(ctx); !strings.Contains(current, v.site.DetailPattern) {
		v.logger.Debug("[visitor] Click did not open the listing, navigating directly")
		if err := page.Navigate(ctx, target); err != nil {
			return visitErr(target, err)
		}
	}
	if err := page.WaitFor(ctx, "body", v.navTimeout); err != nil {
		return visitErr(target, fmt.Errorf("wait for body: %w", err))
	}
	prepareDetail(ctx, page, v.logger)

	if err := fn(page); err != nil {
		return visitErr(target, err)
	}
	return nil
}

func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return raw
	}
	return u.Path
}

func visitErr(target string, err error) error {
	return models.NewScrapeError(models.ErrCodeVisit, "visit "+target, err)
}
