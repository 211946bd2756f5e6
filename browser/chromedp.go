package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"homes-scraper/models"
)

const probeTimeout = 5 * time.Second

// ChromedpLauncher starts Chrome through chromedp's exec allocator.
func ChromedpLauncher(opts Options) Launcher {
	return func(ctx context.Context) (Browser, error) {
		chromeBin := opts.ChromeBin
		if chromeBin == "" {
			chromeBin = findChromeBinary()
		}
		opts.Logger.Debug("[chromedp] Using browser binary: %q", chromeBin)

		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
			chromedp.Flag("enable-automation", false),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("disable-background-timer-throttling", true),
			chromedp.Flag("disable-renderer-backgrounding", true),
			chromedp.Flag("disable-backgrounding-occluded-windows", true),
			chromedp.WindowSize(1920, 1080),
			chromedp.UserAgent(pickUserAgent(opts)),
		)
		if chromeBin != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(chromeBin))
		}

		// The allocator outlives the launch context; the browser is torn
		// down explicitly through Close.
		allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)

		// Suppress chromedp log noise
		browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
			chromedp.WithLogf(func(string, ...interface{}) {}))

		b := &chromedpBrowser{
			allocCancel:   cancelAlloc,
			browserCtx:    browserCtx,
			browserCancel: cancelBrowser,
			opts:          opts,
		}
		b.main = &chromedpPage{ctx: browserCtx, opts: opts}

		startCtx, cancelStart := context.WithTimeout(browserCtx, opts.NavTimeout)
		defer cancelStart()
		stop := context.AfterFunc(ctx, cancelStart)
		defer stop()
		if err := chromedp.Run(startCtx, tabSetup()...); err != nil {
			_ = b.Close()
			return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch chrome", err)
		}
		return b, nil
	}
}

// tabSetup enables the network domain and pins the language headers a
// desktop visitor would send.
func tabSetup() []chromedp.Action {
	return []chromedp.Action{
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": "en-US,en;q=0.9",
		}),
	}
}

type chromedpBrowser struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	main          *chromedpPage
	opts          Options
}

func (b *chromedpBrowser) Page() Page { return b.main }

// NewPage opens a new tab in the same browser process.
func (b *chromedpBrowser) NewPage(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(b.browserCtx)
	p := &chromedpPage{ctx: tabCtx, cancel: cancel, opts: b.opts}
	if err := p.run(ctx, probeTimeout, tabSetup()...); err != nil {
		cancel()
		return nil, fmt.Errorf("chromedp: open tab: %w", err)
	}
	return p, nil
}

func (b *chromedpBrowser) Close() error {
	err := chromedp.Cancel(b.browserCtx)
	b.browserCancel()
	b.allocCancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type chromedpPage struct {
	ctx    context.Context
	cancel context.CancelFunc // nil for the primary tab
	opts   Options
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (p *chromedpPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	if err := p.run(ctx, p.opts.NavTimeout, chromedp.Navigate(url)); err != nil {
		return models.NewScrapeError(models.ErrCodeNavigation, "navigate "+url, err)
	}
	return nil
}

func (p *chromedpPage) URL(ctx context.Context) (string, error) {
	var u string
	err := p.run(ctx, probeTimeout, chromedp.Location(&u))
	return u, err
}

func (p *chromedpPage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, p.opts.NavTimeout,
		chromedp.Evaluate(`document.documentElement.outerHTML`, &html))
	return html, err
}

func (p *chromedpPage) Count(ctx context.Context, selector string) (int, error) {
	var n int
	err := p.run(ctx, probeTimeout,
		chromedp.Evaluate(`document.querySelectorAll(`+jsString(selector)+`).length`, &n))
	return n, err
}

func (p *chromedpPage) Attr(ctx context.Context, selector, name string) (string, bool, error) {
	var res struct {
		Found bool   `json:"found"`
		Value string `json:"value"`
		Has   bool   `json:"has"`
	}
	js := `(function() {
		var el = document.querySelector(` + jsString(selector) + `);
		if (!el) return {found: false, value: "", has: false};
		var v = el.getAttribute(` + jsString(name) + `);
		return {found: true, value: v || "", has: v !== null};
	})()`
	if err := p.run(ctx, probeTimeout, chromedp.Evaluate(js, &res)); err != nil {
		return "", false, err
	}
	if !res.Found {
		return "", false, ErrNotFound
	}
	return res.Value, res.Has, nil
}

func (p *chromedpPage) Eval(ctx context.Context, js string) error {
	return p.run(ctx, p.opts.NavTimeout, chromedp.Evaluate(js, nil))
}

func (p *chromedpPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	return p.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (p *chromedpPage) Click(ctx context.Context, selector string) error {
	n, err := p.Count(ctx, selector)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return p.run(ctx, 10*time.Second,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible),
	)
}

func (p *chromedpPage) ScrollBy(ctx context.Context, px int) error {
	return p.run(ctx, probeTimeout,
		chromedp.Evaluate(fmt.Sprintf(`window.scrollBy(0, %d)`, px), nil))
}

func (p *chromedpPage) Back(ctx context.Context) error {
	return p.run(ctx, p.opts.NavTimeout, chromedp.NavigateBack())
}

// Close closes a secondary tab. The primary tab lives until the browser closes.
func (p *chromedpPage) Close() error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
