package browser

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"homes-scraper/models"
)

// RodLauncher starts Chrome through rod and injects the stealth script into
// every tab it opens.
func RodLauncher(opts Options) Launcher {
	return func(ctx context.Context) (Browser, error) {
		l := launcher.New().
			Headless(opts.Headless).
			NoSandbox(true)

		if opts.ChromeBin != "" {
			l = l.Bin(opts.ChromeBin)
		}

		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Delete(flags.Flag("enable-automation"))
		l.Set(flags.Flag("disable-background-timer-throttling"))
		l.Set(flags.Flag("disable-renderer-backgrounding"))
		l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
		l.Set(flags.Flag("disable-dev-shm-usage"))
		l.Set(flags.Flag("window-size"), "1920,1080")

		controlURL, err := l.Context(ctx).Launch()
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
		}
		opts.Logger.Debug("[rod] Browser launched at %s", controlURL)

		rb := rod.New().ControlURL(controlURL)
		if err := rb.Connect(); err != nil {
			l.Kill()
			return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to connect to browser", err)
		}

		b := &rodBrowser{browser: rb, launcher: l, opts: opts, userAgent: pickUserAgent(opts)}
		main, err := b.open()
		if err != nil {
			_ = b.Close()
			return nil, models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to open primary tab", err)
		}
		b.main = main
		return b, nil
	}
}

type rodBrowser struct {
	browser   *rod.Browser
	launcher  *launcher.Launcher
	main      *rodPage
	opts      Options
	userAgent string
}

func (b *rodBrowser) open() (*rodPage, error) {
	page, err := stealth.Page(b.browser)
	if err != nil {
		return nil, err
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.userAgent}); err != nil {
		b.opts.Logger.Warn("[rod] user agent override failed: %v", err)
	}
	return &rodPage{page: page, opts: b.opts}, nil
}

func (b *rodBrowser) Page() Page { return b.main }

func (b *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := b.open()
	if err != nil {
		return nil, fmt.Errorf("rod: open tab: %w", err)
	}
	return p, nil
}

func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	b.launcher.Cleanup()
	return err
}

type rodPage struct {
	page *rod.Page
	opts Options
}

func (p *rodPage) bound(ctx context.Context, timeout time.Duration) *rod.Page {
	return p.page.Context(ctx).Timeout(timeout)
}

func timeoutErr(ctx context.Context, err error) error {
	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.bound(ctx, p.opts.NavTimeout)
	if err := pg.Navigate(url); err != nil {
		return models.NewScrapeError(models.ErrCodeNavigation, "navigate "+url, timeoutErr(ctx, err))
	}
	if err := pg.WaitLoad(); err != nil {
		return models.NewScrapeError(models.ErrCodeNavigation, "load "+url, timeoutErr(ctx, err))
	}
	return nil
}

func (p *rodPage) URL(ctx context.Context) (string, error) {
	info, err := p.bound(ctx, probeTimeout).Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	return p.bound(ctx, p.opts.NavTimeout).HTML()
}

func (p *rodPage) Count(ctx context.Context, selector string) (int, error) {
	els, err := p.bound(ctx, probeTimeout).Elements(selector)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

func (p *rodPage) Attr(ctx context.Context, selector, name string) (string, bool, error) {
	has, el, err := p.bound(ctx, probeTimeout).Has(selector)
	if err != nil {
		return "", false, err
	}
	if !has {
		return "", false, ErrNotFound
	}
	v, err := el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (p *rodPage) Eval(ctx context.Context, js string) error {
	_, err := p.bound(ctx, p.opts.NavTimeout).Eval(`() => {` + js + `}`)
	return err
}

func (p *rodPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := p.bound(ctx, timeout).Element(selector)
	return timeoutErr(ctx, err)
}

func (p *rodPage) Click(ctx context.Context, selector string) error {
	has, el, err := p.bound(ctx, probeTimeout).Has(selector)
	if err != nil {
		return err
	}
	if !has {
		return ErrNotFound
	}
	el = el.Context(ctx).Timeout(10 * time.Second)
	if err := el.ScrollIntoView(); err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) ScrollBy(ctx context.Context, px int) error {
	return p.Eval(ctx, fmt.Sprintf(`window.scrollBy(0, %d)`, px))
}

func (p *rodPage) Back(ctx context.Context) error {
	pg := p.bound(ctx, p.opts.NavTimeout)
	if err := pg.NavigateBack(); err != nil {
		return err
	}
	return pg.WaitLoad()
}

func (p *rodPage) Close() error {
	return p.page.Close()
}
