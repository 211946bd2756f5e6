// Package browser wraps the browser drivers behind a small page API so the
// crawl engine can be driven by chromedp, rod, or a scripted fake in tests.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"homes-scraper/utils"
)

var (
	// ErrNotFound is returned when a selector matches no element.
	ErrNotFound = errors.New("browser: element not found")
	// ErrTimeout is returned when a bounded wait elapses.
	ErrTimeout = errors.New("browser: wait timed out")
)

// Page is one browser tab.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// URL doubles as the liveness probe: it fails when the tab or the
	// browser process is gone.
	URL(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)
	Count(ctx context.Context, selector string) (int, error)
	// Attr reads an attribute of the first element matching selector.
	Attr(ctx context.Context, selector, name string) (string, bool, error)
	Eval(ctx context.Context, js string) error
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	Click(ctx context.Context, selector string) error
	ScrollBy(ctx context.Context, px int) error
	Back(ctx context.Context) error
	Close() error
}

// Browser owns one browser process and its primary tab.
type Browser interface {
	Page() Page
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Launcher starts a fresh browser. The recovery manager calls it again
// after a crash.
type Launcher func(ctx context.Context) (Browser, error)

// Options configures both drivers.
type Options struct {
	Headless   bool
	ChromeBin  string
	UserAgent  string
	NavTimeout time.Duration
	Logger     *utils.Logger
}

// Engine names accepted by NewLauncher.
const (
	EngineChromedp = "chromedp"
	EngineRod      = "rod"
)

// NewLauncher returns the launcher for the named engine.
func NewLauncher(engine string, opts Options) (Launcher, error) {
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 45 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = utils.NewDiscardLogger()
	}
	switch engine {
	case EngineChromedp, "":
		return ChromedpLauncher(opts), nil
	case EngineRod:
		return RodLauncher(opts), nil
	default:
		return nil, fmt.Errorf("browser: unknown engine %q", engine)
	}
}

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36 Edg/123.0.0.0",
}

// pickUserAgent returns opts.UserAgent or a random desktop user agent, so
// every relaunch presents a different fingerprint.
func pickUserAgent(opts Options) string {
	if opts.UserAgent != "" {
		return opts.UserAgent
	}
	return userAgents[rand.Intn(len(userAgents))]
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
