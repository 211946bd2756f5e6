package scraper

import (
	"context"
	"fmt"
	"time"

	"homes-scraper/browser"
	"homes-scraper/models"
	"homes-scraper/utils"
)

// State is the browser session's health.
type State int

const (
	StateAlive State = iota
	StateUnresponsive
	StateRecovering
	StateUnrecoverable
)

func (s State) String() string {
	switch s {
	case StateAlive:
		return "alive"
	case StateUnresponsive:
		return "unresponsive"
	case StateRecovering:
		return "recovering"
	case StateUnrecoverable:
		return "unrecoverable"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

const probeTimeout = 5 * time.Second

// Health owns the browser for one session. Every browser-facing step calls
// Ensure first; a failed probe restarts the browser and replays pagination
// back to the page the session was on.
type Health struct {
	launch    browser.Launcher
	discovery *Discovery
	retry     utils.RetryConfig
	logger    *utils.Logger

	browser    browser.Browser
	state      State
	searchURL  string
	page       int
	recoveries int
}

// NewHealth creates a manager that relaunches at most attempts times per
// recovery, backing off from backoff.
func NewHealth(launch browser.Launcher, discovery *Discovery, attempts int, backoff time.Duration, logger *utils.Logger) *Health {
	return &Health{
		launch:    launch,
		discovery: discovery,
		retry: utils.RetryConfig{
			MaxAttempts: attempts,
			BaseDelay:   backoff,
			Logger:      logger,
		},
		logger: logger,
		state:  StateUnresponsive,
		page:   1,
	}
}

// Start launches the browser and opens the search page.
func (h *Health) Start(ctx context.Context, searchURL string) error {
	h.searchURL = searchURL
	h.page = 1
	return h.recover(ctx, "initial launch")
}

// State returns the current health state.
func (h *Health) State() State { return h.state }

// Recoveries counts successful restarts after the initial launch.
func (h *Health) Recoveries() int { return h.recoveries }

// Browser returns the live browser. Callers must have called Ensure.
func (h *Health) Browser() browser.Browser { return h.browser }

// Page returns the primary tab holding the search results.
func (h *Health) Page() browser.Page {
	if h.browser == nil {
		return nil
	}
	return h.browser.Page()
}

// SetPage records the result page the session has reached; recovery
// replays up to it.
func (h *Health) SetPage(n int) { h.page = n }

// Ensure probes the browser and recovers it when the probe fails. It
// returns an error wrapping ErrUnrecoverable once recovery is exhausted.
func (h *Health) Ensure(ctx context.Context) error {
	if h.state == StateUnrecoverable {
		return h.fatal(fmt.Errorf("session already unrecoverable"))
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.browser != nil {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		_, err := h.browser.Page().URL(probeCtx)
		cancel()
		if err == nil {
			h.state = StateAlive
			return nil
		}
		h.logger.Warn("[health] Liveness probe failed: %v", err)
	}
	h.state = StateUnresponsive
	if err := h.recover(ctx, "liveness probe"); err != nil {
		return err
	}
	h.recoveries++
	return nil
}

// ReturnToResults brings the primary tab back to the current result page
// after a detail visit: history back, then direct re-navigation with
// replay, then a full browser restart. Each step is verified by seeing the
// result list again.
func (h *Health) ReturnToResults(ctx context.Context) error {
	page := h.Page()
	if page != nil {
		if err := page.Back(ctx); err == nil {
			if err := h.discovery.WaitForResults(ctx, page); err == nil {
				return nil
			}
		}
		h.logger.Warn("[health] Back navigation did not restore results, re-navigating")

		err := h.navigateAndReplay(ctx, page)
		if err == nil {
			return nil
		}
		h.logger.Warn("[health] Re-navigation failed: %v", err)
	}

	h.state = StateUnresponsive
	if err := h.recover(ctx, "return to results"); err != nil {
		return err
	}
	h.recoveries++
	return nil
}

// Close shuts the browser down.
func (h *Health) Close() error {
	if h.browser == nil {
		return nil
	}
	err := h.browser.Close()
	h.browser = nil
	return err
}

func (h *Health) recover(ctx context.Context, reason string) error {
	h.state = StateRecovering
	h.logger.Info("[health] Starting browser (%s), replaying to page %d", reason, h.page)

	err := h.retry.Do(ctx, "browser restart", func(attempt int) error {
		if h.browser != nil {
			if err := h.browser.Close(); err != nil {
				h.logger.Debug("[health] Closing old browser: %v", err)
			}
			h.browser = nil
		}
		b, err := h.launch(ctx)
		if err != nil {
			return fmt.Errorf("launch: %w", err)
		}
		if err := h.navigateAndReplay(ctx, b.Page()); err != nil {
			b.Close()
			return err
		}
		h.browser = b
		return nil
	})
	if err != nil {
		return h.fatal(err)
	}

	h.state = StateAlive
	h.logger.Info("[health] Browser alive on page %d", h.page)
	return nil
}

func (h *Health) navigateAndReplay(ctx context.Context, page browser.Page) error {
	if err := page.Navigate(ctx, h.searchURL); err != nil {
		return fmt.Errorf("navigate to search: %w", err)
	}
	if err := h.discovery.WaitForResults(ctx, page); err != nil {
		return err
	}
	for i := 1; i < h.page; i++ {
		ok, err := h.discovery.Paginate(ctx, page)
		if err != nil {
			return fmt.Errorf("replay to page %d: %w", i+1, err)
		}
		if !ok {
			return fmt.Errorf("replay to page %d: next page unavailable", i+1)
		}
	}
	return nil
}

func (h *Health) fatal(cause error) error {
	h.state = StateUnrecoverable
	return models.NewScrapeError(models.ErrCodeBrowserCrash, "browser could not be recovered",
		fmt.Errorf("%w: %w", ErrUnrecoverable, cause))
}
