package utils

import (
	"context"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// Throttle paces browser actions: a limiter enforces the minimum gap and a
// random extra delay up to max keeps the cadence irregular.
type Throttle struct {
	limiter *rate.Limiter
	min     time.Duration
	max     time.Duration
	rnd     *rand.Rand
}

// NewThrottle creates a Throttle waiting between min and max per call.
// A zero min disables pacing.
func NewThrottle(min, max time.Duration) *Throttle {
	if max < min {
		max = min
	}
	limit := rate.Inf
	if min > 0 {
		limit = rate.Every(min)
	}
	return &Throttle{
		limiter: rate.NewLimiter(limit, 1),
		min:     min,
		max:     max,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Wait blocks until the next action is allowed or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}
	jitter := t.max - t.min
	if jitter <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(t.rnd.Int63n(int64(jitter)))):
		return nil
	}
}

// URLSet tracks visited URLs for a single crawl session. Sessions are
// driven from one goroutine, so no locking is needed.
type URLSet struct {
	seen map[string]struct{}
}

// NewURLSet creates an empty URLSet.
func NewURLSet() *URLSet {
	return &URLSet{seen: make(map[string]struct{})}
}

// Add returns true if the URL was newly added, false if already present.
func (s *URLSet) Add(url string) bool {
	if _, exists := s.seen[url]; exists {
		return false
	}
	s.seen[url] = struct{}{}
	return true
}

// Contains returns true if the URL has already been visited.
func (s *URLSet) Contains(url string) bool {
	_, exists := s.seen[url]
	return exists
}

// Size returns the number of unique URLs tracked.
func (s *URLSet) Size() int {
	return len(s.seen)
}

