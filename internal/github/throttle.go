package github

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/go-github/v57/github"
)

// Rate limit resources GitHub reports in the X-RateLimit-Resource header
const (
	ResourceCore       = "core"
	ResourceSearch     = "search"
	ResourceCodeSearch = "code_search"
)

const resourceHeader = "X-RateLimit-Resource"

// bucket is the last known state of one rate limit resource
type bucket struct {
	limit     int
	remaining int
	reset     time.Time
	warnedLow bool
}

// Throttler pauses API calls when a rate limit resource runs low. Each resource is
// tracked on its own so core responses never mask an exhausted search quota.
type Throttler struct {
	pause   time.Duration
	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewThrottler creates a throttler assuming a full core quota of hourlyLimit until a
// response says otherwise
func NewThrottler(hourlyLimit int, pause time.Duration) *Throttler {
	return &Throttler{
		pause: pause,
		buckets: map[string]*bucket{
			ResourceCore: {
				limit:     hourlyLimit,
				remaining: hourlyLimit,
				reset:     time.Now().Add(time.Hour),
			},
		},
	}
}

// Observe records the rate limit headers of a response made against resource.
// The resource named by the response header wins when present.
func (t *Throttler) Observe(resource string, resp *github.Response) {
	if resp == nil || resp.Rate.Limit == 0 {
		return
	}
	if resp.Response != nil {
		if r := resp.Header.Get(resourceHeader); r != "" {
			resource = r
		}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.buckets[resource]
	if !ok {
		b = &bucket{}
		t.buckets[resource] = b
	}
	b.limit = resp.Rate.Limit
	b.remaining = resp.Rate.Remaining
	b.reset = resp.Rate.Reset.Time

	if b.remaining < b.limit/10 && !b.warnedLow {
		slog.Warn("GitHub API rate limit getting low", "resource", resource, "remaining", b.remaining, "limit", b.limit, "reset", b.reset.Format(time.RFC3339))
		b.warnedLow = true
	} else if b.remaining > b.limit/5 {
		b.warnedLow = false
	}
}

// Wait blocks until it is safe to issue another request against resource
func (t *Throttler) Wait(ctx context.Context, resource string) error {
	t.mu.Lock()
	b, ok := t.buckets[resource]
	if !ok {
		t.mu.Unlock()
		return nil
	}
	limit, remaining, reset := b.limit, b.remaining, b.reset
	t.mu.Unlock()

	if remaining > limit/20 && remaining > 0 {
		return nil
	}

	var delay time.Duration
	if remaining <= 5 {
		delay = time.Until(reset)
		slog.Info("Rate limit critical, pausing until reset", "resource", resource, "remaining", remaining, "wait", delay.Round(time.Second))
	} else if remaining < limit/10 {
		delay = t.pause
		slog.Info("Rate limit low, pausing", "resource", resource, "remaining", remaining, "wait", delay)
	}
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		if remaining <= 5 {
			t.mu.Lock()
			b.remaining = b.limit
			t.mu.Unlock()
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
