// Package ratelimit paces browser launches so that a suite with many workers
// does not start every browser process at once.
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"pageflow/internal/browser"
)

// Limiter allows at most perSecond launches per second with the given burst.
// A nil Limiter, or one built with perSecond <= 0, never blocks.
// The rate is fixed for the life of the suite run.
type Limiter struct {
	limiter *rate.Limiter
}

func New(perSecond float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Wait blocks until a launch is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.limiter.Wait(ctx)
}

// Rate returns the launches per second, or 0 when unlimited.
func (l *Limiter) Rate() float64 {
	if lim := l.limiter.Limit(); lim != rate.Inf {
		return float64(lim)
	}
	return 0
}

// Driver wraps d so that every Launch waits on l first.
func (l *Limiter) Driver(d browser.Driver) browser.Driver {
	if l == nil {
		return d
	}
	return &throttledDriver{Driver: d, limiter: l}
}

type throttledDriver struct {
	browser.Driver
	limiter *Limiter
}

func (t *throttledDriver) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Browser, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return t.Driver.Launch(ctx, opts)
}
