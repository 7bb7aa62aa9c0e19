// Package session owns one isolated browser execution context: a browser
// process, a browser context and a page, used by exactly one invocation.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"pageflow/internal/browser"
)

// DefaultTeardownGrace bounds each graceful close step.
const DefaultTeardownGrace = 5 * time.Second

type Options struct {
	Launch  browser.LaunchOptions
	Context browser.ContextOptions
	// TeardownGrace bounds each close step; 0 uses DefaultTeardownGrace.
	TeardownGrace time.Duration
	Logger        zerolog.Logger
}

// Session is never reused: Close releases everything and the value is done.
type Session struct {
	browser browser.Browser
	context browser.BrowserContext
	page    browser.Page

	grace  time.Duration
	logger zerolog.Logger
	once   sync.Once
}

// Open launches a browser, an isolated context and a page. If any step fails,
// whatever was already created is released before the error is returned.
func Open(ctx context.Context, driver browser.Driver, opts Options) (*Session, error) {
	s := &Session{grace: opts.TeardownGrace, logger: opts.Logger}
	if s.grace <= 0 {
		s.grace = DefaultTeardownGrace
	}

	b, err := driver.Launch(ctx, opts.Launch)
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	s.browser = b

	bc, err := b.NewContext(ctx, opts.Context)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("new browser context: %w", err)
	}
	s.context = bc

	p, err := bc.NewPage(ctx)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	s.page = p

	s.logger.Debug().Msg("session opened")
	return s, nil
}

// Page returns the session's page.
func (s *Session) Page() browser.Page { return s.page }

// Close releases the page, then the context, then the browser. It is safe to
// call more than once and on a partially opened session. Each step gets its
// own grace period. A step that hangs skips the remaining graceful steps; if
// any step fails or hangs, the browser process is killed.
// Errors are logged, never returned.
func (s *Session) Close() {
	s.once.Do(s.teardown)
}

func (s *Session) teardown() {
	clean, wedged := true, false
	run := func(name string, closeFn func(context.Context) error) {
		if wedged {
			return
		}
		switch s.step(name, closeFn) {
		case stepFailed:
			clean = false
		case stepTimedOut:
			clean, wedged = false, true
		}
	}

	if s.page != nil {
		run("page", s.page.Close)
	}
	if s.context != nil {
		run("context", s.context.Close)
	}
	if s.browser == nil {
		return
	}
	run("browser", s.browser.Close)

	if !clean {
		if err := s.browser.Kill(); err != nil {
			s.logger.Error().Err(err).Msg("kill browser failed")
			return
		}
		s.logger.Warn().Bool("wedged", wedged).Msg("browser killed after unclean teardown")
		return
	}
	s.logger.Debug().Msg("session closed")
}

type stepResult int

const (
	stepOK stepResult = iota
	stepFailed
	stepTimedOut
)

// step runs one close call under the grace period. A call that outlives the
// grace period is abandoned; its goroutine ends when the process is killed.
func (s *Session) step(name string, closeFn func(context.Context) error) stepResult {
	ctx, cancel := context.WithTimeout(context.Background(), s.grace)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- closeFn(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Warn().Err(err).Str("step", name).Msg("close failed")
			return stepFailed
		}
		return stepOK
	case <-ctx.Done():
		s.logger.Warn().Str("step", name).Dur("grace", s.grace).Msg("close timed out")
		return stepTimedOut
	}
}
