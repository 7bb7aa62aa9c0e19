// Package interact performs actions against a live page while absorbing
// asynchronous rendering. Every state-changing call waits for its target to
// become visible first and never acts when that wait fails.
package interact

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pageflow/internal/artifact"
	"pageflow/internal/browser"
	"pageflow/internal/core"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultPollInterval = 100 * time.Millisecond
)

// Target is a CSS locator, resolved against the live DOM on every call.
type Target string

// Interactor drives one page. Calls must be issued sequentially.
type Interactor struct {
	page    browser.Page
	timeout time.Duration
	poll    time.Duration
	logger  zerolog.Logger
	store   *artifact.Store
}

type Option func(*Interactor)

// WithTimeout sets the wait budget used when a call passes 0.
func WithTimeout(d time.Duration) Option {
	return func(i *Interactor) {
		if d > 0 {
			i.timeout = d
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(i *Interactor) {
		if d > 0 {
			i.poll = d
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(i *Interactor) { i.logger = l }
}

// WithArtifactStore enables CaptureArtifact.
func WithArtifactStore(s *artifact.Store) Option {
	return func(i *Interactor) { i.store = s }
}

func New(page browser.Page, opts ...Option) *Interactor {
	i := &Interactor{
		page:    page,
		timeout: DefaultTimeout,
		poll:    DefaultPollInterval,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Timeout returns the default wait budget.
func (i *Interactor) Timeout() time.Duration { return i.timeout }

func (i *Interactor) budget(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return i.timeout
	}
	return timeout
}

// WaitUntilVisible polls until target resolves to a visible element. It
// returns a *TimeoutError once the budget is spent.
func (i *Interactor) WaitUntilVisible(ctx context.Context, target Target, timeout time.Duration) error {
	d := i.budget(timeout)
	i.logger.Debug().Str("target", string(target)).Dur("timeout", d).Msg("waiting for element")

	deadline := time.Now().Add(d)
	var last error
	for {
		left := time.Until(deadline)
		if left <= 0 {
			return &TimeoutError{Op: "wait until visible", Target: target, Timeout: d, Err: last}
		}
		err := i.page.WaitForSelector(ctx, string(target), left)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("wait until visible %q: %w", target, ctxErr)
		}
		// Resolution errors are expected while the DOM is still rendering.
		if !errors.Is(err, browser.ErrTimeout) {
			last = err
		}

		pause := i.poll
		if left = time.Until(deadline); left < pause {
			pause = left
		}
		if pause > 0 {
			t := time.NewTimer(pause)
			select {
			case <-ctx.Done():
				t.Stop()
				return fmt.Errorf("wait until visible %q: %w", target, ctx.Err())
			case <-t.C:
			}
		}
	}
}

func (i *Interactor) Click(ctx context.Context, target Target, timeout time.Duration) error {
	if err := i.WaitUntilVisible(ctx, target, timeout); err != nil {
		return err
	}
	i.logger.Info().Str("target", string(target)).Msg("click")
	if err := i.page.Click(ctx, string(target)); err != nil {
		return &InteractionError{Op: "click", Target: target, Err: err}
	}
	return nil
}

// Fill replaces the target's value. Only the length of text is logged.
func (i *Interactor) Fill(ctx context.Context, target Target, text string, timeout time.Duration) error {
	if err := i.WaitUntilVisible(ctx, target, timeout); err != nil {
		return err
	}
	i.logger.Info().Str("target", string(target)).Int("chars", len([]rune(text))).Msg("fill")
	if err := i.page.Fill(ctx, string(target), text); err != nil {
		return &InteractionError{Op: "fill", Target: target, Err: err}
	}
	return nil
}

// ReadText returns the target's rendered text content.
func (i *Interactor) ReadText(ctx context.Context, target Target, timeout time.Duration) (string, error) {
	if err := i.WaitUntilVisible(ctx, target, timeout); err != nil {
		return "", err
	}
	text, err := i.page.TextContent(ctx, string(target))
	if err != nil {
		return "", &InteractionError{Op: "read text", Target: target, Err: err}
	}
	i.logger.Debug().Str("target", string(target)).Int("chars", len([]rune(text))).Msg("read text")
	return text, nil
}

// IsVisible probes once without waiting. Any error reads as not visible.
func (i *Interactor) IsVisible(ctx context.Context, target Target) bool {
	visible, err := i.page.IsVisible(ctx, string(target))
	if err != nil {
		i.logger.Debug().Err(err).Str("target", string(target)).Msg("visibility probe failed")
		return false
	}
	return visible
}

// WaitForStable blocks until the page's network and rendering settle.
func (i *Interactor) WaitForStable(ctx context.Context, timeout time.Duration) error {
	d := i.budget(timeout)
	i.logger.Debug().Dur("timeout", d).Msg("waiting for page to settle")
	err := i.page.WaitForLoadState(ctx, d)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, browser.ErrTimeout):
		return &TimeoutError{Op: "wait for stable", Timeout: d, Err: err}
	default:
		return &InteractionError{Op: "wait for stable", Err: err}
	}
}

// Navigate loads url and waits for the page to settle.
func (i *Interactor) Navigate(ctx context.Context, url string) error {
	i.logger.Info().Str("url", url).Msg("navigate")
	if err := i.page.Navigate(ctx, url); err != nil {
		if errors.Is(err, browser.ErrTimeout) {
			return &TimeoutError{Op: "navigate", Target: Target(url), Timeout: i.timeout, Err: err}
		}
		return &InteractionError{Op: "navigate", Target: Target(url), Err: err}
	}
	return i.WaitForStable(ctx, 0)
}

// CaptureArtifact saves a screenshot named after the invocation in ctx and
// checkpoint. Failures are logged and returned as *ArtifactCaptureError for
// the caller to record; they must never replace the failure being documented.
func (i *Interactor) CaptureArtifact(ctx context.Context, checkpoint string) (string, error) {
	fail := func(err error) (string, error) {
		i.logger.Warn().Err(err).Str("checkpoint", checkpoint).Msg("artifact capture failed")
		return "", &ArtifactCaptureError{Checkpoint: checkpoint, Err: err}
	}
	if i.store == nil {
		return fail(errors.New("no artifact store configured"))
	}
	path, err := i.store.Reserve(core.InvocationIDFromContext(ctx), checkpoint, "png")
	if err != nil {
		return fail(err)
	}
	if err := i.page.Screenshot(ctx, path); err != nil {
		return fail(err)
	}
	i.logger.Info().Str("checkpoint", checkpoint).Str("path", path).Msg("screenshot captured")
	return path, nil
}
