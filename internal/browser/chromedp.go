package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
)

const readyStatePoll = 100 * time.Millisecond

// ChromedpDriver drives Chrome over the DevTools protocol with chromedp.
// Each Browser owns an exec allocator; each BrowserContext is a fresh
// incognito-like browser context in that process.
type ChromedpDriver struct{}

func (ChromedpDriver) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", opts.Headless))
	if opts.ExecutablePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecutablePath))
	}

	// The browser outlives the launch call, so it is not bound to ctx.
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := allocate(ctx, browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	return &cdpBrowser{
		ctx:         browserCtx,
		cancel:      browserCancel,
		allocCancel: allocCancel,
		slowMo:      opts.SlowMo,
	}, nil
}

type cdpBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	slowMo      time.Duration
	killOnce    sync.Once
}

func (b *cdpBrowser) NewContext(ctx context.Context, opts ContextOptions) (BrowserContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c, cancel := chromedp.NewContext(b.ctx, chromedp.WithNewBrowserContext())
	return &cdpContext{ctx: c, cancel: cancel, opts: opts.withDefaults(), slowMo: b.slowMo}, nil
}

func (b *cdpBrowser) Close(ctx context.Context) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(b.ctx) }()
	select {
	case err := <-done:
		b.allocCancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("close browser: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *cdpBrowser) Kill() error {
	b.killOnce.Do(func() {
		b.cancel()
		b.allocCancel()
	})
	return nil
}

type cdpContext struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   ContextOptions
	slowMo time.Duration

	mu    sync.Mutex
	pages int
}

func (c *cdpContext) NewPage(ctx context.Context) (Page, error) {
	c.mu.Lock()
	first := c.pages == 0
	c.pages++
	c.mu.Unlock()

	// The first page uses the context's own target; later pages open new tabs
	// in the same browser context.
	tabCtx, cancel := c.ctx, c.cancel
	if !first {
		tabCtx, cancel = chromedp.NewContext(c.ctx)
	}
	p := &cdpPage{ctx: tabCtx, cancel: cancel, owned: !first, slowMo: c.slowMo}

	err := allocate(ctx, tabCtx)
	if err == nil {
		err = p.run(ctx, defaultActionTimeout,
			chromedp.EmulateViewport(int64(c.opts.Viewport.Width), int64(c.opts.Viewport.Height)),
			emulation.SetUserAgentOverride(c.opts.UserAgent),
		)
	}
	if err != nil {
		if p.owned {
			cancel()
		}
		return nil, fmt.Errorf("new page: %w", err)
	}
	return p, nil
}

func (c *cdpContext) Close(ctx context.Context) error {
	return cancelWithin(ctx, c.ctx, "close context")
}

// allocate performs the first Run on a chromedp context, which creates its
// browser or tab. It must run on the undecorated context: the target lives as
// long as the context the first Run received.
func allocate(ctx, target context.Context) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(target) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type cdpPage struct {
	ctx    context.Context
	cancel context.CancelFunc
	owned  bool
	slowMo time.Duration
}

// run executes actions on the page target, bounded by ctx and d.
func (p *cdpPage) run(ctx context.Context, d time.Duration, actions ...chromedp.Action) error {
	if p.slowMo > 0 {
		actions = append([]chromedp.Action{chromedp.Sleep(p.slowMo)}, actions...)
	}
	runCtx, cancel := context.WithTimeout(p.ctx, budget(ctx, d))
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *cdpPage) Navigate(ctx context.Context, url string) error {
	return cdpError("navigate", url, defaultActionTimeout, p.run(ctx, defaultActionTimeout, chromedp.Navigate(url)))
}

func (p *cdpPage) Click(ctx context.Context, locator string) error {
	return cdpError("click", locator, defaultActionTimeout,
		p.run(ctx, defaultActionTimeout, chromedp.Click(locator, chromedp.ByQuery, chromedp.NodeVisible)))
}

func (p *cdpPage) Fill(ctx context.Context, locator, text string) error {
	return cdpError("fill", locator, defaultActionTimeout, p.run(ctx, defaultActionTimeout,
		chromedp.SetValue(locator, "", chromedp.ByQuery),
		chromedp.SendKeys(locator, text, chromedp.ByQuery),
	))
}

func (p *cdpPage) TextContent(ctx context.Context, locator string) (string, error) {
	var s string
	err := p.run(ctx, defaultActionTimeout, chromedp.TextContent(locator, &s, chromedp.ByQuery))
	return s, cdpError("text content", locator, defaultActionTimeout, err)
}

const visibleJS = `(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	const style = window.getComputedStyle(el);
	if (style.visibility === "hidden" || style.display === "none") return false;
	const r = el.getBoundingClientRect();
	return r.width > 0 && r.height > 0;
})()`

func (p *cdpPage) IsVisible(ctx context.Context, locator string) (bool, error) {
	sel, err := json.Marshal(locator)
	if err != nil {
		return false, err
	}
	var visible bool
	err = p.run(ctx, defaultActionTimeout, chromedp.Evaluate(fmt.Sprintf(visibleJS, sel), &visible))
	return visible, err
}

func (p *cdpPage) WaitForSelector(ctx context.Context, locator string, timeout time.Duration) error {
	return cdpError("wait for", locator, timeout,
		p.run(ctx, timeout, chromedp.WaitVisible(locator, chromedp.ByQuery)))
}

// WaitForLoadState polls document.readyState; the DevTools protocol has no
// network-idle signal chromedp exposes directly.
func (p *cdpPage) WaitForLoadState(ctx context.Context, timeout time.Duration) error {
	poll := chromedp.ActionFunc(func(ctx context.Context) error {
		for {
			var state string
			if err := chromedp.Evaluate(`document.readyState`, &state).Do(ctx); err != nil {
				return err
			}
			if state == "complete" {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(readyStatePoll):
			}
		}
	})
	return cdpError("wait for load state", "", timeout, p.run(ctx, timeout, poll))
}

func (p *cdpPage) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := p.run(ctx, defaultActionTimeout, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	return os.WriteFile(path, buf, 0o644)
}

func (p *cdpPage) Close(ctx context.Context) error {
	if !p.owned {
		// The context's own target closes with the context.
		return nil
	}
	defer p.cancel()
	return cancelWithin(ctx, p.ctx, "close page")
}

func cancelWithin(ctx, target context.Context, op string) error {
	done := make(chan error, 1)
	go func() { done <- chromedp.Cancel(target) }()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
}

func cdpError(op, target string, d time.Duration, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return timeoutError(op, target, d, err)
	}
	if target == "" {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s %q: %w", op, target, err)
}
