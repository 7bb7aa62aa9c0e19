package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// defaultActionTimeout bounds playwright actions when ctx has no deadline.
const defaultActionTimeout = 30 * time.Second

// PlaywrightDriver drives Chromium through playwright-go. Each Browser owns its
// own driver process so Kill can stop it without affecting other browsers.
type PlaywrightDriver struct {
	// RunOptions are passed to playwright.Run. Nil uses the defaults.
	RunOptions *playwright.RunOptions
}

func (d *PlaywrightDriver) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var runOpts []*playwright.RunOptions
	if d.RunOptions != nil {
		runOpts = append(runOpts, d.RunOptions)
	}
	pw, err := playwright.Run(runOpts...)
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	}
	if opts.SlowMo > 0 {
		launch.SlowMo = playwright.Float(float64(opts.SlowMo.Milliseconds()))
	}
	if opts.ExecutablePath != "" {
		launch.ExecutablePath = playwright.String(opts.ExecutablePath)
	}
	b, err := pw.Chromium.Launch(launch)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	return &pwBrowser{pw: pw, browser: b}, nil
}

type pwBrowser struct {
	pw       *playwright.Playwright
	browser  playwright.Browser
	stopOnce sync.Once
	stopErr  error
}

func (b *pwBrowser) NewContext(ctx context.Context, opts ContextOptions) (BrowserContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	c, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport:  &playwright.Size{Width: opts.Viewport.Width, Height: opts.Viewport.Height},
		UserAgent: playwright.String(opts.UserAgent),
	})
	if err != nil {
		return nil, fmt.Errorf("new context: %w", err)
	}
	return &pwContext{ctx: c}, nil
}

func (b *pwBrowser) Close(ctx context.Context) error {
	if err := b.browser.Close(); err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return b.stop()
}

func (b *pwBrowser) Kill() error {
	return b.stop()
}

func (b *pwBrowser) stop() error {
	b.stopOnce.Do(func() { b.stopErr = b.pw.Stop() })
	return b.stopErr
}

type pwContext struct {
	ctx playwright.BrowserContext
}

func (c *pwContext) NewPage(ctx context.Context) (Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := c.ctx.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new page: %w", err)
	}
	return &pwPage{page: p}, nil
}

func (c *pwContext) Close(ctx context.Context) error {
	return c.ctx.Close()
}

type pwPage struct {
	page playwright.Page
}

// ms converts d for playwright, where 0 would mean no timeout at all.
func ms(d time.Duration) *float64 {
	if d < time.Millisecond {
		d = time.Millisecond
	}
	return playwright.Float(float64(d.Milliseconds()))
}

func (p *pwPage) Navigate(ctx context.Context, url string) error {
	d := budget(ctx, defaultActionTimeout)
	_, err := p.page.Goto(url, playwright.PageGotoOptions{Timeout: ms(d)})
	return pwError("navigate", url, d, err)
}

func (p *pwPage) Click(ctx context.Context, locator string) error {
	d := budget(ctx, defaultActionTimeout)
	err := p.page.Locator(locator).First().Click(playwright.LocatorClickOptions{Timeout: ms(d)})
	return pwError("click", locator, d, err)
}

func (p *pwPage) Fill(ctx context.Context, locator, text string) error {
	d := budget(ctx, defaultActionTimeout)
	err := p.page.Locator(locator).First().Fill(text, playwright.LocatorFillOptions{Timeout: ms(d)})
	return pwError("fill", locator, d, err)
}

func (p *pwPage) TextContent(ctx context.Context, locator string) (string, error) {
	d := budget(ctx, defaultActionTimeout)
	s, err := p.page.Locator(locator).First().TextContent(playwright.LocatorTextContentOptions{Timeout: ms(d)})
	return s, pwError("text content", locator, d, err)
}

func (p *pwPage) IsVisible(ctx context.Context, locator string) (bool, error) {
	return p.page.Locator(locator).First().IsVisible()
}

func (p *pwPage) WaitForSelector(ctx context.Context, locator string, timeout time.Duration) error {
	d := budget(ctx, timeout)
	err := p.page.Locator(locator).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: ms(d),
	})
	return pwError("wait for", locator, d, err)
}

func (p *pwPage) WaitForLoadState(ctx context.Context, timeout time.Duration) error {
	d := budget(ctx, timeout)
	err := p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: ms(d),
	})
	return pwError("wait for load state", "", d, err)
}

func (p *pwPage) Screenshot(ctx context.Context, path string) error {
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	return nil
}

func (p *pwPage) Close(ctx context.Context) error {
	return p.page.Close()
}

func pwError(op, target string, d time.Duration, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return timeoutError(op, target, d, err)
	}
	if target == "" {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s %q: %w", op, target, err)
}
