package browser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
)

const webdriverPoll = 100 * time.Millisecond

// WebDriver drives Chrome through a ChromeDriver service using the W3C
// WebDriver protocol. Each BrowserContext is a separate WebDriver session,
// which ChromeDriver backs with its own profile.
type WebDriver struct{}

func (WebDriver) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := opts.DriverPath
	if path == "" {
		path = "chromedriver"
	}
	port := opts.Port
	if port == 0 {
		p, err := freePort()
		if err != nil {
			return nil, fmt.Errorf("pick chromedriver port: %w", err)
		}
		port = p
	}
	svc, err := selenium.NewChromeDriverService(path, port)
	if err != nil {
		return nil, fmt.Errorf("start chromedriver: %w", err)
	}
	return &wdBrowser{svc: svc, port: port, opts: opts}, nil
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

type wdBrowser struct {
	svc  *selenium.Service
	port int
	opts LaunchOptions

	stopOnce sync.Once
	stopErr  error
}

func (b *wdBrowser) NewContext(ctx context.Context, opts ContextOptions) (BrowserContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()
	args := []string{
		fmt.Sprintf("--window-size=%d,%d", opts.Viewport.Width, opts.Viewport.Height),
		"--user-agent=" + opts.UserAgent,
	}
	if b.opts.Headless {
		args = append(args, "--headless=new")
	}
	caps := selenium.Capabilities{"browserName": "chrome"}
	caps.AddChrome(chrome.Capabilities{Path: b.opts.ExecutablePath, Args: args})

	wd, err := selenium.NewRemote(caps, fmt.Sprintf("http://127.0.0.1:%d/wd/hub", b.port))
	if err != nil {
		return nil, fmt.Errorf("new webdriver session: %w", err)
	}
	return &wdContext{wd: wd}, nil
}

func (b *wdBrowser) Close(ctx context.Context) error {
	return b.stop()
}

func (b *wdBrowser) Kill() error {
	return b.stop()
}

func (b *wdBrowser) stop() error {
	b.stopOnce.Do(func() { b.stopErr = b.svc.Stop() })
	return b.stopErr
}

type wdContext struct {
	wd selenium.WebDriver

	mu     sync.Mutex
	opened bool
}

func (c *wdContext) NewPage(ctx context.Context) (Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opened {
		return nil, errors.New("new page: webdriver contexts hold a single page")
	}
	c.opened = true
	return &wdPage{wd: c.wd}, nil
}

func (c *wdContext) Close(ctx context.Context) error {
	if err := c.wd.Quit(); err != nil {
		return fmt.Errorf("quit session: %w", err)
	}
	return nil
}

type wdPage struct {
	wd selenium.WebDriver
}

func (p *wdPage) find(locator string) (selenium.WebElement, error) {
	return p.wd.FindElement(selenium.ByCSSSelector, locator)
}

func (p *wdPage) Navigate(ctx context.Context, url string) error {
	if err := p.wd.Get(url); err != nil {
		return fmt.Errorf("navigate %q: %w", url, err)
	}
	return nil
}

func (p *wdPage) Click(ctx context.Context, locator string) error {
	el, err := p.find(locator)
	if err == nil {
		err = el.Click()
	}
	if err != nil {
		return fmt.Errorf("click %q: %w", locator, err)
	}
	return nil
}

func (p *wdPage) Fill(ctx context.Context, locator, text string) error {
	el, err := p.find(locator)
	if err == nil {
		err = el.Clear()
	}
	if err == nil {
		err = el.SendKeys(text)
	}
	if err != nil {
		return fmt.Errorf("fill %q: %w", locator, err)
	}
	return nil
}

func (p *wdPage) TextContent(ctx context.Context, locator string) (string, error) {
	el, err := p.find(locator)
	if err != nil {
		return "", fmt.Errorf("text content %q: %w", locator, err)
	}
	s, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("text content %q: %w", locator, err)
	}
	return s, nil
}

func (p *wdPage) IsVisible(ctx context.Context, locator string) (bool, error) {
	el, err := p.find(locator)
	if err != nil {
		return false, err
	}
	return el.IsDisplayed()
}

func (p *wdPage) WaitForSelector(ctx context.Context, locator string, timeout time.Duration) error {
	return poll(ctx, "wait for", locator, timeout, func() (bool, error) {
		visible, _ := p.IsVisible(ctx, locator)
		return visible, nil
	})
}

func (p *wdPage) WaitForLoadState(ctx context.Context, timeout time.Duration) error {
	return poll(ctx, "wait for load state", "", timeout, func() (bool, error) {
		state, err := p.wd.ExecuteScript("return document.readyState", nil)
		if err != nil {
			return false, err
		}
		return state == "complete", nil
	})
}

func (p *wdPage) Screenshot(ctx context.Context, path string) error {
	buf, err := p.wd.Screenshot()
	if err != nil {
		return fmt.Errorf("screenshot: %w", err)
	}
	return os.WriteFile(path, buf, 0o644)
}

// Close is a no-op: the single window closes with its session.
func (p *wdPage) Close(ctx context.Context) error {
	return nil
}

// poll calls cond every webdriverPoll until it reports true, fails, or the
// timeout elapses.
func poll(ctx context.Context, op, locator string, timeout time.Duration, cond func() (bool, error)) error {
	d := budget(ctx, timeout)
	timer := time.NewTimer(d)
	defer timer.Stop()
	ticker := time.NewTicker(webdriverPoll)
	defer ticker.Stop()
	for {
		ok, err := cond()
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return timeoutError(op, locator, d, context.DeadlineExceeded)
		case <-ticker.C:
		}
	}
}
