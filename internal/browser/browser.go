// Package browser defines the browser automation capabilities the rest of
// pageflow depends on, and provides concrete backends for them.
//
// Locators are CSS selectors. Every backend resolves them against the live DOM
// on each call; no element handle outlives a single operation.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrTimeout is wrapped by every backend error caused by an elapsed wait.
var ErrTimeout = errors.New("browser: timeout")

// Viewport is the page size in CSS pixels.
type Viewport struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

var DefaultViewport = Viewport{Width: 1920, Height: 1080}

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// LaunchOptions control how a browser process is started.
type LaunchOptions struct {
	Headless       bool
	SlowMo         time.Duration
	ExecutablePath string
	// DriverPath locates the backend's helper binary (chromedriver for webdriver).
	DriverPath string
	// Port for helper services; 0 picks a free port.
	Port int
}

// ContextOptions configure an isolated browser context.
type ContextOptions struct {
	Viewport  Viewport
	UserAgent string
}

func (o ContextOptions) withDefaults() ContextOptions {
	if o.Viewport.Width <= 0 || o.Viewport.Height <= 0 {
		o.Viewport = DefaultViewport
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	return o
}

// Driver launches browser processes.
type Driver interface {
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

// Browser is one running browser process.
type Browser interface {
	NewContext(ctx context.Context, opts ContextOptions) (BrowserContext, error)
	// Close shuts the browser down through its protocol.
	Close(ctx context.Context) error
	// Kill terminates the browser process without protocol round trips.
	// It is safe to call at any time, including after Close.
	Kill() error
}

// BrowserContext is an isolated profile: cookies and storage are not shared
// with any other context.
type BrowserContext interface {
	NewPage(ctx context.Context) (Page, error)
	Close(ctx context.Context) error
}

// Page is a single tab. A Page is not safe for concurrent use.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, locator string) error
	Fill(ctx context.Context, locator, text string) error
	TextContent(ctx context.Context, locator string) (string, error)
	IsVisible(ctx context.Context, locator string) (bool, error)
	// WaitForSelector blocks until locator matches a visible element or
	// timeout elapses, returning an error wrapping ErrTimeout.
	WaitForSelector(ctx context.Context, locator string, timeout time.Duration) error
	// WaitForLoadState blocks until the page is quiescent.
	WaitForLoadState(ctx context.Context, timeout time.Duration) error
	Screenshot(ctx context.Context, path string) error
	Close(ctx context.Context) error
}

// Factory builds a Driver.
type Factory func() Driver

var backends = map[string]Factory{
	"playwright": func() Driver { return &PlaywrightDriver{} },
	"chromedp":   func() Driver { return &ChromedpDriver{} },
	"webdriver":  func() Driver { return &WebDriver{} },
}

// DefaultBackend is used when no backend is named.
const DefaultBackend = "playwright"

// New returns the driver registered under name.
func New(name string) (Driver, error) {
	if name == "" {
		name = DefaultBackend
	}
	f, ok := backends[name]
	if !ok {
		return nil, fmt.Errorf("unknown browser backend %q (available: %v)", name, Backends())
	}
	return f(), nil
}

// Backends lists the registered backend names.
func Backends() []string {
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// budget returns the smaller of d and the time left before ctx's deadline.
func budget(ctx context.Context, d time.Duration) time.Duration {
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < d || d <= 0 {
			d = left
		}
	}
	if d < 0 {
		d = 0
	}
	return d
}

func timeoutError(op, locator string, d time.Duration, err error) error {
	if locator == "" {
		return fmt.Errorf("%s: %w after %s: %v", op, ErrTimeout, d, err)
	}
	return fmt.Errorf("%s %q: %w after %s: %v", op, locator, ErrTimeout, d, err)
}
