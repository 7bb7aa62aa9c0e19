// Package browsertest provides an in-memory browser.Driver for tests.
//
// A Driver serves pages from Routes: navigating to a URL gives the page a
// private copy of that route's DOM. Elements can be delayed, hidden or made to
// fail, and every lifecycle call is recorded so tests can assert teardown
// order and leaks.
package browsertest

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"pageflow/internal/browser"
)

// PNG is the content written by Screenshot.
var PNG = []byte("\x89PNG\r\n\x1a\nfake")

// Element is a node in a fake DOM, keyed by its locator.
type Element struct {
	Text   string
	Hidden bool
	// AppearAfter is the number of visibility probes that report the element
	// as not yet rendered.
	AppearAfter int
	ClickErr    error
	FillErr     error
	// OnClick runs after a successful click.
	OnClick func(p *Page)
}

// DOM maps locators to elements.
type DOM map[string]*Element

func (d DOM) clone() DOM {
	out := make(DOM, len(d))
	for k, v := range d {
		el := *v
		out[k] = &el
	}
	return out
}

// Driver is a scripted browser.Driver. Configure it before use; it is safe for
// concurrent Launch calls.
type Driver struct {
	Routes map[string]DOM

	LaunchErr     error
	NewContextErr error
	NewPageErr    error
	NavigateErr   error
	ScreenshotErr error
	IsVisibleErr  error

	// CloseErr fails the Close of "page", "context" or "browser".
	CloseErr map[string]error
	// Wedge makes the Close of "page", "context" or "browser" block until its
	// context is done.
	Wedge map[string]bool

	mu       sync.Mutex
	browsers []*Browser
	seq      int
}

var _ browser.Driver = (*Driver)(nil)

func (d *Driver) Launch(ctx context.Context, opts browser.LaunchOptions) (browser.Browser, error) {
	if d.LaunchErr != nil {
		return nil, d.LaunchErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	b := &Browser{driver: d, ID: d.seq, Options: opts}
	b.record("browser.launch")
	d.browsers = append(d.browsers, b)
	return b, nil
}

// Browsers returns every browser launched so far.
func (d *Driver) Browsers() []*Browser {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Browser(nil), d.browsers...)
}

// Live counts browsers that were neither closed nor killed.
func (d *Driver) Live() int {
	n := 0
	for _, b := range d.Browsers() {
		if !b.Released() {
			n++
		}
	}
	return n
}

func (d *Driver) route(url string) DOM {
	if dom, ok := d.Routes[url]; ok {
		return dom.clone()
	}
	// Fall back to the longest route that prefixes url, ignoring query strings.
	var best string
	for k := range d.Routes {
		if strings.HasPrefix(url, k) && len(k) > len(best) {
			best = k
		}
	}
	if best != "" {
		return d.Routes[best].clone()
	}
	return DOM{}
}

func (d *Driver) closeStep(ctx context.Context, step string) error {
	if d.Wedge[step] {
		<-ctx.Done()
		return ctx.Err()
	}
	return d.CloseErr[step]
}

// Browser is a fake browser process.
type Browser struct {
	ID      int
	Options browser.LaunchOptions

	driver   *Driver
	mu       sync.Mutex
	events   []string
	contexts []*Context
	closed   bool
	killed   bool
}

func (b *Browser) record(ev string) {
	b.events = append(b.events, ev)
}

// Events returns the lifecycle calls made against this browser and its
// contexts and pages, in order.
func (b *Browser) Events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.events...)
}

// Released reports whether the browser was closed or killed.
func (b *Browser) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed || b.killed
}

// Killed reports whether Kill was called.
func (b *Browser) Killed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.killed
}

// Pages returns every page opened in this browser.
func (b *Browser) Pages() []*Page {
	b.mu.Lock()
	defer b.mu.Unlock()
	var pages []*Page
	for _, c := range b.contexts {
		pages = append(pages, c.pages...)
	}
	return pages
}

func (b *Browser) NewContext(ctx context.Context, opts browser.ContextOptions) (browser.BrowserContext, error) {
	if b.driver.NewContextErr != nil {
		return nil, b.driver.NewContextErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	c := &Context{browser: b, Options: opts}
	b.contexts = append(b.contexts, c)
	b.record("context.new")
	return c, nil
}

func (b *Browser) Close(ctx context.Context) error {
	if err := b.driver.closeStep(ctx, "browser"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.record("browser.close")
	return nil
}

func (b *Browser) Kill() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.killed = true
	b.record("browser.kill")
	return nil
}

// Context is a fake browser context.
type Context struct {
	Options browser.ContextOptions

	browser *Browser
	pages   []*Page
}

func (c *Context) NewPage(ctx context.Context) (browser.Page, error) {
	if c.browser.driver.NewPageErr != nil {
		return nil, c.browser.driver.NewPageErr
	}
	c.browser.mu.Lock()
	defer c.browser.mu.Unlock()
	p := &Page{browser: c.browser, dom: DOM{}, values: map[string]string{}, probes: map[string]int{}}
	c.pages = append(c.pages, p)
	c.browser.record("page.new")
	return p, nil
}

func (c *Context) Close(ctx context.Context) error {
	if err := c.browser.driver.closeStep(ctx, "context"); err != nil {
		return err
	}
	c.browser.mu.Lock()
	defer c.browser.mu.Unlock()
	c.browser.record("context.close")
	return nil
}

// Page is a fake tab. Its DOM is private to the page.
type Page struct {
	browser *Browser

	mu      sync.Mutex
	url     string
	dom     DOM
	values  map[string]string
	probes  map[string]int
	actions []string
	closed  bool
}

// URL returns the current address.
func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

// Value returns what was last filled into locator.
func (p *Page) Value(locator string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.values[locator]
}

// Actions returns the navigate, click and fill calls made on the page.
func (p *Page) Actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.actions...)
}

// Set adds or replaces an element in the current DOM. It is meant for
// OnClick handlers that render new content.
func (p *Page) Set(locator string, el *Element) {
	p.dom[locator] = el
}

// SetValue records a form value without a fill call, as a dropdown selection
// would. It is meant for OnClick handlers.
func (p *Page) SetValue(locator, value string) {
	p.values[locator] = value
}

// FormValue reads a form value from an OnClick handler.
func (p *Page) FormValue(locator string) string {
	return p.values[locator]
}

// Remove deletes an element from the current DOM.
func (p *Page) Remove(locator string) {
	delete(p.dom, locator)
}

// Goto replaces the DOM with the route for url. It is meant for OnClick
// handlers that trigger navigation.
func (p *Page) Goto(url string) {
	p.url = url
	p.dom = p.browser.driver.route(url)
	p.probes = map[string]int{}
	p.values = map[string]string{}
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := p.check(); err != nil {
		return err
	}
	if p.browser.driver.NavigateErr != nil {
		return p.browser.driver.NavigateErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.actions = append(p.actions, "navigate "+url)
	p.Goto(url)
	return nil
}

// visible probes locator, counting the probe toward AppearAfter.
func (p *Page) visible(locator string) bool {
	el, ok := p.dom[locator]
	if !ok || el.Hidden {
		return false
	}
	p.probes[locator]++
	return p.probes[locator] > el.AppearAfter
}

func (p *Page) Click(ctx context.Context, locator string) error {
	if err := p.check(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.dom[locator]
	if !ok {
		return fmt.Errorf("click %q: no such element", locator)
	}
	if el.ClickErr != nil {
		return el.ClickErr
	}
	p.actions = append(p.actions, "click "+locator)
	if el.OnClick != nil {
		el.OnClick(p)
	}
	return nil
}

func (p *Page) Fill(ctx context.Context, locator, text string) error {
	if err := p.check(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.dom[locator]
	if !ok {
		return fmt.Errorf("fill %q: no such element", locator)
	}
	if el.FillErr != nil {
		return el.FillErr
	}
	p.actions = append(p.actions, "fill "+locator)
	p.values[locator] = text
	return nil
}

func (p *Page) TextContent(ctx context.Context, locator string) (string, error) {
	if err := p.check(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	el, ok := p.dom[locator]
	if !ok {
		return "", fmt.Errorf("text content %q: no such element", locator)
	}
	if v, ok := p.values[locator]; ok {
		return v, nil
	}
	return el.Text, nil
}

func (p *Page) IsVisible(ctx context.Context, locator string) (bool, error) {
	if err := p.check(); err != nil {
		return false, err
	}
	if p.browser.driver.IsVisibleErr != nil {
		return false, p.browser.driver.IsVisibleErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible(locator), nil
}

// WaitForSelector never blocks: it probes once and reports a timeout when the
// element is not visible yet, leaving retries to the caller.
func (p *Page) WaitForSelector(ctx context.Context, locator string, timeout time.Duration) error {
	if err := p.check(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.visible(locator) {
		return nil
	}
	return fmt.Errorf("wait for %q: %w", locator, browser.ErrTimeout)
}

func (p *Page) WaitForLoadState(ctx context.Context, timeout time.Duration) error {
	return p.check()
}

func (p *Page) Screenshot(ctx context.Context, path string) error {
	if err := p.check(); err != nil {
		return err
	}
	if p.browser.driver.ScreenshotErr != nil {
		return p.browser.driver.ScreenshotErr
	}
	return os.WriteFile(path, PNG, 0o644)
}

func (p *Page) Close(ctx context.Context) error {
	if err := p.browser.driver.closeStep(ctx, "page"); err != nil {
		return err
	}
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.browser.mu.Lock()
	defer p.browser.mu.Unlock()
	p.browser.record("page.close")
	return nil
}

func (p *Page) check() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("page closed")
	}
	return nil
}

// Locators lists the locators present in the current DOM, sorted.
func (p *Page) Locators() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.dom))
	for k := range p.dom {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
