// Package progress prints a live invocation counter while a suite runs.
package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"pageflow/internal/collector"
	"pageflow/internal/core"
)

type Progress struct {
	startTime time.Time
	collector *collector.Collector
	total     int
	interval  time.Duration
	ticker    *time.Ticker
	stopCh    chan struct{}
	stopped   atomic.Bool
	quiet     bool
	output    io.Writer
	mu        sync.Mutex
}

// NewProgress reports progress counted from c. total is the planned number
// of invocations, or 0 when unknown.
func NewProgress(c *collector.Collector, total int, quiet bool) *Progress {
	return &Progress{
		collector: c,
		total:     total,
		interval:  time.Second,
		quiet:     quiet,
		output:    os.Stderr,
	}
}

func (p *Progress) SetOutput(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.output = w
}

// SetInterval changes the refresh period. Call before Start.
func (p *Progress) SetInterval(d time.Duration) {
	if d > 0 {
		p.interval = d
	}
}

func (p *Progress) Start() {
	if p.quiet {
		return
	}
	p.startTime = time.Now()
	p.stopCh = make(chan struct{})
	p.ticker = time.NewTicker(p.interval)
	go p.run(p.ticker, p.stopCh)
}

func (p *Progress) run(ticker *time.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.printProgress()
		}
	}
}

func (p *Progress) printProgress() {
	s := p.collector.Summarize()
	elapsed := time.Since(p.startTime).Round(time.Second)
	mins := int(elapsed.Minutes())
	secs := int(elapsed.Seconds()) % 60
	count := fmt.Sprint(s.Total)
	if p.total > 0 {
		count = fmt.Sprintf("%d/%d", s.Total, p.total)
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K[%02d:%02d] Invocations: %s | Passed: %d | Failed: %d\r",
		mins, secs, count, s.Passed, s.Failed)
	p.mu.Unlock()
}

func (p *Progress) Stop() {
	if p.quiet || p.stopped.Swap(true) {
		return
	}
	if p.ticker != nil {
		p.ticker.Stop()
	}
	if p.stopCh != nil {
		close(p.stopCh)
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K")
	p.mu.Unlock()
}

// Report prints one line per finished invocation. It makes Progress usable
// as a core.Reporter next to the collector.
func (p *Progress) Report(o core.Outcome) {
	symbol := "✓"
	if !o.Passed() {
		symbol = "✗"
	}
	label := o.InvocationID
	if label == "" {
		label = o.Scenario
	}
	if o.TestCase != "" {
		label += " [" + o.TestCase + "]"
	}
	p.Printf("%s %s (%s)", symbol, label, collector.FormatDuration(o.Duration))
}

func (p *Progress) Print(message string) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K%s\n", message)
	p.mu.Unlock()
}

func (p *Progress) Printf(format string, args ...interface{}) {
	if p.quiet {
		return
	}
	p.mu.Lock()
	fmt.Fprintf(p.output, "\033[K"+format+"\n", args...)
	p.mu.Unlock()
}
