// Package collector gathers invocation outcomes and turns them into a suite
// summary, threshold verdicts and reports.
package collector

import (
	"sync"
	"time"

	"pageflow/internal/core"
)

// Collector aggregates outcomes reported by concurrent invocations.
type Collector struct {
	outcomes []core.Outcome
	ch       chan core.Outcome
	done     chan struct{}
	mu       sync.Mutex
	clock    core.Clock
	start    time.Time
	end      time.Time
	closed   bool
}

// NewCollector creates a Collector and starts its collection goroutine.
func NewCollector() *Collector {
	return NewCollectorWithClock(core.RealClock{})
}

func NewCollectorWithClock(clock core.Clock) *Collector {
	c := &Collector{
		ch:    make(chan core.Outcome, 64),
		done:  make(chan struct{}),
		clock: clock,
		start: clock.Now(),
	}
	go c.collect()
	return c
}

func (c *Collector) collect() {
	for o := range c.ch {
		c.mu.Lock()
		c.outcomes = append(c.outcomes, o)
		c.mu.Unlock()
	}
	close(c.done)
}

// Report records an outcome. Outcomes are never dropped; Report blocks while
// the buffer is full. Reports after Close are ignored.
func (c *Collector) Report(o core.Outcome) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	c.ch <- o
}

// Close stops collection and waits for buffered outcomes to be recorded.
// Callers must not Report concurrently with Close.
func (c *Collector) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.end = c.clock.Now()
	c.mu.Unlock()
	close(c.ch)
	<-c.done
}

// Outcomes returns a copy of the collected outcomes in report order.
func (c *Collector) Outcomes() []core.Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Outcome, len(c.outcomes))
	copy(out, c.outcomes)
	return out
}

// Duration returns the suite wall time: start to Close, or to now while open.
func (c *Collector) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.end.IsZero() {
		return c.end.Sub(c.start)
	}
	return c.clock.Since(c.start)
}

// Summarize summarizes the outcomes collected so far.
func (c *Collector) Summarize() *Summary {
	return Summarize(c.Outcomes(), c.Duration())
}

// Fanout reports every outcome to each of rs in order.
func Fanout(rs ...core.Reporter) core.Reporter {
	return core.ReporterFunc(func(o core.Outcome) {
		for _, r := range rs {
			if r != nil {
				r.Report(o)
			}
		}
	})
}
