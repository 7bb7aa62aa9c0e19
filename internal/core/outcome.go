// Package core defines the types shared by the data provider, the interaction
// layer and the orchestrator.
package core

import "time"

// Status is the terminal result of one scenario invocation.
type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
	// StatusError marks a suite-level failure (for example an unreadable data
	// source) that prevented any invocation from being created.
	StatusError Status = "error"
)

// Artifact references the diagnostics captured for a failed invocation.
type Artifact struct {
	Checkpoint string `json:"checkpoint"`
	Screenshot string `json:"screenshot,omitempty"` // empty when capture failed
	Trail      string `json:"trail,omitempty"`
}

// Outcome is what one invocation reports to the test-report boundary.
type Outcome struct {
	InvocationID string        `json:"invocationId,omitempty"`
	Scenario     string        `json:"scenario"`
	RecordIndex  int           `json:"record,omitempty"`
	TestCase     string        `json:"testCase,omitempty"`
	Status       Status        `json:"status"`
	Reason       string        `json:"reason,omitempty"`
	Artifact     *Artifact     `json:"artifact,omitempty"`
	Attempts     int           `json:"attempts,omitempty"`
	Started      time.Time     `json:"started"`
	Duration     time.Duration `json:"duration"`
}

// Passed reports whether the invocation passed.
func (o Outcome) Passed() bool { return o.Status == StatusPassed }

// Reporter receives outcomes as invocations finish.
type Reporter interface {
	Report(Outcome)
}

// NullReporter discards all outcomes.
var NullReporter Reporter = nullReporter{}

type nullReporter struct{}

func (nullReporter) Report(Outcome) {}

// ReporterFunc adapts a function to the Reporter interface.
type ReporterFunc func(Outcome)

func (f ReporterFunc) Report(o Outcome) { f(o) }
