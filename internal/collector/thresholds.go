package collector

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Thresholds defines pass/fail criteria for a suite beyond "every invocation
// passed". A suite that meets its thresholds still fails on suite errors.
type Thresholds struct {
	// MaxFailureRate is a percentage such as "5%".
	MaxFailureRate     string              `yaml:"max_failure_rate"`
	MaxFailures        *int                `yaml:"max_failures"`
	InvocationDuration *DurationThresholds `yaml:"invocation_duration"`
}

// DurationThresholds defines invocation time limits.
type DurationThresholds struct {
	Avg time.Duration `yaml:"avg"`
	P50 time.Duration `yaml:"p50"`
	P90 time.Duration `yaml:"p90"`
	P95 time.Duration `yaml:"p95"`
	P99 time.Duration `yaml:"p99"`
	Max time.Duration `yaml:"max"`
}

// ThresholdResult represents the outcome of a single threshold check.
type ThresholdResult struct {
	Name      string `json:"name"`
	Passed    bool   `json:"passed"`
	Threshold string `json:"threshold"`
	Actual    string `json:"actual"`
}

// ThresholdResults contains all threshold check results.
type ThresholdResults struct {
	Passed  bool              `json:"passed"`
	Results []ThresholdResult `json:"results"`
}

// Validate reports malformed threshold values.
func (t *Thresholds) Validate() error {
	if t == nil {
		return nil
	}
	var errs []error
	if t.MaxFailureRate != "" {
		if rate, err := parsePercentage(t.MaxFailureRate); err != nil {
			errs = append(errs, fmt.Errorf("max_failure_rate: %w", err))
		} else if rate < 0 || rate > 100 {
			errs = append(errs, fmt.Errorf("max_failure_rate: %s is outside 0%%..100%%", t.MaxFailureRate))
		}
	}
	if t.MaxFailures != nil && *t.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("max_failures: must not be negative, got %d", *t.MaxFailures))
	}
	return errors.Join(errs...)
}

// Check evaluates the thresholds against a summary.
func (t *Thresholds) Check(s *Summary) *ThresholdResults {
	if t == nil {
		return &ThresholdResults{Passed: true, Results: nil}
	}

	results := &ThresholdResults{
		Passed:  true,
		Results: make([]ThresholdResult, 0),
	}

	if t.MaxFailureRate != "" {
		results.checkFailureRate(t.MaxFailureRate, s)
	}
	if t.MaxFailures != nil {
		passed := s.Failed <= *t.MaxFailures
		results.add(ThresholdResult{
			Name:      "max_failures",
			Passed:    passed,
			Threshold: strconv.Itoa(*t.MaxFailures),
			Actual:    strconv.Itoa(s.Failed),
		})
	}
	if t.InvocationDuration != nil {
		results.checkDurationThresholds(t.InvocationDuration, &s.Durations)
	}

	return results
}

func (r *ThresholdResults) add(res ThresholdResult) {
	if !res.Passed {
		r.Passed = false
	}
	r.Results = append(r.Results, res)
}

func (r *ThresholdResults) checkDurationThresholds(thresholds *DurationThresholds, actual *DurationMetrics) {
	checks := []struct {
		name      string
		threshold time.Duration
		actual    time.Duration
	}{
		{"invocation_duration.avg", thresholds.Avg, actual.Avg},
		{"invocation_duration.p50", thresholds.P50, actual.P50},
		{"invocation_duration.p90", thresholds.P90, actual.P90},
		{"invocation_duration.p95", thresholds.P95, actual.P95},
		{"invocation_duration.p99", thresholds.P99, actual.P99},
		{"invocation_duration.max", thresholds.Max, actual.Max},
	}

	for _, check := range checks {
		if check.threshold == 0 {
			continue
		}
		r.add(ThresholdResult{
			Name:      check.name,
			Passed:    check.actual < check.threshold,
			Threshold: FormatDuration(check.threshold),
			Actual:    FormatDuration(check.actual),
		})
	}
}

func (r *ThresholdResults) checkFailureRate(threshold string, s *Summary) {
	rate, err := parsePercentage(threshold)
	if err != nil {
		r.add(ThresholdResult{Name: "max_failure_rate", Threshold: threshold, Actual: err.Error()})
		return
	}
	actual := s.FailureRate()
	r.add(ThresholdResult{
		Name:      "max_failure_rate",
		Passed:    actual <= rate,
		Threshold: threshold,
		Actual:    fmt.Sprintf("%.2f%%", actual),
	})
}

func parsePercentage(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !strings.HasSuffix(s, "%") {
		return 0, fmt.Errorf("invalid percentage format: %s", s)
	}
	return strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64)
}

// FormatDuration formats a duration for display.
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}

// Violations returns only the failed threshold results.
func (r *ThresholdResults) Violations() []ThresholdResult {
	violations := make([]ThresholdResult, 0)
	for _, result := range r.Results {
		if !result.Passed {
			violations = append(violations, result)
		}
	}
	return violations
}
