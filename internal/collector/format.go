package collector

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"pageflow/internal/core"
)

// FormatText writes the summary in human-readable format.
func FormatText(w io.Writer, s *Summary, thresholds *ThresholdResults) {
	if s.Total == 0 && s.SuiteErrors == 0 {
		fmt.Fprintln(w, "No invocations ran")
		return
	}

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "pageflow - Suite Results")
	fmt.Fprintln(w, "========================")
	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Duration:     %v\n", s.SuiteDuration.Round(time.Millisecond))
	fmt.Fprintf(w, "Invocations:  %s\n", formatNumber(s.Total))
	fmt.Fprintf(w, "Passed:       %s (%.1f%%)\n", formatNumber(s.Passed), s.PassRate)
	fmt.Fprintf(w, "Failed:       %s\n", formatNumber(s.Failed))
	if s.SuiteErrors > 0 {
		fmt.Fprintf(w, "Suite errors: %d\n", s.SuiteErrors)
	}

	if s.Total > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Invocation Times:")
		fmt.Fprintf(w, "  Min:    %s\n", FormatDuration(s.Durations.Min))
		fmt.Fprintf(w, "  Avg:    %s\n", FormatDuration(s.Durations.Avg))
		fmt.Fprintf(w, "  P50:    %s\n", FormatDuration(s.Durations.P50))
		fmt.Fprintf(w, "  P95:    %s\n", FormatDuration(s.Durations.P95))
		fmt.Fprintf(w, "  Max:    %s\n", FormatDuration(s.Durations.Max))
	}

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "By Scenario:")
	for _, name := range s.ScenarioNames() {
		sc := s.Scenarios[name]
		if sc.Errors > 0 && sc.Count == 0 {
			fmt.Fprintf(w, "  %-24s data source error\n", name)
			continue
		}
		fmt.Fprintf(w, "  %-24s %s runs   %d passed  %d failed  avg=%s\n",
			name, formatNumber(sc.Count), sc.Passed, sc.Failed,
			FormatDuration(sc.Durations.Avg))
	}

	if len(s.Failures) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Failures:")
		for _, o := range s.Failures {
			fmt.Fprintf(w, "  ✗ %s: %s\n", failureLabel(o), o.Reason)
			if a := o.Artifact; a != nil {
				if a.Screenshot != "" {
					fmt.Fprintf(w, "      screenshot: %s\n", a.Screenshot)
				}
				if a.Trail != "" {
					fmt.Fprintf(w, "      log:        %s\n", a.Trail)
				}
			}
		}
	}

	if thresholds != nil && len(thresholds.Results) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Thresholds:")
		for _, result := range thresholds.Results {
			symbol := "✓"
			if !result.Passed {
				symbol = "✗"
			}
			fmt.Fprintf(w, "  %s %s: %s (actual: %s)\n",
				symbol, result.Name, result.Threshold, result.Actual)
		}
	}
}

func failureLabel(o core.Outcome) string {
	switch {
	case o.Status == core.StatusError:
		return o.Scenario + " [data source]"
	case o.TestCase != "":
		return fmt.Sprintf("%s [%s]", o.InvocationID, o.TestCase)
	default:
		return o.InvocationID
	}
}

// FormatJSON writes the summary and the failed outcomes in JSON format.
func FormatJSON(w io.Writer, s *Summary, thresholds *ThresholdResults) {
	output := struct {
		Duration    string                         `json:"duration"`
		Total       int                            `json:"total"`
		Passed      int                            `json:"passed"`
		Failed      int                            `json:"failed"`
		SuiteErrors int                            `json:"suiteErrors"`
		PassRate    float64                        `json:"passRate"`
		Durations   jsonDurationMetrics            `json:"durations"`
		Scenarios   map[string]jsonScenarioMetrics `json:"scenarios"`
		Failures    []core.Outcome                 `json:"failures"`
		Thresholds  *ThresholdResults              `json:"thresholds,omitempty"`
	}{
		Duration:    s.SuiteDuration.Round(time.Millisecond).String(),
		Total:       s.Total,
		Passed:      s.Passed,
		Failed:      s.Failed,
		SuiteErrors: s.SuiteErrors,
		PassRate:    s.PassRate,
		Durations:   toJSONDurationMetrics(s.Durations),
		Scenarios:   make(map[string]jsonScenarioMetrics),
		Failures:    s.Failures,
		Thresholds:  thresholds,
	}
	if output.Failures == nil {
		output.Failures = []core.Outcome{}
	}

	for name, sc := range s.Scenarios {
		output.Scenarios[name] = jsonScenarioMetrics{
			Count:     sc.Count,
			Passed:    sc.Passed,
			Failed:    sc.Failed,
			Errors:    sc.Errors,
			Durations: toJSONDurationMetrics(sc.Durations),
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(output) // stdout errors are unrecoverable
}

type jsonDurationMetrics struct {
	Min string `json:"min"`
	Max string `json:"max"`
	Avg string `json:"avg"`
	P50 string `json:"p50"`
	P90 string `json:"p90"`
	P95 string `json:"p95"`
	P99 string `json:"p99"`
}

type jsonScenarioMetrics struct {
	Count     int                 `json:"count"`
	Passed    int                 `json:"passed"`
	Failed    int                 `json:"failed"`
	Errors    int                 `json:"errors,omitempty"`
	Durations jsonDurationMetrics `json:"durations"`
}

func toJSONDurationMetrics(d DurationMetrics) jsonDurationMetrics {
	return jsonDurationMetrics{
		Min: FormatDuration(d.Min),
		Max: FormatDuration(d.Max),
		Avg: FormatDuration(d.Avg),
		P50: FormatDuration(d.P50),
		P90: FormatDuration(d.P90),
		P95: FormatDuration(d.P95),
		P99: FormatDuration(d.P99),
	}
}

func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%d,%03d", n/1000, n%1000)
}
