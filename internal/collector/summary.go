package collector

import (
	"sort"
	"time"

	"pageflow/internal/core"
)

// Summary is the suite-level view of a run.
type Summary struct {
	// Total counts invocations. Suite errors are not invocations.
	Total       int
	Passed      int
	Failed      int
	SuiteErrors int
	// PassRate is the percentage of invocations that passed.
	PassRate      float64
	SuiteDuration time.Duration
	Durations     DurationMetrics
	Scenarios     map[string]*ScenarioSummary
	// Failures holds failed invocations and suite errors in report order.
	Failures []core.Outcome
}

type ScenarioSummary struct {
	Count     int
	Passed    int
	Failed    int
	Errors    int
	Durations DurationMetrics
}

// Summarize computes a Summary. Pure function, no side effects.
func Summarize(outcomes []core.Outcome, suiteDuration time.Duration) *Summary {
	s := &Summary{
		Scenarios:     make(map[string]*ScenarioSummary),
		SuiteDuration: suiteDuration,
	}

	var all []time.Duration
	perScenario := make(map[string][]time.Duration)
	for _, o := range outcomes {
		sc, ok := s.Scenarios[o.Scenario]
		if !ok {
			sc = &ScenarioSummary{}
			s.Scenarios[o.Scenario] = sc
		}

		switch o.Status {
		case core.StatusError:
			s.SuiteErrors++
			sc.Errors++
			s.Failures = append(s.Failures, o)
			continue
		case core.StatusPassed:
			s.Passed++
			sc.Passed++
		default:
			s.Failed++
			sc.Failed++
			s.Failures = append(s.Failures, o)
		}
		s.Total++
		sc.Count++
		all = append(all, o.Duration)
		perScenario[o.Scenario] = append(perScenario[o.Scenario], o.Duration)
	}

	if s.Total > 0 {
		s.PassRate = float64(s.Passed*100) / float64(s.Total)
	}
	s.Durations = ComputeDurationMetrics(all)
	for name, ds := range perScenario {
		s.Scenarios[name].Durations = ComputeDurationMetrics(ds)
	}
	return s
}

// OK reports whether every invocation passed and no suite error occurred.
func (s *Summary) OK() bool {
	return s.Failed == 0 && s.SuiteErrors == 0
}

// FailureRate is the percentage of invocations that failed.
func (s *Summary) FailureRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Failed*100) / float64(s.Total)
}

// ScenarioNames returns the scenario names in sorted order.
func (s *Summary) ScenarioNames() []string {
	names := make([]string, 0, len(s.Scenarios))
	for name := range s.Scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
