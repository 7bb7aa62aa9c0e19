package collector

import (
	"slices"
	"time"
)

// DurationMetrics summarizes how long invocations took.
type DurationMetrics struct {
	Min time.Duration `json:"min"`
	Max time.Duration `json:"max"`
	Avg time.Duration `json:"avg"`
	P50 time.Duration `json:"p50"`
	P90 time.Duration `json:"p90"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
}

// ComputePercentile picks the value at rank p (0..1) of an ascending slice,
// rounding the rank down. Out of range p clamps to the ends.
func ComputePercentile(sorted []time.Duration, p float64) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	rank := int(float64(n-1) * min(max(p, 0), 1))
	return sorted[rank]
}

// ComputeDurationMetrics leaves durations untouched.
func ComputeDurationMetrics(durations []time.Duration) DurationMetrics {
	if len(durations) == 0 {
		return DurationMetrics{}
	}
	sorted := slices.Clone(durations)
	slices.Sort(sorted)

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}
	m := DurationMetrics{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / time.Duration(len(sorted)),
	}
	for _, q := range []struct {
		p   float64
		dst *time.Duration
	}{{0.50, &m.P50}, {0.90, &m.P90}, {0.95, &m.P95}, {0.99, &m.P99}} {
		*q.dst = ComputePercentile(sorted, q.p)
	}
	return m
}
