// Package bench holds the measurement types shared by the runner, the
// concurrency harness and the orchestrator, and the aggregation that turns
// raw samples into the result document.
package bench

import "time"

// Sample is the outcome of one scenario execution against one backend. It is
// immutable after creation; a failed sample keeps its error detail and never
// contributes durations to aggregated statistics.
type Sample struct {
	Backend     string    `json:"backend"`
	Scenario    string    `json:"scenario"`
	Client      int       `json:"client,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	DurationsMs []float64 `json:"durations_ms,omitempty"`
	Succeeded   bool      `json:"succeeded"`
	Error       string    `json:"error,omitempty"`
}

// Failed builds a failed sample carrying err as its detail.
func Failed(backend, scenarioName string, startedAt time.Time, err error) Sample {
	return Sample{
		Backend:   backend,
		Scenario:  scenarioName,
		StartedAt: startedAt,
		Succeeded: false,
		Error:     err.Error(),
	}
}

// ResultRecord is the aggregated view over all samples for one
// (backend, scenario) pair. All latency fields are milliseconds.
type ResultRecord struct {
	Count  int     `json:"count"`
	MeanMs float64 `json:"mean_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
	MinMs  float64 `json:"min_ms"`
	MaxMs  float64 `json:"max_ms"`
	Errors int     `json:"errors"`
}

// LatencySummary is the harness-side latency view built from merged
// per-client histograms. It complements, and is reported alongside, the
// exact per-sample statistics in ResultRecord.
type LatencySummary struct {
	MeanMs float64 `json:"mean_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
	MaxMs  float64 `json:"max_ms"`
}

// ThroughputRow reports one concurrency-harness batch: aggregate throughput
// over the wall-clock span from the first client start to the last finish.
type ThroughputRow struct {
	Backend     string         `json:"backend"`
	Scenario    string         `json:"scenario"`
	Clients     int            `json:"clients"`
	WallClockMs float64        `json:"wall_clock_ms"`
	Operations  int64          `json:"operations"`
	OpsPerSec   float64        `json:"ops_per_sec"`
	Latency     LatencySummary `json:"latency"`
}
