package bench

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// BackendStats carries per-backend bookkeeping gathered after the battery:
// final row counts per table and the measured index impact.
type BackendStats struct {
	Rows map[string]int64 `json:"rows,omitempty"`
	// IndexImprovementPercent compares the no-index / indexed pair means:
	// (noIndex - indexed) / noIndex * 100. Nil when either cell is missing.
	IndexImprovementPercent *float64 `json:"index_improvement_percent,omitempty"`
}

// Report is the result document written once per run. Field names and units
// (milliseconds, float64) are a stable contract with the downstream report
// renderer.
type Report struct {
	RunID      string                             `json:"run_id"`
	StartedAt  time.Time                          `json:"started_at"`
	FinishedAt time.Time                          `json:"finished_at"`
	Config     any                                `json:"config"`
	Results    map[string]map[string]ResultRecord `json:"results"`
	Throughput []ThroughputRow                    `json:"throughput,omitempty"`
	Stats      map[string]BackendStats            `json:"stats,omitempty"`
	// Skipped maps a backend that failed connect/schema setup to the root
	// cause shared by all of its failed cells.
	Skipped map[string]string `json:"skipped,omitempty"`
}

// Partial reports whether at least one backend was fully skipped.
func (r *Report) Partial() bool { return len(r.Skipped) > 0 }

// Write marshals the report and writes it to path in one shot, creating the
// parent directory if needed. A write failure is fatal to the run.
func (r *Report) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
