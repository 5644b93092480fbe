// Package scenario defines the static battery of standardized workloads.
// Scenarios are read-only configuration: every backend that completes setup
// executes the identical ordered list against the identical generated
// dataset.
package scenario

import "dbbench/internal/driver"

// Scenario is one named, fixed-shape unit of workload.
type Scenario struct {
	Name string
	// Category groups scenarios that share backend state. The orchestrator
	// resets the backend at each category boundary so scenario order cannot
	// bias later measurements.
	Category string
	Op       driver.Op
	// Cardinality is the operation's target size: rows per batch insert,
	// row limit for selects, keyspace for keyed operations.
	Cardinality int
	Repetitions int
	// Seeded categories run against the fully loaded dataset.
	Seeded bool
	// RequiresIndex scenarios create the battery's indexes before warm-up.
	RequiresIndex bool
	// Concurrent scenarios run under the concurrency harness instead of the
	// single-client runner.
	Concurrent bool
}

// The index pair: same operation, same dataset, measured once before and once
// after index creation, never interleaved.
const (
	SelectSimpleNoIndex = "select-simple-no-index"
	SelectSimpleIndexed = "select-simple-indexed"
)

// Battery returns the full ordered scenario list for a dataset of the given
// size. The order is part of the measurement contract.
func Battery(size, repetitions int) []Scenario {
	limit := 1000
	if size < limit {
		limit = size
	}
	return []Scenario{
		{Name: "bulk-insert", Category: "load", Op: driver.OpInsertBatch,
			Cardinality: size, Repetitions: repetitions},
		{Name: "insert-single", Category: "load", Op: driver.OpInsertOne,
			Cardinality: 1, Repetitions: repetitions},
		{Name: SelectSimpleNoIndex, Category: "read", Op: driver.OpSelectSimple,
			Cardinality: limit, Repetitions: repetitions, Seeded: true},
		{Name: "select-joined", Category: "read", Op: driver.OpSelectJoined,
			Cardinality: limit, Repetitions: repetitions, Seeded: true},
		{Name: SelectSimpleIndexed, Category: "read", Op: driver.OpSelectSimple,
			Cardinality: limit, Repetitions: repetitions, Seeded: true, RequiresIndex: true},
		{Name: "update-by-key", Category: "mutate", Op: driver.OpUpdateByKey,
			Cardinality: size / 2, Repetitions: repetitions, Seeded: true},
		{Name: "delete-by-key", Category: "mutate", Op: driver.OpDeleteByKey,
			Cardinality: size * 2, Repetitions: repetitions, Seeded: true},
		{Name: "concurrent-select", Category: "concurrent", Op: driver.OpSelectSimple,
			Cardinality: limit, Repetitions: repetitions, Seeded: true, Concurrent: true},
		{Name: "concurrent-insert", Category: "concurrent", Op: driver.OpInsertOne,
			Cardinality: 1, Repetitions: repetitions, Seeded: true, Concurrent: true},
	}
}

// Filter keeps the scenarios whose names appear in enabled, preserving
// battery order. An empty enabled set keeps everything.
func Filter(list []Scenario, enabled []string) []Scenario {
	if len(enabled) == 0 {
		return list
	}
	want := make(map[string]bool, len(enabled))
	for _, name := range enabled {
		want[name] = true
	}
	out := make([]Scenario, 0, len(list))
	for _, sc := range list {
		if want[sc.Name] {
			out = append(out, sc)
		}
	}
	return out
}
