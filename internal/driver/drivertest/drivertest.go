// Package drivertest provides a scripted in-memory implementation of the
// driver contract. Tests use it to exercise the runner, the concurrency
// harness and the orchestrator without any backend process, injecting
// failures and latency where a scenario needs them.
package drivertest

import (
	"context"
	"sync"
	"time"

	"dbbench/internal/driver"
)

type Driver struct {
	BackendName string

	// Failure injection. Zero values mean "behave".
	ConnectErr error
	// ConnectErrOnCall fails specific Connect invocations (1-based count).
	ConnectErrOnCall map[int]error
	SchemaErr        error
	OpErrs           map[driver.Op]error
	// FailExecuteAfter fails every Execute once the total successful call
	// count reaches it. 0 disables.
	FailExecuteAfter int

	// Elapsed is the duration Execute reports. Delay is how long Execute
	// actually blocks (observing ctx), for deadline tests.
	Elapsed time.Duration
	Delay   time.Duration

	mu          sync.Mutex
	connects    int
	openHandles int
	executes    map[driver.Op]int
	resets      int
	indexed     bool
	indexBuilds int
	rows        map[string]int64
}

type handle struct {
	d      *Driver
	closed bool
	mu     sync.Mutex
}

func (h *handle) Close(context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.closed {
		h.closed = true
		h.d.mu.Lock()
		h.d.openHandles--
		h.d.mu.Unlock()
	}
	return nil
}

func (d *Driver) Name() string {
	if d.BackendName == "" {
		return "fake"
	}
	return d.BackendName
}

func (d *Driver) Connect(context.Context) (driver.Handle, error) {
	d.mu.Lock()
	d.connects++
	call := d.connects
	d.mu.Unlock()
	if d.ConnectErr != nil {
		return nil, &driver.ConnectionError{Backend: d.Name(), Err: d.ConnectErr}
	}
	if err := d.ConnectErrOnCall[call]; err != nil {
		return nil, &driver.ConnectionError{Backend: d.Name(), Err: err}
	}
	d.mu.Lock()
	d.openHandles++
	d.mu.Unlock()
	return &handle{d: d}, nil
}

func (d *Driver) ApplySchema(context.Context, driver.Handle) error {
	if d.SchemaErr != nil {
		return &driver.SchemaError{Backend: d.Name(), Err: d.SchemaErr}
	}
	return nil
}

func (d *Driver) Reset(context.Context, driver.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets++
	d.rows = map[string]int64{}
	// Real drivers drop the battery's indexes on reset too.
	d.indexed = false
	return nil
}

func (d *Driver) CreateIndexes(context.Context, driver.Handle) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.indexed = true
	d.indexBuilds++
	return nil
}

func (d *Driver) Execute(ctx context.Context, _ driver.Handle, op driver.Op, p *driver.Payload) (time.Duration, error) {
	if d.Delay > 0 {
		select {
		case <-time.After(d.Delay):
		case <-ctx.Done():
			return 0, &driver.OperationError{Backend: d.Name(), Op: op, Err: ctx.Err()}
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err, ok := d.OpErrs[op]; ok && err != nil {
		return 0, &driver.OperationError{Backend: d.Name(), Op: op, Err: err}
	}
	total := 0
	for _, n := range d.executes {
		total += n
	}
	if d.FailExecuteAfter > 0 && total >= d.FailExecuteAfter {
		return 0, &driver.OperationError{Backend: d.Name(), Op: op, Err: context.Canceled}
	}
	if d.executes == nil {
		d.executes = map[driver.Op]int{}
	}
	if d.rows == nil {
		d.rows = map[string]int64{}
	}
	d.executes[op]++

	switch op {
	case driver.OpInsertOne:
		d.rows["customers"]++
	case driver.OpInsertBatch:
		d.rows["customers"] += int64(len(p.Customers))
		d.rows["products"] += int64(len(p.Products))
		d.rows["orders"] += int64(len(p.Orders))
	case driver.OpDeleteByKey:
		if d.rows["orders"] > 0 {
			d.rows["orders"]--
		}
	}

	if d.Elapsed > 0 {
		return d.Elapsed, nil
	}
	return time.Millisecond, nil
}

func (d *Driver) CountRows(_ context.Context, _ driver.Handle, table string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rows[table], nil
}

// Inspection helpers for test assertions.

func (d *Driver) Connects() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects
}

func (d *Driver) OpenHandles() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openHandles
}

func (d *Driver) ExecCount(op driver.Op) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.executes[op]
}

func (d *Driver) Resets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resets
}

func (d *Driver) Indexed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.indexed
}

func (d *Driver) IndexBuilds() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.indexBuilds
}
