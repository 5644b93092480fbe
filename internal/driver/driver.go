// Package driver defines the capability contract every storage backend must
// satisfy, and implements it for postgres, mysql, mongo and sqlite. The
// orchestration layers are generic over Driver and never branch on backend
// identity; adding a backend means adding one implementation here.
package driver

import (
	"context"
	"time"

	"dbbench/internal/workload"
)

// Op is the closed operation vocabulary. Every backend executes every Op in
// its own fastest idiomatic way; the contract equalizes workload shape, not
// query plans.
type Op string

const (
	OpInsertOne    Op = "insert-one"
	OpInsertBatch  Op = "insert-batch"
	OpSelectSimple Op = "select-simple"
	OpSelectJoined Op = "select-joined"
	OpUpdateByKey  Op = "update-by-key"
	OpDeleteByKey  Op = "delete-by-key"
)

// Payload carries the inputs for one Execute call. Which fields are consulted
// depends on the Op: batch inserts read the slices, insert-one reads
// Customer, keyed operations read Key, selects read City and Limit.
type Payload struct {
	Customers []workload.Customer
	Products  []workload.Product
	Orders    []workload.Order
	Customer  *workload.Customer
	Key       int64
	City      string
	Limit     int
}

// Handle is one client's session with a backend. Handles are acquired per
// simulated client and never shared between concurrent clients; Close must be
// safe to call exactly once regardless of the session's fate.
type Handle interface {
	Close(ctx context.Context) error
}

// Driver is the backend capability contract.
//
// Execute times the operation itself (connection setup excluded) with the
// monotonic clock and returns the elapsed duration at sub-millisecond
// resolution. Drivers never retry: a failed operation is reported, not
// masked. Every call applies the driver's I/O ceiling as a context deadline
// so a hung backend cannot stall a run indefinitely.
type Driver interface {
	Name() string
	Connect(ctx context.Context) (Handle, error)
	ApplySchema(ctx context.Context, h Handle) error
	// Reset returns the backend to an empty-but-schema-present state, so a
	// scenario category never inherits row counts from a previous one.
	Reset(ctx context.Context, h Handle) error
	CreateIndexes(ctx context.Context, h Handle) error
	Execute(ctx context.Context, h Handle, op Op, p *Payload) (time.Duration, error)
	CountRows(ctx context.Context, h Handle, table string) (int64, error)
}

// DefaultIOTimeout bounds a single blocking driver call when the
// configuration does not override it.
const DefaultIOTimeout = 5 * time.Second

// Tables lists the dataset tables in load order; orders must come last so
// foreign keys always resolve on backends that enforce them.
var Tables = []string{"customers", "products", "orders"}

func ioCtx(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultIOTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
