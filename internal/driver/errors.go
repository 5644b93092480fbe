package driver

import "fmt"

// The error kinds map one-to-one onto the isolation levels the orchestrator
// applies: connection and schema errors skip a backend, operation errors stop
// one scenario's repetitions, timeout errors fail one client's sample.

type ConnectionError struct {
	Backend string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s: connect: %v", e.Backend, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

type SchemaError struct {
	Backend string
	Err     error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: schema: %v", e.Backend, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

type OperationError struct {
	Backend string
	Op      Op
	Err     error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

type TimeoutError struct {
	Backend string
	Client  int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: client %d: batch deadline exceeded", e.Backend, e.Client)
}
