package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindsUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")

	var connErr *ConnectionError
	err := error(&ConnectionError{Backend: "postgres", Err: cause})
	assert.True(t, errors.As(err, &connErr))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "postgres")

	var opErr *OperationError
	err = &OperationError{Backend: "mysql", Op: OpInsertBatch, Err: cause}
	assert.True(t, errors.As(err, &opErr))
	assert.Contains(t, err.Error(), string(OpInsertBatch))

	err = &TimeoutError{Backend: "mongo", Client: 3}
	assert.Contains(t, err.Error(), "deadline")
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "(?)", placeholders(1, 1))
	assert.Equal(t, "(?, ?, ?)", placeholders(1, 3))
	assert.Equal(t, "(?, ?), (?, ?)", placeholders(2, 2))
}

func TestIOCtxAppliesDefault(t *testing.T) {
	ctx, cancel := ioCtx(context.Background(), 0)
	defer cancel()
	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(DefaultIOTimeout), deadline, time.Second)
}

func TestIOCtxRespectsTighterParent(t *testing.T) {
	parent, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	ctx, cancel2 := ioCtx(parent, time.Hour)
	defer cancel2()
	deadline, ok := ctx.Deadline()
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(10*time.Millisecond), deadline, time.Second)
}
