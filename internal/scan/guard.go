package scan

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/hindsightlabs/hindsight/internal/errors"
)

// runGuarded executes fn under a hard wall-clock deadline in a worker
// goroutine. The deadline is acquired on entry and released on every exit
// path; on timeout the worker's eventual result is discarded (the result
// channel is buffered so the worker never blocks) and a Timeout error is
// returned. fn should honor ctx cancellation where it can, but runGuarded
// does not depend on it: a blocked fn only delays its own goroutine.
//
// Nested calls are safe because each call owns its own timer and channel.
func runGuarded[T any](ctx context.Context, timeout time.Duration, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		if stderrors.Is(ctx.Err(), context.Canceled) {
			return zero, ctx.Err()
		}
		return zero, errors.NewTimeout(operation, timeout.Seconds())
	}
}
