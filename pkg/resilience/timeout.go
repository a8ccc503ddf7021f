package resilience

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/content-search/pkg/errors"
)

// TimeoutError reports an operation that ran past its limit. It matches both
// context.DeadlineExceeded and apperrors.ErrTimeout.
type TimeoutError struct {
	Op    string
	Limit time.Duration
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Op, e.Limit)
}

func (e *TimeoutError) Unwrap() []error {
	return []error{e.Err, apperrors.ErrTimeout}
}

// WithTimeout runs fn with a context cancelled after timeout. A zero timeout
// runs fn directly. When the limit is hit first the result is a
// *TimeoutError naming op; fn keeps running in the background until it
// notices its context.
func WithTimeout(ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()

	select {
	case err := <-done:
		// fn may observe its own deadline before the select does.
		if err != nil && ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return &TimeoutError{Op: op, Limit: timeout, Err: err}
		}
		return err
	case <-timeoutCtx.Done():
		if ctx.Err() != nil {
			return fmt.Errorf("%s: caller cancelled: %w", op, ctx.Err())
		}
		return &TimeoutError{Op: op, Limit: timeout, Err: context.DeadlineExceeded}
	}
}
