package ext

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TimeoutError reports a hook that exceeded its deadline. It is
// distinguishable from ordinary hook failures so callers can treat
// slow plugins differently from broken ones.
type TimeoutError struct {
	Extension string
	Step      string
	Limit     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("extension %q timed out after %s, step %q", e.Extension, e.Limit, e.Step)
}

// IsTimeout reports whether err is (or wraps) a hook timeout.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// run executes one hook under the configured deadline. The hook runs
// in its own goroutine with a cancellable context; a hook that keeps
// running after cancellation is abandoned, and the caller aborts
// composition so its late writes can never reach a persisted kard.
func (x *Extensions) run(ctx context.Context, name, step string, fn func(context.Context) error) error {
	hctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(hctx)
	}()

	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return &TimeoutError{Extension: name, Step: step, Limit: x.timeout}
		}
		return fmt.Errorf("extension %q, step %q: %w", name, step, err)
	case <-hctx.Done():
		if errors.Is(hctx.Err(), context.DeadlineExceeded) {
			return &TimeoutError{Extension: name, Step: step, Limit: x.timeout}
		}
		return fmt.Errorf("extension %q, step %q: %w", name, step, hctx.Err())
	}
}
