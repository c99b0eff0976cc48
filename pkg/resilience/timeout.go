package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/errors"
)

// WithTimeout bounds fn to timeout. It returns as soon as the limit passes
// even if fn ignores its context; fn's late result is discarded. A timeout
// matches both apperrors.ErrTimeout and context.DeadlineExceeded. A
// non-positive timeout runs fn unbounded.
func WithTimeout(ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(tctx) }()

	select {
	case err := <-done:
		if err != nil && tctx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return timeoutError(op, timeout)
		}
		return err
	case <-tctx.Done():
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return timeoutError(op, timeout)
	}
}

func timeoutError(op string, limit time.Duration) error {
	return fmt.Errorf("%s after %v: %w: %w", op, limit, apperrors.ErrTimeout, context.DeadlineExceeded)
}
