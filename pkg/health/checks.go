package health

import (
	"context"
	"fmt"
)

// PingCheck reports down when ping fails. Use it for hard dependencies.
func PingCheck(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// SoftCheck reports degraded instead of down when ping fails. Use it for
// dependencies the service can run without, such as the usage pipeline.
func SoftCheck(ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) ComponentHealth {
		if err := ping(ctx); err != nil {
			return ComponentHealth{Status: StatusDegraded, Message: err.Error()}
		}
		return ComponentHealth{Status: StatusUp}
	}
}

// RowsCheck reports down until rows returns a positive count.
func RowsCheck(rows func() (int, error)) Check {
	return func(ctx context.Context) ComponentHealth {
		n, err := rows()
		if err != nil {
			return ComponentHealth{Status: StatusDown, Message: err.Error()}
		}
		if n == 0 {
			return ComponentHealth{Status: StatusDegraded, Message: "reference table is empty"}
		}
		return ComponentHealth{Status: StatusUp, Message: fmt.Sprintf("%d rows", n)}
	}
}
