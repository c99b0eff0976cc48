package predictor

import (
	"context"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/rpc"
)

// Caller is the subset of the RPC client used by RemoteGateway.
type Caller interface {
	Call(ctx context.Context, method string, params any, result any) error
}

// RemoteConfig tunes the fault handling around a remote predictor.
// OnBreakerChange is passed through to the circuit breaker.
type RemoteConfig struct {
	Timeout          time.Duration
	FailureThreshold int
	ResetTimeout     time.Duration
	OnBreakerChange  func(name string, from, to resilience.State)
}

// RemoteGateway forwards predictions to a predictor service over RPC. Each
// call is bounded by a timeout and guarded by a circuit breaker; a failed
// call is never retried.
type RemoteGateway struct {
	caller  Caller
	breaker *resilience.CircuitBreaker
	timeout time.Duration
	logger  *slog.Logger
}

// NewRemoteGateway returns a gateway that dials addr lazily.
func NewRemoteGateway(addr string, cfg RemoteConfig) *RemoteGateway {
	return NewRemoteGatewayWithCaller(rpc.NewClient(addr), cfg)
}

func NewRemoteGatewayWithCaller(caller Caller, cfg RemoteConfig) *RemoteGateway {
	return &RemoteGateway{
		caller: caller,
		breaker: resilience.NewCircuitBreaker("predictor", resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.FailureThreshold,
			ResetTimeout:     cfg.ResetTimeout,
			OnStateChange:    cfg.OnBreakerChange,
		}),
		timeout: cfg.Timeout,
		logger:  slog.Default().With("component", "predictor-client"),
	}
}

func (g *RemoteGateway) Predict(ctx context.Context, q Query) (float64, error) {
	var resp proto.PredictResponse
	if err := g.call(ctx, proto.MethodPredict, q, &resp); err != nil {
		return 0, err
	}
	return resp.Salary, nil
}

func (g *RemoteGateway) PredictRange(ctx context.Context, q Query) (Range, error) {
	var resp proto.RangeResponse
	if err := g.call(ctx, proto.MethodPredictRange, q, &resp); err != nil {
		return Range{}, err
	}
	return Range{Low: resp.Low, High: resp.High}, nil
}

// Health asks the remote service for its serving status.
func (g *RemoteGateway) Health(ctx context.Context) (string, error) {
	var resp proto.HealthCheckResponse
	err := resilience.WithTimeout(ctx, g.timeout, proto.MethodHealth, func(ctx context.Context) error {
		return g.caller.Call(ctx, proto.MethodHealth, struct{}{}, &resp)
	})
	return resp.Status, err
}

// BreakerState reports the circuit breaker phase.
func (g *RemoteGateway) BreakerState() resilience.State {
	return g.breaker.GetState()
}

func (g *RemoteGateway) call(ctx context.Context, method string, q Query, result any) error {
	req := proto.PredictRequest{
		JobTitle:   q.JobTitle,
		Category:   q.Category,
		Experience: q.Experience,
		State:      q.State,
	}
	err := g.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, g.timeout, method, func(ctx context.Context) error {
			return g.caller.Call(ctx, method, req, result)
		})
	})
	if err != nil {
		g.logger.Warn("predictor call failed", "method", method, "error", err)
	}
	return err
}
