package predictor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/proto"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/rpc"
)

// Register exposes g on s under the predictor method names.
func Register(s *rpc.Server, g Gateway) {
	s.Register(proto.MethodPredict, func(ctx context.Context, raw json.RawMessage) (any, error) {
		q, err := decodeQuery(raw)
		if err != nil {
			return nil, err
		}
		salary, err := g.Predict(ctx, q)
		if err != nil {
			return nil, err
		}
		return proto.PredictResponse{Salary: salary}, nil
	})

	s.Register(proto.MethodPredictRange, func(ctx context.Context, raw json.RawMessage) (any, error) {
		q, err := decodeQuery(raw)
		if err != nil {
			return nil, err
		}
		rng, err := g.PredictRange(ctx, q)
		if err != nil {
			return nil, err
		}
		return proto.RangeResponse{Low: rng.Low, High: rng.High}, nil
	})

	s.Register(proto.MethodHealth, func(ctx context.Context, _ json.RawMessage) (any, error) {
		return proto.HealthCheckResponse{Status: "SERVING"}, nil
	})
}

func decodeQuery(raw json.RawMessage) (Query, error) {
	var req proto.PredictRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return Query{}, fmt.Errorf("decoding predict request: %w", err)
	}
	return Query{
		JobTitle:   req.JobTitle,
		Category:   req.Category,
		Experience: req.Experience,
		State:      req.State,
	}, nil
}
