// Package predictor defines the prediction gateway contract and its
// implementations: an in-process estimator over the reference table and a
// client for a remote predictor service.
package predictor

import (
	"context"
	"fmt"
	"math"

	apperrors "github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/errors"
)

// Query is the four selections a prediction is made for.
type Query struct {
	JobTitle   string `json:"job_title"`
	Category   string `json:"category"`
	Experience int    `json:"experience"`
	State      string `json:"state"`
}

// Range is a salary interval in RM.
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Gateway estimates salaries. Implementations must be deterministic for a
// given Query.
type Gateway interface {
	Predict(ctx context.Context, q Query) (float64, error)
	PredictRange(ctx context.Context, q Query) (Range, error)
}

// Estimate is a validated gateway answer.
type Estimate struct {
	Salary float64 `json:"salary"`
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
}

// Run calls Predict and PredictRange exactly once each, with no retry,
// and validates the pair. Any gateway fault or inconsistent answer is
// reported as ErrPredictionUnavailable.
func Run(ctx context.Context, g Gateway, q Query) (Estimate, error) {
	salary, err := g.Predict(ctx, q)
	if err != nil {
		return Estimate{}, fmt.Errorf("%w: point estimate: %v", apperrors.ErrPredictionUnavailable, err)
	}
	rng, err := g.PredictRange(ctx, q)
	if err != nil {
		return Estimate{}, fmt.Errorf("%w: range estimate: %v", apperrors.ErrPredictionUnavailable, err)
	}
	est := Estimate{Salary: salary, Low: rng.Low, High: rng.High}
	if err := Validate(est); err != nil {
		return Estimate{}, err
	}
	return est, nil
}

// Validate checks that every value is finite and low <= salary <= high.
func Validate(e Estimate) error {
	for _, v := range []float64{e.Salary, e.Low, e.High} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value in estimate", apperrors.ErrPredictionUnavailable)
		}
	}
	if e.Low > e.High {
		return fmt.Errorf("%w: range low %.2f above high %.2f", apperrors.ErrPredictionUnavailable, e.Low, e.High)
	}
	if e.Salary < e.Low || e.Salary > e.High {
		return fmt.Errorf("%w: estimate %.2f outside range [%.2f, %.2f]",
			apperrors.ErrPredictionUnavailable, e.Salary, e.Low, e.High)
	}
	return nil
}
