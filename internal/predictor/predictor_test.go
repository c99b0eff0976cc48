package predictor

import (
	"context"
	"errors"
	"math"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/reference"
	apperrors "github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/rpc"
)

type recordingGateway struct {
	salary       float64
	rng          Range
	predictErr   error
	rangeErr     error
	predictCalls atomic.Int32
	rangeCalls   atomic.Int32
	lastQuery    Query
}

func (g *recordingGateway) Predict(ctx context.Context, q Query) (float64, error) {
	g.predictCalls.Add(1)
	g.lastQuery = q
	return g.salary, g.predictErr
}

func (g *recordingGateway) PredictRange(ctx context.Context, q Query) (Range, error) {
	g.rangeCalls.Add(1)
	return g.rng, g.rangeErr
}

func TestRun_CallsEachMethodOnce(t *testing.T) {
	g := &recordingGateway{salary: 4500, rng: Range{Low: 4000, High: 5200}}
	q := Query{JobTitle: "Accountant", Category: "Finance", Experience: 4, State: "Johor"}

	est, err := Run(context.Background(), g, q)
	require.NoError(t, err)
	assert.Equal(t, Estimate{Salary: 4500, Low: 4000, High: 5200}, est)
	assert.Equal(t, int32(1), g.predictCalls.Load())
	assert.Equal(t, int32(1), g.rangeCalls.Load())
	assert.Equal(t, q, g.lastQuery)
}

func TestRun_FailurePolicy(t *testing.T) {
	tests := []struct {
		name string
		gw   *recordingGateway
	}{
		{"predict error", &recordingGateway{predictErr: errors.New("down")}},
		{"range error", &recordingGateway{salary: 10, rangeErr: errors.New("down")}},
		{"inverted range", &recordingGateway{salary: 5000, rng: Range{Low: 6000, High: 4000}}},
		{"point below range", &recordingGateway{salary: 100, rng: Range{Low: 4000, High: 6000}}},
		{"point above range", &recordingGateway{salary: 9000, rng: Range{Low: 4000, High: 6000}}},
		{"nan salary", &recordingGateway{salary: math.NaN(), rng: Range{Low: 1, High: 2}}},
		{"infinite high", &recordingGateway{salary: 1, rng: Range{Low: 1, High: math.Inf(1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), tt.gw, Query{})
			require.Error(t, err)
			assert.ErrorIs(t, err, apperrors.ErrPredictionUnavailable)
			assert.LessOrEqual(t, tt.gw.predictCalls.Load(), int32(1))
			assert.LessOrEqual(t, tt.gw.rangeCalls.Load(), int32(1))
		})
	}
}

func TestValidate_DegenerateRange(t *testing.T) {
	assert.NoError(t, Validate(Estimate{Salary: 3000, Low: 3000, High: 3000}))
}

func sampleHolder() *reference.Holder {
	return reference.NewStaticHolder(dataset.NewTable([]dataset.Record{
		{JobTitle: "Software Engineer", Category: "Tech", State: "Selangor", AvgSalary: 7000, HasSalary: true},
		{JobTitle: "Software Engineer", Category: "Tech", State: "Selangor", AvgSalary: 9000, HasSalary: true},
		{JobTitle: "Software Engineer", Category: "Tech", State: "Penang", AvgSalary: 6000, HasSalary: true},
		{JobTitle: "Data Analyst", Category: "Tech", State: "Penang", AvgSalary: 5000, HasSalary: true},
		{JobTitle: "Intern", Category: "Tech", State: "Penang", AvgSalary: 1200, HasSalary: true},
		{JobTitle: "Accountant", Category: "Finance", State: "Johor", AvgSalary: 4000, HasSalary: true},
		{JobTitle: "Accountant", Category: "Finance", State: "Johor", HasSalary: false},
	}))
}

func TestTableEstimator_NarrowestCohort(t *testing.T) {
	e := NewTableEstimator(sampleHolder())
	ctx := context.Background()

	q := Query{JobTitle: "Software Engineer", Category: "Tech", Experience: 3, State: "Selangor"}
	salary, err := e.Predict(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 8000.0, salary)

	rng, err := e.PredictRange(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, Range{Low: 7500, High: 8500}, rng)
}

func TestTableEstimator_FallsBackWhenStateMissing(t *testing.T) {
	e := NewTableEstimator(sampleHolder())
	q := Query{JobTitle: "Accountant", Category: "Finance", Experience: 3, State: "Sabah"}
	salary, err := e.Predict(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 4000.0, salary)
}

func TestTableEstimator_ExperienceBands(t *testing.T) {
	e := NewTableEstimator(sampleHolder())
	base := Query{JobTitle: "Accountant", Category: "Finance", State: "Johor"}

	junior, senior := base, base
	junior.Experience = 1
	senior.Experience = 8

	js, err := e.Predict(context.Background(), junior)
	require.NoError(t, err)
	ss, err := e.Predict(context.Background(), senior)
	require.NoError(t, err)
	assert.Equal(t, 3600.0, js)
	assert.Equal(t, 5000.0, ss)
	assert.Equal(t, "senior", e.BandFor(senior).Name)
}

func TestTableEstimator_InternshipNeutral(t *testing.T) {
	e := NewTableEstimator(sampleHolder())
	q := Query{JobTitle: "Intern", Category: "Tech", Experience: 0, State: "Penang"}
	salary, err := e.Predict(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, 1200.0, salary)
}

func TestTableEstimator_RangeContainsPoint(t *testing.T) {
	e := NewTableEstimator(sampleHolder())
	for _, q := range []Query{
		{JobTitle: "Software Engineer", Category: "Tech", Experience: 0, State: "Penang"},
		{JobTitle: "Data Analyst", Category: "Tech", Experience: 10, State: "Selangor"},
		{JobTitle: "Nobody", Category: "Nowhere", Experience: 5, State: "Sabah"},
	} {
		est, err := Run(context.Background(), e, q)
		require.NoError(t, err, q)
		assert.LessOrEqual(t, est.Low, est.Salary)
		assert.LessOrEqual(t, est.Salary, est.High)
	}
}

func TestTableEstimator_NoData(t *testing.T) {
	e := NewTableEstimator(reference.NewStaticHolder(dataset.NewTable(nil)))
	_, err := e.Predict(context.Background(), Query{JobTitle: "X"})
	assert.ErrorIs(t, err, ErrNoReferenceData)
}

func startPredictor(t *testing.T, g Gateway) string {
	t.Helper()
	s := rpc.NewServer()
	Register(s, g)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.ServeListener(ln)
	t.Cleanup(s.Stop)
	return s.Addr().String()
}

func TestRemoteGateway_RoundTrip(t *testing.T) {
	addr := startPredictor(t, NewTableEstimator(sampleHolder()))
	g := NewRemoteGateway(addr, RemoteConfig{Timeout: time.Second})

	q := Query{JobTitle: "Software Engineer", Category: "Tech", Experience: 3, State: "Selangor"}
	est, err := Run(context.Background(), g, q)
	require.NoError(t, err)
	assert.Equal(t, Estimate{Salary: 8000, Low: 7500, High: 8500}, est)

	status, err := g.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "SERVING", status)
}

func TestRemoteGateway_RemoteErrorSurfaces(t *testing.T) {
	addr := startPredictor(t, &recordingGateway{predictErr: errors.New("model not loaded")})
	g := NewRemoteGateway(addr, RemoteConfig{Timeout: time.Second})

	_, err := Run(context.Background(), g, Query{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPredictionUnavailable)
	assert.Contains(t, err.Error(), "model not loaded")
}

type failingCaller struct{ calls atomic.Int32 }

func (c *failingCaller) Call(ctx context.Context, method string, params, result any) error {
	c.calls.Add(1)
	return errors.New("connection refused")
}

func TestRemoteGateway_BreakerOpens(t *testing.T) {
	caller := &failingCaller{}
	g := NewRemoteGatewayWithCaller(caller, RemoteConfig{
		Timeout:          time.Second,
		FailureThreshold: 2,
		ResetTimeout:     time.Minute,
	})

	for i := 0; i < 2; i++ {
		_, err := g.Predict(context.Background(), Query{})
		require.Error(t, err)
	}
	assert.Equal(t, resilience.StateOpen, g.BreakerState())

	_, err := g.Predict(context.Background(), Query{})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(2), caller.calls.Load())
}

type slowCaller struct{}

func (slowCaller) Call(ctx context.Context, method string, params, result any) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRemoteGateway_Timeout(t *testing.T) {
	g := NewRemoteGatewayWithCaller(slowCaller{}, RemoteConfig{Timeout: 50 * time.Millisecond})
	start := time.Now()
	_, err := g.PredictRange(context.Background(), Query{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
