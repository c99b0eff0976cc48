package web

import (
	"net"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/app"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/predictor"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/reference"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/session"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/usage"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/rpc"
)

// TestFormOverRemotePredictor wires the form to a predictor service over
// loopback RPC, then stops the predictor and checks the form degrades to the
// unavailable message.
func TestFormOverRemotePredictor(t *testing.T) {
	holder := reference.NewStaticHolder(dataset.NewTable(testRows))

	rpcServer := rpc.NewServer()
	predictor.Register(rpcServer, predictor.NewTableEstimator(holder))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go rpcServer.ServeListener(ln)
	stopped := false
	t.Cleanup(func() {
		if !stopped {
			rpcServer.Stop()
		}
	})

	remote := predictor.NewRemoteGateway(rpcServer.Addr().String(), predictor.RemoteConfig{
		Timeout:          time.Second,
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
	})

	m := metrics.New(prometheus.NewRegistry())
	agg := usage.NewAggregator(nil)
	svc := app.NewService(app.Deps{
		Snapshots:   holder,
		Sessions:    session.NewMemoryStore(time.Hour),
		Gateway:     remote,
		GatewayName: "rpc",
		Tracker:     agg,
		Metrics:     m,
	})
	checker := health.NewChecker()
	checker.Register("dataset", health.RowsCheck(svc.RowCount))

	s := &testServer{
		metrics: m,
		handler: NewRouter(RouterConfig{
			API:     NewHandler(svc),
			Form:    NewFormHandler(svc, FormConfig{CookieTTL: time.Hour}),
			Health:  checker,
			Metrics: m,
			Usage:   http.HandlerFunc(usage.NewHandler(agg, nil).Stats),
		}),
	}
	c := &formClient{s: s}
	c.get("/")

	rec := c.post("/form/select", url.Values{
		"category":   {"Finance"},
		"job_title":  {"Accountant"},
		"experience": {"4"},
		"state":      {"Johor"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = c.post("/form/predict", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Predicted Salary: RM 4,500")

	rpcServer.Stop()
	stopped = true

	rec = c.post("/form/predict", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "prediction is unavailable right now, please try again later")
	// the selection survives the failed prediction
	assert.Contains(t, rec.Body.String(), `<option value="Accountant" selected>`)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictionsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictionsTotal.WithLabelValues("unavailable")))
	assert.Equal(t, int64(2), agg.Stats().TotalPredictions)

	rec = s.do(t, http.MethodGet, "/api/v1/usage", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_predictions":2`)

	rec = s.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
