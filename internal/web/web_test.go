package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/app"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/dataset"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/insights"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/predictor"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/reference"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/session"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/middleware"
)

var testRows = []dataset.Record{
	{JobTitle: "Software Engineer", Category: "Tech", State: "Selangor", AvgSalary: 8000, HasSalary: true},
	{JobTitle: "Software Engineer", Category: "Tech", State: "Penang", AvgSalary: 6000, HasSalary: true},
	{JobTitle: "Intern", Category: "Tech", State: "Selangor", AvgSalary: 1200, HasSalary: true},
	{JobTitle: "Accountant", Category: "Finance", State: "Johor", AvgSalary: 4500, HasSalary: true},
}

type testServer struct {
	handler http.Handler
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, limiter pkgmw.Limiter) *testServer {
	t.Helper()
	holder := reference.NewStaticHolder(dataset.NewTable(testRows))
	m := metrics.New(prometheus.NewRegistry())
	svc := app.NewService(app.Deps{
		Snapshots: holder,
		Sessions:  session.NewMemoryStore(time.Hour),
		Gateway:   predictor.NewTableEstimator(holder),
		Metrics:   m,
	})
	return &testServer{
		metrics: m,
		handler: NewRouter(RouterConfig{
			API:        NewHandler(svc),
			Form:       NewFormHandler(svc, FormConfig{CookieTTL: time.Hour, FeedbackURL: "https://example.com/feedback"}),
			Metrics:    m,
			Limiter:    limiter,
			AdminToken: "s3cret",
			Timeout:    5 * time.Second,
		}),
	}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) app.View {
	t.Helper()
	var v app.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestSessionAPI_FullFlow(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	v := decodeView(t, rec)
	assert.NotEmpty(t, rec.Header().Get(pkgmw.RequestIDHeader))
	base := "/api/v1/sessions/" + v.SessionID

	steps := []struct{ path, body string }{
		{base + "/category", `{"category":"Tech"}`},
		{base + "/job-title", `{"job_title":"Software Engineer"}`},
		{base + "/experience", `{"experience":5}`},
		{base + "/state", `{"state":"Selangor"}`},
	}
	for _, st := range steps {
		rec = s.do(t, http.MethodPut, st.path, st.body)
		require.Equal(t, http.StatusOK, rec.Code, st.path)
	}
	v = decodeView(t, rec)
	assert.True(t, v.Ready)
	assert.Equal(t, 5, v.Selected.Experience)

	rec = s.do(t, http.MethodPost, base+"/predict", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var p app.Prediction
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&p))
	assert.Equal(t, 8000.0, p.Salary)
	assert.LessOrEqual(t, p.Low, p.Salary)
	assert.GreaterOrEqual(t, p.High, p.Salary)
	assert.Equal(t, "Predicted Salary: RM 8,000", p.SalaryText)

	rec = s.do(t, http.MethodPost, base+"/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)
	v = decodeView(t, rec)
	assert.False(t, v.Ready)
	assert.Equal(t, uint64(1), v.Generation)
}

func TestSessionAPI_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/v1/sessions/not-a-uuid", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/sessions/"+session.NewID(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "session not found or expired")

	rec = s.do(t, http.MethodPost, "/api/v1/sessions", "")
	id := decodeView(t, rec).SessionID

	rec = s.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/experience", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/category", `{"colour":"red"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/predict", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSessionAPI_ExperienceClamped(t *testing.T) {
	s := newTestServer(t, nil)
	id := decodeView(t, s.do(t, http.MethodPost, "/api/v1/sessions", "")).SessionID

	rec := s.do(t, http.MethodPut, "/api/v1/sessions/"+id+"/experience", `{"experience":42}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 10, decodeView(t, rec).Selected.Experience)
}

func TestReadOnlyViews(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodGet, "/api/v1/options", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var o app.Options
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&o))
	assert.Equal(t, []string{"Intern", "Software Engineer"}, o.CategoryToJobs["Tech"])

	rec = s.do(t, http.MethodGet, "/api/v1/insights", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Selangor")
}

func TestAdminReload_RequiresToken(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, http.MethodPost, "/api/v1/admin/reload", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/reload", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	// a static holder has no source to reload from
	assert.NotEqual(t, http.StatusUnauthorized, rec.Code)
	assert.NotEqual(t, http.StatusOK, rec.Code)
}

func TestPredict_RateLimited(t *testing.T) {
	limiter := ratelimit.New(1, time.Minute)
	t.Cleanup(limiter.Stop)
	s := newTestServer(t, limiter)
	id := decodeView(t, s.do(t, http.MethodPost, "/api/v1/sessions", "")).SessionID

	rec := s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/predict", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/predict", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.RateLimitedTotal))
}

// formClient keeps the session cookie between form requests.
type formClient struct {
	s      *testServer
	cookie *http.Cookie
}

func (c *formClient) get(path string) *httptest.ResponseRecorder {
	return c.send(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *formClient) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.send(req)
}

func (c *formClient) send(req *http.Request) *httptest.ResponseRecorder {
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rec := httptest.NewRecorder()
	c.s.handler.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "salary_session" {
			c.cookie = ck
		}
	}
	return rec
}

func TestForm_PageSetsCookie(t *testing.T) {
	c := &formClient{s: newTestServer(t, nil)}
	rec := c.get("/")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, c.cookie)
	assert.True(t, session.ValidID(c.cookie.Value))
	assert.True(t, c.cookie.HttpOnly)

	body := rec.Body.String()
	assert.Contains(t, body, "-- Select category --")
	assert.Contains(t, body, `<button type="submit" disabled>Predict</button>`)
	assert.Contains(t, body, `href="https://example.com/feedback"`)

	first := c.cookie.Value
	c.get("/")
	assert.Equal(t, first, c.cookie.Value)
}

func TestForm_SelectAndPredict(t *testing.T) {
	c := &formClient{s: newTestServer(t, nil)}
	c.get("/")

	rec := c.post("/form/select", url.Values{
		"generation": {"0"},
		"category":   {"Tech"},
		"job_title":  {"Software Engineer"},
		"experience": {"5"},
		"state":      {"Selangor"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<option value="Tech" selected>`)
	assert.Contains(t, body, `<option value="Selangor" selected>`)
	assert.Contains(t, body, `<button type="submit">Predict</button>`)

	rec = c.post("/form/predict", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Predicted Salary: RM 8,000")
	assert.Contains(t, rec.Body.String(), "This is an estimated salary.")
}

func TestForm_InternshipLocksExperience(t *testing.T) {
	c := &formClient{s: newTestServer(t, nil)}
	c.get("/")

	rec := c.post("/form/select", url.Values{
		"category":   {"Tech"},
		"job_title":  {"Intern"},
		"experience": {"7"},
		"state":      {"Penang"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `<input type="number" id="experience" value="0" disabled>`)
	assert.Contains(t, body, "Internship experience is always 0 years.")
}

func TestForm_LeavingInternshipRestoresDefaultExperience(t *testing.T) {
	c := &formClient{s: newTestServer(t, nil)}
	c.get("/")

	rec := c.post("/form/select", url.Values{
		"category":   {"Tech"},
		"job_title":  {"Software Engineer"},
		"experience": {"7"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `step="1" value="7"`)

	// the locked input is disabled, so the browser posts no experience
	rec = c.post("/form/select", url.Values{
		"category":  {"Tech"},
		"job_title": {"Intern"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<input type="number" id="experience" value="0" disabled>`)

	rec = c.post("/form/select", url.Values{
		"category":  {"Tech"},
		"job_title": {"Software Engineer"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `name="experience" min="0" max="10" step="1" value="3"`)
	assert.NotContains(t, body, `value="0" disabled`)
}

func TestForm_StaleGenerationIgnored(t *testing.T) {
	c := &formClient{s: newTestServer(t, nil)}
	c.get("/")

	rec := c.post("/form/reset", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `name="generation" value="1"`)

	// a form rendered before the reset
	rec = c.post("/form/select", url.Values{
		"generation": {"0"},
		"category":   {"Finance"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `<option value="Finance" selected>`)
}

func TestForm_PredictNotReady(t *testing.T) {
	c := &formClient{s: newTestServer(t, nil)}
	c.get("/")

	rec := c.post("/form/predict", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "select a category, job title and state first")
}

func TestForm_InvalidExperience(t *testing.T) {
	c := &formClient{s: newTestServer(t, nil)}
	c.get("/")

	rec := c.post("/form/select", url.Values{"experience": {"lots"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForm_InsightsTab(t *testing.T) {
	c := &formClient{s: newTestServer(t, nil)}
	rec := c.get("/?tab=insights")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "Top paying job titles")
	assert.Contains(t, body, "Insights based on historical job salary data.")
	assert.Contains(t, body, "<td>Software Engineer</td><td>RM 7,000</td>")
	assert.NotContains(t, body, `id="predict"`)
}

func TestMeanBars_ScalesToLargest(t *testing.T) {
	bars := meanBars([]insights.GroupMean{
		{Key: "Selangor", Mean: 8000, Count: 2},
		{Key: "Johor", Mean: 2000, Count: 1},
	})
	require.Len(t, bars, 2)
	assert.Equal(t, 100.0, bars[0].Percent)
	assert.Equal(t, 25.0, bars[1].Percent)

	hist := histogramBars([]insights.Bin{{Low: 1000, High: 2000, Count: 4}, {Low: 2000, High: 3000, Count: 1}})
	require.Len(t, hist, 2)
	assert.Equal(t, "RM 1,000 – RM 2,000", hist[0].Label)
	assert.Equal(t, 25.0, hist[1].Percent)
}
