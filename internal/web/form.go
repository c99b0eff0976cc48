package web

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/app"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/insights"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/session"
	apperrors "github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/logger"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.New("page.html").Funcs(template.FuncMap{
	"rm": app.FormatRM,
}).ParseFS(templateFS, "templates/page.html"))

// FormConfig configures the HTML form.
type FormConfig struct {
	CookieName  string
	CookieTTL   time.Duration
	FeedbackURL string
	Secure      bool
}

// FormHandler serves the server-rendered form. The session ID lives in a
// cookie; a missing or expired session is replaced with a fresh one.
type FormHandler struct {
	svc    *app.Service
	cfg    FormConfig
	logger *slog.Logger
}

func NewFormHandler(svc *app.Service, cfg FormConfig) *FormHandler {
	if cfg.CookieName == "" {
		cfg.CookieName = "salary_session"
	}
	return &FormHandler{
		svc:    svc,
		cfg:    cfg,
		logger: slog.Default().With("component", "form-handler"),
	}
}

// Bar is one row of a horizontal bar chart.
type Bar struct {
	Label   string
	Value   float64
	Count   int
	Percent float64
}

type pageData struct {
	Tab        string
	View       app.View
	Prediction *app.Prediction
	Error      string
	Feedback   string
	Captions   map[string]string

	Rows         int
	ByState      []Bar
	ByCategory   []Bar
	Distribution []Bar
	TopJobTitles []insights.GroupMean
}

// Page handles GET /.
func (f *FormHandler) Page(w http.ResponseWriter, r *http.Request) {
	v, ok := f.currentView(w, r)
	if !ok {
		return
	}
	f.render(w, r, http.StatusOK, f.data(r, v))
}

// Select handles POST /form/select: it applies all four submitted values.
// A submission carrying an older generation than the session's (a form
// rendered before a reset) is ignored.
func (f *FormHandler) Select(w http.ResponseWriter, r *http.Request) {
	v, ok := f.currentView(w, r)
	if !ok {
		return
	}
	req, ok := f.parse(w, r)
	if !ok {
		return
	}
	if f.staleGeneration(r, v) {
		f.render(w, r, http.StatusOK, f.data(r, v))
		return
	}
	v, err := f.svc.Apply(r.Context(), v.SessionID, app.Selection{
		Category:   req.Category,
		JobTitle:   req.JobTitle,
		Experience: req.Experience,
		Region:     req.State,
	})
	if err != nil {
		f.fail(w, r, err)
		return
	}
	f.render(w, r, http.StatusOK, f.data(r, v))
}

// Predict handles POST /form/predict.
func (f *FormHandler) Predict(w http.ResponseWriter, r *http.Request) {
	v, ok := f.currentView(w, r)
	if !ok {
		return
	}
	d := f.data(r, v)
	p, err := f.svc.Predict(r.Context(), v.SessionID)
	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
			f.fail(w, r, err)
			return
		}
		d.Error = apperrors.Message(err, "prediction is unavailable right now, please try again later")
		f.render(w, r, status, d)
		return
	}
	d.Prediction = &p
	f.render(w, r, http.StatusOK, d)
}

// Reset handles POST /form/reset.
func (f *FormHandler) Reset(w http.ResponseWriter, r *http.Request) {
	v, ok := f.currentView(w, r)
	if !ok {
		return
	}
	v, err := f.svc.Reset(r.Context(), v.SessionID)
	if err != nil {
		f.fail(w, r, err)
		return
	}
	f.render(w, r, http.StatusOK, f.data(r, v))
}

func (f *FormHandler) currentView(w http.ResponseWriter, r *http.Request) (app.View, bool) {
	if c, err := r.Cookie(f.cfg.CookieName); err == nil && session.ValidID(c.Value) {
		v, err := f.svc.View(r.Context(), c.Value)
		if err == nil {
			return v, true
		}
		if !apperrors.Is(err, apperrors.ErrSessionNotFound) {
			f.fail(w, r, err)
			return app.View{}, false
		}
	}
	v, err := f.svc.NewSession(r.Context())
	if err != nil {
		f.fail(w, r, err)
		return app.View{}, false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     f.cfg.CookieName,
		Value:    v.SessionID,
		Path:     "/",
		MaxAge:   int(f.cfg.CookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   f.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return v, true
}

func (f *FormHandler) parse(w http.ResponseWriter, r *http.Request) (FormRequest, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form submission", http.StatusBadRequest)
		return FormRequest{}, false
	}
	req := FormRequest{
		Category: r.PostForm.Get("category"),
		JobTitle: r.PostForm.Get("job_title"),
		State:    r.PostForm.Get("state"),
	}
	if raw := r.PostForm.Get("experience"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "experience must be a whole number", http.StatusBadRequest)
			return FormRequest{}, false
		}
		req.Experience = &n
	}
	if err := validate.Struct(req); err != nil {
		http.Error(w, describeValidation(err), http.StatusBadRequest)
		return FormRequest{}, false
	}
	return req, true
}

func (f *FormHandler) staleGeneration(r *http.Request, v app.View) bool {
	raw := r.PostForm.Get("generation")
	if raw == "" {
		return false
	}
	g, err := strconv.ParseUint(raw, 10, 64)
	return err == nil && g != v.Generation
}

func (f *FormHandler) data(r *http.Request, v app.View) pageData {
	d := pageData{
		Tab:      "predict",
		View:     v,
		Feedback: f.cfg.FeedbackURL,
		Captions: map[string]string{
			"experience": app.ExperienceCaption,
			"actions":    app.ActionsCaption,
			"insights":   app.InsightsCaption,
			"feedback":   app.FeedbackCaption,
		},
	}
	if r.URL.Query().Get("tab") == "insights" {
		d.Tab = "insights"
		if rep, err := f.svc.Insights(); err == nil {
			d.Rows = rep.Rows
			d.ByState = meanBars(rep.ByState)
			d.ByCategory = meanBars(rep.ByCategory)
			d.Distribution = histogramBars(rep.Histogram)
			d.TopJobTitles = rep.TopJobTitles
		} else {
			d.Error = "market insights are unavailable right now"
		}
	}
	return d
}

func meanBars(groups []insights.GroupMean) []Bar {
	maxV := 0.0
	for _, g := range groups {
		if g.Mean > maxV {
			maxV = g.Mean
		}
	}
	bars := make([]Bar, 0, len(groups))
	for _, g := range groups {
		b := Bar{Label: g.Key, Value: g.Mean, Count: g.Count}
		if maxV > 0 {
			b.Percent = 100 * g.Mean / maxV
		}
		bars = append(bars, b)
	}
	return bars
}

func histogramBars(bins []insights.Bin) []Bar {
	maxC := 0
	for _, b := range bins {
		if b.Count > maxC {
			maxC = b.Count
		}
	}
	bars := make([]Bar, 0, len(bins))
	for _, b := range bins {
		bar := Bar{Label: app.FormatRM(b.Low) + " – " + app.FormatRM(b.High), Value: float64(b.Count), Count: b.Count}
		if maxC > 0 {
			bar.Percent = 100 * float64(b.Count) / float64(maxC)
		}
		bars = append(bars, bar)
	}
	return bars
}

func (f *FormHandler) render(w http.ResponseWriter, r *http.Request, status int, d pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, d); err != nil {
		f.logger.Error("rendering form", "error", err, "request_id", logger.RequestID(r.Context()))
	}
}

func (f *FormHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	logger.FromContext(r.Context()).Error("form request failed", "path", r.URL.Path, "status", status, "error", err)
	http.Error(w, http.StatusText(status), status)
}
