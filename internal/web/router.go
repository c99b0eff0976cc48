package web

import (
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/middleware"
)

// RouterConfig carries everything the router mounts. Health, Metrics,
// Limiter and Usage may be nil.
type RouterConfig struct {
	API        *Handler
	Form       *FormHandler
	Health     *health.Checker
	Metrics    *metrics.Metrics
	Limiter    pkgmw.Limiter
	Usage      http.Handler
	AdminToken string
	Timeout    time.Duration
}

// NewRouter builds the HTTP handler with all routes and middleware.
//
// Route table:
//
//	GET    /                                  → HTML form (?tab=insights)
//	POST   /form/select                       → apply form selections
//	POST   /form/predict                      → predict from the form   (rate limited)
//	POST   /form/reset                        → reset the form
//	POST   /api/v1/sessions                   → new session
//	GET    /api/v1/sessions/{id}              → session view
//	PUT    /api/v1/sessions/{id}/category     → select category
//	PUT    /api/v1/sessions/{id}/job-title    → select job title
//	PUT    /api/v1/sessions/{id}/experience   → set experience
//	PUT    /api/v1/sessions/{id}/state        → select state
//	POST   /api/v1/sessions/{id}/reset        → reset
//	POST   /api/v1/sessions/{id}/predict      → predict                 (rate limited)
//	GET    /api/v1/options                    → selectable values
//	GET    /api/v1/insights                   → market insights
//	GET    /api/v1/usage                      → prediction usage stats
//	POST   /api/v1/admin/reload               → reload reference data   (admin token)
//	GET    /health/live, /health/ready        → probes
//
// Middleware chain (outermost first):
//
//	RequestID → Metrics → CORS → Timeout → handler
func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	limited := func(h http.HandlerFunc) http.Handler { return h }
	if cfg.Limiter != nil {
		var onLimited func()
		if cfg.Metrics != nil {
			onLimited = cfg.Metrics.RateLimitedTotal.Inc
		}
		rl := pkgmw.RateLimit(cfg.Limiter, pkgmw.ClientIP, onLimited)
		limited = func(h http.HandlerFunc) http.Handler { return rl(h) }
	}

	if cfg.Health != nil {
		mux.Handle("GET /health/live", cfg.Health.LiveHandler())
		mux.Handle("GET /health/ready", cfg.Health.ReadyHandler())
	}

	// HTML form
	f := cfg.Form
	mux.HandleFunc("GET /{$}", f.Page)
	mux.HandleFunc("POST /form/select", f.Select)
	mux.Handle("POST /form/predict", limited(f.Predict))
	mux.HandleFunc("POST /form/reset", f.Reset)

	// Session API
	h := cfg.API
	mux.HandleFunc("POST /api/v1/sessions", h.CreateSession)
	mux.HandleFunc("GET /api/v1/sessions/{id}", h.GetSession)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/category", h.SetCategory)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/job-title", h.SetJobTitle)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/experience", h.SetExperience)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/state", h.SetState)
	mux.HandleFunc("POST /api/v1/sessions/{id}/reset", h.Reset)
	mux.Handle("POST /api/v1/sessions/{id}/predict", limited(h.Predict))

	// Read-only views
	mux.HandleFunc("GET /api/v1/options", h.Options)
	mux.HandleFunc("GET /api/v1/insights", h.Insights)
	if cfg.Usage != nil {
		mux.Handle("GET /api/v1/usage", cfg.Usage)
	}

	// Admin
	mux.Handle("POST /api/v1/admin/reload", pkgmw.AdminToken(cfg.AdminToken)(http.HandlerFunc(h.Reload)))

	var chain http.Handler = mux
	if cfg.Timeout > 0 {
		chain = pkgmw.Timeout(cfg.Timeout)(chain)
	}
	chain = pkgmw.CORS(pkgmw.DefaultCORSConfig())(chain)
	if cfg.Metrics != nil {
		chain = pkgmw.Metrics(cfg.Metrics)(chain)
	}
	chain = pkgmw.RequestID(chain)

	return chain
}
