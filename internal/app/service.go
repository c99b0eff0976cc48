// Package app is the salary form's application layer. Each operation loads
// a session, applies one selection transition against the current reference
// snapshot, saves the result and returns a fresh View.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/insights"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/predictor"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/reference"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/selection"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/session"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/usage"
	apperrors "github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/tracing"
)

// Snapshots is the reference data the service reads and reloads.
type Snapshots interface {
	Current() (*reference.Snapshot, error)
	Reload(ctx context.Context) (*reference.Snapshot, error)
}

// Deps wires a Service. Tracker may be nil.
type Deps struct {
	Snapshots   Snapshots
	Sessions    session.Store
	Gateway     predictor.Gateway
	GatewayName string
	Tracker     usage.Tracker
	Metrics     *metrics.Metrics
}

type Service struct {
	snapshots   Snapshots
	sessions    session.Store
	gateway     predictor.Gateway
	gatewayName string
	tracker     usage.Tracker
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func NewService(d Deps) *Service {
	name := d.GatewayName
	if name == "" {
		name = "table"
	}
	return &Service{
		snapshots:   d.Snapshots,
		sessions:    d.Sessions,
		gateway:     d.Gateway,
		gatewayName: name,
		tracker:     d.Tracker,
		metrics:     d.Metrics,
		logger:      slog.Default().With("component", "salary-service"),
	}
}

// View is everything a client needs to render the form.
type View struct {
	SessionID      string                    `json:"session_id"`
	Categories     []string                  `json:"categories"`
	JobTitles      []string                  `json:"job_titles"`
	States         []string                  `json:"states"`
	Selected       selection.Resolved        `json:"selected"`
	Experience     selection.ExperienceInput `json:"experience"`
	Ready          bool                      `json:"ready"`
	Generation     uint64                    `json:"generation"`
	DatasetVersion uint64                    `json:"dataset_version"`
}

// Options lists the selectable values, each led by its placeholder.
type Options struct {
	Categories     []string            `json:"categories"`
	States         []string            `json:"states"`
	CategoryToJobs map[string][]string `json:"category_to_jobs"`
	DatasetVersion uint64              `json:"dataset_version"`
}

// NewSession starts a session with the default selection.
func (s *Service) NewSession(ctx context.Context) (View, error) {
	id := session.NewID()
	st := selection.New()
	if err := s.sessions.Save(ctx, id, st); err != nil {
		return View{}, fmt.Errorf("creating session: %w", err)
	}
	logger.FromContext(ctx).Info("session created", "session_id", id)
	return s.view(id, st)
}

// View returns the current view of session id.
func (s *Service) View(ctx context.Context, id string) (View, error) {
	st, err := s.load(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.view(id, st)
}

func (s *Service) SetCategory(ctx context.Context, id, category string) (View, error) {
	return s.update(ctx, id, "category", func(st selection.State, _ *catalog.Catalog) selection.State {
		return selection.SetCategory(st, category)
	})
}

func (s *Service) SetJobTitle(ctx context.Context, id, jobTitle string) (View, error) {
	return s.update(ctx, id, "job_title", func(st selection.State, c *catalog.Catalog) selection.State {
		return selection.SetJobTitle(st, jobTitle, c)
	})
}

func (s *Service) SetExperience(ctx context.Context, id string, years int) (View, error) {
	return s.update(ctx, id, "experience", func(st selection.State, c *catalog.Catalog) selection.State {
		return selection.SetExperience(st, years, c)
	})
}

func (s *Service) SetRegion(ctx context.Context, id, region string) (View, error) {
	return s.update(ctx, id, "state", func(st selection.State, _ *catalog.Catalog) selection.State {
		return selection.SetRegion(st, region)
	})
}

// Reset clears every selection and bumps the session's generation.
func (s *Service) Reset(ctx context.Context, id string) (View, error) {
	return s.update(ctx, id, "reset", func(st selection.State, _ *catalog.Catalog) selection.State {
		return selection.Reset(st)
	})
}

// Selection is a batch of form values applied in dependency order:
// category, job title, experience, then state. A nil Experience keeps the
// stored value; the form omits it while the input is locked.
type Selection struct {
	Category   string
	JobTitle   string
	Experience *int
	Region     string
}

// Apply sets all four selections at once, as the HTML form submits them.
func (s *Service) Apply(ctx context.Context, id string, sel Selection) (View, error) {
	return s.update(ctx, id, "form", func(st selection.State, c *catalog.Catalog) selection.State {
		st = selection.SetCategory(st, sel.Category)
		st = selection.SetJobTitle(st, sel.JobTitle, c)
		if sel.Experience != nil {
			st = selection.SetExperience(st, *sel.Experience, c)
		}
		return selection.SetRegion(st, sel.Region)
	})
}

// Options returns the selectable values from the current snapshot.
func (s *Service) Options() (Options, error) {
	snap, err := s.snapshots.Current()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Categories:     withPlaceholder(selection.NoCategory, snap.Catalog.Categories),
		States:         withPlaceholder(selection.NoState, snap.Catalog.States),
		CategoryToJobs: snap.Catalog.CategoryToJobs,
		DatasetVersion: snap.Version,
	}, nil
}

// Insights recomputes the market views over the current table.
func (s *Service) Insights() (insights.Report, error) {
	snap, err := s.snapshots.Current()
	if err != nil {
		return insights.Report{}, err
	}
	return insights.Build(snap.Table), nil
}

// Reload swaps in a freshly loaded reference table. On failure the previous
// table keeps serving.
func (s *Service) Reload(ctx context.Context) (*reference.Snapshot, error) {
	return s.snapshots.Reload(ctx)
}

// RowCount reports the size of the active table, for health checks.
func (s *Service) RowCount() (int, error) {
	snap, err := s.snapshots.Current()
	if err != nil {
		return 0, err
	}
	return snap.Table.Len(), nil
}

func (s *Service) update(ctx context.Context, id, kind string,
	fn func(selection.State, *catalog.Catalog) selection.State) (View, error) {
	snap, err := s.snapshots.Current()
	if err != nil {
		return View{}, err
	}
	st, err := s.load(ctx, id)
	if err != nil {
		return View{}, err
	}
	st = fn(st, snap.Catalog)
	if err := s.sessions.Save(ctx, id, st); err != nil {
		return View{}, fmt.Errorf("saving session: %w", err)
	}
	if s.metrics != nil {
		s.metrics.TransitionsTotal.WithLabelValues(kind).Inc()
	}
	return buildView(id, st, snap), nil
}

func (s *Service) load(ctx context.Context, id string) (selection.State, error) {
	st, err := s.sessions.Get(ctx, id)
	if s.metrics != nil {
		result := "hit"
		if err != nil {
			result = "miss"
		}
		s.metrics.SessionLookupsTotal.WithLabelValues(result).Inc()
	}
	if err != nil {
		if apperrors.Is(err, apperrors.ErrSessionNotFound) {
			return selection.State{}, apperrors.New(apperrors.ErrSessionNotFound, http.StatusNotFound, "session not found or expired")
		}
		return selection.State{}, fmt.Errorf("loading session: %w", err)
	}
	return st, nil
}

func (s *Service) view(id string, st selection.State) (View, error) {
	snap, err := s.snapshots.Current()
	if err != nil {
		return View{}, err
	}
	return buildView(id, st, snap), nil
}

func buildView(id string, st selection.State, snap *reference.Snapshot) View {
	c := snap.Catalog
	resolved := selection.Resolve(st, c)
	return View{
		SessionID:      id,
		Categories:     withPlaceholder(selection.NoCategory, c.Categories),
		JobTitles:      withPlaceholder(selection.NoJobTitle, c.ValidJobTitles(resolved.Category)),
		States:         withPlaceholder(selection.NoState, c.States),
		Selected:       resolved,
		Experience:     selection.ExperienceControl(st, c),
		Ready:          resolved.Ready,
		Generation:     st.Generation,
		DatasetVersion: snap.Version,
	}
}

func withPlaceholder(placeholder string, values []string) []string {
	out := make([]string, 0, len(values)+1)
	out = append(out, placeholder)
	return append(out, values...)
}

// Prediction is a validated estimate with its display copy.
type Prediction struct {
	Salary     float64         `json:"salary"`
	Low        float64         `json:"low"`
	High       float64         `json:"high"`
	SalaryText string          `json:"salary_text"`
	RangeText  string          `json:"range_text"`
	Summary    string          `json:"summary"`
	Disclaimer string          `json:"disclaimer"`
	Query      predictor.Query `json:"query"`
}

// Predict asks the gateway for an estimate of the session's resolved
// selection. It fails with ErrNotReady unless category, job title and state
// are all set, and with ErrPredictionUnavailable for any gateway fault. The
// session itself is not modified.
func (s *Service) Predict(ctx context.Context, id string) (Prediction, error) {
	ctx, span := tracing.StartSpan(ctx, "predict", logger.RequestID(ctx))
	defer span.Finish()

	snap, err := s.snapshots.Current()
	if err != nil {
		span.SetError(err)
		return Prediction{}, err
	}
	st, err := s.load(ctx, id)
	if err != nil {
		span.SetError(err)
		return Prediction{}, err
	}
	resolved := selection.Resolve(st, snap.Catalog)
	q := predictor.Query{
		JobTitle:   resolved.JobTitle,
		Category:   resolved.Category,
		Experience: resolved.Experience,
		State:      resolved.Region,
	}
	span.SetAttr("job_title", q.JobTitle)
	span.SetAttr("state", q.State)

	if !resolved.Ready {
		s.record(ctx, q, usage.OutcomeNotReady, predictor.Estimate{}, 0)
		return Prediction{}, apperrors.New(apperrors.ErrNotReady, http.StatusConflict, "select a category, job title and state first")
	}

	gctx, gspan := tracing.StartChildSpan(ctx, "gateway")
	gspan.SetAttr("gateway", s.gatewayName)
	start := time.Now()
	est, err := predictor.Run(gctx, s.gateway, q)
	elapsed := time.Since(start)
	gspan.SetError(err)
	gspan.End()
	if s.metrics != nil {
		s.metrics.GatewayLatency.WithLabelValues(s.gatewayName).Observe(elapsed.Seconds())
	}
	if err != nil {
		span.SetError(err)
		logger.FromContext(ctx).Warn("prediction unavailable",
			"job_title", q.JobTitle, "state", q.State, "error", err)
		s.record(ctx, q, usage.OutcomeUnavailable, predictor.Estimate{}, elapsed)
		return Prediction{}, apperrors.New(apperrors.ErrPredictionUnavailable, http.StatusServiceUnavailable, "prediction is unavailable right now, please try again later")
	}

	s.record(ctx, q, usage.OutcomeOK, est, elapsed)
	return present(q, est), nil
}

func (s *Service) record(ctx context.Context, q predictor.Query, outcome usage.Outcome, est predictor.Estimate, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.PredictionsTotal.WithLabelValues(string(outcome)).Inc()
	}
	if s.tracker == nil {
		return
	}
	s.tracker.Track(usage.PredictionEvent{
		Outcome:    outcome,
		Category:   q.Category,
		JobTitle:   q.JobTitle,
		State:      q.State,
		Experience: q.Experience,
		Salary:     est.Salary,
		Low:        est.Low,
		High:       est.High,
		LatencyMs:  elapsed.Milliseconds(),
		RequestID:  logger.RequestID(ctx),
		Timestamp:  time.Now().UTC(),
	})
}
