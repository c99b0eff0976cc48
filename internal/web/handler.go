// Package web serves the salary form over HTTP: a JSON session API, a
// server-rendered HTML form and the read-only insights and options views.
package web

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/app"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/internal/session"
	apperrors "github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Salary-Insights-Platform/pkg/logger"
)

const maxBodyBytes = 16 << 10

// Handler implements the JSON API endpoints.
type Handler struct {
	svc    *app.Service
	logger *slog.Logger
}

func NewHandler(svc *app.Service) *Handler {
	return &Handler{
		svc:    svc,
		logger: slog.Default().With("component", "web-handler"),
	}
}

// CreateSession handles POST /api/v1/sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.NewSession(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, v)
}

// GetSession handles GET /api/v1/sessions/{id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	v, err := h.svc.View(r.Context(), id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

// SetCategory handles PUT /api/v1/sessions/{id}/category.
func (h *Handler) SetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req CategoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respondView(w, r)(h.svc.SetCategory(r.Context(), id, req.Category))
}

// SetJobTitle handles PUT /api/v1/sessions/{id}/job-title.
func (h *Handler) SetJobTitle(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req JobTitleRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respondView(w, r)(h.svc.SetJobTitle(r.Context(), id, req.JobTitle))
}

// SetExperience handles PUT /api/v1/sessions/{id}/experience.
func (h *Handler) SetExperience(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req ExperienceRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respondView(w, r)(h.svc.SetExperience(r.Context(), id, *req.Experience))
}

// SetState handles PUT /api/v1/sessions/{id}/state.
func (h *Handler) SetState(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	var req StateRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.respondView(w, r)(h.svc.SetRegion(r.Context(), id, req.State))
}

// Reset handles POST /api/v1/sessions/{id}/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	h.respondView(w, r)(h.svc.Reset(r.Context(), id))
}

// Predict handles POST /api/v1/sessions/{id}/predict.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	id, ok := h.sessionID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Predict(r.Context(), id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

// Options handles GET /api/v1/options.
func (h *Handler) Options(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Options()
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, o)
}

// Insights handles GET /api/v1/insights.
func (h *Handler) Insights(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Insights()
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, rep)
}

// Reload handles POST /api/v1/admin/reload.
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.Reload(r.Context())
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"version":   snap.Version,
		"source":    snap.Source,
		"rows":      snap.Table.Len(),
		"loaded_at": snap.LoadedAt,
	})
}

func (h *Handler) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if !session.ValidID(id) {
		h.writeError(w, http.StatusNotFound, "session not found or expired")
		return "", false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		h.writeError(w, http.StatusBadRequest, describeValidation(err))
		return false
	}
	return true
}

func (h *Handler) respondView(w http.ResponseWriter, r *http.Request) func(app.View, error) {
	return func(v app.View, err error) {
		if err != nil {
			h.writeErr(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, v)
	}
}

func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		h.writeError(w, status, "internal error")
		return
	}
	h.writeError(w, status, apperrors.Message(err, err.Error()))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
