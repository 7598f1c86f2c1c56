// Package api exposes the read-only status API served in serve mode.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"lakeloader/internal/domain"
)

// Handler serves run history and liveness. Read-only: ingestion is driven
// by the scheduler, never over HTTP.
type Handler struct {
	repo   domain.RunRepository
	logger *slog.Logger
}

// NewHandler creates a status handler over the run repository.
func NewHandler(repo domain.RunRepository, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{repo: repo, logger: logger}
}

// Router builds the chi router for the status API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Get("/healthz", h.health)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/runs", h.listRuns)
		r.Get("/runs/{id}", h.getRun)
	})
	return r
}

type runResponse struct {
	RunID      string     `json:"run_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Processed  int        `json:"processed"`
	Skipped    int        `json:"skipped"`
	Status     string     `json:"status"`
}

type outcomeResponse struct {
	Identifier string `json:"identifier"`
	Processed  bool   `json:"processed"`
	Reason     string `json:"reason,omitempty"`
	Detail     string `json:"detail,omitempty"`
}

type runDetailResponse struct {
	runResponse
	Outcomes []outcomeResponse `json:"outcomes"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	recs, err := h.repo.ListRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("list runs failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "could not list runs")
		return
	}

	out := make([]runResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRunResponse(rec))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.repo.GetRun(r.Context(), id)
	if err != nil {
		h.logger.Error("get run failed", "run_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "could not load run")
		return
	}
	if rec == nil {
		h.writeError(w, http.StatusNotFound, "run not found")
		return
	}

	outcomes, err := h.repo.ListOutcomes(r.Context(), id)
	if err != nil {
		h.logger.Error("list outcomes failed", "run_id", id, "error", err)
		h.writeError(w, http.StatusInternalServerError, "could not load outcomes")
		return
	}

	resp := runDetailResponse{runResponse: toRunResponse(*rec), Outcomes: []outcomeResponse{}}
	for _, o := range outcomes {
		resp.Outcomes = append(resp.Outcomes, outcomeResponse{
			Identifier: o.Identifier,
			Processed:  o.Processed,
			Reason:     string(o.Reason),
			Detail:     o.Detail,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func toRunResponse(rec domain.RunRecord) runResponse {
	return runResponse{
		RunID:      rec.RunID,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
		Processed:  rec.Processed,
		Skipped:    rec.Skipped,
		Status:     rec.Status,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response failed", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}
