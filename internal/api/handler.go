// internal/api/handler.go
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"repohealth/internal/cache"
	"repohealth/internal/jobs"
	"repohealth/internal/model"
	"repohealth/internal/pipeline"
	"repohealth/internal/report"
	"repohealth/internal/status"
)

// Handler is the container for API dependencies.
type Handler struct {
	table        *jobs.Table
	store        *cache.Store
	tracker      *status.Tracker
	coord        *pipeline.Coordinator
	registry     report.Registry
	serviceToken string
	logger       *slog.Logger
}

// NewRouter creates and configures a new chi router with all API routes.
// metricsHandler serves the Prometheus exposition endpoint.
func NewRouter(table *jobs.Table, store *cache.Store, tracker *status.Tracker, coord *pipeline.Coordinator, registry report.Registry, serviceToken string, metricsHandler http.Handler, logger *slog.Logger) http.Handler {
	h := &Handler{
		table:        table,
		store:        store,
		tracker:      tracker,
		coord:        coord,
		registry:     registry,
		serviceToken: serviceToken,
		logger:       logger,
	}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// API Routes
	r.Get("/health", h.healthCheck)
	r.Handle("/metrics", metricsHandler)
	r.Route("/api", func(r chi.Router) {
		r.Get("/repos", h.listRepos)
		r.Post("/data/{owner}/{name}", h.submitData)
		r.Get("/data/{owner}/{name}", h.getData)
		r.Delete("/data/{owner}/{name}", h.invalidate)
		r.Get("/status/{owner}/{name}", h.getStatus)
		r.Get("/report/{owner}/{name}", h.getReport)
	})

	return r
}

// healthCheck is a simple health endpoint.
func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// listRepos returns the identifiers with complete caches.
// GET /api/repos
func (h *Handler) listRepos(w http.ResponseWriter, r *http.Request) {
	ids, err := h.store.List()
	if err != nil {
		h.logger.Error("Failed to list cached repositories", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"repos": ids})
}

// submitData submits a pipeline run (or reports on the in-flight one) and
// returns an availability document: 202 while running, 200 once ready.
// POST /api/data/{owner}/{name}?token=TOKEN
func (h *Handler) submitData(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identifier(w, r)
	if !ok {
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token = h.serviceToken
	}
	if token == "" {
		respondWithJSON(w, http.StatusUnauthorized, map[string]any{
			"status": 401, "message": "Token is not defined",
		})
		return
	}

	job, started := h.table.Submit(id, token)
	if started {
		respondWithJSON(w, http.StatusAccepted, map[string]any{
			"status":      202,
			"message":     "Job submitted and is processing.",
			"status_info": []model.StatusEntry{},
		})
		return
	}

	info, err := h.tracker.Read(id)
	if err != nil {
		h.logger.Error("Failed to read status", "repo", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	if job.Done() {
		respondWithJSON(w, http.StatusOK, map[string]any{
			"status": 200, "message": "ready", "status_info": info,
		})
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]any{
		"status":      202,
		"message":     "Job started " + prettySince(job.Started) + " and is still running.",
		"status_info": info,
	})
}

// getData returns the full pipeline result once it is cached, and a 202
// pending document before that.
// GET /api/data/{owner}/{name}
func (h *Handler) getData(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identifier(w, r)
	if !ok {
		return
	}

	if job, ok := h.table.Get(id); ok {
		if result, ready := job.Result(); ready {
			respondWithJSON(w, result.Status, result)
			return
		}
		respondWithJSON(w, http.StatusAccepted, map[string]any{
			"status": 202, "message": "Job is still running.",
		})
		return
	}

	if !h.store.Has(id) {
		respondWithJSON(w, http.StatusAccepted, map[string]any{
			"status": 202, "message": "No data available yet; submit the repository first.",
		})
		return
	}

	// Fully cached: Run short-circuits to pure reads.
	result := h.coord.Run(r.Context(), id, h.serviceToken)
	respondWithJSON(w, result.Status, result)
}

// invalidate spoils the cache for the identifier, removing snapshots and
// any repository clone, and forgets the finished job.
// DELETE /api/data/{owner}/{name}
func (h *Handler) invalidate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identifier(w, r)
	if !ok {
		return
	}

	if job, tracked := h.table.Get(id); tracked && !job.Done() {
		respondWithError(w, http.StatusConflict, "Cannot invalidate while a run is in flight")
		return
	}

	if err := h.store.Invalidate(id); err != nil {
		h.logger.Error("Failed to invalidate cache", "repo", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.table.Remove(id)
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// getStatus returns the ordered stage entries for the identifier.
// GET /api/status/{owner}/{name}
func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identifier(w, r)
	if !ok {
		return
	}

	info, err := h.tracker.Read(id)
	if err != nil {
		h.logger.Error("Failed to read status", "repo", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"status_info": info})
}

// getReport renders the visualization figures for a cached payload.
// GET /api/report/{owner}/{name}
func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	id, ok := h.identifier(w, r)
	if !ok {
		return
	}

	if !h.store.Has(id) {
		respondWithJSON(w, http.StatusAccepted, map[string]any{
			"status": 202, "message": "No data available yet; submit the repository first.",
		})
		return
	}

	payload := h.coord.Run(r.Context(), id, h.serviceToken)
	if !payload.OK() {
		respondWithJSON(w, payload.Status, payload)
		return
	}

	figures, failures := h.registry.Figures(payload)
	for tag, err := range failures {
		h.logger.Error("Visualization transform failed", "repo", id, "tag", tag, "error", err)
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"repo": id, "figures": figures})
}

// identifier normalizes the {owner}/{name} route parameters, answering 400
// on a malformed identifier.
func (h *Handler) identifier(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "name")
	id, err := cache.NormalizeIdentifier(raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return id, true
}

func prettySince(start time.Time) string {
	d := time.Since(start).Round(time.Second)
	switch {
	case d < 2*time.Second:
		return "just now"
	case d < 2*time.Minute:
		return d.String() + " ago"
	default:
		return start.Format("15:04:05") + " UTC"
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
