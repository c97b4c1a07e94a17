package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/pointlens/internal/analytics"
	"github.com/gyaneshwarpardhi/pointlens/internal/bucket"
	"github.com/gyaneshwarpardhi/pointlens/internal/config"
	"github.com/gyaneshwarpardhi/pointlens/internal/resolve"
)

const maxBatchSize = 100

// Handler holds all HTTP handler dependencies.
type Handler struct {
	svc    *analytics.Service
	loader *config.Loader
	mux    *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(svc *analytics.Service, loader *config.Loader) http.Handler {
	h := &Handler{svc: svc, loader: loader, mux: http.NewServeMux()}

	h.mux.HandleFunc("GET /v1/analytics", h.overall)
	h.mux.HandleFunc("GET /v1/analytics/entities", h.entities)
	h.mux.HandleFunc("GET /v1/analytics/engagement", h.engagement)
	h.mux.HandleFunc("GET /v1/analytics/revenue", h.revenue)
	h.mux.HandleFunc("GET /v1/analytics/timeseries", h.timeSeries)
	h.mux.HandleFunc("GET /v1/names/{key}", h.resolveName)
	h.mux.HandleFunc("POST /v1/names/resolve", h.resolveBatch)
	h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return requestIDMiddleware(loggingMiddleware(h.mux))
}

// GET /v1/analytics: platform snapshot.
func (h *Handler) overall(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.OverallAnalytics(r.Context()))
}

// GET /v1/analytics/entities[?entity_id=]: per-merchant breakdown.
func (h *Handler) entities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.EntityAnalytics(r.Context(), r.URL.Query().Get("entity_id")))
}

// GET /v1/analytics/engagement
func (h *Handler) engagement(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Engagement(r.Context()))
}

// GET /v1/analytics/revenue
func (h *Handler) revenue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.RevenueBreakdown(r.Context()))
}

// GET /v1/analytics/timeseries[?granularity=daily|weekly|monthly]: all three
// series when granularity is omitted.
func (h *Handler) timeSeries(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("granularity")
	if raw == "" {
		writeJSON(w, http.StatusOK, h.svc.AllTimeSeries(r.Context()))
		return
	}
	g, err := bucket.ParseGranularity(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"granularity": g,
		"buckets":     h.svc.TimeSeries(r.Context(), g),
	})
}

// GET /v1/names/{key}: resolve one object id.
func (h *Handler) resolveName(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	name, err := h.svc.ResolveName(r.Context(), key)
	switch {
	case errors.Is(err, resolve.ErrEmptyKey):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "name": name})
}

// POST /v1/names/resolve: resolve up to 100 object ids.
func (h *Handler) resolveBatch(w http.ResponseWriter, r *http.Request) {
	var keys []string
	if err := json.NewDecoder(r.Body).Decode(&keys); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if len(keys) == 0 {
		writeError(w, http.StatusBadRequest, "batch must contain at least one key")
		return
	}
	if len(keys) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(keys), maxBatchSize))
		return
	}

	results := h.svc.ResolveNames(r.Context(), keys)
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total":    len(keys),
		"resolved": len(keys) - failed,
		"failed":   failed,
		"results":  results,
	})
}

// POST /v1/config/reload: re-read the config file. OnChange subscribers
// swap the analytics settings.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":     true,
		"earned_ops":   cfg.Classifier.EarnedOps,
		"redeemed_ops": cfg.Classifier.RedeemedOps,
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
