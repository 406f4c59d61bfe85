package webhook

import (
	"net/http"
	"time"
)

// NewRouter mounts the webhook, health and report endpoints
func NewRouter(g *Gateway) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /webhook", g)
	mux.HandleFunc("GET /health", g.Health)
	mux.HandleFunc("GET /reports/daily", g.DailyReport)
	mux.HandleFunc("GET /reports/suggestions", g.Suggestions)
	return mux
}

// Health reports registry and cache statistics
func (g *Gateway) Health(w http.ResponseWriter, r *http.Request) {
	payload := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	}
	if g.registry != nil {
		payload["functionRegistryStats"] = g.registry.Stats()
	}
	if g.cache != nil {
		payload["cacheStats"] = g.cache.Stats()
	}
	if g.cost != nil {
		payload["costStats"] = g.cost.Stats()
	}
	writeJSON(w, http.StatusOK, payload)
}

// DailyReport serves the cost report of ?date=YYYY-MM-DD, defaulting to today (UTC)
func (g *Gateway) DailyReport(w http.ResponseWriter, r *http.Request) {
	if g.cost == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "cost reporting not configured"})
		return
	}

	date := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date must be YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	report, err := g.cost.DailyCostReport(r.Context(), date)
	if err != nil {
		g.logger.Error("daily report failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// Suggestions serves heuristic cost optimization hints over the last seven days
func (g *Gateway) Suggestions(w http.ResponseWriter, r *http.Request) {
	if g.cost == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "cost reporting not configured"})
		return
	}

	suggestions, err := g.cost.OptimizationSuggestions(r.Context())
	if err != nil {
		g.logger.Error("optimization suggestions failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}
