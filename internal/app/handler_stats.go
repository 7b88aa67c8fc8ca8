package app

import (
	"net/http"
	"strconv"
)

func (a *Application) statsHandler(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, a.metrics.Stats())
}

func (a *Application) recentRequestsHandler(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	events := a.metrics.Recent(limit)
	a.writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}

func (a *Application) sessionAnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	top := queryInt(r, "top", 10)
	sessions := a.metrics.SessionAnalytics(top)
	a.writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (a *Application) temporalBreakdownHandler(w http.ResponseWriter, r *http.Request) {
	minutes := queryInt(r, "minutes", 10)
	a.writeJSON(w, http.StatusOK, a.metrics.TemporalBreakdown(minutes))
}

func (a *Application) statsResetHandler(w http.ResponseWriter, r *http.Request) {
	a.metrics.Reset()
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
