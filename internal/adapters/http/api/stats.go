package api

import (
	"net/http"
	"time"
)

// StatsProvider reports a snapshot of the running service.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves the service summary behind GET /stats.
type StatsHandler struct {
	provider StatsProvider
	now      func() time.Time
}

// NewStatsHandler returns a handler reading from provider.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider, now: time.Now}
}

// HandleStats writes the summary. It is never cached since the queue and
// active scan change between polls.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	stats := h.provider.GetStats()
	if stats == nil {
		stats = map[string]interface{}{}
	}
	stats["generatedAt"] = h.now().UTC().Format(time.RFC3339)
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, stats)
}
