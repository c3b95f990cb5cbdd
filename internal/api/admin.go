package api

import (
	"net/http"

	"github.com/MikeSquared-Agency/Prioritizer/internal/broker"
	"github.com/MikeSquared-Agency/Prioritizer/internal/store"
)

type AdminHandler struct {
	broker *broker.Broker
	store  store.Store
}

func NewAdminHandler(b *broker.Broker, s store.Store) *AdminHandler {
	return &AdminHandler{broker: b, store: s}
}

// Params returns the run parameters applied when a request brings none.
func (h *AdminHandler) Params(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.broker.Params())
}

type RunStats struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Stats counts the most recent stored runs by outcome.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "run store disabled"})
		return
	}
	runs, err := h.store.ListRuns(r.Context(), store.RunFilter{Limit: 1000})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	var stats RunStats
	for _, run := range runs {
		switch run.Status {
		case store.StatusCompleted:
			stats.Completed++
		case store.StatusFailed:
			stats.Failed++
		}
	}
	writeJSON(w, http.StatusOK, stats)
}
