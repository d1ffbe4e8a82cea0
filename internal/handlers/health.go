package handlers

import (
	"net/http"
)

// HealthHandler reports whether the record store is reachable.
type HealthHandler struct {
	// Check probes the record store. A nil Check always reports ok.
	Check HealthCheck
}

type healthStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		respondMethodNotAllowed(ctx, w, http.MethodGet, http.MethodHead)
		return
	}

	if h.Check != nil {
		if err := h.Check(ctx); err != nil {
			respondJSON(ctx, w, http.StatusServiceUnavailable, healthStatus{Status: "unavailable", Error: err.Error()})
			return
		}
	}
	respondJSON(ctx, w, http.StatusOK, healthStatus{Status: "ok"})
}
