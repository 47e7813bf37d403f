package health

import (
	"encoding/json"
	"net/http"
	"time"
)

// RegisterRoutes mounts the probe endpoints on mux.
func (m *Manager) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", m.handleHealth)
	mux.HandleFunc("/health/detailed", m.handleDetailed)
}

func (m *Manager) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := StatusHealthy
	code := http.StatusOK
	if !m.Healthy() {
		status = StatusUnhealthy
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

func (m *Manager) handleDetailed(w http.ResponseWriter, r *http.Request) {
	results := m.Results()

	status := StatusHealthy
	code := http.StatusOK
	if !m.Healthy() {
		status = StatusUnhealthy
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]any{
		"status":     status,
		"components": results,
		"timestamp":  time.Now().UTC(),
	})
}
