package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/qrmerch/relay/internal/platform/httpx"
)

// HealthHandlers serves the liveness and readiness probes.
type HealthHandlers struct {
	startTime time.Time
	ready     func() bool
}

// HealthOption customises the health handlers.
type HealthOption func(*HealthHandlers)

// WithReadyCheck installs the readiness probe; the service reports ready only
// while the check returns true.
func WithReadyCheck(check func() bool) HealthOption {
	return func(h *HealthHandlers) {
		h.ready = check
	}
}

// NewHealthHandlers constructs the health handlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{startTime: time.Now()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Healthz responds with a simple status payload for monitoring.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	payload := map[string]any{
		"status":    "ok",
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// Readyz reports readiness. Without an installed check the service is always
// ready once it is serving.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil && !h.ready() {
		httpx.WriteError(r.Context(), w, httpx.NewError("not_ready", "service is not ready", http.StatusServiceUnavailable))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"status": "ready"})
}
