// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"linkage/pkg/platform/httputil"
)

// Probe reports whether one dependency can serve traffic.
type Probe interface {
	Probe(ctx context.Context) error
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) error

func (f ProbeFunc) Probe(ctx context.Context) error {
	return f(ctx)
}

type checkResult struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler exposes /health/live and /health/ready.
type Handler struct {
	probes  map[string]Probe
	timeout time.Duration
	logger  *slog.Logger
}

// New builds a Handler. Readiness fails when any named probe fails.
func New(logger *slog.Logger, probes map[string]Probe) *Handler {
	return &Handler{probes: probes, timeout: 2 * time.Second, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/health/live", h.handleLive)
	r.Get("/health/ready", h.handleReady)
}

func (h *Handler) handleLive(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, checkResult{Status: "ok"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	result := checkResult{Status: "ok", Checks: make(map[string]string, len(h.probes))}
	status := http.StatusOK
	for name, probe := range h.probes {
		if err := probe.Probe(ctx); err != nil {
			h.logger.WarnContext(ctx, "readiness probe failed", "probe", name, "error", err)
			result.Checks[name] = "unavailable"
			result.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		result.Checks[name] = "ok"
	}
	httputil.WriteJSON(w, status, result)
}
