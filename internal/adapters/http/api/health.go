package api

import (
	"context"
	"net/http"

	"github.com/okian/signal-gateway/internal/domain/ingest"
	"github.com/okian/signal-gateway/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthDependencies defines what the health routes need.
type HealthDependencies interface {
	CheckHealth(ctx context.Context) (ingest.HealthSnapshot, error)
	CheckSink(ctx context.Context, name string) (bool, error)
}

// HealthHandler handles health check and metrics requests.
type HealthHandler struct {
	deps    HealthDependencies
	metrics http.Handler
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(deps HealthDependencies) *HealthHandler {
	return &HealthHandler{
		deps:    deps,
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /api/health. The snapshot is always returned;
// the status is 503 when any sink is unreachable.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.CheckHealth(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if !snap.AllHealthy {
		writeJSON(w, http.StatusServiceUnavailable, response{Success: false, Message: "Unhealthy sinks", Data: snap.Sinks})
		return
	}
	writeSuccess(w, http.StatusOK, snap.Sinks)
}

type sinkHealth struct {
	Sink    string `json:"sink"`
	Healthy bool   `json:"healthy"`
}

// HandleSinkHealth handles GET /api/health/{sink}.
func (h *HealthHandler) HandleSinkHealth(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("sink")
	healthy, err := h.deps.CheckSink(r.Context(), name)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	body := sinkHealth{Sink: name, Healthy: healthy}
	if !healthy {
		writeJSON(w, http.StatusServiceUnavailable, response{Success: false, Message: "Sink unreachable", Data: body})
		return
	}
	writeSuccess(w, http.StatusOK, body)
}

// HandleLiveness handles GET /healthz. It never touches the sinks.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleMetrics serves the custom Prometheus registry.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
