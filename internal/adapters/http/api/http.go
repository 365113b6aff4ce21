// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/signal-gateway/internal/adapters/repository"
	service "github.com/okian/signal-gateway/internal/app"
	"github.com/okian/signal-gateway/internal/domain/ingest"
	"github.com/okian/signal-gateway/internal/domain/model"
	"github.com/okian/signal-gateway/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	IngestOne(ctx context.Context, s model.Signal) error
	IngestBatch(ctx context.Context, signals []model.Signal) error

	CheckHealth(ctx context.Context) (ingest.HealthSnapshot, error)
	CheckSink(ctx context.Context, name string) (bool, error)

	// Read operations expose the relational history.
	DeviceSignals(ctx context.Context, deviceID string, limit int) ([]model.Signal, error)
	LatestSignals(ctx context.Context, limit int) ([]model.Signal, error)

	SendTestMessage(ctx context.Context, key, message string) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statusHandler  *StatusHandler
	signalsHandler *SignalsHandler
	streamHandler  *StreamHandler
}

// NewServer creates a new API server with all handlers. maxBatch caps the
// number of signals accepted by one batch request.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxBatch int) *Server {
	log := logger.Get().Named("api")
	return &Server{
		healthHandler:  NewHealthHandler(deps),
		statusHandler:  NewStatusHandler(statsProvider),
		signalsHandler: NewSignalsHandler(deps, maxBatch, time.Now, log),
		streamHandler:  NewStreamHandler(deps, log),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	if mux == nil {
		panic("mux is nil")
	}

	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleLiveness, "healthz"))
	mux.HandleFunc("GET /metrics", s.healthHandler.HandleMetrics)

	mux.HandleFunc("POST /api/signals", MetricsMiddleware(s.signalsHandler.HandlePostSignal, "signals"))
	mux.HandleFunc("POST /api/signals/batch", MetricsMiddleware(s.signalsHandler.HandlePostBatch, "signals_batch"))
	mux.HandleFunc("GET /api/signals/device/{id}", MetricsMiddleware(s.signalsHandler.HandleDeviceSignals, "signals_device"))
	mux.HandleFunc("GET /api/signals/latest", MetricsMiddleware(s.signalsHandler.HandleLatestSignals, "signals_latest"))

	mux.HandleFunc("GET /api/health", MetricsMiddleware(s.healthHandler.HandleHealth, "health"))
	mux.HandleFunc("GET /api/health/{sink}", MetricsMiddleware(s.healthHandler.HandleSinkHealth, "health_sink"))
	mux.HandleFunc("GET /api/status", MetricsMiddleware(s.statusHandler.HandleStatus, "status"))

	mux.HandleFunc("POST /api/test/stream", MetricsMiddleware(s.streamHandler.HandleTestMessage, "test_stream"))
	// Older clients still post to the Kafka-specific path.
	mux.HandleFunc("POST /api/test/kafka", MetricsMiddleware(s.streamHandler.HandleTestMessage, "test_stream"))
}

// response is the envelope every /api route answers with.
type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, response{Success: true, Message: "Success", Data: data})
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, response{Success: false, Message: msg})
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, model.ErrInvalidSignal),
		errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest
	case errors.Is(err, ErrBatchTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, service.ErrUnknownSink):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNotStarted),
		errors.Is(err, service.ErrQueryUnavailable),
		errors.Is(err, service.ErrPublishUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
