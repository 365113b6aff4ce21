package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/signal-gateway/internal/domain/model"
	"github.com/okian/signal-gateway/pkg/logger"
)

// SignalDependencies defines what the signal routes need.
type SignalDependencies interface {
	IngestOne(ctx context.Context, s model.Signal) error
	IngestBatch(ctx context.Context, signals []model.Signal) error
	DeviceSignals(ctx context.Context, deviceID string, limit int) ([]model.Signal, error)
	LatestSignals(ctx context.Context, limit int) ([]model.Signal, error)
}

// SignalsHandler handles signal ingestion and history requests.
type SignalsHandler struct {
	deps     SignalDependencies
	maxBatch int
	now      func() time.Time
	log      logger.Logger
}

// NewSignalsHandler creates a new signals handler.
func NewSignalsHandler(deps SignalDependencies, maxBatch int, now func() time.Time, log logger.Logger) *SignalsHandler {
	return &SignalsHandler{deps: deps, maxBatch: maxBatch, now: now, log: log}
}

// HandlePostSignal handles POST /api/signals.
func (h *SignalsHandler) HandlePostSignal(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_signal"
	var req model.SignalRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, wrapKind(op, ErrBadRequest, err))
		return
	}

	sig := model.NewSignal(req, h.now())
	h.log.Info(r.Context(), "received signal",
		logger.String("device_id", sig.DeviceID),
		logger.String("signal_type", sig.SignalType),
	)
	if err := h.deps.IngestOne(r.Context(), sig); err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Signal processed successfully")
}

// HandlePostBatch handles POST /api/signals/batch.
func (h *SignalsHandler) HandlePostBatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_batch"
	var reqs []model.SignalRequest
	if err := decodeBody(w, r, &reqs); err != nil {
		writeError(w, http.StatusBadRequest, wrapKind(op, ErrBadRequest, err))
		return
	}
	if h.maxBatch > 0 && len(reqs) > h.maxBatch {
		err := wrapKind(op, ErrBatchTooLarge, fmt.Errorf("%d signals, at most %d allowed", len(reqs), h.maxBatch))
		writeError(w, statusFor(err), err)
		return
	}

	now := h.now()
	signals := make([]model.Signal, len(reqs))
	for i, req := range reqs {
		signals[i] = model.NewSignal(req, now)
	}
	h.log.Info(r.Context(), "received signal batch", logger.Int("count", len(signals)))

	if err := h.deps.IngestBatch(r.Context(), signals); err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeSuccess(w, http.StatusOK, fmt.Sprintf("Processed %d signals successfully", len(signals)))
}

// HandleDeviceSignals handles GET /api/signals/device/{id}.
func (h *SignalsHandler) HandleDeviceSignals(w http.ResponseWriter, r *http.Request) {
	const op = "api.device_signals"
	deviceID := strings.TrimSpace(r.PathValue("id"))
	if deviceID == "" {
		writeError(w, http.StatusBadRequest, wrapKind(op, ErrBadRequest, errors.New("missing device id")))
		return
	}
	signals, err := h.deps.DeviceSignals(r.Context(), deviceID, queryLimit(r))
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeSuccess(w, http.StatusOK, nonNil(signals))
}

// HandleLatestSignals handles GET /api/signals/latest.
func (h *SignalsHandler) HandleLatestSignals(w http.ResponseWriter, r *http.Request) {
	const op = "api.latest_signals"
	signals, err := h.deps.LatestSignals(r.Context(), queryLimit(r))
	if err != nil {
		h.fail(w, r, op, err)
		return
	}
	writeSuccess(w, http.StatusOK, nonNil(signals))
}

func (h *SignalsHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.log.Error(r.Context(), "request failed", logger.String("op", op), logger.Error(err))
	}
	writeError(w, status, err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// nonNil keeps empty histories encoded as [] rather than null.
func nonNil(signals []model.Signal) []model.Signal {
	if signals == nil {
		return []model.Signal{}
	}
	return signals
}
