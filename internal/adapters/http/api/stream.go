package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/okian/signal-gateway/pkg/logger"
)

// Defaults used when a test message request omits a field.
const (
	defaultTestKey     = "test"
	defaultTestMessage = "test message"
)

// StreamDependencies defines what the test message route needs.
type StreamDependencies interface {
	SendTestMessage(ctx context.Context, key, message string) error
}

// StreamHandler publishes ad hoc messages to the stream sink.
type StreamHandler struct {
	deps StreamDependencies
	log  logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(deps StreamDependencies, log logger.Logger) *StreamHandler {
	return &StreamHandler{deps: deps, log: log}
}

type testMessageRequest struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// HandleTestMessage handles POST /api/test/stream. An empty body sends the
// default key and message.
func (h *StreamHandler) HandleTestMessage(w http.ResponseWriter, r *http.Request) {
	const op = "api.test_stream"
	var req testMessageRequest
	if err := decodeBody(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, wrapKind(op, ErrBadRequest, err))
		return
	}
	if req.Key == "" {
		req.Key = defaultTestKey
	}
	if req.Message == "" {
		req.Message = defaultTestMessage
	}

	if err := h.deps.SendTestMessage(r.Context(), req.Key, req.Message); err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.log.Error(r.Context(), "failed to send test message", logger.Error(err))
		}
		writeError(w, status, err)
		return
	}
	writeSuccess(w, http.StatusOK, "Test message sent successfully")
}
