// Package model contains domain models passed between layers.
package model

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Signal is one device telemetry reading. Treat it as immutable once built.
type Signal struct {
	ID         string         `json:"id"`
	DeviceID   string         `json:"device_id"`
	SignalType string         `json:"signal_type"`
	Value      float64        `json:"value"`
	Unit       string         `json:"unit,omitempty"` // empty means absent
	Timestamp  time.Time      `json:"timestamp"`      // UTC
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// SignalRequest is what producers submit; ID and timestamp are assigned on receipt.
type SignalRequest struct {
	DeviceID   string         `json:"device_id"`
	SignalType string         `json:"signal_type"`
	Value      float64        `json:"value"`
	Unit       string         `json:"unit,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewSignal builds a Signal from a request, stamping a fresh ID and now in UTC.
func NewSignal(req SignalRequest, now time.Time) Signal {
	return Signal{
		ID:         uuid.NewString(),
		DeviceID:   req.DeviceID,
		SignalType: req.SignalType,
		Value:      req.Value,
		Unit:       req.Unit,
		Timestamp:  now.UTC(),
		Metadata:   req.Metadata,
	}
}

// Validate checks the invariants every signal must hold before ingestion.
func (s Signal) Validate() error {
	if strings.TrimSpace(s.DeviceID) == "" {
		return &ValidationError{Field: "device_id", Reason: "must not be empty"}
	}
	if strings.TrimSpace(s.SignalType) == "" {
		return &ValidationError{Field: "signal_type", Reason: "must not be empty"}
	}
	if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
		return &ValidationError{Field: "value", Reason: "must be a finite number"}
	}
	return nil
}

// StreamKey is the broker partitioning key: "<device_id>_<signal_type>".
func (s Signal) StreamKey() string {
	return s.DeviceID + "_" + s.SignalType
}
