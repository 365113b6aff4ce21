// Package signalgen is a load and verification tool for the signal gateway.
// It generates synthetic device signals, posts them over HTTP, then reads
// the device history and sink health back.
package signalgen

import "time"

// Config holds configuration for a signal run.
type Config struct {
	BaseURL      string        // Base URL of the gateway
	NumSignals   int           // Number of signals to generate
	Devices      int           // Number of distinct devices
	BatchSize    int           // Signals per batch request; 1 posts one by one
	Workers      int           // Number of concurrent workers
	Timeout      time.Duration // HTTP request timeout
	HistoryLimit int           // Limit passed to the device history query
	OutputFile   string        // Output file for generated signals
	Verbose      bool          // Enable verbose logging
}

// Stats holds run statistics.
type Stats struct {
	SignalsGenerated int
	SignalsSubmitted int
	SignalsAccepted  int
	SignalsRejected  int
	RequestsFailed   int
	DevicesVerified  int
	SignalsReadBack  int
	SinkHealth       map[string]bool
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}

// Gateway routes used by the tool.
const (
	pathLiveness = "/healthz"
	pathSignal   = "/api/signals"
	pathBatch    = "/api/signals/batch"
	pathDevice   = "/api/signals/device/"
	pathHealth   = "/api/health"
)

// runIDKey tags every generated signal so read-back only counts this run.
const runIDKey = "run_id"

// PercentageMultiplier converts ratios to percentages.
const PercentageMultiplier = 100

// envelope mirrors the gateway response body.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}
