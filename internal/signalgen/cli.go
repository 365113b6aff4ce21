package signalgen

import (
	"fmt"
	"io"
	"os"

	"github.com/okian/signal-gateway/pkg/logger"
)

const logFilePermission = 0600

// SetupLogging initializes the logger writing to stdout and, when logFile is
// set, to that file as well. The returned closer releases the file.
func SetupLogging(logFile string, opts ...logger.Option) (io.Closer, error) {
	if logFile == "" {
		return io.NopCloser(nil), logger.Init(opts...)
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	opts = append(opts, logger.WithWriter(io.MultiWriter(os.Stdout, file)))
	if err := logger.Init(opts...); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return file, nil
}

// ShowHelp prints usage information for the signal generator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Signal Gateway Load Tool
========================

Generates synthetic device signals, posts them to the gateway and reads
the device history and sink health back.

Usage:
  go run ./cmd/signal-gen [options]

Options:
  -url string
        Base URL of the gateway (default "http://127.0.0.1:8080")
  -signals int
        Number of signals to generate and submit (default 1000)
  -devices int
        Number of distinct devices (default 10)
  -batch int
        Signals per request; 1 posts one by one (default 1)
  -workers int
        Number of concurrent workers (default CPU cores * 2)
  -timeout duration
        HTTP request timeout (default 30s)
  -history int
        Limit for the device history read-back (default 1000)
  -output string
        Save generated signals to this JSON file
  -log string
        Also write logs to this file
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Post 1000 signals one by one
  go run ./cmd/signal-gen

  # Post 50000 signals in batches of 500 with 16 workers
  go run ./cmd/signal-gen -signals 50000 -batch 500 -workers 16
`)
}
