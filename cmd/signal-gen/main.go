package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/signal-gateway/internal/signalgen"
)

// Default configuration constants.
const (
	defaultNumSignals   = 1000
	defaultDevices      = 10
	defaultBatchSize    = 1
	defaultWorkers      = 2 // multiplier for runtime.NumCPU()
	defaultTimeout      = 30 * time.Second
	defaultHistoryLimit = 1000
	defaultRunTimeout   = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://127.0.0.1:8080", "Base URL of the gateway")
		numSignals = flag.Int("signals", defaultNumSignals, "Number of signals to generate and submit")
		devices    = flag.Int("devices", defaultDevices, "Number of distinct devices")
		batchSize  = flag.Int("batch", defaultBatchSize, "Signals per request; 1 posts one by one")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent workers")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		history    = flag.Int("history", defaultHistoryLimit, "Limit for the device history read-back")
		outputFile = flag.String("output", "", "Save generated signals to this JSON file")
		logFile    = flag.String("log", "", "Also write logs to this file")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		signalgen.ShowHelp()
		return
	}

	closer, err := signalgen.SetupLogging(*logFile)
	if err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	cfg := &signalgen.Config{
		BaseURL:      *baseURL,
		NumSignals:   *numSignals,
		Devices:      *devices,
		BatchSize:    *batchSize,
		Workers:      *workers,
		Timeout:      *timeout,
		HistoryLimit: *history,
		OutputFile:   *outputFile,
		Verbose:      *verbose,
	}

	stats, err := signalgen.Run(ctx, cfg)
	if err != nil {
		_, _ = os.Stderr.WriteString("Run failed: " + err.Error() + "\n")
		os.Exit(1)
	}
	if stats.RequestsFailed > 0 || stats.SignalsRejected > 0 {
		os.Exit(2)
	}
}
