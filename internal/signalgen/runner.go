package signalgen

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/okian/signal-gateway/internal/domain/model"
	"github.com/okian/signal-gateway/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0600
)

// Run executes the complete signal run and returns its statistics.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	runID := uuid.NewString()
	log := logger.Get()

	log.Info(ctx, "starting signal run",
		logger.String("run_id", runID),
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("signals", cfg.NumSignals),
		logger.Int("devices", cfg.Devices),
		logger.Int("batchSize", cfg.BatchSize),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout))

	if err := checkServiceHealth(ctx, cfg); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	signals, err := generateSignals(ctx, cfg, runID, stats)
	if err != nil {
		return stats, fmt.Errorf("signal generation failed: %w", err)
	}

	if err := submitSignals(ctx, cfg, signals, stats); err != nil {
		return stats, fmt.Errorf("signal submission failed: %w", err)
	}

	// Writes are synchronous, so accepted signals are readable immediately.
	if err := readBack(ctx, cfg, runID, stats); err != nil {
		return stats, fmt.Errorf("read back failed: %w", err)
	}
	if err := checkSinkHealth(ctx, cfg, stats); err != nil {
		log.Warn(ctx, "sink health unavailable", logger.Error(err))
	}

	if cfg.OutputFile != "" {
		if err := saveSignalsToFile(ctx, cfg.OutputFile, signals); err != nil {
			log.Warn(ctx, "failed to save signals to file", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// checkServiceHealth verifies the gateway process is up.
func checkServiceHealth(ctx context.Context, cfg *Config) error {
	resp, err := newHTTPClient(cfg.Timeout).Get(ctx, cfg.BaseURL+pathLiveness)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("liveness returned status %d", resp.StatusCode)
	}
	return nil
}

// saveSignalsToFile writes the generated requests as a JSON array.
func saveSignalsToFile(ctx context.Context, filename string, signals []model.SignalRequest) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(signals, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal signals: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Get().Info(ctx, "signals saved to file", logger.String("filename", filename))
	return nil
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var acceptRate, signalsPerSecond float64
	if stats.SignalsSubmitted > 0 {
		acceptRate = float64(stats.SignalsAccepted) / float64(stats.SignalsSubmitted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		signalsPerSecond = float64(stats.SignalsSubmitted) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("signalsGenerated", stats.SignalsGenerated),
		logger.Int("signalsSubmitted", stats.SignalsSubmitted),
		logger.Int("signalsAccepted", stats.SignalsAccepted),
		logger.Int("signalsRejected", stats.SignalsRejected),
		logger.Int("requestsFailed", stats.RequestsFailed),
		logger.Int("devicesVerified", stats.DevicesVerified),
		logger.Int("signalsReadBack", stats.SignalsReadBack),
		logger.Duration("duration", stats.Duration),
		logger.Float64("acceptRate", acceptRate),
		logger.Float64("signalsPerSecond", signalsPerSecond))
}
