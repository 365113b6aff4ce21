package signalgen

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"

	"github.com/okian/signal-gateway/internal/domain/model"
	"github.com/okian/signal-gateway/pkg/logger"
)

// readBack queries the history of every device and counts the signals of
// this run found in the relational store.
func readBack(ctx context.Context, cfg *Config, runID string, stats *Stats) error {
	log := logger.Get()
	client := newHTTPClient(cfg.Timeout)
	devices := max(cfg.Devices, 1)

	for i := 0; i < devices; i++ {
		id := deviceID(i)
		u := cfg.BaseURL + pathDevice + url.PathEscape(id) + "?limit=" + strconv.Itoa(cfg.HistoryLimit)
		env, status, err := getJSON[[]model.Signal](ctx, client, u)
		if err != nil {
			return fmt.Errorf("read history of %s: %w", id, err)
		}
		if !env.Success {
			log.Warn(ctx, "history unavailable",
				logger.String("device_id", id),
				logger.Int("status", status),
				logger.String("message", env.Message))
			continue
		}
		n := countRun(env.Data, runID)
		stats.DevicesVerified++
		stats.SignalsReadBack += n
		if cfg.Verbose {
			log.Info(ctx, "device history", logger.String("device_id", id), logger.Int("signals", n))
		}
	}
	return nil
}

func countRun(signals []model.Signal, runID string) int {
	n := 0
	for _, s := range signals {
		if s.Metadata[runIDKey] == runID {
			n++
		}
	}
	return n
}

// checkSinkHealth records the per-sink snapshot. A 503 still carries it.
func checkSinkHealth(ctx context.Context, cfg *Config, stats *Stats) error {
	env, _, err := getJSON[map[string]bool](ctx, newHTTPClient(cfg.Timeout), cfg.BaseURL+pathHealth)
	if err != nil {
		return fmt.Errorf("read sink health: %w", err)
	}
	stats.SinkHealth = env.Data

	names := make([]string, 0, len(env.Data))
	for name := range env.Data {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		logger.Get().Info(ctx, "sink health", logger.String("sink", name), logger.Bool("healthy", env.Data[name]))
	}
	return nil
}
