package signalgen

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/okian/signal-gateway/internal/domain/model"
	"github.com/okian/signal-gateway/pkg/logger"
)

const randomFloatDivisor = 1000000

// signalKind describes one synthetic sensor and the range of its readings.
type signalKind struct {
	name  string
	unit  string
	min   float64
	width float64
}

var kinds = []signalKind{ //nolint:gochecknoglobals // fixed sensor catalogue
	{name: "temperature", unit: "celsius", min: -10, width: 60},
	{name: "humidity", unit: "percent", min: 10, width: 85},
	{name: "pressure", unit: "bar", min: 0.8, width: 4},
	{name: "vibration", unit: "mm/s", min: 0, width: 25},
	{name: "status", unit: "", min: 0, width: 1},
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// deviceID names the i-th synthetic device.
func deviceID(i int) string {
	return fmt.Sprintf("device-%03d", i)
}

// generateSignals spreads cfg.NumSignals over cfg.Devices devices, rotating
// through the sensor catalogue.
func generateSignals(ctx context.Context, cfg *Config, runID string, stats *Stats) ([]model.SignalRequest, error) {
	if cfg.NumSignals <= 0 {
		return nil, fmt.Errorf("number of signals must be positive, got %d", cfg.NumSignals)
	}
	devices := max(cfg.Devices, 1)
	logger.Get().Info(ctx, "generating signals",
		logger.Int("signals", cfg.NumSignals),
		logger.Int("devices", devices))

	out := make([]model.SignalRequest, cfg.NumSignals)
	for i := range out {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during signal generation: %w", err)
		}
		out[i] = generateSingleSignal(i, devices, runID)
	}

	stats.SignalsGenerated = len(out)
	return out, nil
}

func generateSingleSignal(index, devices int, runID string) model.SignalRequest {
	k := kinds[(index/devices)%len(kinds)]
	value := k.min + getRandomFloat()*k.width
	if k.name == "status" {
		value = float64(int(value + 0.5))
	}
	return model.SignalRequest{
		DeviceID:   deviceID(index % devices),
		SignalType: k.name,
		Value:      value,
		Unit:       k.unit,
		Metadata: map[string]any{
			runIDKey:   runID,
			"sequence": index,
		},
	}
}
