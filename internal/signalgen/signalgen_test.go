package signalgen

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/signal-gateway/internal/adapters/http/api"
	service "github.com/okian/signal-gateway/internal/app"
	"github.com/okian/signal-gateway/internal/domain/ingest"
	"github.com/okian/signal-gateway/internal/domain/model"
	"github.com/okian/signal-gateway/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// memStore is an in-memory sink that also answers history queries.
type memStore struct {
	mu      sync.Mutex
	signals []model.Signal
	failFor string
}

func (m *memStore) Name() string { return "memory" }

func (m *memStore) Write(_ context.Context, s model.Signal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.DeviceID == m.failFor {
		return errors.New("disk full")
	}
	m.signals = append(m.signals, s)
	return nil
}

func (m *memStore) WriteBatch(ctx context.Context, signals []model.Signal) error {
	for _, s := range signals {
		if err := m.Write(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) HealthCheck(context.Context) (bool, error) { return true, nil }

func (m *memStore) ByDevice(_ context.Context, deviceID string, limit int) ([]model.Signal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Signal
	for _, s := range m.signals {
		if s.DeviceID == deviceID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) Latest(ctx context.Context, limit int) ([]model.Signal, error) {
	return nil, nil
}

func newGateway(store *memStore) (*httptest.Server, func()) {
	svc := service.New(
		service.WithRegistrations(ingest.Register(store)),
		service.WithReader(store),
	)
	if err := svc.Start(context.Background()); err != nil {
		panic(err)
	}
	mux := http.NewServeMux()
	api.NewServer(svc, svc, 100).Register(context.Background(), mux)
	srv := httptest.NewServer(mux)
	return srv, func() {
		srv.Close()
		svc.Stop()
	}
}

func TestGenerateSignals(t *testing.T) {
	convey.Convey("Given a generator config", t, func() {
		cfg := &Config{NumSignals: 12, Devices: 3}
		stats := &Stats{}

		convey.Convey("When signals are generated", func() {
			signals, err := generateSignals(context.Background(), cfg, "run-1", stats)

			convey.Convey("Then they spread over every device and are valid", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(signals), convey.ShouldEqual, 12)
				convey.So(stats.SignalsGenerated, convey.ShouldEqual, 12)

				perDevice := map[string]int{}
				for _, req := range signals {
					perDevice[req.DeviceID]++
					convey.So(model.NewSignal(req, time.Now()).Validate(), convey.ShouldBeNil)
					convey.So(req.Metadata[runIDKey], convey.ShouldEqual, "run-1")
				}
				convey.So(perDevice, convey.ShouldResemble, map[string]int{"device-000": 4, "device-001": 4, "device-002": 4})
			})
		})

		convey.Convey("When no signals are requested", func() {
			cfg.NumSignals = 0
			_, err := generateSignals(context.Background(), cfg, "run-1", stats)

			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func TestChunk(t *testing.T) {
	convey.Convey("Given seven signals", t, func() {
		signals := make([]model.SignalRequest, 7)

		convey.So(len(chunk(signals, 1)), convey.ShouldEqual, 7)
		convey.So(len(chunk(signals, 0)), convey.ShouldEqual, 7)

		parts := chunk(signals, 3)
		convey.So(len(parts), convey.ShouldEqual, 3)
		convey.So(len(parts[2]), convey.ShouldEqual, 1)
	})
}

func TestRun(t *testing.T) {
	convey.Convey("Given a running gateway", t, func() {
		store := &memStore{}
		srv, stop := newGateway(store)
		defer stop()

		cfg := &Config{
			BaseURL:      srv.URL,
			NumSignals:   20,
			Devices:      4,
			BatchSize:    1,
			Workers:      4,
			Timeout:      5 * time.Second,
			HistoryLimit: 100,
		}

		convey.Convey("When signals are posted one by one", func() {
			stats, err := Run(context.Background(), cfg)

			convey.Convey("Then every signal is accepted and read back", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(stats.SignalsAccepted, convey.ShouldEqual, 20)
				convey.So(stats.DevicesVerified, convey.ShouldEqual, 4)
				convey.So(stats.SignalsReadBack, convey.ShouldEqual, 20)
				convey.So(stats.SinkHealth, convey.ShouldResemble, map[string]bool{"memory": true})
			})
		})

		convey.Convey("When signals are posted in batches and saved", func() {
			cfg.BatchSize = 6
			cfg.OutputFile = filepath.Join(t.TempDir(), "out", "signals.json")
			stats, err := Run(context.Background(), cfg)

			convey.So(err, convey.ShouldBeNil)
			convey.So(stats.SignalsAccepted, convey.ShouldEqual, 20)
			convey.So(stats.SignalsReadBack, convey.ShouldEqual, 20)
			_, statErr := os.Stat(cfg.OutputFile)
			convey.So(statErr, convey.ShouldBeNil)
		})

		convey.Convey("When one device's writes fail", func() {
			store.failFor = "device-001"
			stats, err := Run(context.Background(), cfg)

			convey.Convey("Then its signals count as failed requests", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(stats.RequestsFailed, convey.ShouldEqual, 5)
				convey.So(stats.SignalsAccepted, convey.ShouldEqual, 15)
				convey.So(stats.SignalsReadBack, convey.ShouldEqual, 15)
			})
		})
	})

	convey.Convey("Given no gateway", t, func() {
		cfg := &Config{BaseURL: "http://127.0.0.1:1", NumSignals: 1, Timeout: time.Second}

		_, err := Run(context.Background(), cfg)

		convey.So(err, convey.ShouldNotBeNil)
	})
}
