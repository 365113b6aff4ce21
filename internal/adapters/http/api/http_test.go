package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/signal-gateway/internal/adapters/http/api"
	"github.com/okian/signal-gateway/internal/adapters/repository"
	service "github.com/okian/signal-gateway/internal/app"
	"github.com/okian/signal-gateway/internal/domain/ingest"
	"github.com/okian/signal-gateway/internal/domain/model"
	"github.com/okian/signal-gateway/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

// mockDependencies records calls and returns canned results.
type mockDependencies struct {
	ingestErr error
	batchErr  error
	ingested  []model.Signal
	batches   [][]model.Signal

	snapshot  ingest.HealthSnapshot
	sinkErr   error
	sinkState bool

	history    []model.Signal
	queryErr   error
	lastDevice string
	lastLimit  int

	sendErr error
	sentKey string
	sentMsg string
}

func (m *mockDependencies) IngestOne(_ context.Context, s model.Signal) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.ingested = append(m.ingested, s)
	return m.ingestErr
}

func (m *mockDependencies) IngestBatch(_ context.Context, signals []model.Signal) error {
	for i, s := range signals {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("signal %d: %w", i, err)
		}
	}
	m.batches = append(m.batches, signals)
	return m.batchErr
}

func (m *mockDependencies) CheckHealth(context.Context) (ingest.HealthSnapshot, error) {
	return m.snapshot, nil
}

func (m *mockDependencies) CheckSink(_ context.Context, name string) (bool, error) {
	if m.sinkErr != nil {
		return false, m.sinkErr
	}
	return m.sinkState, nil
}

func (m *mockDependencies) DeviceSignals(_ context.Context, deviceID string, limit int) ([]model.Signal, error) {
	m.lastDevice, m.lastLimit = deviceID, limit
	return m.history, m.queryErr
}

func (m *mockDependencies) LatestSignals(_ context.Context, limit int) ([]model.Signal, error) {
	m.lastLimit = limit
	return m.history, m.queryErr
}

func (m *mockDependencies) SendTestMessage(_ context.Context, key, message string) error {
	m.sentKey, m.sentMsg = key, message
	return m.sendErr
}

type mockStatsProvider struct {
	stats service.Stats
}

func (m *mockStatsProvider) GetStats() service.Stats { return m.stats }

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newMux(deps *mockDependencies, maxBatch int) *http.ServeMux {
	stats := &mockStatsProvider{stats: service.Stats{Service: "Device Signal Gateway", Version: "1.0.0", Started: true}}
	mux := http.NewServeMux()
	api.NewServer(deps, stats, maxBatch).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestServer_Register(t *testing.T) {
	Convey("Given a new API server", t, func() {
		Convey("When registering on a nil mux", func() {
			server := api.NewServer(&mockDependencies{}, &mockStatsProvider{}, 10)

			Convey("Then it should panic", func() {
				So(func() { server.Register(context.Background(), nil) }, ShouldPanic)
			})
		})

		Convey("When registering routes", func() {
			mux := newMux(&mockDependencies{}, 10)

			Convey("Then liveness should answer without touching sinks", func() {
				w, _ := do(mux, http.MethodGet, "/healthz", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"status":"ok"`)
			})

			Convey("And metrics should be served from the custom registry", func() {
				// Touch a route first so the HTTP collectors have samples.
				do(mux, http.MethodGet, "/healthz", "")
				w, _ := do(mux, http.MethodGet, "/metrics", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "gateway_http_requests_total")
			})

			Convey("And status should carry the service stats", func() {
				w, env := do(mux, http.MethodGet, "/api/status", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(env.Success, ShouldBeTrue)
				So(string(env.Data), ShouldContainSubstring, `"service":"Device Signal Gateway"`)
			})

			Convey("And the wrong method should be rejected", func() {
				w, _ := do(mux, http.MethodGet, "/api/signals", "")
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
			})
		})
	})
}

func TestSignalsHandler(t *testing.T) {
	Convey("Given the signal routes", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps, 3)

		Convey("When posting a valid signal", func() {
			w, env := do(mux, http.MethodPost, "/api/signals",
				`{"device_id":"pump-1","signal_type":"pressure","value":2.5,"unit":"bar"}`)

			Convey("Then it should be ingested with an id and timestamp", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(env.Success, ShouldBeTrue)
				So(env.Message, ShouldEqual, "Success")
				So(string(env.Data), ShouldEqual, `"Signal processed successfully"`)
				So(len(deps.ingested), ShouldEqual, 1)
				So(deps.ingested[0].ID, ShouldNotBeEmpty)
				So(deps.ingested[0].Timestamp.IsZero(), ShouldBeFalse)
				So(deps.ingested[0].Unit, ShouldEqual, "bar")
			})
		})

		Convey("When posting malformed JSON", func() {
			w, env := do(mux, http.MethodPost, "/api/signals", `{"device_id":`)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(env.Success, ShouldBeFalse)
			So(env.Message, ShouldStartWith, "api.post_signal: bad request")
		})

		Convey("When posting a signal without device id", func() {
			w, env := do(mux, http.MethodPost, "/api/signals", `{"signal_type":"t","value":1}`)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(env.Message, ShouldEqual, "invalid signal: device_id must not be empty")
		})

		Convey("When a sink fails", func() {
			deps.ingestErr = errors.New("ingest one: stream: broker down")
			w, env := do(mux, http.MethodPost, "/api/signals", `{"device_id":"d","signal_type":"t","value":1}`)

			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(env.Success, ShouldBeFalse)
			So(env.Message, ShouldEqual, "ingest one: stream: broker down")
		})

		Convey("When the service is not started", func() {
			deps.ingestErr = service.ErrNotStarted
			w, _ := do(mux, http.MethodPost, "/api/signals", `{"device_id":"d","signal_type":"t","value":1}`)

			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When posting a batch", func() {
			w, env := do(mux, http.MethodPost, "/api/signals/batch",
				`[{"device_id":"a","signal_type":"t","value":1},{"device_id":"b","signal_type":"t","value":2}]`)

			Convey("Then every signal gets its own id", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(string(env.Data), ShouldEqual, `"Processed 2 signals successfully"`)
				So(len(deps.batches), ShouldEqual, 1)
				So(deps.batches[0][0].ID, ShouldNotEqual, deps.batches[0][1].ID)
			})
		})

		Convey("When a batch exceeds the limit", func() {
			w, env := do(mux, http.MethodPost, "/api/signals/batch",
				`[{"device_id":"a","signal_type":"t"},{"device_id":"a","signal_type":"t"},{"device_id":"a","signal_type":"t"},{"device_id":"a","signal_type":"t"}]`)

			So(w.Code, ShouldEqual, http.StatusRequestEntityTooLarge)
			So(env.Message, ShouldContainSubstring, "4 signals, at most 3 allowed")
			So(deps.batches, ShouldBeEmpty)
		})

		Convey("When a batch holds an invalid signal", func() {
			w, env := do(mux, http.MethodPost, "/api/signals/batch",
				`[{"device_id":"a","signal_type":"t"},{"device_id":"a","signal_type":""}]`)

			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(env.Message, ShouldStartWith, "signal 1: ")
		})

		Convey("When a batch partially fails", func() {
			deps.batchErr = errors.New("ingest batch: relational: 1 of 2 failed")
			w, env := do(mux, http.MethodPost, "/api/signals/batch",
				`[{"device_id":"a","signal_type":"t"},{"device_id":"b","signal_type":"t"}]`)

			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(env.Message, ShouldEqual, "ingest batch: relational: 1 of 2 failed")
		})
	})
}

func TestHistoryHandlers(t *testing.T) {
	Convey("Given the history routes", t, func() {
		deps := &mockDependencies{history: []model.Signal{{ID: "1", DeviceID: "pump-1", SignalType: "t"}}}
		mux := newMux(deps, 10)

		Convey("When reading one device with a limit", func() {
			w, env := do(mux, http.MethodGet, "/api/signals/device/pump-1?limit=5", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.lastDevice, ShouldEqual, "pump-1")
			So(deps.lastLimit, ShouldEqual, 5)
			var got []model.Signal
			So(json.Unmarshal(env.Data, &got), ShouldBeNil)
			So(got[0].ID, ShouldEqual, "1")
		})

		Convey("When the limit is not a number", func() {
			do(mux, http.MethodGet, "/api/signals/latest?limit=abc", "")

			Convey("Then the store default applies", func() {
				So(deps.lastLimit, ShouldEqual, 0)
			})
		})

		Convey("When the store rejects the limit", func() {
			deps.queryErr = fmt.Errorf("%w: -1", repository.ErrInvalidLimit)
			w, _ := do(mux, http.MethodGet, "/api/signals/latest?limit=-1", "")

			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When there is no history", func() {
			deps.history = nil
			_, env := do(mux, http.MethodGet, "/api/signals/latest", "")

			So(string(env.Data), ShouldEqual, "[]")
		})

		Convey("When no relational store is configured", func() {
			deps.queryErr = service.ErrQueryUnavailable
			w, env := do(mux, http.MethodGet, "/api/signals/device/x", "")

			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(env.Success, ShouldBeFalse)
		})
	})
}

func TestHealthHandler(t *testing.T) {
	Convey("Given the health routes", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps, 10)

		Convey("When every sink is healthy", func() {
			deps.snapshot = ingest.HealthSnapshot{Sinks: map[string]bool{"mariadb": true, "kafka": true}, AllHealthy: true}
			w, env := do(mux, http.MethodGet, "/api/health", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(env.Success, ShouldBeTrue)
			So(string(env.Data), ShouldEqual, `{"kafka":true,"mariadb":true}`)
		})

		Convey("When one sink is down", func() {
			deps.snapshot = ingest.HealthSnapshot{Sinks: map[string]bool{"mariadb": true, "kafka": false}}
			w, env := do(mux, http.MethodGet, "/api/health", "")

			Convey("Then the snapshot is still returned with 503", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
				So(env.Success, ShouldBeFalse)
				So(string(env.Data), ShouldEqual, `{"kafka":false,"mariadb":true}`)
			})
		})

		Convey("When one sink is checked by name", func() {
			deps.sinkState = true
			w, env := do(mux, http.MethodGet, "/api/health/influxdb", "")

			So(w.Code, ShouldEqual, http.StatusOK)
			So(string(env.Data), ShouldEqual, `{"sink":"influxdb","healthy":true}`)
		})

		Convey("When an unknown sink is checked", func() {
			deps.sinkErr = fmt.Errorf("%w: nope", service.ErrUnknownSink)
			w, _ := do(mux, http.MethodGet, "/api/health/nope", "")

			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestStreamHandler(t *testing.T) {
	Convey("Given the test message route", t, func() {
		deps := &mockDependencies{}
		mux := newMux(deps, 10)

		Convey("When key and message are given", func() {
			w, env := do(mux, http.MethodPost, "/api/test/stream", `{"key":"k1","message":"hello"}`)

			So(w.Code, ShouldEqual, http.StatusOK)
			So(string(env.Data), ShouldEqual, `"Test message sent successfully"`)
			So(deps.sentKey, ShouldEqual, "k1")
			So(deps.sentMsg, ShouldEqual, "hello")
		})

		Convey("When the body is empty", func() {
			w, _ := do(mux, http.MethodPost, "/api/test/kafka", "")

			Convey("Then the defaults are sent", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.sentKey, ShouldEqual, "test")
				So(deps.sentMsg, ShouldEqual, "test message")
			})
		})

		Convey("When no stream sink is configured", func() {
			deps.sendErr = service.ErrPublishUnavailable
			w, _ := do(mux, http.MethodPost, "/api/test/stream", `{}`)

			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When the broker fails", func() {
			deps.sendErr = errors.New("send test message: no leader")
			w, env := do(mux, http.MethodPost, "/api/test/stream", `{}`)

			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(env.Message, ShouldEqual, "send test message: no leader")
		})
	})
}
