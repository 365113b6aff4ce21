// Package service is the ingestion façade: it owns the sinks, the write
// coordinator and the health aggregator, and implements the dependencies
// required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/okian/signal-gateway/internal/adapters/repository"
	"github.com/okian/signal-gateway/internal/config"
	"github.com/okian/signal-gateway/internal/domain/ingest"
	"github.com/okian/signal-gateway/internal/domain/model"
	"github.com/okian/signal-gateway/pkg/logger"
)

// Publisher sends raw messages to the stream sink.
type Publisher interface {
	Publish(ctx context.Context, key string, payload []byte) error
}

// Service wires sinks to the coordinator once and serves every request
// through them.
type Service struct {
	mu sync.RWMutex

	cfg     *config.Config
	version string
	now     func() time.Time

	// Sinks
	regs         []ingest.Registration
	closers      []io.Closer
	built        bool
	reader       repository.Reader
	publisher    Publisher
	ownReader    bool
	ownPublisher bool

	// Core components
	coordinator *ingest.Coordinator
	health      *ingest.HealthAggregator

	// State
	started   bool
	startedAt time.Time

	logger logger.Logger
}

// New constructs a Service. Sinks are opened by Start.
func New(opts ...Option) *Service {
	s := &Service{
		version: "dev",
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds the sinks (unless registrations were injected) and the
// coordinator. Calling Start twice is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.cfg == nil {
		s.cfg = config.New(ctx)
	}

	s.logger.Info(ctx, "starting signal gateway...")

	if len(s.regs) == 0 {
		if err := s.buildSinks(ctx); err != nil {
			return fmt.Errorf("build sinks: %w", err)
		}
		s.built = true
	}

	opts := []ingest.Option{
		ingest.WithLogger(s.logger.Named("ingest")),
		ingest.WithRecordConcurrency(s.cfg.Ingest.RecordConcurrency),
	}
	coordinator, err := ingest.NewCoordinator(s.regs, opts...)
	if err != nil {
		s.closeAll(ctx)
		return fmt.Errorf("build coordinator: %w", err)
	}
	s.coordinator = coordinator
	health, err := ingest.NewHealthAggregator(s.regs, opts...)
	if err != nil {
		s.closeAll(ctx)
		return fmt.Errorf("build health aggregator: %w", err)
	}
	s.health = health

	s.started = true
	s.startedAt = s.now().UTC()
	s.logger.Info(ctx, "signal gateway started", logger.Strings("sinks", coordinator.Sinks()))
	return nil
}

// Stop closes every sink the service opened.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping signal gateway...")
	s.closeAll(ctx)
	if s.built {
		// Sinks built from config are reopened by the next Start.
		s.regs, s.built = nil, false
	}
	s.dropOwnedQueries()
	s.started = false
	s.logger.Info(ctx, "signal gateway stopped")
}

// dropOwnedQueries forgets the reader and publisher taken from built sinks.
// Ones injected through options are kept.
func (s *Service) dropOwnedQueries() {
	if s.ownReader {
		s.reader, s.ownReader = nil, false
	}
	if s.ownPublisher {
		s.publisher, s.ownPublisher = nil, false
	}
}

func (s *Service) components() (*ingest.Coordinator, *ingest.HealthAggregator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, ErrNotStarted
	}
	return s.coordinator, s.health, nil
}

// stamp assigns the receive time to signals that carry none.
func (s *Service) stamp(sig model.Signal) model.Signal {
	if sig.Timestamp.IsZero() {
		sig.Timestamp = s.now()
	}
	sig.Timestamp = sig.Timestamp.UTC()
	return sig
}

// IngestOne validates sig and writes it to every sink.
func (s *Service) IngestOne(ctx context.Context, sig model.Signal) error {
	coordinator, _, err := s.components()
	if err != nil {
		return err
	}
	if err := sig.Validate(); err != nil {
		return err
	}
	return coordinator.IngestOne(ctx, s.stamp(sig))
}

// IngestBatch validates every signal, then writes the batch. One invalid
// signal rejects the whole batch before any sink is touched.
func (s *Service) IngestBatch(ctx context.Context, signals []model.Signal) error {
	coordinator, _, err := s.components()
	if err != nil {
		return err
	}
	batch := make([]model.Signal, len(signals))
	for i, sig := range signals {
		if err := sig.Validate(); err != nil {
			return fmt.Errorf("signal %d: %w", i, err)
		}
		batch[i] = s.stamp(sig)
	}
	return coordinator.IngestBatch(ctx, batch)
}

// CheckHealth checks every sink.
func (s *Service) CheckHealth(ctx context.Context) (ingest.HealthSnapshot, error) {
	_, health, err := s.components()
	if err != nil {
		return ingest.HealthSnapshot{}, err
	}
	return health.CheckAll(ctx), nil
}

// CheckSink checks one sink by name.
func (s *Service) CheckSink(ctx context.Context, name string) (bool, error) {
	_, health, err := s.components()
	if err != nil {
		return false, err
	}
	healthy, found := health.CheckOne(ctx, name)
	if !found {
		return false, fmt.Errorf("%w: %s", ErrUnknownSink, name)
	}
	return healthy, nil
}

// FullHealthCheck returns an error naming every unreachable sink.
func (s *Service) FullHealthCheck(ctx context.Context) error {
	snap, err := s.CheckHealth(ctx)
	if err != nil {
		return err
	}
	for _, name := range snap.Order {
		s.logger.Info(ctx, "sink health", logger.String("sink", name), logger.Bool("healthy", snap.Sinks[name]))
	}
	if !snap.AllHealthy {
		return fmt.Errorf("%w: %s", ErrUnhealthy, strings.Join(snap.Unhealthy(), ", "))
	}
	return nil
}

// DeviceSignals returns the newest signals of one device.
func (s *Service) DeviceSignals(ctx context.Context, deviceID string, limit int) ([]model.Signal, error) {
	reader, err := s.queryReader()
	if err != nil {
		return nil, err
	}
	return reader.ByDevice(ctx, deviceID, limit)
}

// LatestSignals returns the newest signals across devices.
func (s *Service) LatestSignals(ctx context.Context, limit int) ([]model.Signal, error) {
	reader, err := s.queryReader()
	if err != nil {
		return nil, err
	}
	return reader.Latest(ctx, limit)
}

func (s *Service) queryReader() (repository.Reader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.reader == nil {
		return nil, ErrQueryUnavailable
	}
	return s.reader, nil
}

// SendTestMessage publishes message under key on the stream sink.
func (s *Service) SendTestMessage(ctx context.Context, key, message string) error {
	s.mu.RLock()
	publisher := s.publisher
	s.mu.RUnlock()
	if publisher == nil {
		return ErrPublishUnavailable
	}
	if err := publisher.Publish(ctx, key, []byte(message)); err != nil {
		return fmt.Errorf("send test message: %w", err)
	}
	return nil
}

// Stats describes the running service.
type Stats struct {
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Started   bool      `json:"started"`
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
	Sinks     []string  `json:"sinks"`
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{
		Service: "Device Signal Gateway",
		Version: s.version,
		Started: s.started,
	}
	if s.started {
		st.StartedAt = s.startedAt
		st.Uptime = s.now().Sub(s.startedAt).Truncate(time.Second).String()
		st.Sinks = s.coordinator.Sinks()
	}
	return st
}

// IsValidation reports whether err was caused by an invalid signal.
func IsValidation(err error) bool {
	return errors.Is(err, model.ErrInvalidSignal)
}
