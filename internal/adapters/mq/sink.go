// Package mq publishes signals to a message broker for downstream stream
// consumers. The broker is pluggable: Kafka, MQTT or Redis Streams.
package mq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/okian/signal-gateway/internal/domain/ingest"
	"github.com/okian/signal-gateway/internal/domain/model"
	"github.com/okian/signal-gateway/pkg/logger"
)

// Message is one broker record.
type Message struct {
	// Key partitions the record ("<device_id>_<signal_type>" for signals).
	Key string
	// Route is appended to hierarchical topics ("<device_id>/<signal_type>").
	Route   string
	Payload []byte
}

// Transport delivers messages to one broker.
type Transport interface {
	Name() string
	Send(ctx context.Context, msgs []Message) error
	Ping(ctx context.Context) (bool, error)
	Close() error
}

// Sink adapts a Transport to ingest.Sink.
type Sink struct {
	transport Transport
	name      string
	logger    logger.Logger
}

var _ ingest.Sink = (*Sink)(nil)

// Option applies a configuration option to the Sink.
type Option func(*Sink)

// WithName overrides the sink name, which defaults to the transport's.
func WithName(name string) Option {
	return func(s *Sink) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSink wraps t.
func NewSink(t Transport, opts ...Option) *Sink {
	s := &Sink{transport: t, name: t.Name()}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("mq")
	}
	return s
}

// Name implements ingest.Sink.
func (s *Sink) Name() string { return s.name }

// Write publishes one signal.
func (s *Sink) Write(ctx context.Context, sig model.Signal) error {
	m, err := encode(sig)
	if err != nil {
		return err
	}
	return s.transport.Send(ctx, []Message{m})
}

// WriteBatch publishes all signals with one transport call.
func (s *Sink) WriteBatch(ctx context.Context, signals []model.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	msgs := make([]Message, len(signals))
	for i, sig := range signals {
		m, err := encode(sig)
		if err != nil {
			return err
		}
		msgs[i] = m
	}
	return s.transport.Send(ctx, msgs)
}

// Publish sends an arbitrary payload under key, bypassing the signal codec.
func (s *Sink) Publish(ctx context.Context, key string, payload []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.logger.Debug(ctx, "publishing raw message", logger.String("key", key), logger.Int("bytes", len(payload)))
	return s.transport.Send(ctx, []Message{{Key: key, Route: key, Payload: payload}})
}

// HealthCheck asks the transport whether the broker is reachable.
func (s *Sink) HealthCheck(ctx context.Context) (bool, error) {
	return s.transport.Ping(ctx)
}

// Close releases the broker connection.
func (s *Sink) Close() error {
	return s.transport.Close()
}

func encode(sig model.Signal) (Message, error) {
	payload, err := json.Marshal(sig)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return Message{
		Key:     sig.StreamKey(),
		Route:   sig.DeviceID + "/" + sig.SignalType,
		Payload: payload,
	}, nil
}

// partialFailure formats the outcome of a multi-message send.
func partialFailure(failed, total int, first error) error {
	if total == 1 {
		return first
	}
	return fmt.Errorf("%d of %d messages failed: %w", failed, total, first)
}
