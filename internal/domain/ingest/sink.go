// Package ingest fans signals out to every configured sink and aggregates
// the per-sink outcomes into one result.
package ingest

import (
	"context"
	"time"

	"github.com/okian/signal-gateway/internal/domain/model"
)

// Default per-sink timeouts.
const (
	DefaultWriteTimeout  = 5 * time.Second
	DefaultHealthTimeout = 3 * time.Second
)

// Sink is a downstream system that stores or forwards signals.
// All methods must be safe for concurrent use.
type Sink interface {
	Name() string
	Write(ctx context.Context, s model.Signal) error
	// WriteBatch must treat an empty slice as a no-op.
	WriteBatch(ctx context.Context, signals []model.Signal) error
	HealthCheck(ctx context.Context) (bool, error)
}

// BatchMode selects how IngestBatch drives a sink.
type BatchMode int

const (
	// NativeBatch hands the whole batch to Sink.WriteBatch in one call.
	NativeBatch BatchMode = iota
	// PerRecordBatch issues one concurrent Sink.Write per signal and reports
	// only the failure count.
	PerRecordBatch
)

func (m BatchMode) String() string {
	if m == PerRecordBatch {
		return "per-record"
	}
	return "native"
}

// Registration binds a sink to the policy the coordinator applies to it.
type Registration struct {
	Sink          Sink
	Batch         BatchMode
	WriteTimeout  time.Duration
	HealthTimeout time.Duration
}

// RegisterOption adjusts a Registration.
type RegisterOption func(*Registration)

// PerRecord marks the sink as single-row: batches are written record by record.
func PerRecord() RegisterOption {
	return func(r *Registration) { r.Batch = PerRecordBatch }
}

// WithWriteTimeout bounds every Write and WriteBatch call on the sink.
func WithWriteTimeout(d time.Duration) RegisterOption {
	return func(r *Registration) {
		if d > 0 {
			r.WriteTimeout = d
		}
	}
}

// WithHealthTimeout bounds every HealthCheck call on the sink.
func WithHealthTimeout(d time.Duration) RegisterOption {
	return func(r *Registration) {
		if d > 0 {
			r.HealthTimeout = d
		}
	}
}

// Register builds a Registration with default timeouts and native batching.
func Register(s Sink, opts ...RegisterOption) Registration {
	r := Registration{
		Sink:          s,
		Batch:         NativeBatch,
		WriteTimeout:  DefaultWriteTimeout,
		HealthTimeout: DefaultHealthTimeout,
	}
	for _, opt := range opts {
		opt(&r)
	}
	return r
}
