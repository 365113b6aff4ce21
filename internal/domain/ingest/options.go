package ingest

import (
	"github.com/google/uuid"

	"github.com/okian/signal-gateway/pkg/logger"
)

// Option configures a Coordinator or a HealthAggregator.
type Option func(*settings)

type settings struct {
	logger      logger.Logger
	recordLimit int
	newID       func() string
}

func newSettings(opts []Option) settings {
	s := settings{newID: uuid.NewString}
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("ingest")
	}
	return s
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRecordConcurrency bounds the in-flight writes of one per-record batch.
// Zero or less means unbounded.
func WithRecordConcurrency(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.recordLimit = n
		}
	}
}

// WithIDGenerator replaces the generator used for signals that arrive without an ID.
func WithIDGenerator(fn func() string) Option {
	return func(s *settings) {
		if fn != nil {
			s.newID = fn
		}
	}
}
