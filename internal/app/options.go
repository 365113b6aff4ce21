package service

import (
	"time"

	"github.com/okian/signal-gateway/internal/adapters/repository"
	"github.com/okian/signal-gateway/internal/config"
	"github.com/okian/signal-gateway/internal/domain/ingest"
	"github.com/okian/signal-gateway/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the configuration sinks are built from.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRegistrations uses the given sinks instead of building them from config.
func WithRegistrations(regs ...ingest.Registration) Option {
	return func(s *Service) {
		s.regs = append(s.regs, regs...)
	}
}

// WithReader sets the store used for history queries.
func WithReader(r repository.Reader) Option {
	return func(s *Service) {
		if r != nil {
			s.reader = r
		}
	}
}

// WithPublisher sets the broker used for test messages.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithClock replaces time.Now for boundary timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithVersion sets the version reported by GetStats.
func WithVersion(v string) Option {
	return func(s *Service) {
		if v != "" {
			s.version = v
		}
	}
}
