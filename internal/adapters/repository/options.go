package repository

import (
	"time"

	"github.com/okian/signal-gateway/pkg/logger"
)

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithName overrides the sink name reported to the coordinator.
func WithName(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithPool sizes the connection pool. Zero values keep the driver defaults.
func WithPool(maxOpen, maxIdle int, maxLifetime time.Duration) Option {
	return func(s *Store) {
		s.maxOpen = maxOpen
		s.maxIdle = maxIdle
		s.maxLifetime = maxLifetime
	}
}

// WithAutoMigrate creates or updates the signal table when the store opens.
func WithAutoMigrate(enabled bool) Option {
	return func(s *Store) {
		s.autoMigrate = enabled
	}
}
