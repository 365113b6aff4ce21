package service

import (
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"

	"github.com/okian/signal-gateway/internal/adapters/mq"
	"github.com/okian/signal-gateway/internal/adapters/repository"
	"github.com/okian/signal-gateway/internal/adapters/timeseries"
	"github.com/okian/signal-gateway/internal/config"
	"github.com/okian/signal-gateway/internal/domain/ingest"
	"github.com/okian/signal-gateway/pkg/logger"
)

// buildSinks opens every enabled sink once. On failure the sinks opened so
// far are closed again.
func (s *Service) buildSinks(ctx context.Context) (err error) {
	cfg := s.cfg
	defer func() {
		if err != nil {
			s.closeAll(ctx)
			s.regs = nil
			s.dropOwnedQueries()
		}
	}()

	if rc := cfg.Relational; rc.Enabled {
		store, err := repository.Open(ctx, rc.Driver, rc.DSN(),
			repository.WithLogger(s.logger.Named("repository")),
			repository.WithPool(rc.MaxOpenConns, rc.MaxIdleConns, rc.ConnMaxLifetime),
			repository.WithAutoMigrate(rc.AutoMigrate),
		)
		if err != nil {
			return err
		}
		s.track(store)
		s.regs = append(s.regs, ingest.Register(store,
			ingest.PerRecord(),
			ingest.WithWriteTimeout(rc.WriteTimeout),
			ingest.WithHealthTimeout(rc.HealthTimeout),
		))
		if s.reader == nil {
			s.reader, s.ownReader = store, true
		}
	}

	if tc := cfg.TimeSeries; tc.Enabled {
		sink, err := timeseries.Open(tc.URL, tc.AuthToken(), tc.Org, tc.TargetBucket(), tc.WriteTimeout,
			timeseries.WithLogger(s.logger.Named("timeseries")),
		)
		if err != nil {
			return err
		}
		s.track(sink)
		s.regs = append(s.regs, ingest.Register(sink,
			ingest.WithWriteTimeout(tc.WriteTimeout),
			ingest.WithHealthTimeout(tc.HealthTimeout),
		))
	}

	if sc := cfg.Stream; sc.Enabled {
		transport, err := newTransport(sc)
		if err != nil {
			return err
		}
		sink := mq.NewSink(transport, mq.WithLogger(s.logger.Named("mq")))
		s.track(sink)
		s.regs = append(s.regs, ingest.Register(sink,
			ingest.WithWriteTimeout(sc.WriteTimeout),
			ingest.WithHealthTimeout(sc.HealthTimeout),
		))
		if s.publisher == nil {
			s.publisher, s.ownPublisher = sink, true
		}
	}

	for _, r := range s.regs {
		s.logger.Info(ctx, "sink registered",
			logger.String("sink", r.Sink.Name()),
			logger.String("batch", r.Batch.String()),
			logger.Duration("write_timeout", r.WriteTimeout),
		)
	}
	return nil
}

func newTransport(sc config.StreamConfig) (mq.Transport, error) {
	switch sc.Kind {
	case config.StreamKafka:
		return mq.NewKafka(sc.Kafka.Brokers, sc.Topic, sc.ClientID, sc.WriteTimeout)
	case config.StreamMQTT:
		return mq.NewMQTT(mq.MQTTSettings{
			Broker:         sc.MQTT.Broker,
			ClientID:       sc.ClientID,
			Username:       sc.MQTT.Username,
			Password:       sc.MQTT.Password,
			Topic:          sc.Topic,
			QoS:            byte(sc.MQTT.QoS),
			ConnectTimeout: sc.HealthTimeout,
		}), nil
	case config.StreamRedis:
		return mq.NewRedis(&redis.Options{
			Addr:     sc.Redis.Addr,
			Password: sc.Redis.Password,
			DB:       sc.Redis.DB,
		}, sc.Topic, sc.Redis.MaxLen), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStreamKind, sc.Kind)
	}
}

func (s *Service) track(c io.Closer) {
	s.closers = append(s.closers, c)
}

func (s *Service) closeAll(ctx context.Context) {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			s.logger.Warn(ctx, "closing sink failed", logger.Error(err))
		}
	}
	s.closers = nil
}
