package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/signal-gateway/internal/domain/model"
	"github.com/okian/signal-gateway/pkg/logger"
	"github.com/okian/signal-gateway/pkg/metrics"
)

// Aggregated error operations.
const (
	opIngestOne   = "ingest one"
	opIngestBatch = "ingest batch"
)

// Coordinator writes signals to every registered sink concurrently.
// It holds no mutable state and is safe for concurrent use.
type Coordinator struct {
	regs []Registration
	cfg  settings
}

// NewCoordinator validates the registrations and keeps a private copy of them.
func NewCoordinator(regs []Registration, opts ...Option) (*Coordinator, error) {
	if err := checkRegistrations(regs); err != nil {
		return nil, err
	}
	return &Coordinator{
		regs: append([]Registration(nil), regs...),
		cfg:  newSettings(opts),
	}, nil
}

func checkRegistrations(regs []Registration) error {
	if len(regs) == 0 {
		return ErrNoSinks
	}
	return checkSinks(regs)
}

// checkSinks rejects nil sinks and duplicate names.
func checkSinks(regs []Registration) error {
	seen := make(map[string]struct{}, len(regs))
	for i, r := range regs {
		if r.Sink == nil {
			return fmt.Errorf("%w: index %d", ErrNilSink, i)
		}
		name := r.Sink.Name()
		if _, ok := seen[name]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateSink, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// Sinks returns the registered sink names in registration order.
func (c *Coordinator) Sinks() []string {
	names := make([]string, len(c.regs))
	for i, r := range c.regs {
		names[i] = r.Sink.Name()
	}
	return names
}

// IngestOne writes s to every sink and waits for all of them. Sinks that
// succeeded are not rolled back when others fail.
func (c *Coordinator) IngestOne(ctx context.Context, s model.Signal) error {
	s = c.identify(s)

	errs := fanOut(ctx, len(c.regs), 0, func(ctx context.Context, i int) error {
		r := c.regs[i]
		err := invoke(ctx, c.cfg.logger, r.Sink.Name(), OpWrite, r.WriteTimeout, func(ctx context.Context) error {
			return r.Sink.Write(ctx, s)
		})
		return sinkError(r, OpWrite, err)
	})

	err := aggregate(opIngestOne, errs)
	metrics.RecordSignals("one", 1, err == nil)
	if err != nil {
		c.logFailure(ctx, err, 1)
	}
	return err
}

// IngestBatch writes signals to every sink. Native-batch sinks get one
// WriteBatch call; per-record sinks get one Write per signal. An empty batch
// touches no sink.
func (c *Coordinator) IngestBatch(ctx context.Context, signals []model.Signal) error {
	if len(signals) == 0 {
		return nil
	}

	batch := make([]model.Signal, len(signals))
	for i := range signals {
		batch[i] = c.identify(signals[i])
	}
	metrics.RecordBatchSize(len(batch))

	errs := fanOut(ctx, len(c.regs), 0, func(ctx context.Context, i int) error {
		r := c.regs[i]
		if r.Batch == PerRecordBatch {
			return c.writeEach(ctx, r, batch)
		}
		err := invoke(ctx, c.cfg.logger, r.Sink.Name(), OpWriteBatch, r.WriteTimeout, func(ctx context.Context) error {
			return r.Sink.WriteBatch(ctx, batch)
		})
		return sinkError(r, OpWriteBatch, err)
	})

	err := aggregate(opIngestBatch, errs)
	metrics.RecordSignals("batch", len(batch), err == nil)
	if err != nil {
		c.logFailure(ctx, err, len(batch))
	}
	return err
}

// writeEach issues one concurrent Write per signal and reports only how many failed.
func (c *Coordinator) writeEach(ctx context.Context, r Registration, batch []model.Signal) error {
	errs := fanOut(ctx, len(batch), c.cfg.recordLimit, func(ctx context.Context, j int) error {
		return invoke(ctx, c.cfg.logger, r.Sink.Name(), OpWrite, r.WriteTimeout, func(ctx context.Context) error {
			return r.Sink.Write(ctx, batch[j])
		})
	})

	be := &BatchError{Total: len(batch)}
	for _, err := range errs {
		if err == nil {
			continue
		}
		be.Failed++
		if be.First == nil {
			be.First = err
		}
	}
	if be.Failed == 0 {
		return nil
	}
	return sinkError(r, OpWriteBatch, be)
}

// identify assigns an ID before fan-out so every sink sees the same one.
func (c *Coordinator) identify(s model.Signal) model.Signal {
	if s.ID == "" {
		s.ID = c.cfg.newID()
	}
	return s
}

func (c *Coordinator) logFailure(ctx context.Context, err error, n int) {
	var agg *AggregatedError
	if !errors.As(err, &agg) {
		return
	}
	c.cfg.logger.Warn(ctx, "ingest partially failed",
		logger.String("op", agg.Op),
		logger.Strings("failed_sinks", agg.Sinks()),
		logger.Int("signals", n),
		logger.Error(err),
	)
}

func sinkError(r Registration, op string, err error) error {
	if err == nil {
		return nil
	}
	return &SinkError{Sink: r.Sink.Name(), Op: op, Err: err}
}
