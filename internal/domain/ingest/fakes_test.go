package ingest_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/signal-gateway/internal/domain/model"
)

// fakeSink records calls and fails on demand.
type fakeSink struct {
	name  string
	delay time.Duration

	// failOn decides per signal; nil means never.
	failOn func(model.Signal) error
	// health result.
	healthy   bool
	healthErr error
	panicking bool
	ignoreCtx bool

	mu         sync.Mutex
	writes     []model.Signal
	batches    [][]model.Signal
	healthHits int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFake(name string) *fakeSink {
	return &fakeSink{name: name, healthy: true}
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) wait(ctx context.Context) error {
	if f.delay == 0 {
		return nil
	}
	if f.ignoreCtx {
		time.Sleep(f.delay)
		return nil
	}
	select {
	case <-time.After(f.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeSink) Write(ctx context.Context, s model.Signal) error {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	if f.panicking {
		panic("driver exploded")
	}
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	f.writes = append(f.writes, s)
	f.mu.Unlock()
	if f.failOn != nil {
		return f.failOn(s)
	}
	return nil
}

func (f *fakeSink) WriteBatch(ctx context.Context, signals []model.Signal) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.mu.Lock()
	f.batches = append(f.batches, append([]model.Signal(nil), signals...))
	f.mu.Unlock()
	if f.failOn != nil {
		for _, s := range signals {
			if err := f.failOn(s); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *fakeSink) HealthCheck(ctx context.Context) (bool, error) {
	f.mu.Lock()
	f.healthHits++
	f.mu.Unlock()
	if f.panicking {
		panic("health check exploded")
	}
	if err := f.wait(ctx); err != nil {
		return false, err
	}
	return f.healthy, f.healthErr
}

func (f *fakeSink) Writes() []model.Signal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Signal(nil), f.writes...)
}

func (f *fakeSink) Batches() [][]model.Signal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]model.Signal(nil), f.batches...)
}

func (f *fakeSink) HealthHits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthHits
}

func failAlways(msg string) func(model.Signal) error {
	err := errors.New(msg)
	return func(model.Signal) error { return err }
}
