package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/signal-gateway/pkg/logger"
	"github.com/okian/signal-gateway/pkg/metrics"
)

// fanOut runs fn for every index in [0, n) concurrently and waits for all of
// them. The result is index-aligned. A failing call never cancels the others.
// limit > 0 caps the number of calls in flight.
func fanOut(ctx context.Context, n, limit int, fn func(ctx context.Context, i int) error) []error {
	errs := make([]error, n)
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i := range n {
		g.Go(func() error {
			errs[i] = fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// within runs fn under its own deadline. fn runs on a separate goroutine so
// a call that ignores its context still returns to the caller on time; its
// late result is discarded.
func within(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	// The sink's own timeout only fires when it ends before the caller's deadline.
	ownDeadline := timeout > 0
	if parent, ok := ctx.Deadline(); ok && ownDeadline {
		ownDeadline = time.Now().Add(timeout).Before(parent)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %v", ErrSinkPanic, r)
			}
		}()
		done <- fn(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			if ownDeadline {
				return fmt.Errorf("%w after %s", ErrSinkTimeout, timeout)
			}
			return fmt.Errorf("%w: caller %w", ErrSinkTimeout, context.DeadlineExceeded)
		}
		return ctx.Err()
	}
}

// invoke runs one sink operation with its timeout, then records metrics.
func invoke(ctx context.Context, log logger.Logger, sink, op string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := time.Now()
	err := within(ctx, timeout, fn)
	latency := time.Since(start)
	metrics.RecordSinkCall(sink, op, err == nil, float64(latency.Microseconds())/1000)

	if err != nil {
		log.Debug(ctx, "sink call failed",
			logger.String("sink", sink),
			logger.String("op", op),
			logger.Duration("latency", latency),
			logger.Error(err),
		)
	}
	return err
}
