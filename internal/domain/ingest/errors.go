package ingest

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors.
var (
	ErrNoSinks       = errors.New("no sinks registered")
	ErrNilSink       = errors.New("registration has no sink")
	ErrDuplicateSink = errors.New("duplicate sink name")
	ErrSinkTimeout   = errors.New("sink call timed out")
	ErrSinkPanic     = errors.New("sink panicked")
	ErrPartialBatch  = errors.New("partial batch failure")

	errNotReachable = errors.New("sink reported unreachable")
)

// Sink operations, as reported in SinkError.Op and metrics.
const (
	OpWrite      = "write"
	OpWriteBatch = "write_batch"
	OpHealth     = "health"
)

// SinkError is the failure of one operation on one named sink.
type SinkError struct {
	Sink string
	Op   string
	Err  error
}

func (e *SinkError) Error() string {
	return e.Sink + ": " + e.Err.Error()
}

func (e *SinkError) Unwrap() error { return e.Err }

// BatchError reports how many records of a per-record batch failed.
// The individual records are not identified.
type BatchError struct {
	Failed int
	Total  int
	// First is one of the underlying failures, kept for errors.Is/As.
	First error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%d of %d failed", e.Failed, e.Total)
}

func (e *BatchError) Unwrap() []error {
	if e.First == nil {
		return []error{ErrPartialBatch}
	}
	return []error{ErrPartialBatch, e.First}
}

// AggregatedError collects every failed sink of one ingest call, in
// registration order.
type AggregatedError struct {
	Op       string
	Failures []*SinkError
}

func (e *AggregatedError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = f.Error()
	}
	return e.Op + ": " + strings.Join(parts, ", ")
}

func (e *AggregatedError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Sinks returns the names of the failed sinks.
func (e *AggregatedError) Sinks() []string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Sink
	}
	return names
}

// aggregate turns index-aligned outcomes into an AggregatedError, or nil.
func aggregate(op string, errs []error) error {
	var failures []*SinkError
	for _, err := range errs {
		if err == nil {
			continue
		}
		var se *SinkError
		if !errors.As(err, &se) {
			se = &SinkError{Sink: "unknown", Err: err}
		}
		failures = append(failures, se)
	}
	if len(failures) == 0 {
		return nil
	}
	return &AggregatedError{Op: op, Failures: failures}
}
