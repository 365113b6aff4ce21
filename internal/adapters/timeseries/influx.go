// Package timeseries writes signals to InfluxDB as line-protocol points.
package timeseries

import (
	"context"
	"errors"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/okian/signal-gateway/internal/domain/ingest"
	"github.com/okian/signal-gateway/internal/domain/model"
	"github.com/okian/signal-gateway/pkg/logger"
)

// DefaultName is the sink name reported to the coordinator.
const DefaultName = "influxdb"

// ErrNotConfigured is returned by Open when the URL is missing.
var ErrNotConfigured = errors.New("influxdb url not configured")

// Writer is the subset of the blocking write API the sink needs.
type Writer interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Pinger reports server reachability.
type Pinger interface {
	Ping(ctx context.Context) (bool, error)
}

// Sink writes signals to InfluxDB.
type Sink struct {
	name   string
	writer Writer
	pinger Pinger
	client influxdb2.Client
	logger logger.Logger
}

var _ ingest.Sink = (*Sink)(nil)

// Option applies a configuration option to the Sink.
type Option func(*Sink)

// WithName overrides the sink name.
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

// New builds a sink over an existing writer and pinger.
func New(w Writer, p Pinger, opts ...Option) *Sink {
	s := &Sink{name: DefaultName, writer: w, pinger: p}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("timeseries")
	}
	return s
}

// Open creates an InfluxDB client. For 1.8 servers pass "user:pass" as token
// and "database/retention_policy" as bucket; org is ignored there.
func Open(url, token, org, bucket string, timeout time.Duration, opts ...Option) (*Sink, error) {
	if url == "" {
		return nil, ErrNotConfigured
	}
	clientOpts := influxdb2.DefaultOptions()
	if secs := uint(timeout / time.Second); secs > 0 {
		clientOpts.SetHTTPRequestTimeout(secs)
	}
	client := influxdb2.NewClientWithOptions(url, token, clientOpts)

	s := New(client.WriteAPIBlocking(org, bucket), client, opts...)
	s.client = client
	s.logger.Info(context.Background(), "influxdb client ready",
		logger.String("url", url),
		logger.String("bucket", bucket),
	)
	return s, nil
}

// Name implements ingest.Sink.
func (s *Sink) Name() string { return s.name }

// Write stores one point.
func (s *Sink) Write(ctx context.Context, sig model.Signal) error {
	if err := s.writer.WritePoint(ctx, toPoint(sig)); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

// WriteBatch stores all points in one request.
func (s *Sink) WriteBatch(ctx context.Context, signals []model.Signal) error {
	if len(signals) == 0 {
		return nil
	}
	points := make([]*write.Point, len(signals))
	for i, sig := range signals {
		points[i] = toPoint(sig)
	}
	if err := s.writer.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("influx batch write of %d points: %w", len(points), err)
	}
	return nil
}

// HealthCheck pings the server.
func (s *Sink) HealthCheck(ctx context.Context) (bool, error) {
	return s.pinger.Ping(ctx)
}

// Close releases the HTTP client.
func (s *Sink) Close() error {
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

func toPoint(sig model.Signal) *write.Point {
	p := model.PointFromSignal(sig)
	fields := make(map[string]interface{}, len(p.Fields))
	for k, v := range p.Fields {
		fields[k] = v
	}
	return write.NewPoint(p.Measurement, p.Tags, fields, p.Time)
}
