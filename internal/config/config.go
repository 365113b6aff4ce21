// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New(ctx) returns a Config populated with defaults.
// - Load layers defaults, an optional YAML file and environment variables.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"
)

// Relational drivers.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Stream kinds.
const (
	StreamKafka = "kafka"
	StreamMQTT  = "mqtt"
	StreamRedis = "redis"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects "text" or "json" log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address.
	Addr string `koanf:"addr"`

	Ingest     IngestConfig     `koanf:"ingest"`
	Relational RelationalConfig `koanf:"relational"`
	TimeSeries TimeSeriesConfig `koanf:"timeseries"`
	Stream     StreamConfig     `koanf:"stream"`
}

// IngestConfig tunes the write coordinator and the HTTP boundary.
type IngestConfig struct {
	// MaxBatchSize caps POST /api/signals/batch.
	MaxBatchSize int `koanf:"max_batch_size"`

	// RecordConcurrency bounds per-record writes of a batch; 0 is unbounded.
	RecordConcurrency int `koanf:"record_concurrency"`
}

// RelationalConfig configures the authoritative SQL store.
type RelationalConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Driver   string `koanf:"driver"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Database string `koanf:"database"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`

	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`

	WriteTimeout  time.Duration `koanf:"write_timeout"`
	HealthTimeout time.Duration `koanf:"health_timeout"`

	// AutoMigrate creates the signal table at startup.
	AutoMigrate bool `koanf:"auto_migrate"`
}

// DSN renders the driver-specific connection string.
func (c RelationalConfig) DSN() string {
	switch c.Driver {
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
			c.Host, c.Port, c.Username, c.Password, c.Database)
	default:
		return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&loc=UTC&charset=utf8mb4",
			c.Username, c.Password, net.JoinHostPort(c.Host, strconv.Itoa(c.Port)), c.Database)
	}
}

// TimeSeriesConfig configures the InfluxDB sink. Either Token/Org/Bucket
// (2.x) or Database/Username/Password (1.8 compatibility) may be set.
type TimeSeriesConfig struct {
	Enabled         bool   `koanf:"enabled"`
	URL             string `koanf:"url"`
	Token           string `koanf:"token"`
	Org             string `koanf:"org"`
	Bucket          string `koanf:"bucket"`
	Database        string `koanf:"database"`
	RetentionPolicy string `koanf:"retention_policy"`
	Username        string `koanf:"username"`
	Password        string `koanf:"password"`

	WriteTimeout  time.Duration `koanf:"write_timeout"`
	HealthTimeout time.Duration `koanf:"health_timeout"`
}

// AuthToken returns the token, falling back to 1.8 "user:pass" credentials.
func (c TimeSeriesConfig) AuthToken() string {
	if c.Token != "" {
		return c.Token
	}
	if c.Username != "" {
		return c.Username + ":" + c.Password
	}
	return ""
}

// TargetBucket returns the bucket, falling back to "database/retention_policy".
func (c TimeSeriesConfig) TargetBucket() string {
	if c.Bucket != "" {
		return c.Bucket
	}
	if c.RetentionPolicy != "" {
		return c.Database + "/" + c.RetentionPolicy
	}
	return c.Database
}

// StreamConfig configures the broker sink.
type StreamConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Kind     string `koanf:"kind"`
	Topic    string `koanf:"topic"`
	ClientID string `koanf:"client_id"`

	WriteTimeout  time.Duration `koanf:"write_timeout"`
	HealthTimeout time.Duration `koanf:"health_timeout"`

	Kafka KafkaConfig `koanf:"kafka"`
	MQTT  MQTTConfig  `koanf:"mqtt"`
	Redis RedisConfig `koanf:"redis"`
}

// KafkaConfig holds Kafka producer settings.
type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
}

// MQTTConfig holds MQTT publisher settings.
type MQTTConfig struct {
	Broker   string `koanf:"broker"`
	QoS      int    `koanf:"qos"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

// RedisConfig holds Redis Streams settings.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	MaxLen   int64  `koanf:"max_len"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention and is currently unused.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      "127.0.0.1:8080",
		Ingest: IngestConfig{
			MaxBatchSize:      1000,
			RecordConcurrency: 0,
		},
		Relational: RelationalConfig{
			Enabled:         true,
			Driver:          DriverMySQL,
			Host:            "localhost",
			Port:            3306,
			Database:        "ps_v2",
			Username:        "pike",
			Password:        "pike",
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			WriteTimeout:    5 * time.Second,
			HealthTimeout:   3 * time.Second,
			AutoMigrate:     true,
		},
		TimeSeries: TimeSeriesConfig{
			Enabled:       true,
			URL:           "http://localhost:8086",
			Database:      "device_signals",
			WriteTimeout:  5 * time.Second,
			HealthTimeout: 3 * time.Second,
		},
		Stream: StreamConfig{
			Enabled:       true,
			Kind:          StreamKafka,
			Topic:         "device-signals",
			ClientID:      "signal-gateway",
			WriteTimeout:  5 * time.Second,
			HealthTimeout: 3 * time.Second,
			Kafka:         KafkaConfig{Brokers: []string{"localhost:9092"}},
			MQTT:          MQTTConfig{Broker: "tcp://localhost:1883", QoS: 1},
			Redis:         RedisConfig{Addr: "localhost:6379", MaxLen: 100_000},
		},
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if c.Ingest.MaxBatchSize <= 0 {
		return fmt.Errorf("%w: ingest.max_batch_size must be positive", ErrInvalidConfig)
	}
	if !c.Relational.Enabled && !c.TimeSeries.Enabled && !c.Stream.Enabled {
		return fmt.Errorf("%w: at least one sink must be enabled", ErrInvalidConfig)
	}
	if c.Relational.Enabled {
		switch c.Relational.Driver {
		case DriverMySQL, DriverPostgres:
		default:
			return fmt.Errorf("%w: unknown relational driver %q", ErrInvalidConfig, c.Relational.Driver)
		}
	}
	if c.TimeSeries.Enabled && c.TimeSeries.URL == "" {
		return fmt.Errorf("%w: timeseries.url must not be empty", ErrInvalidConfig)
	}
	if c.Stream.Enabled {
		switch c.Stream.Kind {
		case StreamKafka:
			if len(c.Stream.Kafka.Brokers) == 0 {
				return fmt.Errorf("%w: stream.kafka.brokers must not be empty", ErrInvalidConfig)
			}
		case StreamMQTT:
			if c.Stream.MQTT.QoS < 0 || c.Stream.MQTT.QoS > 2 {
				return fmt.Errorf("%w: stream.mqtt.qos must be 0, 1 or 2", ErrInvalidConfig)
			}
		case StreamRedis:
		default:
			return fmt.Errorf("%w: unknown stream kind %q", ErrInvalidConfig, c.Stream.Kind)
		}
		if c.Stream.Topic == "" {
			return fmt.Errorf("%w: stream.topic must not be empty", ErrInvalidConfig)
		}
	}
	return nil
}
