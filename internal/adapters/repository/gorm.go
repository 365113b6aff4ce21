package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/signal-gateway/internal/domain/ingest"
	"github.com/okian/signal-gateway/internal/domain/model"
	"github.com/okian/signal-gateway/pkg/logger"
)

// Supported drivers and the sink names they register under.
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"

	NameMariaDB  = "mariadb"
	NamePostgres = "postgres"
)

// Store writes and reads signals through gorm. It is a single-row sink:
// WriteBatch is repeated Write.
type Store struct {
	db     *gorm.DB
	name   string
	logger logger.Logger

	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
	autoMigrate bool
}

var (
	_ ingest.Sink = (*Store)(nil)
	_ Reader      = (*Store)(nil)
)

// New wraps an open gorm handle.
func New(db *gorm.DB, opts ...Option) *Store {
	s := &Store{db: db, name: NameMariaDB}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("repository")
	}
	return s
}

// Open connects with the given driver and DSN. The connection is lazy, so an
// unreachable database does not prevent startup; it shows up in health
// checks and write failures instead.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	var (
		dialector gorm.Dialector
		name      string
	)
	switch driver {
	case DriverMySQL:
		dialector = mysql.New(mysql.Config{DSN: dsn, SkipInitializeWithVersion: true})
		name = NameMariaDB
	case DriverPostgres:
		dialector = postgres.New(postgres.Config{DSN: dsn})
		name = NamePostgres
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		DisableAutomaticPing:   true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	s := New(db, append([]Option{WithName(name)}, opts...)...)

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if s.maxOpen > 0 {
		sqlDB.SetMaxOpenConns(s.maxOpen)
	}
	if s.maxIdle > 0 {
		sqlDB.SetMaxIdleConns(s.maxIdle)
	}
	if s.maxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(s.maxLifetime)
	}

	if s.autoMigrate {
		if err := s.Migrate(ctx); err != nil {
			s.logger.Warn(ctx, "schema bootstrap failed, continuing", logger.Error(err))
		}
	}
	return s, nil
}

// Migrate creates the signal table and its indexes if missing.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&Row{}); err != nil {
		return fmt.Errorf("migrate %s: %w", TableName, err)
	}
	s.logger.Info(ctx, "schema ready", logger.String("table", TableName))
	return nil
}

// Name implements ingest.Sink.
func (s *Store) Name() string { return s.name }

// Write inserts one row.
func (s *Store) Write(ctx context.Context, sig model.Signal) error {
	row, err := rowFromSignal(sig)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodeSignal, err)
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert signal %s: %w", sig.ID, err)
	}
	return nil
}

// WriteBatch writes each signal on its own and reports only the failure count.
func (s *Store) WriteBatch(ctx context.Context, signals []model.Signal) error {
	be := &ingest.BatchError{Total: len(signals)}
	for _, sig := range signals {
		if err := s.Write(ctx, sig); err != nil {
			be.Failed++
			if be.First == nil {
				be.First = err
			}
		}
	}
	if be.Failed > 0 {
		return be
	}
	return nil
}

// HealthCheck runs a trivial query.
func (s *Store) HealthCheck(ctx context.Context) (bool, error) {
	if err := s.db.WithContext(ctx).Exec("SELECT 1").Error; err != nil {
		return false, err
	}
	return true, nil
}

// ByDevice returns the newest signals of one device.
func (s *Store) ByDevice(ctx context.Context, deviceID string, limit int) ([]model.Signal, error) {
	limit, err := normalizeLimit(limit, DefaultDeviceLimit)
	if err != nil {
		return nil, err
	}
	var rows []Row
	err = s.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query device %s: %w", deviceID, err)
	}
	return toSignals(rows), nil
}

// Latest returns the newest signals across all devices.
func (s *Store) Latest(ctx context.Context, limit int) ([]model.Signal, error) {
	limit, err := normalizeLimit(limit, DefaultLatestLimit)
	if err != nil {
		return nil, err
	}
	var rows []Row
	err = s.db.WithContext(ctx).
		Order("timestamp DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("query latest: %w", err)
	}
	return toSignals(rows), nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func normalizeLimit(limit, def int) (int, error) {
	switch {
	case limit == 0:
		return def, nil
	case limit < 0 || limit > MaxLimit:
		return 0, fmt.Errorf("%w: %d (1..%d)", ErrInvalidLimit, limit, MaxLimit)
	default:
		return limit, nil
	}
}

func toSignals(rows []Row) []model.Signal {
	out := make([]model.Signal, len(rows))
	for i, r := range rows {
		out[i] = r.signal()
	}
	return out
}
