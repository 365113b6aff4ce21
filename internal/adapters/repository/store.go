// Package repository is the relational signal store: the authoritative
// record of every signal, queryable by device and time.
package repository

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"github.com/okian/signal-gateway/internal/domain/model"
)

// TableName is the table signals are stored in.
const TableName = "device_signals"

// Default read limits.
const (
	DefaultDeviceLimit = 100
	DefaultLatestLimit = 50
	MaxLimit           = 10_000
)

// Reader serves historical signals, newest first.
type Reader interface {
	ByDevice(ctx context.Context, deviceID string, limit int) ([]model.Signal, error)
	Latest(ctx context.Context, limit int) ([]model.Signal, error)
}

// Row is the persisted form of a signal.
type Row struct {
	ID         string         `gorm:"column:id;type:char(36);primaryKey"`
	DeviceID   string         `gorm:"column:device_id;type:varchar(255);not null;index:idx_device_signals_device_id"`
	SignalType string         `gorm:"column:signal_type;type:varchar(100);not null;index:idx_device_signals_signal_type"`
	Value      float64        `gorm:"column:value;not null"`
	Unit       *string        `gorm:"column:unit;type:varchar(50)"`
	Timestamp  time.Time      `gorm:"column:timestamp;type:timestamp(6);not null;index:idx_device_signals_timestamp"`
	Metadata   datatypes.JSON `gorm:"column:metadata"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
}

// TableName implements gorm's tabler.
func (Row) TableName() string { return TableName }

func rowFromSignal(s model.Signal) (Row, error) {
	row := Row{
		ID:         s.ID,
		DeviceID:   s.DeviceID,
		SignalType: s.SignalType,
		Value:      s.Value,
		Timestamp:  s.Timestamp.UTC(),
	}
	if s.Unit != "" {
		unit := s.Unit
		row.Unit = &unit
	}
	if len(s.Metadata) > 0 {
		b, err := json.Marshal(s.Metadata)
		if err != nil {
			return Row{}, err
		}
		row.Metadata = datatypes.JSON(b)
	}
	return row, nil
}

func (r Row) signal() model.Signal {
	s := model.Signal{
		ID:         r.ID,
		DeviceID:   r.DeviceID,
		SignalType: r.SignalType,
		Value:      r.Value,
		Timestamp:  r.Timestamp.UTC(),
	}
	if r.Unit != nil {
		s.Unit = *r.Unit
	}
	if len(r.Metadata) > 0 {
		// Unreadable metadata is dropped rather than failing the whole read.
		_ = json.Unmarshal(r.Metadata, &s.Metadata)
	}
	return s
}
