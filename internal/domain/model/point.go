package model

import "time"

// Measurement is the time-series measurement every signal is written under.
const Measurement = "device_signals"

// Tag and field keys of a TimeSeriesPoint.
const (
	TagDeviceID   = "device_id"
	TagSignalType = "signal_type"
	TagUnit       = "unit"
	FieldValue    = "value"
)

// TimeSeriesPoint is the time-series projection of a Signal.
type TimeSeriesPoint struct {
	Measurement string
	Tags        map[string]string
	Fields      map[string]float64
	Time        time.Time
}

// PointFromSignal derives the point for s. The unit tag is present only when set.
func PointFromSignal(s Signal) TimeSeriesPoint {
	tags := map[string]string{
		TagDeviceID:   s.DeviceID,
		TagSignalType: s.SignalType,
	}
	if s.Unit != "" {
		tags[TagUnit] = s.Unit
	}
	return TimeSeriesPoint{
		Measurement: Measurement,
		Tags:        tags,
		Fields:      map[string]float64{FieldValue: s.Value},
		Time:        s.Timestamp,
	}
}
