package model_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	model "github.com/okian/signal-gateway/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestNewSignal(t *testing.T) {
	convey.Convey("Given a signal request", t, func() {
		req := model.SignalRequest{
			DeviceID:   "d1",
			SignalType: "temp",
			Value:      21.5,
			Unit:       "C",
			Metadata:   map[string]any{"room": "lab"},
		}
		now := time.Date(2025, 3, 1, 12, 0, 0, 123456000, time.FixedZone("CET", 3600))

		convey.Convey("When building a signal", func() {
			s := model.NewSignal(req, now)

			convey.Convey("Then the id is a fresh uuid and the timestamp is UTC", func() {
				_, err := uuid.Parse(s.ID)
				convey.So(err, convey.ShouldBeNil)
				convey.So(s.Timestamp.Location(), convey.ShouldEqual, time.UTC)
				convey.So(s.Timestamp.Equal(now), convey.ShouldBeTrue)
				convey.So(s.DeviceID, convey.ShouldEqual, "d1")
				convey.So(s.Metadata["room"], convey.ShouldEqual, "lab")
			})

			convey.Convey("Then two signals never share an id", func() {
				convey.So(model.NewSignal(req, now).ID, convey.ShouldNotEqual, s.ID)
			})
		})
	})
}

func TestSignalValidate(t *testing.T) {
	convey.Convey("Given signals with broken invariants", t, func() {
		valid := model.Signal{DeviceID: "d1", SignalType: "temp", Value: -3}

		convey.Convey("Then a complete signal passes", func() {
			convey.So(valid.Validate(), convey.ShouldBeNil)
		})

		cases := []struct {
			name  string
			edit  func(*model.Signal)
			field string
		}{
			{"empty device id", func(s *model.Signal) { s.DeviceID = "" }, "device_id"},
			{"blank signal type", func(s *model.Signal) { s.SignalType = "  " }, "signal_type"},
			{"NaN value", func(s *model.Signal) { s.Value = math.NaN() }, "value"},
			{"infinite value", func(s *model.Signal) { s.Value = math.Inf(-1) }, "value"},
		}
		for _, tc := range cases {
			convey.Convey("When the signal has "+tc.name, func() {
				s := valid
				tc.edit(&s)
				err := s.Validate()

				convey.So(errors.Is(err, model.ErrInvalidSignal), convey.ShouldBeTrue)
				var ve *model.ValidationError
				convey.So(errors.As(err, &ve), convey.ShouldBeTrue)
				convey.So(ve.Field, convey.ShouldEqual, tc.field)
			})
		}
	})
}

func TestPointFromSignal(t *testing.T) {
	convey.Convey("Given a signal with a unit", t, func() {
		ts := time.Date(2025, 1, 2, 3, 4, 5, 6000, time.UTC)
		s := model.Signal{DeviceID: "d1", SignalType: "temp", Value: 21.5, Unit: "C", Timestamp: ts}

		convey.Convey("When deriving the time-series point", func() {
			p := model.PointFromSignal(s)

			convey.Convey("Then tags, fields, measurement and time are exact", func() {
				convey.So(p.Measurement, convey.ShouldEqual, "device_signals")
				convey.So(p.Tags, convey.ShouldResemble, map[string]string{
					"device_id": "d1", "signal_type": "temp", "unit": "C",
				})
				convey.So(p.Fields, convey.ShouldResemble, map[string]float64{"value": 21.5})
				convey.So(p.Time, convey.ShouldEqual, ts)
			})

			convey.Convey("Then deriving twice yields the same point", func() {
				convey.So(model.PointFromSignal(s), convey.ShouldResemble, p)
			})
		})

		convey.Convey("When the unit is absent", func() {
			s.Unit = ""
			p := model.PointFromSignal(s)

			convey.Convey("Then the unit tag is omitted", func() {
				_, ok := p.Tags["unit"]
				convey.So(ok, convey.ShouldBeFalse)
				convey.So(len(p.Tags), convey.ShouldEqual, 2)
			})
		})
	})
}

func TestStreamKey(t *testing.T) {
	convey.Convey("Given a signal", t, func() {
		s := model.Signal{DeviceID: "pump-7", SignalType: "pressure"}

		convey.So(s.StreamKey(), convey.ShouldEqual, "pump-7_pressure")
	})
}
