package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/signal-gateway/internal/domain/model"
	"github.com/okian/signal-gateway/pkg/logger"
)

func init() {
	_ = logger.Init()
}

type fakeTransport struct {
	sends  [][]Message
	err    error
	ok     bool
	closed bool
}

func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) Send(_ context.Context, msgs []Message) error {
	f.sends = append(f.sends, msgs)
	return f.err
}

func (f *fakeTransport) Ping(context.Context) (bool, error) {
	if f.ok {
		return true, nil
	}
	return false, ErrNotConnected
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func sample(device string) model.Signal {
	return model.Signal{
		ID:         "id-" + device,
		DeviceID:   device,
		SignalType: "temp",
		Value:      21.5,
		Unit:       "C",
		Timestamp:  time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSink(t *testing.T) {
	convey.Convey("Given a stream sink over a fake transport", t, func() {
		tr := &fakeTransport{ok: true}
		s := NewSink(tr)
		ctx := context.Background()

		convey.Convey("Then it takes the transport's name", func() {
			convey.So(s.Name(), convey.ShouldEqual, "fake")
			convey.So(NewSink(tr, WithName("events")).Name(), convey.ShouldEqual, "events")
		})

		convey.Convey("When a signal is written", func() {
			err := s.Write(ctx, sample("d1"))

			convey.Convey("Then one keyed JSON message is sent", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(len(tr.sends), convey.ShouldEqual, 1)
				m := tr.sends[0][0]
				convey.So(m.Key, convey.ShouldEqual, "d1_temp")
				convey.So(m.Route, convey.ShouldEqual, "d1/temp")

				var decoded model.Signal
				convey.So(json.Unmarshal(m.Payload, &decoded), convey.ShouldBeNil)
				convey.So(decoded.ID, convey.ShouldEqual, "id-d1")
				convey.So(decoded.Value, convey.ShouldEqual, 21.5)
				convey.So(decoded.Timestamp.Equal(sample("d1").Timestamp), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a batch is written", func() {
			err := s.WriteBatch(ctx, []model.Signal{sample("a"), sample("b")})

			convey.So(err, convey.ShouldBeNil)
			convey.So(len(tr.sends), convey.ShouldEqual, 1)
			convey.So(len(tr.sends[0]), convey.ShouldEqual, 2)
			convey.So(tr.sends[0][1].Key, convey.ShouldEqual, "b_temp")
		})

		convey.Convey("When an empty batch is written", func() {
			convey.So(s.WriteBatch(ctx, nil), convey.ShouldBeNil)
			convey.So(tr.sends, convey.ShouldBeEmpty)
		})

		convey.Convey("When the transport fails", func() {
			tr.err = errors.New("broker unavailable")

			convey.So(s.Write(ctx, sample("d1")).Error(), convey.ShouldEqual, "broker unavailable")
		})

		convey.Convey("When a raw message is published", func() {
			err := s.Publish(ctx, "test", []byte("hello"))

			convey.So(err, convey.ShouldBeNil)
			convey.So(tr.sends[0][0], convey.ShouldResemble, Message{Key: "test", Route: "test", Payload: []byte("hello")})
		})

		convey.Convey("When a raw message has no key", func() {
			convey.So(errors.Is(s.Publish(ctx, "", []byte("x")), ErrEmptyKey), convey.ShouldBeTrue)
			convey.So(tr.sends, convey.ShouldBeEmpty)
		})

		convey.Convey("When health is checked and closed", func() {
			ok, err := s.HealthCheck(ctx)
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(err, convey.ShouldBeNil)

			convey.So(s.Close(), convey.ShouldBeNil)
			convey.So(tr.closed, convey.ShouldBeTrue)
		})
	})
}
