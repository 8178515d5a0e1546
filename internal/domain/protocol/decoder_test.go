package protocol

import (
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestDecodeCommands(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 500_000_000)
	d := NewDecoder(WithDefaultTopN(10), WithMaxTopN(100), WithClock(func() time.Time { return fixed }))

	Convey("Given a decoder", t, func() {
		Convey("When decoding a full UPDATE", func() {
			req, err := d.Decode([]byte(`{"cmd":"UPDATE","player_id":"p1","name":"Alice","score":1500,"ts":1000.0}`))

			Convey("Then every field is carried", func() {
				So(err, ShouldBeNil)
				So(req, ShouldResemble, UpdateRequest{PlayerID: "p1", Name: "Alice", Score: 1500, Timestamp: 1000})
				So(req.Command(), ShouldEqual, CmdUpdate)
			})
		})

		Convey("When UPDATE omits name and ts", func() {
			req, err := d.Decode([]byte(`{"cmd":"update","player_id":"p1","score":7}`))

			Convey("Then name defaults to the id and ts to the clock", func() {
				So(err, ShouldBeNil)
				u := req.(UpdateRequest)
				So(u.Name, ShouldEqual, "p1")
				So(u.Timestamp, ShouldAlmostEqual, 1_700_000_000.5, 1e-6)
			})
		})

		Convey("When score needs coercion", func() {
			fromFloat, err1 := d.Decode([]byte(`{"cmd":"UPDATE","player_id":"p1","score":12.9}`))
			fromNeg, err2 := d.Decode([]byte(`{"cmd":"UPDATE","player_id":"p1","score":-12.9}`))
			fromString, err3 := d.Decode([]byte(`{"cmd":"UPDATE","player_id":"p1","score":" 42 ","ts":"5.5"}`))

			Convey("Then numbers truncate toward zero and numeric strings parse", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(err3, ShouldBeNil)
				So(fromFloat.(UpdateRequest).Score, ShouldEqual, 12)
				So(fromNeg.(UpdateRequest).Score, ShouldEqual, -12)
				So(fromString.(UpdateRequest).Score, ShouldEqual, 42)
				So(fromString.(UpdateRequest).Timestamp, ShouldEqual, 5.5)
			})
		})

		Convey("When decoding GET_TOP", func() {
			def, err1 := d.Decode([]byte(`{"cmd":"GET_TOP"}`))
			three, err2 := d.Decode([]byte(`{"cmd":"Get_Top","n":3}`))

			Convey("Then n defaults and case is ignored", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(def, ShouldResemble, GetTopRequest{N: 10})
				So(three, ShouldResemble, GetTopRequest{N: 3})
			})
		})

		Convey("When decoding the argument-free commands", func() {
			player, err1 := d.Decode([]byte(`{"cmd":"GET_PLAYER","player_id":"p9"}`))
			stats, err2 := d.Decode([]byte(`{"cmd":"stats"}`))
			ping, err3 := d.Decode([]byte("  {\"cmd\":\"PING\"}\r"))

			Convey("Then they map to their variants", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(err3, ShouldBeNil)
				So(player, ShouldResemble, GetPlayerRequest{PlayerID: "p9"})
				So(stats, ShouldResemble, StatsRequest{})
				So(ping, ShouldResemble, PingRequest{})
			})
		})
	})
}

func TestDecodeErrors(t *testing.T) {
	d := NewDecoder(WithMaxTopN(100))

	cases := []struct {
		name  string
		frame string
		want  error
	}{
		{"not json", `{"cmd":`, ErrMalformedFrame},
		{"array", `[1,2]`, ErrMalformedFrame},
		{"null", `null`, ErrMalformedFrame},
		{"trailing data", `{"cmd":"PING"} x`, ErrMalformedFrame},
		{"missing cmd", `{"player_id":"p1"}`, ErrMissingField},
		{"cmd not string", `{"cmd":5}`, ErrInvalidField},
		{"unknown cmd", `{"cmd":"DANCE"}`, ErrUnknownCommand},
		{"update without player", `{"cmd":"UPDATE","score":1}`, ErrMissingField},
		{"update with empty player", `{"cmd":"UPDATE","player_id":"","score":1}`, ErrInvalidField},
		{"update with numeric player", `{"cmd":"UPDATE","player_id":12,"score":1}`, ErrInvalidField},
		{"update without score", `{"cmd":"UPDATE","player_id":"p1"}`, ErrMissingField},
		{"update with bool score", `{"cmd":"UPDATE","player_id":"p1","score":true}`, ErrInvalidField},
		{"update with word score", `{"cmd":"UPDATE","player_id":"p1","score":"lots"}`, ErrInvalidField},
		{"update with huge score", `{"cmd":"UPDATE","player_id":"p1","score":1e30}`, ErrInvalidField},
		{"update with bad ts", `{"cmd":"UPDATE","player_id":"p1","score":1,"ts":"soon"}`, ErrInvalidField},
		{"update with nan ts", `{"cmd":"UPDATE","player_id":"p1","score":1,"ts":"NaN"}`, ErrInvalidField},
		{"update with numeric name", `{"cmd":"UPDATE","player_id":"p1","score":1,"name":3}`, ErrInvalidField},
		{"top with negative n", `{"cmd":"GET_TOP","n":-1}`, ErrInvalidField},
		{"player without id", `{"cmd":"GET_PLAYER"}`, ErrMissingField},
	}

	Convey("Given invalid frames", t, func() {
		for _, tc := range cases {
			Convey("When decoding "+tc.name, func() {
				req, err := d.Decode([]byte(tc.frame))

				Convey("Then the error has the right kind", func() {
					So(req, ShouldBeNil)
					So(errors.Is(err, tc.want), ShouldBeTrue)
				})
			})
		}
	})

	Convey("Given an unknown command", t, func() {
		_, err := d.Decode([]byte(`{"cmd":"dance"}`))

		Convey("Then the message names the command", func() {
			So(err.Error(), ShouldEqual, "unknown command: DANCE")
			So(Kind(err), ShouldEqual, "unknown_command")
		})
	})
}

func TestDecodeGetTopLimits(t *testing.T) {
	d := NewDecoder(WithMaxTopN(100))

	Convey("Given GET_TOP frames at the edges of the limit", t, func() {
		Convey("When n is zero", func() {
			req, err := d.Decode([]byte(`{"cmd":"GET_TOP","n":0}`))

			Convey("Then the request asks for nothing", func() {
				So(err, ShouldBeNil)
				So(req, ShouldResemble, GetTopRequest{N: 0})
			})
		})

		Convey("When n is above the max", func() {
			req, err := d.Decode([]byte(`{"cmd":"GET_TOP","n":5000}`))

			Convey("Then n is clamped to the max", func() {
				So(err, ShouldBeNil)
				So(req, ShouldResemble, GetTopRequest{N: 100})
			})
		})
	})
}

func TestDecoderDefaults(t *testing.T) {
	Convey("Given a decoder whose max is below the default", t, func() {
		d := NewDecoder(WithDefaultTopN(20), WithMaxTopN(5))

		Convey("Then the max is raised to the default", func() {
			req, err := d.Decode([]byte(`{"cmd":"GET_TOP","n":20}`))
			So(err, ShouldBeNil)
			So(req, ShouldResemble, GetTopRequest{N: 20})
			So(d.DefaultTopN(), ShouldEqual, 20)
		})
	})
}
