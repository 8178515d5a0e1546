package transport

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type closeCounter struct{ n int }

func (c *closeCounter) Close() error {
	c.n++
	return nil
}

func TestRegistry(t *testing.T) {
	Convey("Given an empty registry", t, func() {
		r := NewRegistry()

		Convey("When admitting up to a limit", func() {
			So(r.Admit("a", &closeCounter{}, 2), ShouldBeNil)
			So(r.Admit("b", &closeCounter{}, 2), ShouldBeNil)

			Convey("Then the next admission is refused", func() {
				So(errors.Is(r.Admit("c", &closeCounter{}, 2), ErrAtCapacity), ShouldBeTrue)
				So(r.Len(), ShouldEqual, 2)
			})

			Convey("Then an unlimited admission still succeeds", func() {
				So(r.Admit("c", &closeCounter{}, 0), ShouldBeNil)
				So(r.Keys(), ShouldResemble, []string{"a", "b", "c"})
			})

			Convey("Then a duplicate key is refused", func() {
				So(errors.Is(r.Admit("a", &closeCounter{}, 0), ErrDuplicateSession), ShouldBeTrue)
			})

			Convey("Then removing frees a slot", func() {
				r.Remove("a")
				r.Remove("a")
				So(r.Len(), ShouldEqual, 1)
				So(r.Admit("c", &closeCounter{}, 2), ShouldBeNil)
			})
		})

		Convey("When closing all", func() {
			a, b := &closeCounter{}, &closeCounter{}
			So(r.Admit("a", a, 0), ShouldBeNil)
			So(r.Admit("b", b, 0), ShouldBeNil)
			So(r.CloseAll(), ShouldBeNil)

			Convey("Then every entry is closed and admissions stop", func() {
				So(a.n, ShouldEqual, 1)
				So(b.n, ShouldEqual, 1)
				So(errors.Is(r.Admit("c", &closeCounter{}, 0), ErrRegistryClosed), ShouldBeTrue)
			})
		})
	})
}
