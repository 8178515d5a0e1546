package reporter

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/lwwboard/internal/domain/model"
	"github.com/okian/lwwboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// syncBuffer is a bytes.Buffer safe for the logger and the test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeSource struct {
	calls atomic.Int32
	panic bool
}

func (f *fakeSource) Stats(context.Context) model.Stats {
	f.calls.Add(1)
	if f.panic {
		panic("boom")
	}
	return model.Stats{TotalPlayers: 3, TotalUpdates: 12, UptimeSeconds: 6, UpdatesPerSecond: 2}
}

func waitUntil(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestReporter(t *testing.T) {
	Convey("Given a reporter on a short interval", t, func() {
		out := &syncBuffer{}
		So(logger.InitWithWriter(out), ShouldBeNil)

		src := &fakeSource{}
		r := New(src, func() int { return 4 }, WithInterval(10*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go r.Run(ctx)

		Convey("When a few ticks pass", func() {
			So(waitUntil(func() bool { return src.calls.Load() >= 2 }), ShouldBeTrue)
			So(r.Shutdown(context.Background()), ShouldBeNil)

			Convey("Then a stats line is logged per tick", func() {
				logs := out.String()
				So(logs, ShouldContainSubstring, "msg=stats")
				So(logs, ShouldContainSubstring, "players=3")
				So(logs, ShouldContainSubstring, "updates=12")
				So(logs, ShouldContainSubstring, "rate=2")
				So(logs, ShouldContainSubstring, "clients=4")
			})

			Convey("Then Shutdown is idempotent", func() {
				So(r.Shutdown(context.Background()), ShouldBeNil)
			})
		})
	})

	Convey("Given a source that panics", t, func() {
		out := &syncBuffer{}
		So(logger.InitWithWriter(out), ShouldBeNil)

		src := &fakeSource{panic: true}
		r := New(src, nil, WithInterval(10*time.Millisecond))
		go r.Run(context.Background())

		Convey("Then the reporter keeps ticking", func() {
			So(waitUntil(func() bool { return src.calls.Load() >= 3 }), ShouldBeTrue)
			So(r.Shutdown(context.Background()), ShouldBeNil)
			So(strings.Count(out.String(), "stats sample failed"), ShouldBeGreaterThanOrEqualTo, 3)
		})
	})

	Convey("Given a reporter stopped by its context", t, func() {
		So(logger.InitWithWriter(&syncBuffer{}), ShouldBeNil)
		r := New(&fakeSource{}, nil, WithInterval(time.Hour))
		ctx, cancel := context.WithCancel(context.Background())
		go r.Run(ctx)
		cancel()

		Convey("Then Shutdown returns once Run exits", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()
			So(r.Shutdown(sctx), ShouldBeNil)
		})
	})
}
