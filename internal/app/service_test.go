package service_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/okian/lwwboard/internal/adapters/repository"
	service "github.com/okian/lwwboard/internal/app"
	"github.com/okian/lwwboard/internal/client"
	"github.com/okian/lwwboard/internal/config"
	"github.com/okian/lwwboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.InitWithWriter(io.Discard); err != nil {
		panic(err)
	}
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.DevTLS = true
	cfg.StatsIntervalMS = 50
	cfg.TopN = 3
	return cfg
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should not be started", func() {
			So(svc, ShouldNotBeNil)
			So(svc.Addr(), ShouldBeEmpty)
			So(svc.Clients(), ShouldEqual, 0)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithConfig(testConfig()))
		// Ensure service is stopped after test
		defer svc.Stop()

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
				So(svc.Addr(), ShouldNotBeEmpty)
				So(svc.QUICAddr(), ShouldBeEmpty)
			})

			Convey("And it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
				So(stats["top_n"], ShouldEqual, 3)
			})

			Convey("And starting twice should be a no-op", func() {
				addr := svc.Addr()
				So(svc.Start(ctx), ShouldBeNil)
				So(svc.Addr(), ShouldEqual, addr)
			})
		})
	})

	Convey("Given a configuration with missing certificate files", t, func() {
		cfg := testConfig()
		cfg.DevTLS = false
		cfg.CertFile = "missing.crt"
		cfg.KeyFile = "missing.key"
		svc := service.New(service.WithConfig(cfg))

		Convey("Then Start should fail", func() {
			So(svc.Start(context.Background()), ShouldNotBeNil)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})
}

func TestService_ServesClients(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := service.New(service.WithConfig(testConfig()))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		c, err := client.Dial(ctx, svc.Addr())
		So(err, ShouldBeNil)
		defer c.Close()

		Convey("When a client submits scores", func() {
			for i, id := range []string{"a", "b", "c", "d"} {
				_, err := c.Update(ctx, id, id, int64(10*(i+1)), 1)
				So(err, ShouldBeNil)
			}
			upd, err := c.Update(ctx, "e", "e", 5, 1)

			Convey("Then the update snapshot uses the configured top_n", func() {
				So(err, ShouldBeNil)
				So(upd.Top, ShouldHaveLength, 3)
				So(upd.Top[0].PlayerID, ShouldEqual, "d")
			})

			Convey("And the API view agrees", func() {
				top, err := svc.TopN(ctx, 2)
				So(err, ShouldBeNil)
				So(top[0].PlayerID, ShouldEqual, "d")
				So(top[1].PlayerID, ShouldEqual, "c")

				entry, err := svc.Rank(ctx, "a")
				So(err, ShouldBeNil)
				So(entry.Rank, ShouldEqual, 4)

				_, err = svc.Rank(ctx, "ghost")
				So(errors.Is(err, repository.ErrNotFound), ShouldBeTrue)
			})

			Convey("And stats count the client and the updates", func() {
				stats := svc.GetStats()
				So(stats["total_players"], ShouldEqual, 5)
				So(stats["total_updates"], ShouldEqual, int64(5))
				So(stats["connected_clients"], ShouldEqual, 1)
				So(svc.Clients(), ShouldEqual, 1)
			})
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service with a connected client", t, func() {
		svc := service.New(service.WithConfig(testConfig()))
		So(svc.Start(context.Background()), ShouldBeNil)

		c, err := client.Dial(context.Background(), svc.Addr())
		So(err, ShouldBeNil)
		defer c.Close()
		_, err = c.Ping(context.Background())
		So(err, ShouldBeNil)

		Convey("When shutting the service down", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			So(svc.Shutdown(ctx), ShouldBeNil)

			Convey("Then it should be marked as stopped", func() {
				So(svc.GetStats()["started"], ShouldEqual, false)
				So(svc.Clients(), ShouldEqual, 0)
			})

			Convey("And the client connection is closed", func() {
				_, err := c.Ping(context.Background())
				So(err, ShouldNotBeNil)
			})

			Convey("And stopping again is harmless", func() {
				So(svc.Shutdown(ctx), ShouldBeNil)
				So(func() { svc.Stop() }, ShouldNotPanic)
			})

			Convey("And the service can start again with its data", func() {
				So(svc.Start(context.Background()), ShouldBeNil)
				defer svc.Stop()
				So(svc.GetStats()["started"], ShouldEqual, true)
			})
		})
	})
}

func TestService_QUIC(t *testing.T) {
	Convey("Given a service with a QUIC port", t, func() {
		cfg := testConfig()
		cfg.QUICPort = freeUDPPort()
		svc := service.New(service.WithConfig(cfg))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		Convey("Then a QUIC client shares the same store", func() {
			So(svc.QUICAddr(), ShouldNotBeEmpty)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			c, err := client.Dial(ctx, svc.QUICAddr(), client.WithQUIC(true))
			So(err, ShouldBeNil)
			defer c.Close()

			_, err = c.Update(ctx, "q", "Q", 9, 1)
			So(err, ShouldBeNil)
			top, err := svc.TopN(ctx, 1)
			So(err, ShouldBeNil)
			So(top[0].PlayerID, ShouldEqual, "q")
		})
	})
}
