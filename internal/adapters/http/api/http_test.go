package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/lwwboard/internal/adapters/http/api"
	"github.com/okian/lwwboard/internal/adapters/repository"
	"github.com/okian/lwwboard/internal/domain/types"
	"github.com/okian/lwwboard/pkg/metrics"
	. "github.com/smartystreets/goconvey/convey"
)

type mockDeps struct {
	top     []types.Entry
	topErr  error
	rank    types.Entry
	rankErr error
	gotN    int
}

func (m *mockDeps) TopN(_ context.Context, n int) ([]types.Entry, error) {
	m.gotN = n
	if m.topErr != nil {
		return nil, m.topErr
	}
	if n > len(m.top) {
		return m.top, nil
	}
	return m.top[:n], nil
}

func (m *mockDeps) Rank(_ context.Context, _ string) (types.Entry, error) {
	if m.rankErr != nil {
		return types.Entry{}, m.rankErr
	}
	return m.rank, nil
}

func (m *mockDeps) GetStats() map[string]any {
	return map[string]any{"total_players": 2, "connected_clients": 1}
}

func newMux(deps *mockDeps) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(deps, 100).Register(context.Background(), mux)
	return mux
}

func do(mux *http.ServeMux, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestLeaderboardEndpoint(t *testing.T) {
	Convey("Given a server with two players", t, func() {
		deps := &mockDeps{top: []types.Entry{
			{Rank: 1, PlayerID: "p1", Name: "Alice", Score: 20},
			{Rank: 2, PlayerID: "p2", Name: "Bob", Score: 10},
		}}
		mux := newMux(deps)

		Convey("When requesting the top one", func() {
			rec := do(mux, http.MethodGet, "/leaderboard?limit=1")

			Convey("Then one entry is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				var got []types.Entry
				So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
				So(got, ShouldResemble, deps.top[:1])
			})
		})

		Convey("When the limit is omitted", func() {
			rec := do(mux, http.MethodGet, "/leaderboard")

			Convey("Then the default of ten is used", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.gotN, ShouldEqual, 10)
			})
		})

		Convey("When the limit is not a count", func() {
			bad := do(mux, http.MethodGet, "/leaderboard?limit=abc")
			negative := do(mux, http.MethodGet, "/leaderboard?limit=-3")

			Convey("Then each is a bad request", func() {
				So(bad.Code, ShouldEqual, http.StatusBadRequest)
				So(negative.Code, ShouldEqual, http.StatusBadRequest)
				So(negative.Body.String(), ShouldContainSubstring, "bad_request")
			})
		})

		Convey("When the limit is above the max", func() {
			rec := do(mux, http.MethodGet, "/leaderboard?limit=5000")

			Convey("Then it is clamped and every entry is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(deps.gotN, ShouldEqual, 100)
				var got []types.Entry
				So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
				So(len(got), ShouldEqual, len(deps.top))
			})
		})

		Convey("When the limit is zero", func() {
			deps.gotN = -1
			rec := do(mux, http.MethodGet, "/leaderboard?limit=0")

			Convey("Then an empty list comes back without touching the store", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(strings.TrimSpace(rec.Body.String()), ShouldEqual, "[]")
				So(deps.gotN, ShouldEqual, -1)
			})
		})

		Convey("When the store fails", func() {
			deps.topErr = errors.New("boom")
			rec := do(mux, http.MethodGet, "/leaderboard?limit=2")

			Convey("Then a server error is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusInternalServerError)
				So(rec.Body.String(), ShouldContainSubstring, "api.get_leaderboard: boom")
			})
		})

		Convey("When using the wrong method", func() {
			rec := do(mux, http.MethodPost, "/leaderboard?limit=1")
			So(rec.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestPlayerEndpoint(t *testing.T) {
	Convey("Given a server", t, func() {
		deps := &mockDeps{rank: types.Entry{Rank: 3, PlayerID: "p7", Name: "Gina", Score: 5}}
		mux := newMux(deps)

		Convey("When the player exists", func() {
			rec := do(mux, http.MethodGet, "/player/p7")

			Convey("Then the ranked entry is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var got types.Entry
				So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
				So(got, ShouldResemble, deps.rank)
			})
		})

		Convey("When the player is unknown", func() {
			deps.rankErr = repository.ErrNotFound
			rec := do(mux, http.MethodGet, "/player/ghost")

			Convey("Then 404 is returned", func() {
				So(rec.Code, ShouldEqual, http.StatusNotFound)
				So(rec.Body.String(), ShouldContainSubstring, "not_found")
			})
		})

		Convey("When the path is malformed", func() {
			empty := do(mux, http.MethodGet, "/player/")
			nested := do(mux, http.MethodGet, "/player/a/b")

			Convey("Then it is a bad request", func() {
				So(empty.Code, ShouldEqual, http.StatusBadRequest)
				So(nested.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestStatsAndHealthEndpoints(t *testing.T) {
	Convey("Given a server", t, func() {
		mux := newMux(&mockDeps{})

		Convey("When requesting stats", func() {
			rec := do(mux, http.MethodGet, "/stats")

			Convey("Then the provider map is encoded", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				var got map[string]any
				So(json.Unmarshal(rec.Body.Bytes(), &got), ShouldBeNil)
				So(got["total_players"], ShouldEqual, float64(2))
			})
		})

		Convey("When scraping healthz", func() {
			metrics.RecordUpdateAccepted()
			rec := do(mux, http.MethodGet, "/healthz")

			Convey("Then Prometheus text is served", func() {
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(rec.Body.String(), ShouldContainSubstring, "lwwboard_leaderboard_updates_accepted_total")
				So(strings.Contains(rec.Body.String(), "go_goroutines"), ShouldBeFalse)
			})
		})
	})
}

func TestKindError(t *testing.T) {
	Convey("Given wrapped API errors", t, func() {
		kind := api.NewKind("op", api.ErrBadRequest)
		wrapped := api.Wrap("op", repository.ErrNotFound)

		Convey("Then errors.Is sees through them", func() {
			So(errors.Is(kind, api.ErrBadRequest), ShouldBeTrue)
			So(kind.Error(), ShouldEqual, "op: bad request")
			So(errors.Is(wrapped, repository.ErrNotFound), ShouldBeTrue)
			So(api.Wrap("op", nil), ShouldBeNil)
		})
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given a handler wrapped by the metrics middleware", t, func() {
		h := api.MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			w.WriteHeader(http.StatusOK)
		}, "teapot")

		Convey("When it is served", func() {
			rec := httptest.NewRecorder()
			h(rec, httptest.NewRequest(http.MethodGet, "/teapot", nil))

			Convey("Then the request is counted with its first status", func() {
				So(rec.Code, ShouldEqual, http.StatusTeapot)
				families, err := metrics.GetRegistry().Gather()
				So(err, ShouldBeNil)
				var found bool
				for _, mf := range families {
					if mf.GetName() != "lwwboard_leaderboard_http_requests_total" {
						continue
					}
					for _, m := range mf.GetMetric() {
						for _, l := range m.GetLabel() {
							if l.GetName() == "status_code" && l.GetValue() == "418" {
								found = true
							}
						}
					}
				}
				So(found, ShouldBeTrue)
			})
		})
	})
}
