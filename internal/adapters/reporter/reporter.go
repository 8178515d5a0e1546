// Package reporter periodically logs and exports leaderboard statistics.
package reporter

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/lwwboard/internal/domain/model"
	"github.com/okian/lwwboard/pkg/logger"
	"github.com/okian/lwwboard/pkg/metrics"
)

const defaultInterval = 10 * time.Second

// StatsSource provides store counters.
type StatsSource interface {
	Stats(ctx context.Context) model.Stats
}

// Reporter samples a StatsSource and a client count on a fixed interval.
type Reporter struct {
	source   StatsSource
	clients  func() int
	interval time.Duration
	logger   logger.Logger

	shutdown chan struct{}
	done     chan struct{}
}

// New creates a Reporter. clients may be nil.
func New(source StatsSource, clients func() int, opts ...Option) *Reporter {
	if clients == nil {
		clients = func() int { return 0 }
	}
	r := &Reporter{
		source:   source,
		clients:  clients,
		interval: defaultInterval,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("reporter")
	}
	return r
}

// Run samples until ctx is canceled or Shutdown is called.
func (r *Reporter) Run(ctx context.Context) {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.shutdown:
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

// Shutdown stops Run and waits for it to return.
func (r *Reporter) Shutdown(ctx context.Context) error {
	select {
	case <-r.shutdown:
	default:
		close(r.shutdown)
	}

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		r.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// tick takes one sample. A panic in the source is logged and counted.
func (r *Reporter) tick(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			metrics.RecordReporterFailure()
			metrics.RecordErrorByComponent("reporter", "panic")
			r.logger.Error(ctx, "stats sample failed", logger.Any("panic", p))
		}
	}()

	st := r.source.Stats(ctx)
	clients := r.clients()

	metrics.RecordReporterTick()
	metrics.UpdatePlayersTotal(st.TotalPlayers)
	metrics.UpdateUpdatesTotal(st.TotalUpdates)
	metrics.UpdateUpdatesPerSecond(st.UpdatesPerSecond)

	r.logger.Info(ctx, "stats",
		logger.Int("players", st.TotalPlayers),
		logger.Int64("updates", st.TotalUpdates),
		logger.Float64("rate", st.UpdatesPerSecond),
		logger.Int("clients", clients),
		logger.Float64("uptime", st.UptimeSeconds))
}
