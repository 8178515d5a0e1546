package loadtest

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/okian/lwwboard/internal/client"
	"github.com/okian/lwwboard/internal/domain/protocol"
	"github.com/okian/lwwboard/internal/domain/types"
	"github.com/okian/lwwboard/pkg/logger"
)

// DemoPlayers are the players simulated by RunDemo.
var DemoPlayers = []struct{ ID, Name string }{
	{"alice", "Alice"}, {"bob", "Bob"}, {"carol", "Carol"}, {"dave", "Dave"},
	{"eve", "Eve"}, {"frank", "Frank"}, {"grace", "Grace"}, {"hiro", "Hiro"},
	{"isha", "Isha"}, {"jay", "Jay"},
}

// DemoResult is the outcome of RunDemo.
type DemoResult struct {
	Log   []string
	Top   []types.Entry
	Stats protocol.StatsPayload
}

// RunDemo has every demo player submit cfg.Rounds random scores at once,
// then reads back the leaderboard and the server stats.
func RunDemo(ctx context.Context, cfg Config) (*DemoResult, error) {
	if cfg.Addr == "" || cfg.Rounds < 1 || cfg.TopN < 1 {
		return nil, fmt.Errorf("%w: addr=%q rounds=%d top_n=%d", ErrInvalidConfig, cfg.Addr, cfg.Rounds, cfg.TopN)
	}
	log := logger.Get().Named("loadtest")
	log.Info(ctx, "starting demo", logger.String("addr", cfg.Addr), logger.Int("rounds", cfg.Rounds))

	clients := make([]*client.Client, len(DemoPlayers))
	defer func() {
		for _, c := range clients {
			if c != nil {
				_ = c.Close()
			}
		}
	}()
	for i := range DemoPlayers {
		c, err := client.Dial(ctx, cfg.Addr, cfg.Options...)
		if err != nil {
			return nil, err
		}
		clients[i] = c
	}

	var (
		mu    sync.Mutex
		lines []string
		wg    sync.WaitGroup
	)
	errs := make([]error, len(DemoPlayers))
	for i, p := range DemoPlayers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range cfg.Rounds {
				score := rand.Int64N(99_000) + 1000
				upd, err := clients[i].Update(ctx, p.ID, p.Name, score, protocol.UnixSeconds(time.Now()))
				if err != nil {
					errs[i] = err
					return
				}
				mu.Lock()
				lines = append(lines, fmt.Sprintf("%-10s -> %6d  [%s]", p.Name, score, upd.Status))
				mu.Unlock()
				pause(ctx, cfg.MaxPause)
			}
		}()
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	slices.Sort(lines)

	top, err := clients[0].Top(ctx, cfg.TopN)
	if err != nil {
		return nil, err
	}
	stats, err := clients[0].Stats(ctx)
	if err != nil {
		return nil, err
	}
	log.Info(ctx, "demo finished", logger.Int("updates", len(lines)), logger.Int64("total_updates", stats.TotalUpdates))
	return &DemoResult{Log: lines, Top: top, Stats: stats}, nil
}

// pause sleeps for a random duration in [minPause, maxPause).
func pause(ctx context.Context, maxPause time.Duration) {
	if maxPause <= 0 {
		return
	}
	d := maxPause
	if maxPause > minPause {
		d = minPause + rand.N(maxPause-minPause)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Fprint writes the update log and the final leaderboard to w.
func (d *DemoResult) Fprint(w io.Writer) {
	fmt.Fprintln(w, "Score updates submitted:")
	for _, line := range d.Log {
		fmt.Fprintln(w, "  "+line)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "FINAL LEADERBOARD")
	for _, e := range d.Top {
		fmt.Fprintf(w, "  #%-3d %-15s %8d\n", e.Rank, e.Name, e.Score)
	}
	fmt.Fprintf(w, "\nStats: %d updates | %.2f/s | uptime %.2fs\n",
		d.Stats.TotalUpdates, d.Stats.UpdatesPerSecond, d.Stats.UptimeSeconds)
}
