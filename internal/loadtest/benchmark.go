// Package loadtest drives a running server with concurrent clients.
package loadtest

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/lwwboard/internal/client"
	"github.com/okian/lwwboard/internal/domain/protocol"
	"github.com/okian/lwwboard/pkg/logger"
)

// Latency summarizes successful round trips.
type Latency struct {
	Min time.Duration
	Avg time.Duration
	P50 time.Duration
	P95 time.Duration
	P99 time.Duration
	Max time.Duration
}

// Report is the outcome of RunBenchmark.
type Report struct {
	Clients     int
	Updates     int
	Total       int
	Successful  int
	Errors      int
	Wall        time.Duration
	Throughput  float64 // successful updates per second
	SuccessRate float64 // percent
	Latency     Latency
}

type workerResult struct {
	latencies []time.Duration
	errors    int
}

// RunBenchmark connects cfg.Clients clients, releases them together and has
// each submit cfg.Updates random scores for its own player. Failed dials
// count every planned update as an error.
func RunBenchmark(ctx context.Context, cfg Config) (*Report, error) {
	if cfg.Addr == "" || cfg.Clients < 1 || cfg.Updates < 1 {
		return nil, fmt.Errorf("%w: addr=%q clients=%d updates=%d", ErrInvalidConfig, cfg.Addr, cfg.Clients, cfg.Updates)
	}
	log := logger.Get().Named("loadtest")
	log.Info(ctx, "starting benchmark",
		logger.String("addr", cfg.Addr),
		logger.Int("clients", cfg.Clients),
		logger.Int("updates", cfg.Updates))

	results := make([]workerResult, cfg.Clients)
	start := make(chan struct{})
	var ready, done sync.WaitGroup
	ready.Add(cfg.Clients)
	done.Add(cfg.Clients)

	for i := range cfg.Clients {
		go func() {
			defer done.Done()
			results[i] = benchWorker(ctx, cfg, &ready, start)
		}()
	}

	ready.Wait()
	began := time.Now()
	close(start)
	done.Wait()

	report := summarize(cfg, results, time.Since(began))
	log.Info(ctx, "benchmark finished",
		logger.Int("successful", report.Successful),
		logger.Int("errors", report.Errors),
		logger.Float64("throughput", report.Throughput),
		logger.Duration("p99", report.Latency.P99))
	return report, nil
}

func benchWorker(ctx context.Context, cfg Config, ready *sync.WaitGroup, start <-chan struct{}) workerResult {
	c, err := client.Dial(ctx, cfg.Addr, cfg.Options...)
	ready.Done()
	<-start
	if err != nil {
		return workerResult{errors: cfg.Updates}
	}
	defer c.Close()

	playerID := uuid.NewString()
	name := "Bot-" + playerID[:8]
	res := workerResult{latencies: make([]time.Duration, 0, cfg.Updates)}
	for range cfg.Updates {
		if ctx.Err() != nil {
			res.errors++
			continue
		}
		score := rand.Int64N(maxScore) + 1
		t0 := time.Now()
		_, err := c.Update(ctx, playerID, name, score, protocol.UnixSeconds(t0))
		if err != nil {
			res.errors++
			continue
		}
		res.latencies = append(res.latencies, time.Since(t0))
	}
	return res
}

func summarize(cfg Config, results []workerResult, wall time.Duration) *Report {
	r := &Report{
		Clients: cfg.Clients,
		Updates: cfg.Updates,
		Total:   cfg.Clients * cfg.Updates,
		Wall:    wall,
	}
	var all []time.Duration
	for _, res := range results {
		all = append(all, res.latencies...)
		r.Errors += res.errors
	}
	r.Successful = len(all)
	if r.Total > 0 {
		r.SuccessRate = float64(r.Successful) / float64(r.Total) * 100
	}
	if wall > 0 {
		r.Throughput = float64(r.Successful) / wall.Seconds()
	}
	r.Latency = summarizeLatency(all)
	return r
}

func summarizeLatency(all []time.Duration) Latency {
	if len(all) == 0 {
		return Latency{}
	}
	slices.Sort(all)
	var sum time.Duration
	for _, d := range all {
		sum += d
	}
	return Latency{
		Min: all[0],
		Avg: sum / time.Duration(len(all)),
		P50: percentile(all, 50),
		P95: percentile(all, 95),
		P99: percentile(all, 99),
		Max: all[len(all)-1],
	}
}

// percentile uses the nearest-rank method on sorted samples.
func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	rank = max(rank, 1)
	return sorted[rank-1]
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Fprint writes a human readable summary to w.
func (r *Report) Fprint(w io.Writer) {
	fmt.Fprintf(w, "BENCHMARK: %d clients x %d updates\n", r.Clients, r.Updates)
	fmt.Fprintf(w, "  total updates : %d\n", r.Total)
	fmt.Fprintf(w, "  successful    : %d (%.1f%%)\n", r.Successful, r.SuccessRate)
	fmt.Fprintf(w, "  errors        : %d\n", r.Errors)
	fmt.Fprintf(w, "  wall time     : %.2fs\n", r.Wall.Seconds())
	fmt.Fprintf(w, "  throughput    : %.1f updates/sec\n", r.Throughput)
	if r.Successful > 0 {
		l := r.Latency
		fmt.Fprintf(w, "  latency (ms)  : min=%.2f avg=%.2f p50=%.2f p95=%.2f p99=%.2f max=%.2f\n",
			ms(l.Min), ms(l.Avg), ms(l.P50), ms(l.P95), ms(l.P99), ms(l.Max))
	}
}
