package repository

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/okian/lwwboard/internal/domain/model"
	"github.com/okian/lwwboard/internal/domain/types"
	"github.com/okian/lwwboard/pkg/metrics"
)

// MemoryStore is the in-memory Store. A single lock guards the records, the
// rank index and the update counter; nothing is held across I/O.
type MemoryStore struct {
	mu          sync.RWMutex
	byID        map[string]model.Record
	root        *node
	updateCount int64
	startTime   time.Time
	now         func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty store with configuration options.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		byID: make(map[string]model.Record),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startTime = s.now()
	return s
}

// Update implements Store.Update in O(log n) expected time.
func (s *MemoryStore) Update(_ context.Context, playerID, name string, score int64, ts float64) (model.UpdateResult, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreUpdateLatency(sinceMs(start))
	}()

	if playerID == "" {
		metrics.RecordErrorByComponent("repository", "invalid_player")
		return model.UpdateResult{}, ErrInvalidPlayer
	}

	s.mu.Lock()
	old, exists := s.byID[playerID]
	if exists && !old.Newer(ts) {
		s.mu.Unlock()
		metrics.RecordUpdateRejected()
		return model.UpdateResult{Accepted: false, CurrentScore: old.Score}, nil
	}
	if exists {
		s.root = remove(s.root, playerID, old.Score)
	}
	s.byID[playerID] = model.Record{PlayerID: playerID, Name: name, Score: score, Timestamp: ts}
	s.root = insert(s.root, playerID, score)
	s.updateCount++
	players := len(s.byID)
	s.mu.Unlock()

	metrics.RecordUpdateAccepted()
	if !exists {
		metrics.UpdatePlayersTotal(players)
	}
	return model.UpdateResult{Accepted: true, CurrentScore: score}, nil
}

// Top implements Store.Top.
func (s *MemoryStore) Top(_ context.Context, n int) ([]types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(sinceMs(start))
	}()

	if n < 0 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}
	if n == 0 {
		return []types.Entry{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Entry, 0, min(n, len(s.byID)))
	collect(s.root, func(nd *node) bool {
		rec := s.byID[nd.id]
		out = append(out, types.Entry{Rank: len(out) + 1, PlayerID: rec.PlayerID, Name: rec.Name, Score: rec.Score})
		return len(out) < n
	})
	return out, nil
}

// Lookup implements Store.Lookup.
func (s *MemoryStore) Lookup(_ context.Context, playerID string) (model.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[playerID]
	if !ok {
		return model.Record{}, ErrNotFound
	}
	return rec, nil
}

// Rank implements Store.Rank in O(log n) expected time.
func (s *MemoryStore) Rank(_ context.Context, playerID string) (types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(sinceMs(start))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[playerID]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return types.Entry{}, ErrNotFound
	}
	return types.Entry{
		Rank:     rankOf(s.root, rec.PlayerID, rec.Score),
		PlayerID: rec.PlayerID,
		Name:     rec.Name,
		Score:    rec.Score,
	}, nil
}

// Stats implements Store.Stats. The rate divides by at least one second.
func (s *MemoryStore) Stats(_ context.Context) model.Stats {
	s.mu.RLock()
	players, updates := len(s.byID), s.updateCount
	s.mu.RUnlock()

	uptime := s.now().Sub(s.startTime).Seconds()
	return model.Stats{
		TotalPlayers:     players,
		TotalUpdates:     updates,
		UptimeSeconds:    round2(uptime),
		UpdatesPerSecond: round2(float64(updates) / math.Max(uptime, 1)),
	}
}

// Count returns the total number of players.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
