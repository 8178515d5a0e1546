// Package model contains domain models passed between layers.
package model

// Record is the stored state of one player. It is replaced wholesale on an
// accepted update.
type Record struct {
	PlayerID  string
	Name      string
	Score     int64
	Timestamp float64 // seconds since epoch, caller supplied
}

// UpdateResult is the outcome of one last-write-wins update.
type UpdateResult struct {
	Accepted     bool
	CurrentScore int64 // stored score after the decision
}

// Stats is a point-in-time view of the store counters.
type Stats struct {
	TotalPlayers     int
	TotalUpdates     int64
	UptimeSeconds    float64
	UpdatesPerSecond float64
}

// Newer reports whether ts wins over the record under last-write-wins.
// Equal timestamps keep the incumbent.
func (r Record) Newer(ts float64) bool {
	return ts > r.Timestamp
}
