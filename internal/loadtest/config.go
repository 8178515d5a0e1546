package loadtest

import (
	"errors"
	"time"

	"github.com/okian/lwwboard/internal/client"
)

// ErrInvalidConfig is returned for non-positive counts or an empty address.
var ErrInvalidConfig = errors.New("invalid load test config")

// Config holds configuration for a benchmark or demo run.
type Config struct {
	Addr     string          // Server address
	Clients  int             // Concurrent clients (benchmark)
	Updates  int             // Updates per client (benchmark)
	Rounds   int             // Updates per player (demo)
	TopN     int             // Leaderboard size fetched at the end of the demo
	MaxPause time.Duration   // Upper bound of the random pause between demo rounds
	Options  []client.Option // Dial options shared by every client
}

const (
	defaultClients  = 10
	defaultUpdates  = 20
	defaultRounds   = 5
	defaultTopN     = 10
	defaultMaxPause = 100 * time.Millisecond
	minPause        = 20 * time.Millisecond
	maxScore        = 100_000
)

// DefaultConfig returns the settings used when flags are not given.
func DefaultConfig(addr string) Config {
	return Config{
		Addr:     addr,
		Clients:  defaultClients,
		Updates:  defaultUpdates,
		Rounds:   defaultRounds,
		TopN:     defaultTopN,
		MaxPause: defaultMaxPause,
	}
}
