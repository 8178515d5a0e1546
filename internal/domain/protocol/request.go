// Package protocol implements the newline-delimited JSON wire format spoken
// between leaderboard clients and the server.
package protocol

// Command names. Matching on the wire is case-insensitive.
const (
	CmdUpdate    = "UPDATE"
	CmdGetTop    = "GET_TOP"
	CmdGetPlayer = "GET_PLAYER"
	CmdStats     = "STATS"
	CmdPing      = "PING"
)

// Request is one decoded frame. The set of implementations is closed.
type Request interface {
	Command() string
	isRequest()
}

// UpdateRequest submits a score for a player.
type UpdateRequest struct {
	PlayerID  string
	Name      string
	Score     int64
	Timestamp float64
}

// GetTopRequest asks for the N best players.
type GetTopRequest struct {
	N int
}

// GetPlayerRequest asks for one player's record.
type GetPlayerRequest struct {
	PlayerID string
}

// StatsRequest asks for store and connection counters.
type StatsRequest struct{}

// PingRequest checks liveness.
type PingRequest struct{}

func (UpdateRequest) Command() string    { return CmdUpdate }
func (GetTopRequest) Command() string    { return CmdGetTop }
func (GetPlayerRequest) Command() string { return CmdGetPlayer }
func (StatsRequest) Command() string     { return CmdStats }
func (PingRequest) Command() string      { return CmdPing }

func (UpdateRequest) isRequest()    {}
func (GetTopRequest) isRequest()    {}
func (GetPlayerRequest) isRequest() {}
func (StatsRequest) isRequest()     {}
func (PingRequest) isRequest()      {}
