package protocol

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/okian/lwwboard/internal/domain/types"
)

// Envelope statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Update outcomes carried in UpdatePayload.Status.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
)

// MessagePlayerNotFound is returned inside an ok envelope for unknown players.
const MessagePlayerNotFound = "player not found"

type okEnvelope struct {
	Status    string  `json:"status"`
	LatencyMS float64 `json:"latency_ms"`
	Data      any     `json:"data"`
}

type errorEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Response is a decoded envelope as seen by a client.
type Response struct {
	Status    string          `json:"status"`
	LatencyMS float64         `json:"latency_ms,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// UpdatePayload answers UPDATE.
type UpdatePayload struct {
	Status       string        `json:"status"`
	Accepted     bool          `json:"accepted"`
	CurrentScore int64         `json:"current_score"`
	Top          []types.Entry `json:"top"`
}

// TopPayload answers GET_TOP.
type TopPayload struct {
	Top []types.Entry `json:"top"`
}

// PlayerPayload answers GET_PLAYER. Score and TS are nil when Found is false.
type PlayerPayload struct {
	Found    bool     `json:"found"`
	PlayerID string   `json:"player_id"`
	Name     string   `json:"name,omitempty"`
	Score    *int64   `json:"score,omitempty"`
	TS       *float64 `json:"ts,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// StatsPayload answers STATS.
type StatsPayload struct {
	TotalPlayers     int     `json:"total_players"`
	TotalUpdates     int64   `json:"total_updates"`
	UptimeSeconds    float64 `json:"uptime_seconds"`
	UpdatesPerSecond float64 `json:"updates_per_second"`
	ConnectedClients int     `json:"connected_clients"`
}

// PingPayload answers PING.
type PingPayload struct {
	Pong       bool    `json:"pong"`
	ServerTime float64 `json:"server_time"`
}

// EncodeOK renders a success envelope followed by a newline.
func EncodeOK(latency time.Duration, data any) ([]byte, error) {
	ms := math.Round(float64(latency)/float64(time.Millisecond)*1000) / 1000
	out, err := json.Marshal(okEnvelope{Status: StatusOK, LatencyMS: ms, Data: data})
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return append(out, '\n'), nil
}

// EncodeError renders an error envelope followed by a newline.
func EncodeError(message string) []byte {
	out, err := json.Marshal(errorEnvelope{Status: StatusError, Message: message})
	if err != nil {
		// a struct of two strings always marshals
		return []byte(`{"status":"error","message":"internal error"}` + "\n")
	}
	return append(out, '\n')
}

// DecodeResponse parses one response frame.
func DecodeResponse(frame []byte) (Response, error) {
	var r Response
	if err := json.Unmarshal(frame, &r); err != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	if r.Status != StatusOK && r.Status != StatusError {
		return Response{}, fmt.Errorf("%w: status %q", ErrInvalidField, r.Status)
	}
	return r, nil
}

// wireRequest is the encoded form of every request variant.
type wireRequest struct {
	Cmd      string   `json:"cmd"`
	PlayerID string   `json:"player_id,omitempty"`
	Name     string   `json:"name,omitempty"`
	Score    *int64   `json:"score,omitempty"`
	TS       *float64 `json:"ts,omitempty"`
	N        int      `json:"n,omitempty"`
}

// EncodeRequest renders req as one frame followed by a newline.
func EncodeRequest(req Request) ([]byte, error) {
	w := wireRequest{Cmd: req.Command()}
	switch r := req.(type) {
	case UpdateRequest:
		w.PlayerID, w.Name = r.PlayerID, r.Name
		w.Score, w.TS = &r.Score, &r.Timestamp
	case GetTopRequest:
		w.N = r.N
	case GetPlayerRequest:
		w.PlayerID = r.PlayerID
	case StatsRequest, PingRequest:
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownCommand, req)
	}
	out, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return append(out, '\n'), nil
}
