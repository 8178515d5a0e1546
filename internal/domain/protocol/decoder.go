package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTopN = 10
	defaultMaxN = 1000
)

// Decoder turns request frames into typed requests.
// It is immutable after construction and safe for concurrent use.
type Decoder struct {
	defaultTopN int
	maxTopN     int
	now         func() time.Time
}

// NewDecoder creates a Decoder with the given options.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		defaultTopN: defaultTopN,
		maxTopN:     defaultMaxN,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxTopN < d.defaultTopN {
		d.maxTopN = d.defaultTopN
	}
	return d
}

// DefaultTopN returns the N used when a request does not name one.
func (d *Decoder) DefaultTopN() int { return d.defaultTopN }

// rawFrame holds the fields any command may carry, undecoded.
type rawFrame struct {
	Cmd      json.RawMessage `json:"cmd"`
	PlayerID json.RawMessage `json:"player_id"`
	Name     json.RawMessage `json:"name"`
	Score    json.RawMessage `json:"score"`
	TS       json.RawMessage `json:"ts"`
	N        json.RawMessage `json:"n"`
}

// Decode parses one frame without its trailing newline.
func (d *Decoder) Decode(frame []byte) (Request, error) {
	frame = bytes.TrimSpace(frame)
	if len(frame) == 0 || frame[0] != '{' {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrMalformedFrame)
	}

	var raw rawFrame
	if err := json.Unmarshal(frame, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	cmd, ok, err := stringField("cmd", raw.Cmd)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: cmd", ErrMissingField)
	}

	switch name := strings.ToUpper(cmd); name {
	case CmdUpdate:
		return d.decodeUpdate(&raw)
	case CmdGetTop:
		return d.decodeGetTop(&raw)
	case CmdGetPlayer:
		id, err := playerIDField(raw.PlayerID)
		if err != nil {
			return nil, err
		}
		return GetPlayerRequest{PlayerID: id}, nil
	case CmdStats:
		return StatsRequest{}, nil
	case CmdPing:
		return PingRequest{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
	}
}

func (d *Decoder) decodeUpdate(raw *rawFrame) (Request, error) {
	id, err := playerIDField(raw.PlayerID)
	if err != nil {
		return nil, err
	}

	score, ok, err := intField("score", raw.Score)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: score", ErrMissingField)
	}

	name, ok, err := stringField("name", raw.Name)
	if err != nil {
		return nil, err
	}
	if !ok {
		name = id
	}

	ts, ok, err := floatField("ts", raw.TS)
	if err != nil {
		return nil, err
	}
	if !ok {
		ts = UnixSeconds(d.now())
	}

	return UpdateRequest{PlayerID: id, Name: name, Score: score, Timestamp: ts}, nil
}

func (d *Decoder) decodeGetTop(raw *rawFrame) (Request, error) {
	n, ok, err := intField("n", raw.N)
	if err != nil {
		return nil, err
	}
	if !ok {
		return GetTopRequest{N: d.defaultTopN}, nil
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: n must not be negative", ErrInvalidField)
	}
	return GetTopRequest{N: int(min(n, int64(d.maxTopN)))}, nil
}

// UnixSeconds converts t to fractional seconds since the epoch.
func UnixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// absent reports whether a field was omitted or explicitly null.
func absent(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func stringField(name string, raw json.RawMessage) (string, bool, error) {
	if absent(raw) {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, fmt.Errorf("%w: %s must be a string", ErrInvalidField, name)
	}
	return s, true, nil
}

func playerIDField(raw json.RawMessage) (string, error) {
	id, ok, err := stringField("player_id", raw)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: player_id", ErrMissingField)
	}
	if id == "" {
		return "", fmt.Errorf("%w: player_id must not be empty", ErrInvalidField)
	}
	return id, nil
}

// intField accepts a JSON integer, a JSON number truncated toward zero, or an
// integer in a string.
func intField(name string, raw json.RawMessage) (int64, bool, error) {
	if absent(raw) {
		return 0, false, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, false, fmt.Errorf("%w: %s", ErrInvalidField, name)
		}
		v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return 0, false, fmt.Errorf("%w: %s must be an integer, got %q", ErrInvalidField, name, s)
		}
		return v, true, nil
	}

	var num json.Number
	if err := json.Unmarshal(raw, &num); err != nil {
		return 0, false, fmt.Errorf("%w: %s must be an integer", ErrInvalidField, name)
	}
	if v, err := num.Int64(); err == nil {
		return v, true, nil
	}
	f, err := num.Float64()
	if err != nil || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false, fmt.Errorf("%w: %s out of range", ErrInvalidField, name)
	}
	return int64(f), true, nil
}

// floatField accepts a JSON number or a number in a string.
func floatField(name string, raw json.RawMessage) (float64, bool, error) {
	if absent(raw) {
		return 0, false, nil
	}
	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, false, fmt.Errorf("%w: %s", ErrInvalidField, name)
		}
		text = strings.TrimSpace(text)
	} else {
		var num json.Number
		if err := json.Unmarshal(raw, &num); err != nil {
			return 0, false, fmt.Errorf("%w: %s must be a number", ErrInvalidField, name)
		}
		text = num.String()
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false, fmt.Errorf("%w: %s must be a finite number", ErrInvalidField, name)
	}
	return f, true, nil
}
