// Package transport serves the leaderboard protocol over TLS and QUIC.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/okian/lwwboard/internal/adapters/repository"
	"github.com/okian/lwwboard/internal/domain/model"
	"github.com/okian/lwwboard/internal/domain/protocol"
	"github.com/okian/lwwboard/internal/domain/types"
	"github.com/okian/lwwboard/pkg/logger"
	"github.com/okian/lwwboard/pkg/metrics"
)

// Leaderboard is the store surface a session drives.
type Leaderboard interface {
	Update(ctx context.Context, playerID, name string, score int64, ts float64) (model.UpdateResult, error)
	Top(ctx context.Context, n int) ([]types.Entry, error)
	Lookup(ctx context.Context, playerID string) (model.Record, error)
	Stats(ctx context.Context) model.Stats
}

// State is the lifecycle position of a Session.
type State int32

// Session states.
const (
	StateOpen State = iota
	StateReading
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateReading:
		return "reading"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Session runs the request/response loop of one connection.
type Session struct {
	id     string
	remote string
	conn   io.ReadWriteCloser
	board  Leaderboard
	set    *settings
	log    logger.Logger

	state     atomic.Int32
	closing   atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// NewSession wraps conn. remote identifies the peer in logs.
func NewSession(conn io.ReadWriteCloser, board Leaderboard, remote string, opts ...Option) *Session {
	return newSession(conn, board, remote, newSettings(opts))
}

func newSession(conn io.ReadWriteCloser, board Leaderboard, remote string, set *settings) *Session {
	id := uuid.NewString()
	return &Session{
		id:     id,
		remote: remote,
		conn:   conn,
		board:  board,
		set:    set,
		log:    set.logger.Named("session"),
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return State(s.state.Load()) }

// Close releases the connection. It is safe to call more than once and from
// any goroutine; a blocked Serve returns without logging a transport error.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closing.Store(true)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// Serve reads frames until the peer disconnects, a write fails, or the
// session is closed. Clean disconnects return nil.
func (s *Session) Serve(ctx context.Context) error {
	defer func() {
		s.state.Store(int32(StateClosed))
		_ = s.Close()
	}()

	buf := make([]byte, s.set.readBufferSize)
	var pending []byte

	for {
		if ctx.Err() != nil {
			return nil
		}
		s.state.Store(int32(StateReading))
		n, readErr := s.conn.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)

			start := 0
			for {
				i := bytes.IndexByte(pending[start:], '\n')
				if i < 0 {
					break
				}
				frame := pending[start : start+i]
				start += i + 1
				if len(bytes.TrimSpace(frame)) == 0 {
					continue
				}
				if err := s.write(ctx, s.handle(ctx, frame)); err != nil {
					return err
				}
			}
			pending = append(pending[:0], pending[start:]...)

			if len(pending) > s.set.maxFrameBytes {
				metrics.RecordOversizeFrame()
				s.log.Warn(ctx, "frame too large, closing session",
					logger.String("session.id", s.id),
					logger.String("remote", s.remote),
					logger.Int("pending.bytes", len(pending)))
				_ = s.write(ctx, protocol.EncodeError(ErrFrameTooLarge.Error()))
				return ErrFrameTooLarge
			}
		}

		if readErr != nil {
			if s.quiet(readErr) {
				return nil
			}
			metrics.RecordErrorByComponent("session", "read")
			s.log.Warn(ctx, "session read failed",
				logger.String("session.id", s.id),
				logger.String("remote", s.remote),
				logger.Error(readErr))
			return readErr
		}
	}
}

// quiet reports whether err is an ordinary end of session.
func (s *Session) quiet(err error) bool {
	return s.closing.Load() ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.ECONNRESET)
}

func (s *Session) write(ctx context.Context, out []byte) error {
	if _, err := s.conn.Write(out); err != nil {
		metrics.RecordWriteFailure()
		if !s.quiet(err) {
			s.log.Warn(ctx, "session write failed",
				logger.String("session.id", s.id),
				logger.String("remote", s.remote),
				logger.Error(err))
		}
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return nil
}

// handle turns one frame into exactly one encoded response.
func (s *Session) handle(ctx context.Context, frame []byte) []byte {
	start := time.Now()

	req, err := s.set.decoder.Decode(frame)
	if err != nil {
		metrics.RecordDecodeError(protocol.Kind(err))
		metrics.RecordRequest("invalid", protocol.StatusError)
		s.log.Debug(ctx, "rejected frame",
			logger.String("session.id", s.id),
			logger.Error(err))
		return protocol.EncodeError(err.Error())
	}

	cmd := req.Command()
	defer func() {
		metrics.RecordRequestLatency(cmd, float64(time.Since(start))/float64(time.Millisecond))
	}()

	data, err := s.dispatch(ctx, req)
	if err != nil {
		metrics.RecordRequest(cmd, protocol.StatusError)
		metrics.RecordErrorByComponent("session", "dispatch")
		return protocol.EncodeError(err.Error())
	}

	out, err := protocol.EncodeOK(time.Since(start), data)
	if err != nil {
		metrics.RecordRequest(cmd, protocol.StatusError)
		s.log.Error(ctx, "encode response failed",
			logger.String("session.id", s.id),
			logger.String("cmd", cmd),
			logger.Error(err))
		return protocol.EncodeError("internal error")
	}
	metrics.RecordRequest(cmd, protocol.StatusOK)
	return out
}

func (s *Session) dispatch(ctx context.Context, req protocol.Request) (any, error) {
	switch r := req.(type) {
	case protocol.UpdateRequest:
		res, err := s.board.Update(ctx, r.PlayerID, r.Name, r.Score, r.Timestamp)
		if err != nil {
			return nil, err
		}
		top, err := s.board.Top(ctx, s.set.decoder.DefaultTopN())
		if err != nil {
			return nil, err
		}
		outcome := protocol.OutcomeRejected
		if res.Accepted {
			outcome = protocol.OutcomeAccepted
		}
		return protocol.UpdatePayload{
			Status:       outcome,
			Accepted:     res.Accepted,
			CurrentScore: res.CurrentScore,
			Top:          top,
		}, nil

	case protocol.GetTopRequest:
		top, err := s.board.Top(ctx, r.N)
		if err != nil {
			return nil, err
		}
		return protocol.TopPayload{Top: top}, nil

	case protocol.GetPlayerRequest:
		rec, err := s.board.Lookup(ctx, r.PlayerID)
		if errors.Is(err, repository.ErrNotFound) {
			return protocol.PlayerPayload{PlayerID: r.PlayerID, Error: protocol.MessagePlayerNotFound}, nil
		}
		if err != nil {
			return nil, err
		}
		return protocol.PlayerPayload{
			Found:    true,
			PlayerID: rec.PlayerID,
			Name:     rec.Name,
			Score:    &rec.Score,
			TS:       &rec.Timestamp,
		}, nil

	case protocol.StatsRequest:
		st := s.board.Stats(ctx)
		return protocol.StatsPayload{
			TotalPlayers:     st.TotalPlayers,
			TotalUpdates:     st.TotalUpdates,
			UptimeSeconds:    st.UptimeSeconds,
			UpdatesPerSecond: st.UpdatesPerSecond,
			ConnectedClients: s.set.clients(),
		}, nil

	case protocol.PingRequest:
		return protocol.PingPayload{Pong: true, ServerTime: protocol.UnixSeconds(time.Now())}, nil

	default:
		return nil, fmt.Errorf("%w: %s", protocol.ErrUnknownCommand, req.Command())
	}
}
