// Package client is a synchronous client for the leaderboard wire protocol.
package client

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	quic "github.com/quic-go/quic-go"

	"github.com/okian/lwwboard/internal/adapters/tlsconf"
	"github.com/okian/lwwboard/internal/domain/protocol"
	"github.com/okian/lwwboard/internal/domain/types"
)

const defaultTimeout = 5 * time.Second

type conn interface {
	io.ReadWriteCloser
	SetDeadline(t time.Time) error
}

// Client sends one request at a time and waits for its response.
type Client struct {
	mu      sync.Mutex
	conn    conn
	r       *bufio.Reader
	timeout time.Duration
	closed  bool
}

// Dial connects to addr over TLS, or over QUIC with WithQUIC.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	set := &settings{insecure: true, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(set)
	}

	conf, err := tlsconf.ClientConfig(set.insecure, set.caFile, set.serverName)
	if err != nil {
		return nil, err
	}

	dctx, cancel := context.WithTimeout(ctx, set.timeout)
	defer cancel()

	var c conn
	if set.quic {
		c, err = dialQUIC(dctx, addr, conf)
	} else {
		c, err = dialTLS(dctx, addr, conf, set.timeout)
	}
	if err != nil {
		return nil, err
	}
	return &Client{conn: c, r: bufio.NewReader(c), timeout: set.timeout}, nil
}

func dialTLS(ctx context.Context, addr string, conf *tls.Config, timeout time.Duration) (conn, error) {
	d := &tls.Dialer{NetDialer: &net.Dialer{Timeout: timeout}, Config: conf}
	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	tc, ok := nc.(*tls.Conn)
	if !ok {
		_ = nc.Close()
		return nil, fmt.Errorf("dial %s: unexpected connection type %T", addr, nc)
	}
	return tc, nil
}

// quicConn owns the connection behind its single stream.
type quicConn struct {
	*quic.Stream
	qc *quic.Conn
}

func (c quicConn) Close() error {
	err := c.Stream.Close()
	_ = c.qc.CloseWithError(0, "client closed")
	return err
}

func dialQUIC(ctx context.Context, addr string, conf *tls.Config) (conn, error) {
	conf = conf.Clone()
	conf.MinVersion = tls.VersionTLS13
	qc, err := quic.DialAddr(ctx, addr, conf, tlsconf.QUICConfig())
	if err != nil {
		return nil, fmt.Errorf("dial quic %s: %w", addr, err)
	}
	stream, err := qc.OpenStreamSync(ctx)
	if err != nil {
		_ = qc.CloseWithError(0, "open stream failed")
		return nil, fmt.Errorf("open stream %s: %w", addr, err)
	}
	return quicConn{Stream: stream, qc: qc}, nil
}

// Close closes the connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

// RoundTrip writes one raw frame and returns the raw response line. A
// trailing newline is added when frame lacks one.
func (c *Client) RoundTrip(ctx context.Context, frame []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	if len(frame) == 0 || frame[len(frame)-1] != '\n' {
		frame = append(frame[:len(frame):len(frame)], '\n')
	}
	if _, err := c.conn.Write(frame); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return line, nil
}

// Do sends req and decodes the envelope. An error envelope is returned
// together with an error wrapping ErrServer.
func (c *Client) Do(ctx context.Context, req protocol.Request) (protocol.Response, error) {
	frame, err := protocol.EncodeRequest(req)
	if err != nil {
		return protocol.Response{}, err
	}
	line, err := c.RoundTrip(ctx, frame)
	if err != nil {
		return protocol.Response{}, err
	}
	resp, err := protocol.DecodeResponse(line)
	if err != nil {
		return protocol.Response{}, err
	}
	if resp.Status == protocol.StatusError {
		return resp, fmt.Errorf("%w: %s", ErrServer, resp.Message)
	}
	return resp, nil
}

func call[T any](ctx context.Context, c *Client, req protocol.Request) (T, error) {
	var out T
	resp, err := c.Do(ctx, req)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(resp.Data, &out); err != nil {
		return out, fmt.Errorf("decode %s payload: %w", req.Command(), err)
	}
	return out, nil
}

// Ping checks liveness.
func (c *Client) Ping(ctx context.Context) (protocol.PingPayload, error) {
	return call[protocol.PingPayload](ctx, c, protocol.PingRequest{})
}

// Update submits a score stamped with ts.
func (c *Client) Update(ctx context.Context, playerID, name string, score int64, ts float64) (protocol.UpdatePayload, error) {
	return call[protocol.UpdatePayload](ctx, c, protocol.UpdateRequest{
		PlayerID:  playerID,
		Name:      name,
		Score:     score,
		Timestamp: ts,
	})
}

// Top returns the n best players.
func (c *Client) Top(ctx context.Context, n int) ([]types.Entry, error) {
	p, err := call[protocol.TopPayload](ctx, c, protocol.GetTopRequest{N: n})
	if err != nil {
		return nil, err
	}
	return p.Top, nil
}

// Player returns one player's record. Found is false for unknown players.
func (c *Client) Player(ctx context.Context, playerID string) (protocol.PlayerPayload, error) {
	return call[protocol.PlayerPayload](ctx, c, protocol.GetPlayerRequest{PlayerID: playerID})
}

// Stats returns store and connection counters.
func (c *Client) Stats(ctx context.Context) (protocol.StatsPayload, error) {
	return call[protocol.StatsPayload](ctx, c, protocol.StatsRequest{})
}
