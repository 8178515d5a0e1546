package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	quic "github.com/quic-go/quic-go"

	"github.com/okian/lwwboard/internal/adapters/tlsconf"
	"github.com/okian/lwwboard/internal/domain/protocol"
	"github.com/okian/lwwboard/pkg/logger"
	"github.com/okian/lwwboard/pkg/metrics"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Listener accepts connections and runs one Session per connection.
type Listener struct {
	board    Leaderboard
	set      *settings
	registry *Registry
	log      logger.Logger

	mu        sync.Mutex
	closed    bool
	listeners []io.Closer
	quicConns map[*quic.Conn]struct{}
	wg        sync.WaitGroup

	shutdown chan struct{}
}

// NewListener creates a Listener serving board.
func NewListener(board Leaderboard, opts ...Option) *Listener {
	set := newSettings(opts)
	reg := NewRegistry()
	set.clients = reg.Len
	return &Listener{
		board:     board,
		set:       set,
		registry:  reg,
		log:       set.logger.Named("listener"),
		quicConns: make(map[*quic.Conn]struct{}),
		shutdown:  make(chan struct{}),
	}
}

// Registry returns the live session registry.
func (l *Listener) Registry() *Registry { return l.registry }

// ListenTLS binds a TLS listener on addr and logs the certificate fingerprint.
func (l *Listener) ListenTLS(ctx context.Context, addr string, conf *tls.Config) (net.Listener, error) {
	ln, err := tls.Listen("tcp", addr, conf)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	fields := []logger.Field{
		logger.String("addr", ln.Addr().String()),
		logger.Int("max_clients", l.set.maxClients),
		logger.Bool("enforce_max_clients", l.set.enforceMaxClients),
	}
	if fp, err := tlsconf.Fingerprint(conf); err == nil {
		fields = append(fields, logger.String("cert.sha3", fp))
	}
	l.log.Info(ctx, "tls listener bound", fields...)
	return ln, nil
}

// Serve accepts connections from ln until ctx is canceled or Shutdown is
// called. Connections from a TLS listener complete their handshake before
// the session starts.
func (l *Listener) Serve(ctx context.Context, ln net.Listener) error {
	if !l.track(ln) {
		_ = ln.Close()
		return nil
	}
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	var tempDelay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || l.isClosed() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Temporary() { //nolint:staticcheck // same check as net/http
				tempDelay = nextBackoff(tempDelay)
				l.log.Warn(ctx, "accept failed, retrying",
					logger.Error(err),
					logger.Duration("backoff", tempDelay))
				select {
				case <-time.After(tempDelay):
					continue
				case <-ctx.Done():
					return nil
				case <-l.shutdown:
					return nil
				}
			}
			return fmt.Errorf("accept: %w", err)
		}
		tempDelay = 0

		if !l.begin() {
			_ = conn.Close()
			return nil
		}
		go func() {
			defer l.wg.Done()
			l.handleConn(ctx, conn)
		}()
	}
}

func nextBackoff(d time.Duration) time.Duration {
	if d == 0 {
		return minAcceptBackoff
	}
	return min(d*2, maxAcceptBackoff)
}

func (l *Listener) handleConn(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()

	if tc, ok := conn.(*tls.Conn); ok {
		hctx := ctx
		if l.set.handshakeTimeout > 0 {
			var cancel context.CancelFunc
			hctx, cancel = context.WithTimeout(ctx, l.set.handshakeTimeout)
			defer cancel()
		}
		if err := tc.HandshakeContext(hctx); err != nil {
			metrics.RecordHandshakeFailure()
			l.log.Warn(ctx, "tls handshake failed",
				logger.String("remote", remote),
				logger.Error(err))
			_ = conn.Close()
			return
		}
	}

	l.runSession(ctx, remote, conn)
}

// runSession admits rwc under key and serves it until it ends.
func (l *Listener) runSession(ctx context.Context, key string, rwc io.ReadWriteCloser) {
	sess := newSession(rwc, l.board, key, l.set)

	limit := 0
	if l.set.enforceMaxClients {
		limit = l.set.maxClients
	}
	if err := l.registry.Admit(key, sess, limit); err != nil {
		l.reject(ctx, key, sess, err)
		return
	}
	defer l.registry.Remove(key)

	metrics.RecordConnectionAccepted()
	start := time.Now()
	l.log.Info(ctx, "client connected",
		logger.String("session.id", sess.ID()),
		logger.String("remote", key),
		logger.Int("clients", l.registry.Len()))

	err := sess.Serve(ctx)

	metrics.RecordSessionDuration(time.Since(start).Seconds())
	fields := []logger.Field{
		logger.String("session.id", sess.ID()),
		logger.String("remote", key),
		logger.Duration("duration", time.Since(start)),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	l.log.Info(ctx, "client disconnected", fields...)
}

func (l *Listener) reject(ctx context.Context, key string, sess *Session, reason error) {
	label := "closed"
	switch {
	case errors.Is(reason, ErrAtCapacity):
		label = "capacity"
		// The peer gets one error envelope before the close.
		_, _ = sess.conn.Write(protocol.EncodeError(ErrAtCapacity.Error()))
	case errors.Is(reason, ErrDuplicateSession):
		label = "duplicate"
	}
	metrics.RecordConnectionRejected(label)
	l.log.Warn(ctx, "connection rejected",
		logger.String("remote", key),
		logger.String("reason", label),
		logger.Int("clients", l.registry.Len()))
	_ = sess.Close()
}

// track records a closer for Shutdown; false once shutdown has begun.
func (l *Listener) track(c io.Closer) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.listeners = append(l.listeners, c)
	return true
}

// begin reserves a WaitGroup slot for a connection goroutine.
func (l *Listener) begin() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.wg.Add(1)
	return true
}

func (l *Listener) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Shutdown stops accepting, closes every session and waits for them to exit.
func (l *Listener) Shutdown(ctx context.Context) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.shutdown)
	listeners := l.listeners
	conns := make([]*quic.Conn, 0, len(l.quicConns))
	for c := range l.quicConns {
		conns = append(conns, c)
	}
	l.mu.Unlock()

	for _, ln := range listeners {
		_ = ln.Close()
	}
	if err := l.registry.CloseAll(); err != nil {
		l.log.Debug(ctx, "closing sessions", logger.Error(err))
	}
	for _, c := range conns {
		_ = c.CloseWithError(0, "server shutdown")
	}

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.log.Info(ctx, "listener stopped")
		return nil
	case <-ctx.Done():
		l.log.Warn(ctx, "shutdown timed out", logger.Int("clients", l.registry.Len()))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}
