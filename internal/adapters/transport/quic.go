package transport

import (
	"context"
	"crypto/tls"
	"fmt"

	quic "github.com/quic-go/quic-go"

	"github.com/okian/lwwboard/internal/adapters/tlsconf"
	"github.com/okian/lwwboard/pkg/logger"
)

const quicStreamShutdown = quic.StreamErrorCode(0)

// ListenQUIC binds a QUIC endpoint on addr. The TLS config is cloned and
// pinned to TLS 1.3 with the lwwboard ALPN.
func (l *Listener) ListenQUIC(ctx context.Context, addr string, conf *tls.Config) (*quic.Listener, error) {
	qconf := conf.Clone()
	qconf.MinVersion = tls.VersionTLS13
	qconf.NextProtos = []string{tlsconf.ALPN}

	ql, err := quic.ListenAddr(addr, qconf, tlsconf.QUICConfig())
	if err != nil {
		return nil, fmt.Errorf("listen quic %s: %w", addr, err)
	}
	l.log.Info(ctx, "quic listener bound", logger.String("addr", ql.Addr().String()))
	return ql, nil
}

// ServeQUIC accepts QUIC connections from ql. Every stream a peer opens is
// one session keyed by "quic://<remote>#<stream id>".
func (l *Listener) ServeQUIC(ctx context.Context, ql *quic.Listener) error {
	if !l.track(ql) {
		_ = ql.Close()
		return nil
	}
	stop := context.AfterFunc(ctx, func() { _ = ql.Close() })
	defer stop()

	for {
		conn, err := ql.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || l.isClosed() {
				return nil
			}
			return fmt.Errorf("accept quic: %w", err)
		}
		if !l.begin() {
			_ = conn.CloseWithError(0, "server shutdown")
			return nil
		}
		go func() {
			defer l.wg.Done()
			l.handleQUICConn(ctx, conn)
		}()
	}
}

func (l *Listener) handleQUICConn(ctx context.Context, conn *quic.Conn) {
	l.mu.Lock()
	l.quicConns[conn] = struct{}{}
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		delete(l.quicConns, conn)
		l.mu.Unlock()
	}()

	remote := conn.RemoteAddr().String()
	l.log.Debug(ctx, "quic connection accepted", logger.String("remote", remote))

	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			l.log.Debug(ctx, "quic connection ended",
				logger.String("remote", remote),
				logger.Error(err))
			return
		}
		if !l.begin() {
			stream.CancelRead(quicStreamShutdown)
			_ = stream.Close()
			return
		}
		key := fmt.Sprintf("quic://%s#%d", remote, stream.StreamID())
		go func() {
			defer l.wg.Done()
			l.runSession(ctx, key, quicStream{stream})
		}()
	}
}

// quicStream closes both directions of a stream on Close.
type quicStream struct {
	*quic.Stream
}

func (s quicStream) Close() error {
	s.CancelRead(quicStreamShutdown)
	return s.Stream.Close()
}
