package client

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/okian/lwwboard/internal/adapters/repository"
	"github.com/okian/lwwboard/internal/adapters/tlsconf"
	"github.com/okian/lwwboard/internal/adapters/transport"
	"github.com/okian/lwwboard/internal/domain/protocol"
	"github.com/okian/lwwboard/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.InitWithWriter(io.Discard); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type server struct {
	tlsAddr  string
	quicAddr string
	l        *transport.Listener
}

func startServer(t *testing.T, opts ...transport.Option) *server {
	t.Helper()
	conf, err := tlsconf.DevServerConfig("1.2")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	l := transport.NewListener(repository.NewMemoryStore(), opts...)

	ln, err := l.ListenTLS(ctx, "127.0.0.1:0", conf)
	require.NoError(t, err)
	ql, err := l.ListenQUIC(ctx, "127.0.0.1:0", conf)
	require.NoError(t, err)

	go func() { _ = l.Serve(ctx, ln) }()
	go func() { _ = l.ServeQUIC(ctx, ql) }()

	t.Cleanup(func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = l.Shutdown(sctx)
		cancel()
	})
	return &server{tlsAddr: ln.Addr().String(), quicAddr: ql.Addr().String(), l: l}
}

func dial(t *testing.T, addr string, opts ...Option) *Client {
	t.Helper()
	c, err := Dial(context.Background(), addr, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestClientOverTLS(t *testing.T) {
	srv := startServer(t)
	c := dial(t, srv.tlsAddr)
	ctx := context.Background()

	pong, err := c.Ping(ctx)
	require.NoError(t, err)
	require.True(t, pong.Pong)
	require.Greater(t, pong.ServerTime, 0.0)

	upd, err := c.Update(ctx, "p1", "Alice", 100, 1000)
	require.NoError(t, err)
	require.True(t, upd.Accepted)
	require.Equal(t, int64(100), upd.CurrentScore)

	upd, err = c.Update(ctx, "p1", "Alice", 50, 999)
	require.NoError(t, err)
	require.False(t, upd.Accepted)
	require.Equal(t, int64(100), upd.CurrentScore)

	_, err = c.Update(ctx, "p2", "Bob", 150, 1001)
	require.NoError(t, err)

	top, err := c.Top(ctx, 5)
	require.NoError(t, err)
	require.Len(t, top, 2)
	require.Equal(t, "p2", top[0].PlayerID)
	require.Equal(t, 1, top[0].Rank)
	require.Equal(t, "p1", top[1].PlayerID)

	player, err := c.Player(ctx, "p1")
	require.NoError(t, err)
	require.True(t, player.Found)
	require.NotNil(t, player.Score)
	require.Equal(t, int64(100), *player.Score)

	missing, err := c.Player(ctx, "ghost")
	require.NoError(t, err)
	require.False(t, missing.Found)
	require.Nil(t, missing.Score)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.TotalPlayers)
	require.Equal(t, int64(2), stats.TotalUpdates)
	require.Equal(t, 1, stats.ConnectedClients)
}

func TestClientServerErrors(t *testing.T) {
	srv := startServer(t)
	c := dial(t, srv.tlsAddr)
	ctx := context.Background()

	resp, err := c.Do(ctx, protocol.GetPlayerRequest{})
	require.ErrorIs(t, err, ErrServer)
	require.Equal(t, protocol.StatusError, resp.Status)

	line, err := c.RoundTrip(ctx, []byte(`{"cmd":"nope"}`))
	require.NoError(t, err)
	require.Contains(t, string(line), "unknown command: NOPE")

	// the session survives protocol errors
	_, err = c.Ping(ctx)
	require.NoError(t, err)
}

func TestClientOverQUIC(t *testing.T) {
	srv := startServer(t)
	c := dial(t, srv.quicAddr, WithQUIC(true))
	ctx := context.Background()

	pong, err := c.Ping(ctx)
	require.NoError(t, err)
	require.True(t, pong.Pong)

	upd, err := c.Update(ctx, "q1", "Quinn", 7, 1)
	require.NoError(t, err)
	require.True(t, upd.Accepted)
	require.Len(t, upd.Top, 1)

	other := dial(t, srv.tlsAddr)
	top, err := other.Top(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "q1", top[0].PlayerID)
}

func TestClientClose(t *testing.T) {
	srv := startServer(t)
	c := dial(t, srv.tlsAddr)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.Ping(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestDialOptions(t *testing.T) {
	srv := startServer(t)

	_, err := Dial(context.Background(), srv.tlsAddr, WithInsecure(false), WithServerName("localhost"), WithTimeout(time.Second))
	require.Error(t, err, "self-signed certificate must fail verification")

	_, err = Dial(context.Background(), srv.tlsAddr, WithCAFile("does-not-exist.pem"))
	require.ErrorIs(t, err, tlsconf.ErrLoadCA)
}
