// Package service wires the score store, the connection listeners and the
// stats reporter into one process-level component. It also implements the
// dependencies required by the admin HTTP API.
package service

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/lwwboard/internal/adapters/reporter"
	"github.com/okian/lwwboard/internal/adapters/repository"
	"github.com/okian/lwwboard/internal/adapters/tlsconf"
	"github.com/okian/lwwboard/internal/adapters/transport"
	"github.com/okian/lwwboard/internal/config"
	"github.com/okian/lwwboard/internal/domain/protocol"
	"github.com/okian/lwwboard/internal/domain/types"
	"github.com/okian/lwwboard/pkg/logger"
)

const defaultStopTimeout = 5 * time.Second

// Service implements the API dependencies for the leaderboard system.
type Service struct {
	mu sync.RWMutex

	// Core components
	cfg      *config.Config
	store    repository.Store
	listener *transport.Listener
	reporter *reporter.Reporter
	tlsConf  *tls.Config

	// State
	started  bool
	addr     string
	quicAddr string
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	errCh    chan error

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the process configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithStore replaces the in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithTLSConfig serves conf instead of building one from the configuration.
func WithTLSConfig(conf *tls.Config) Option {
	return func(s *Service) {
		s.tlsConf = conf
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:   config.New(),
		errCh: make(chan error, 2),
	}

	// Apply all options
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}

	return s
}

// Start binds the listeners and starts serving. The listeners outlive ctx;
// call Shutdown to stop them.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	// Initialize logger if not already set
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting leaderboard service...")

	conf, err := s.serverTLS()
	if err != nil {
		return err
	}

	decoder := protocol.NewDecoder(
		protocol.WithDefaultTopN(s.cfg.TopN),
		protocol.WithMaxTopN(s.cfg.MaxTopN),
	)
	l := transport.NewListener(s.store,
		transport.WithDecoder(decoder),
		transport.WithReadBufferSize(s.cfg.ReadBufferSize),
		transport.WithMaxFrameBytes(s.cfg.MaxFrameBytes),
		transport.WithMaxClients(s.cfg.MaxClients, s.cfg.EnforceMaxClients),
		transport.WithHandshakeTimeout(s.cfg.HandshakeTimeout()),
	)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	ln, err := l.ListenTLS(runCtx, s.cfg.Addr(), conf)
	if err != nil {
		cancel()
		return err
	}
	s.addr = ln.Addr().String()
	s.serve(func() error { return l.Serve(runCtx, ln) })

	s.quicAddr = ""
	if qaddr := s.cfg.QUICAddr(); qaddr != "" {
		ql, err := l.ListenQUIC(runCtx, qaddr, conf)
		if err != nil {
			cancel()
			_ = l.Shutdown(ctx)
			s.wg.Wait()
			return err
		}
		s.quicAddr = ql.Addr().String()
		s.serve(func() error { return l.ServeQUIC(runCtx, ql) })
	}

	rep := reporter.New(s.store, l.Registry().Len, reporter.WithInterval(s.cfg.StatsInterval()))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		rep.Run(runCtx)
	}()

	s.listener = l
	s.reporter = rep
	s.cancel = cancel
	s.started = true
	s.logger.Info(ctx, "leaderboard service started",
		logger.String("addr", s.addr),
		logger.String("quic_addr", s.quicAddr),
		logger.Int("top_n", s.cfg.TopN),
		logger.Int("max_clients", s.cfg.MaxClients),
		logger.Bool("enforce_max_clients", s.cfg.EnforceMaxClients),
	)

	return nil
}

// serve runs fn in the background and reports a non-nil result on Errors.
func (s *Service) serve(fn func() error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := fn(); err != nil {
			s.logger.Error(context.Background(), "listener failed", logger.Error(err))
			select {
			case s.errCh <- err:
			default:
			}
		}
	}()
}

func (s *Service) serverTLS() (*tls.Config, error) {
	if s.tlsConf != nil {
		return s.tlsConf, nil
	}
	if s.cfg.DevTLS {
		s.logger.Warn(context.Background(), "serving a generated self-signed certificate")
		conf, err := tlsconf.DevServerConfig(s.cfg.MinTLSVersion)
		if err != nil {
			return nil, fmt.Errorf("dev tls: %w", err)
		}
		return conf, nil
	}
	conf, err := tlsconf.ServerConfig(s.cfg.CertFile, s.cfg.KeyFile, s.cfg.MinTLSVersion)
	if err != nil {
		return nil, fmt.Errorf("tls: %w", err)
	}
	return conf, nil
}

// Errors delivers fatal accept loop failures.
func (s *Service) Errors() <-chan error {
	return s.errCh
}

// Shutdown stops accepting, closes every session and stops the reporter.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info(ctx, "stopping leaderboard service...")

	err := errors.Join(
		s.listener.Shutdown(ctx),
		s.reporter.Shutdown(ctx),
	)
	s.cancel()
	s.wg.Wait()

	s.started = false
	s.logger.Info(ctx, "leaderboard service stopped")
	return err
}

// Stop gracefully shuts down the service with a default timeout.
func (s *Service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), defaultStopTimeout)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "shutdown incomplete", logger.Error(err))
	}
}

// Addr returns the bound TLS address, or "" before Start.
func (s *Service) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}

// QUICAddr returns the bound QUIC address, or "" when QUIC is disabled.
func (s *Service) QUICAddr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.quicAddr
}

// Clients returns the number of live sessions.
func (s *Service) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return 0
	}
	return s.listener.Registry().Len()
}

// TopN returns the top N leaderboard entries.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	return s.store.Top(ctx, n)
}

// Rank returns the ranked entry for a player.
func (s *Service) Rank(ctx context.Context, playerID string) (types.Entry, error) {
	return s.store.Rank(ctx, playerID)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	st := s.store.Stats(context.Background())

	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := 0
	if s.started {
		clients = s.listener.Registry().Len()
	}
	return map[string]any{
		"started":             s.started,
		"addr":                s.addr,
		"quic_addr":           s.quicAddr,
		"total_players":       st.TotalPlayers,
		"total_updates":       st.TotalUpdates,
		"uptime_seconds":      st.UptimeSeconds,
		"updates_per_second":  st.UpdatesPerSecond,
		"connected_clients":   clients,
		"max_clients":         s.cfg.MaxClients,
		"enforce_max_clients": s.cfg.EnforceMaxClients,
		"top_n":               s.cfg.TopN,
	}
}
