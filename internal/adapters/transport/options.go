package transport

import (
	"time"

	"github.com/okian/lwwboard/internal/domain/protocol"
	"github.com/okian/lwwboard/pkg/logger"
)

const (
	defaultReadBufferSize = 4096
	defaultMaxFrameBytes  = 1 << 20
	defaultMaxClients     = 50
)

// settings are shared by a Listener and the sessions it starts.
type settings struct {
	decoder           *protocol.Decoder
	readBufferSize    int
	maxFrameBytes     int
	maxClients        int
	enforceMaxClients bool
	handshakeTimeout  time.Duration
	clients           func() int
	logger            logger.Logger
}

func newSettings(opts []Option) *settings {
	s := &settings{
		decoder:           protocol.NewDecoder(),
		readBufferSize:    defaultReadBufferSize,
		maxFrameBytes:     defaultMaxFrameBytes,
		maxClients:        defaultMaxClients,
		enforceMaxClients: true,
		clients:           func() int { return 0 },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("transport")
	}
	return s
}

// Option configures a Listener or a standalone Session.
type Option func(*settings)

// WithDecoder sets the request decoder, and with it the default and maximum top N.
func WithDecoder(d *protocol.Decoder) Option {
	return func(s *settings) {
		if d != nil {
			s.decoder = d
		}
	}
}

// WithReadBufferSize sets the number of bytes requested per read.
func WithReadBufferSize(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.readBufferSize = n
		}
	}
}

// WithMaxFrameBytes bounds a pending partial frame.
func WithMaxFrameBytes(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxFrameBytes = n
		}
	}
}

// WithMaxClients sets the session cap. When enforce is false the cap is advisory.
func WithMaxClients(n int, enforce bool) Option {
	return func(s *settings) {
		if n > 0 {
			s.maxClients = n
		}
		s.enforceMaxClients = enforce
	}
}

// WithHandshakeTimeout bounds each TLS handshake; zero disables the bound.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.handshakeTimeout = d
		}
	}
}

// WithClientCount sets the source of connected_clients for a standalone Session.
// A Listener always reports its own registry size.
func WithClientCount(count func() int) Option {
	return func(s *settings) {
		if count != nil {
			s.clients = count
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}
