package client

import "time"

type settings struct {
	quic       bool
	insecure   bool
	caFile     string
	serverName string
	timeout    time.Duration
}

// Option configures Dial.
type Option func(*settings)

// WithQUIC dials the QUIC endpoint and runs the session on one stream.
func WithQUIC(enabled bool) Option {
	return func(s *settings) {
		s.quic = enabled
	}
}

// WithInsecure skips server certificate verification. It is on by default
// because development servers use self-signed certificates.
func WithInsecure(insecure bool) Option {
	return func(s *settings) {
		s.insecure = insecure
	}
}

// WithCAFile verifies the server against the PEM bundle at path and turns
// off insecure mode.
func WithCAFile(path string) Option {
	return func(s *settings) {
		if path != "" {
			s.caFile = path
			s.insecure = false
		}
	}
}

// WithServerName overrides the name checked against the certificate.
func WithServerName(name string) Option {
	return func(s *settings) {
		s.serverName = name
	}
}

// WithTimeout bounds dialing and each round trip without a context deadline.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}
