// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - New() returns a Config populated with defaults.
// - Load(ctx) layers a YAML file and environment variables on top of the defaults.
// - Errors returned by Load wrap ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the slog handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Host and Port configure the TLS listen endpoint.
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// QUICPort enables a QUIC endpoint on Host when non-zero.
	QUICPort int `koanf:"quic_port"`

	// CertFile and KeyFile locate the PEM encoded server certificate and key.
	CertFile string `koanf:"cert_file"`
	KeyFile  string `koanf:"key_file"`

	// DevTLS serves an in-memory self-signed certificate instead of CertFile/KeyFile.
	DevTLS bool `koanf:"dev_tls"`

	// MinTLSVersion is the lowest negotiated protocol version: "1.2" or "1.3".
	MinTLSVersion string `koanf:"min_tls_version"`

	// HandshakeTimeoutMS bounds the TLS handshake of a new connection; 0 disables.
	HandshakeTimeoutMS int `koanf:"handshake_timeout_ms"`

	// TopN is the default leaderboard size for GET_TOP and UPDATE snapshots.
	TopN int `koanf:"top_n"`

	// MaxTopN caps the n accepted by GET_TOP.
	MaxTopN int `koanf:"max_top_n"`

	// StatsIntervalMS is the period of the stats reporter.
	StatsIntervalMS int `koanf:"stats_interval_ms"`

	// MaxClients is the concurrent session cap.
	MaxClients int `koanf:"max_clients"`

	// EnforceMaxClients turns MaxClients into a hard admission check.
	EnforceMaxClients bool `koanf:"enforce_max_clients"`

	// ReadBufferSize is the number of bytes requested per socket read.
	ReadBufferSize int `koanf:"read_buffer_size"`

	// MaxFrameBytes bounds a pending partial frame.
	MaxFrameBytes int `koanf:"max_frame_bytes"`

	// AdminAddr is the admin HTTP listen address; empty disables it.
	AdminAddr string `koanf:"admin_addr"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:           "info",
		LogFormat:          "text",
		Host:               "0.0.0.0",
		Port:               9443,
		QUICPort:           0,
		CertFile:           "certs/server.crt",
		KeyFile:            "certs/server.key",
		DevTLS:             false,
		MinTLSVersion:      "1.2",
		HandshakeTimeoutMS: 10_000,
		TopN:               10,
		MaxTopN:            1000,
		StatsIntervalMS:    10_000,
		MaxClients:         50,
		EnforceMaxClients:  true,
		ReadBufferSize:     4096,
		MaxFrameBytes:      1 << 20,
		AdminAddr:          "127.0.0.1:9080",
	}
}

// Addr returns the TLS listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// QUICAddr returns the QUIC listen address, or "" when QUIC is disabled.
func (c *Config) QUICAddr() string {
	if c.QUICPort == 0 {
		return ""
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(c.QUICPort))
}

// StatsInterval returns the reporter period.
func (c *Config) StatsInterval() time.Duration {
	return time.Duration(c.StatsIntervalMS) * time.Millisecond
}

// HandshakeTimeout returns the TLS handshake bound.
func (c *Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutMS) * time.Millisecond
}
