package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Environment variable names.
const (
	envPrefix = "LWWBOARD_"
	envConfig = "LWWBOARD_CONFIG"
)

const maxPort = 65535

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if LWWBOARD_CONFIG is set
//  3. env (prefix LWWBOARD_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(envConfig); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: file %s: %w", ErrLoadConfig, path, err)
		}
	}

	// LWWBOARD_MAX_CLIENTS -> max_clients; underscores are kept to match the koanf tags.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, strings.ToLower(envPrefix))
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}
	// The file path itself is not a config key.
	k.Delete("config")

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Host) == "":
		return fmt.Errorf("%w: host must not be empty", ErrInvalidConfig)
	case c.Port < 1 || c.Port > maxPort:
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	case c.QUICPort < 0 || c.QUICPort > maxPort:
		return fmt.Errorf("%w: quic_port %d out of range", ErrInvalidConfig, c.QUICPort)
	case c.QUICPort != 0 && c.QUICPort == c.Port:
		return fmt.Errorf("%w: quic_port must differ from port", ErrInvalidConfig)
	case !c.DevTLS && (c.CertFile == "" || c.KeyFile == ""):
		return fmt.Errorf("%w: cert_file and key_file are required unless dev_tls is set", ErrInvalidConfig)
	case c.MinTLSVersion != "1.2" && c.MinTLSVersion != "1.3":
		return fmt.Errorf("%w: min_tls_version must be 1.2 or 1.3, got %q", ErrInvalidConfig, c.MinTLSVersion)
	case c.HandshakeTimeoutMS < 0:
		return fmt.Errorf("%w: handshake_timeout_ms must not be negative", ErrInvalidConfig)
	case c.TopN < 1:
		return fmt.Errorf("%w: top_n must be positive", ErrInvalidConfig)
	case c.MaxTopN < c.TopN:
		return fmt.Errorf("%w: max_top_n must be at least top_n", ErrInvalidConfig)
	case c.StatsIntervalMS < 1:
		return fmt.Errorf("%w: stats_interval_ms must be positive", ErrInvalidConfig)
	case c.MaxClients < 1:
		return fmt.Errorf("%w: max_clients must be positive", ErrInvalidConfig)
	case c.ReadBufferSize < 1:
		return fmt.Errorf("%w: read_buffer_size must be positive", ErrInvalidConfig)
	case c.MaxFrameBytes < 1:
		return fmt.Errorf("%w: max_frame_bytes must be positive", ErrInvalidConfig)
	}
	return nil
}
