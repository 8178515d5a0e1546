package reporter

import (
	"time"

	"github.com/okian/lwwboard/pkg/logger"
)

// Option applies a configuration option to the Reporter.
type Option func(*Reporter)

// WithInterval sets the sampling period.
func WithInterval(d time.Duration) Option {
	return func(r *Reporter) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithLogger sets a custom logger for the reporter.
func WithLogger(l logger.Logger) Option {
	return func(r *Reporter) {
		if l != nil {
			r.logger = l
		}
	}
}
