package protocol

import "time"

// Option configures a Decoder.
type Option func(*Decoder)

// WithDefaultTopN sets the N used when GET_TOP omits it.
func WithDefaultTopN(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.defaultTopN = n
		}
	}
}

// WithMaxTopN sets the cap applied to the N requested by GET_TOP.
func WithMaxTopN(n int) Option {
	return func(d *Decoder) {
		if n > 0 {
			d.maxTopN = n
		}
	}
}

// WithClock sets the time source used when UPDATE omits ts.
func WithClock(now func() time.Time) Option {
	return func(d *Decoder) {
		if now != nil {
			d.now = now
		}
	}
}
