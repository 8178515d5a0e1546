package tlsconf

import "errors"

// Sentinel kinds for TLS setup errors.
var (
	ErrInvalidVersion = errors.New("invalid tls version")
	ErrNoCertificate  = errors.New("no certificate")
	ErrLoadCA         = errors.New("load ca bundle failed")
)
