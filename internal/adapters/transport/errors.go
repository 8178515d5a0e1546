package transport

import "errors"

// Sentinel kinds for transport errors.
var (
	ErrAtCapacity       = errors.New("server at capacity")
	ErrDuplicateSession = errors.New("session already registered")
	ErrRegistryClosed   = errors.New("registry closed")
	ErrFrameTooLarge    = errors.New("frame too large")
	ErrWriteFailed      = errors.New("write response failed")
)
