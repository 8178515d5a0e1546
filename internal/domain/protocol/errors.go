package protocol

import "errors"

// Sentinel error kinds for decoding. Wrapped errors carry the field or command name.
var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrMissingField   = errors.New("missing field")
	ErrInvalidField   = errors.New("invalid field")
	ErrUnknownCommand = errors.New("unknown command")
)

// Kind returns a short label for err suitable for metrics.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrMalformedFrame):
		return "malformed_frame"
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrInvalidField):
		return "invalid_field"
	case errors.Is(err, ErrUnknownCommand):
		return "unknown_command"
	default:
		return "other"
	}
}
