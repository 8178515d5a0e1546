package client

import "errors"

var (
	// ErrServer wraps an error envelope returned by the server.
	ErrServer = errors.New("server error")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("client closed")
)
