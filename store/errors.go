package store

import "errors"

var (
	// ErrSerialize wraps failures to encode a value; nothing was written.
	ErrSerialize = errors.New("store: serialize value")
	// ErrDeserialize wraps failures to decode a stored value.
	ErrDeserialize = errors.New("store: deserialize value")
	// ErrAuth wraps an authentication failure during New.
	ErrAuth = errors.New("store: authentication failed")
	// ErrUnsupported is returned by connections lacking a capability.
	ErrUnsupported = errors.New("store: operation not supported")
	// ErrClosed is returned by a connection after Close.
	ErrClosed = errors.New("store: connection closed")
	// ErrInvalidPassword is returned by MemoryConn.Auth for a wrong password.
	ErrInvalidPassword = errors.New("store: invalid password")
)
