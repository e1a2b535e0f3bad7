package net

import (
	"errors"
	"fmt"
	"net"
)

var (
	// ErrBind means the local UDP socket could not be bound.
	ErrBind = errors.New("net: bind local socket failed")
	// ErrResolve means the server host could not be resolved.
	ErrResolve = errors.New("net: resolve server failed")
	// ErrFraming means a datagram is shorter than its header or its declared length.
	ErrFraming = errors.New("net: malformed frame")
	// ErrPayloadTooLarge means a payload does not fit in one datagram.
	ErrPayloadTooLarge = errors.New("net: payload too large")

	// ErrNoResponse is the umbrella for every way a request can end without a
	// usable reply. Both ErrTimedOut and ErrStaleSession match it.
	ErrNoResponse = errors.New("net: no response")
	// ErrTimedOut means no reply arrived before the request timeout.
	ErrTimedOut = fmt.Errorf("%w: timed out", ErrNoResponse)
	// ErrStaleSession means a reply carried a session id other than the current one.
	ErrStaleSession = fmt.Errorf("%w: stale session", ErrNoResponse)

	// ErrTransportClosed is returned once the transport has been closed.
	ErrTransportClosed = fmt.Errorf("net: transport closed: %w", net.ErrClosed)
	// ErrClientClosed is returned by actions on a closed client.
	ErrClientClosed = errors.New("net: client closed")
)
