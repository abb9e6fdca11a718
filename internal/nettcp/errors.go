// Package nettcp implements a non-blocking TCP connection engine: a
// listening socket, an active-connect client socket, a connected
// byte-stream endpoint with an outbound send queue, and a pluggable
// helper chain that protocols such as TLS or SOCKS can layer onto a raw
// connection without this package knowing their type.
package nettcp

import "errors"

// Error kinds the engine distinguishes, mirrored from the error classes
// the original re/tcp.c returns as raw errno values.
var (
	// ErrInvalidArgument covers nil inputs, an empty send buffer, or an
	// operation on a connection that was never initialized.
	ErrInvalidArgument = errors.New("nettcp: invalid argument")

	// ErrNoMemory covers allocation failures during construction or
	// send-queue growth.
	ErrNoMemory = errors.New("nettcp: no memory")

	// ErrBadDescriptor covers any operation on a connection or listening
	// socket whose descriptor has already been closed (-1).
	ErrBadDescriptor = errors.New("nettcp: bad descriptor")

	// ErrAddrNotAvailable covers resolution producing no usable
	// candidates, or every candidate failing to bind/connect for
	// reasons other than an OS error on the last attempt.
	ErrAddrNotAvailable = errors.New("nettcp: address not available")
)
