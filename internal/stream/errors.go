package stream

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrAlreadyClosed   = errors.New("already closed")
	ErrClientClosed    = errors.New("client closed")
	ErrStaleConnection = errors.New("connection stale (no frames)")
)

// TransportError wraps a socket-level failure. It triggers the reconnect
// policy and is never fatal to the process.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError carries a server-sent error message. The connection is
// unaffected unless the server also closes it.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return "server error: " + e.Message
}

// ExhaustedRetriesError reports that reconnect attempts hit the cap. The
// client stays Disconnected and awaits a manual Connect.
type ExhaustedRetriesError struct {
	Attempts int
}

func (e *ExhaustedRetriesError) Error() string {
	return fmt.Sprintf("reconnect retries exhausted after %d attempts", e.Attempts)
}

// HandlerError reports a consumer callback that panicked during dispatch.
// It is reported through the error fan-out and never propagates into the
// dispatch loop.
type HandlerError struct {
	Category  string
	Recovered any
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s handler panicked: %v", e.Category, e.Recovered)
}
