package agenthub

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAgent means AgentCallSite.send was called with no active
	// connection.
	ErrNoAgent = errors.New("agenthub: no active agent connection")
	// ErrTimeout means the pending call's deadline elapsed before a reply
	// arrived.
	ErrTimeout = errors.New("agenthub: call timed out waiting for reply")
	// ErrDisconnected means the connection the call was issued on closed
	// or was replaced before a reply arrived.
	ErrDisconnected = errors.New("agenthub: connection dropped before reply")
	// ErrShuttingDown means the hub itself was stopped while the call was
	// pending.
	ErrShuttingDown = errors.New("agenthub: hub is shutting down")
)

// RemoteError wraps a failure the agent itself reported (reply frame with
// success:false).
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("agenthub: remote error: %s", e.Message)
}
