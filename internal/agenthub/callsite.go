package agenthub

import (
	"time"

	"github.com/google/uuid"
)

// CallSite issues correlated commands to whichever agent connection is
// currently active and awaits a typed reply. Grounded in
// remote/connection_manager.py's send_command and in the teacher's
// pending-map-plus-select idiom from internal/edge/manager.go.
type CallSite struct {
	hub *AgentHub
}

// NewCallSite binds a CallSite to hub.
func NewCallSite(hub *AgentHub) *CallSite {
	return &CallSite{hub: hub}
}

// Send issues action with params to the active agent connection and
// blocks until a reply arrives, the timeout elapses, or the connection
// drops. Multiple in-flight calls are allowed; replies are matched
// strictly by requestId, independent of send order.
func (c *CallSite) Send(action string, params map[string]any, timeout time.Duration) (map[string]any, error) {
	ac := c.hub.activeConnection()
	if ac == nil {
		c.hub.metrics.ObserveAgentCall("no_agent")
		return nil, ErrNoAgent
	}

	requestID := uuid.NewString()
	replyCh := ac.registerPending(requestID)
	defer ac.releasePending(requestID)

	if err := ac.writeFrame(frame{
		Type:      frameTypeCommand,
		RequestID: requestID,
		Action:    action,
		Params:    params,
	}); err != nil {
		c.hub.metrics.ObserveAgentCall("disconnected")
		return nil, ErrDisconnected
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		if reply.Success {
			c.hub.metrics.ObserveAgentCall("ok")
			return reply.Data, nil
		}
		c.hub.metrics.ObserveAgentCall("remote_error")
		return nil, &RemoteError{Message: reply.Error}

	case <-timer.C:
		c.hub.metrics.ObserveAgentCall("timeout")
		return nil, ErrTimeout

	case <-ac.done:
		c.hub.metrics.ObserveAgentCall("disconnected")
		if ac.closeErr != nil {
			return nil, ac.closeErr
		}
		return nil, ErrDisconnected
	}
}
