package agenthub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// agentConnection is one live websocket connection to a remote browser
// agent, plus its pending-call table. At most one is ever active on a
// given AgentHub; a new successful handshake closes and replaces it.
type agentConnection struct {
	conn        *websocket.Conn
	clientID    string
	userAgent   string
	connectedAt time.Time

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan frame

	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func newAgentConnection(conn *websocket.Conn, clientID, userAgent string) *agentConnection {
	return &agentConnection{
		conn:        conn,
		clientID:    clientID,
		userAgent:   userAgent,
		connectedAt: time.Now(),
		pending:     make(map[string]chan frame),
		done:        make(chan struct{}),
	}
}

// writeFrame serializes and sends f, guarded by writeMu since gorilla's
// websocket.Conn forbids concurrent writers.
func (c *agentConnection) writeFrame(f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(f)
}

// registerPending installs a one-shot reply slot for requestID and
// returns the channel the reply (or a synthetic close notification) will
// arrive on.
func (c *agentConnection) registerPending(requestID string) chan frame {
	ch := make(chan frame, 1)
	c.pendingMu.Lock()
	c.pending[requestID] = ch
	c.pendingMu.Unlock()
	return ch
}

// releasePending removes requestID's slot, whatever the outcome. Safe to
// call more than once.
func (c *agentConnection) releasePending(requestID string) {
	c.pendingMu.Lock()
	delete(c.pending, requestID)
	c.pendingMu.Unlock()
}

// resolvePending delivers f to requestID's pending slot, if any. Returns
// false if there was no matching pending call (a stale or unsolicited
// reply), which the caller logs and drops.
func (c *agentConnection) resolvePending(requestID string, f frame) bool {
	c.pendingMu.Lock()
	ch, ok := c.pending[requestID]
	if ok {
		delete(c.pending, requestID)
	}
	c.pendingMu.Unlock()

	if !ok {
		return false
	}
	ch <- f
	return true
}

// close tears down the connection exactly once: records why (the error
// any in-flight Send should see on its select on c.done), closes done, and
// closes the websocket. err is nil-safe; a nil err defaults to
// ErrDisconnected at the CallSite, for callers that don't care to
// distinguish the reason.
func (c *agentConnection) close(err error) {
	c.closeOnce.Do(func() {
		c.closeErr = err
		close(c.done)
		_ = c.conn.Close()
	})
}
