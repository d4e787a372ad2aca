// Package agenthub implements the remote agent bridge: a second listening
// endpoint accepting a single long-lived bidirectional websocket
// connection from an untrusted browser agent, plus a request-ID-
// correlated RPC layer (AgentCallSite) that lets tool handlers drive it.
//
// Grounded in the teacher's gorilla/websocket control plane
// (internal/gateway/ws_control_plane.go) for the handshake/heartbeat/
// frame-routing shape, and in its gRPC edge daemon
// (internal/edge/manager.go) for the pending-call-table idiom.
package agenthub

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haasonsaas/brokerd/internal/metrics"
)

const (
	authFrameDeadline = 10 * time.Second
	pingInterval      = 30 * time.Second
	pongWait          = 10 * time.Second
	maxFrameBytes     = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// AgentHub accepts remote agent connections, authenticates them against a
// shared secret, and keeps exactly one connection OPEN at a time.
type AgentHub struct {
	secret           string
	allowEmptySecret bool
	logger           *slog.Logger
	metrics          *metrics.Metrics

	mu     sync.Mutex
	active *agentConnection

	server   *http.Server
	stopOnce sync.Once
}

// New builds an AgentHub. secret is the shared token every handshake frame
// must present; if secret is empty, allowEmptySecret controls whether the
// bridge accepts any handshake (explicitly opted into) or refuses all of
// them (the safer default), per spec.md §4.4.
func New(secret string, allowEmptySecret bool, logger *slog.Logger, m *metrics.Metrics) *AgentHub {
	return &AgentHub{
		secret:           secret,
		allowEmptySecret: allowEmptySecret,
		logger:           logger,
		metrics:          m,
	}
}

// Start begins accepting connections on addr. It returns once the
// listener is up; serving happens in a background goroutine.
func (h *AgentHub) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/agent", h.handleUpgrade)

	h.server = &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(50 * time.Millisecond):
		return nil
	}
}

// Stop closes the listener and the active connection, draining any
// pending calls with ErrShuttingDown by way of connection close.
func (h *AgentHub) Stop(ctx context.Context) error {
	var shutdownErr error
	h.stopOnce.Do(func() {
		h.mu.Lock()
		if h.active != nil {
			h.active.close(ErrShuttingDown)
			h.active = nil
		}
		h.mu.Unlock()

		if h.server != nil {
			shutdownErr = h.server.Shutdown(ctx)
		}
	})
	return shutdownErr
}

// activeConnection snapshots the current connection pointer under a short
// critical section, per spec.md §5's shared-resource policy.
func (h *AgentHub) activeConnection() *agentConnection {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

func (h *AgentHub) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("agent websocket upgrade failed", "error", err)
		return
	}
	go h.serveConnection(conn)
}

func (h *AgentHub) serveConnection(conn *websocket.Conn) {
	conn.SetReadLimit(maxFrameBytes)

	ac, err := h.handshake(conn)
	if err != nil {
		h.logger.Warn("agent handshake failed", "error", err)
		_ = conn.Close()
		return
	}

	h.replaceActive(ac)
	h.metrics.SetAgentConnectionOpen(true)
	h.logger.Info("agent connected", "clientId", ac.clientID, "userAgent", ac.userAgent)

	// Arm the pong deadline before the receive loop starts reading, and
	// keep rearming it on every pong: an agent that authenticates and then
	// never pongs must still be disconnected within pongWait, per
	// spec.md §4.4's "10 s pong deadline; failure closes the connection."
	ac.conn.SetPongHandler(func(string) error {
		return ac.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})
	_ = ac.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))

	go h.pingLoop(ac)
	h.receiveLoop(ac)
}

// handshake waits up to authFrameDeadline for an auth frame and verifies
// its token, matching spec.md §4.4.
func (h *AgentHub) handshake(conn *websocket.Conn) (*agentConnection, error) {
	_ = conn.SetReadDeadline(time.Now().Add(authFrameDeadline))

	var f frame
	if err := conn.ReadJSON(&f); err != nil {
		return nil, err
	}
	if f.Type != frameTypeAuth {
		_ = conn.WriteJSON(frame{Type: frameTypeAuthFailed, Message: "expected auth frame"})
		return nil, errors.New("agenthub: first frame was not an auth frame")
	}

	if !h.verifyToken(f.Token) {
		_ = conn.WriteJSON(frame{Type: frameTypeAuthFailed, Message: "invalid token"})
		return nil, errors.New("agenthub: invalid handshake token")
	}

	if err := conn.WriteJSON(frame{Type: frameTypeAuthSuccess}); err != nil {
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Time{})

	return newAgentConnection(conn, f.ClientID, f.UserAgent), nil
}

func (h *AgentHub) verifyToken(token string) bool {
	if h.secret == "" {
		return h.allowEmptySecret
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}

// replaceActive installs ac as the hub's active connection, closing and
// discarding whatever was active before (which fails its pending calls,
// since their selects observe the old connection's done channel close).
func (h *AgentHub) replaceActive(ac *agentConnection) {
	h.mu.Lock()
	old := h.active
	h.active = ac
	h.mu.Unlock()

	if old != nil {
		old.close(ErrDisconnected)
	}
}

func (h *AgentHub) pingLoop(ac *agentConnection) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ac.done:
			return
		case <-ticker.C:
			ac.writeMu.Lock()
			err := ac.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(pongWait))
			ac.writeMu.Unlock()
			if err != nil {
				ac.close(ErrDisconnected)
				return
			}
		}
	}
}

func (h *AgentHub) receiveLoop(ac *agentConnection) {
	defer func() {
		ac.close(ErrDisconnected)
		h.mu.Lock()
		stillActive := h.active == ac
		if stillActive {
			h.active = nil
		}
		h.mu.Unlock()
		// Only clear the open gauge and log disconnection if ac was still
		// the hub's active connection: when ac was replaced, replaceActive
		// already closed it and a newer connection may already be OPEN, so
		// this defer firing later must not clobber that connection's gauge
		// state or log a misleading "disconnected" after the reconnect.
		if stillActive {
			h.metrics.SetAgentConnectionOpen(false)
			h.logger.Info("agent disconnected", "clientId", ac.clientID)
		} else {
			h.logger.Debug("stale agent connection reader exiting", "clientId", ac.clientID)
		}
	}()

	for {
		var f frame
		if err := ac.conn.ReadJSON(&f); err != nil {
			return
		}

		switch f.Type {
		case frameTypeResponse:
			if f.RequestID == "" {
				h.logger.Warn("agent response frame missing requestId")
				continue
			}
			if !ac.resolvePending(f.RequestID, f) {
				h.logger.Debug("dropping stale agent reply", "requestId", f.RequestID)
			}
		default:
			h.logger.Warn("dropping unknown agent frame type", "type", f.Type)
		}
	}
}
