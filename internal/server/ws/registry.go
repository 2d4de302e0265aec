// Package ws implements the server-side connection registry: it upgrades
// transports, authenticates them from the connect token, subscribes each
// live connection to the event bus and enforces liveness via heartbeats.
package ws

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Anshumanformal/Tab-SyncAR/internal/bus"
)

// DefaultPingInterval is how often live connections are probed. A
// connection that has not answered the previous probe by the next scan is
// treated as dead and force-closed.
const DefaultPingInterval = 30 * time.Second

// TokenVerifier decodes a bearer token to a user id.
// Satisfied by service.AuthService.
type TokenVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

// Registry owns every live connection of this process. One instance per
// server; handlers receive it by reference, never through package state.
type Registry struct {
	bus  *bus.Bus
	auth TokenVerifier
	log  *zap.Logger

	upgrader     websocket.Upgrader
	pingInterval time.Duration

	mu    sync.Mutex
	conns map[uuid.UUID]*conn
}

// New constructs a registry bound to the given bus.
func New(b *bus.Bus, auth TokenVerifier, log *zap.Logger, pingInterval time.Duration) *Registry {
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	return &Registry{
		bus:  b,
		auth: auth,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Extensions connect from extension origins; token auth is
			// the gate, not the Origin header.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		pingInterval: pingInterval,
		conns:        make(map[uuid.UUID]*conn),
	}
}

// ServeHTTP upgrades the transport and walks it through the lifecycle:
// authenticate the ?token= credential, subscribe to the bus, pump until
// closed. A missing or invalid token closes with 1008 and nothing else.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	wsc, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	userID, err := r.auth.Verify(req.URL.Query().Get("token"))
	if err != nil {
		r.reject(wsc, "invalid token")
		return
	}

	connID, err := uuid.NewV4()
	if err != nil {
		r.reject(wsc, "internal error")
		return
	}

	c := newConn(connID, userID, wsc, r.log, r.release)

	r.mu.Lock()
	r.conns[connID] = c
	r.mu.Unlock()
	r.bus.Subscribe(userID, connID, c.deliver)

	r.log.Info("connection live",
		zap.Stringer("conn_id", connID),
		zap.Stringer("user_id", userID),
	)

	go c.writePump()
	c.readPump()
}

func (r *Registry) reject(wsc *websocket.Conn, reason string) {
	deadline := time.Now().Add(writeWait)
	_ = wsc.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		deadline,
	)
	_ = wsc.Close()
}

// release is the single close path shared by client close, transport
// error, heartbeat timeout and shutdown; conn.close dedups the callers.
func (r *Registry) release(c *conn) {
	r.bus.Unsubscribe(c.userID, c.id)
	r.mu.Lock()
	delete(r.conns, c.id)
	r.mu.Unlock()
}

// Run probes all live connections at the configured interval until ctx is
// done, then closes whatever is left.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Registry) sweep() {
	for _, c := range r.snapshot() {
		if !c.alive.Swap(false) {
			r.log.Warn("heartbeat timeout, closing connection",
				zap.Stringer("conn_id", c.id),
				zap.Stringer("user_id", c.userID),
			)
			c.close()
			continue
		}
		c.ping()
	}
}

func (r *Registry) closeAll() {
	for _, c := range r.snapshot() {
		c.close()
	}
}

func (r *Registry) snapshot() []*conn {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

// Len reports the number of live connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}
