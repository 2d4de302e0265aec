package ws

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait     = 10 * time.Second
	sendQueueSize = 32
)

var errQueueFull = errors.New("send queue full")

// conn is one live transport. All writes go through the write pump so the
// underlying websocket only ever sees a single writer.
type conn struct {
	id     uuid.UUID
	userID uuid.UUID
	ws     *websocket.Conn
	log    *zap.Logger

	send  chan []byte
	pingC chan struct{}
	done  chan struct{}

	// alive flips to false on every heartbeat scan and back to true on
	// pong; still false at the next scan means the transport is dead.
	alive atomic.Bool

	closeOnce sync.Once
	onClose   func(*conn)
}

func newConn(id, userID uuid.UUID, wsc *websocket.Conn, log *zap.Logger, onClose func(*conn)) *conn {
	c := &conn{
		id:      id,
		userID:  userID,
		ws:      wsc,
		log:     log,
		send:    make(chan []byte, sendQueueSize),
		pingC:   make(chan struct{}, 1),
		done:    make(chan struct{}),
		onClose: onClose,
	}
	c.alive.Store(true)
	wsc.SetPongHandler(func(string) error {
		c.alive.Store(true)
		return nil
	})
	return c
}

// deliver enqueues one serialized event. Never blocks: a full queue means
// the connection is too slow to keep up and the event is refused; the
// client converges through its next resync.
func (c *conn) deliver(message []byte) error {
	select {
	case <-c.done:
		return errors.New("connection closed")
	default:
	}
	select {
	case c.send <- message:
		return nil
	default:
		return errQueueFull
	}
}

// ping requests a heartbeat probe from the write pump.
func (c *conn) ping() {
	select {
	case c.pingC <- struct{}{}:
	default:
	}
}

func (c *conn) writePump() {
	for {
		select {
		case message := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.close()
				return
			}
		case <-c.pingC:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// readPump drains the transport. The protocol is server-to-client only,
// but reading is what surfaces close frames, pongs and errors.
func (c *conn) readPump() {
	defer c.close()
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			return
		}
	}
}

// close tears the connection down. Safe to call from the read pump, the
// write pump, the heartbeat scan and server shutdown at once; only the
// first caller mutates state.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.onClose(c)
		_ = c.ws.Close()
		c.log.Info("connection closed",
			zap.Stringer("conn_id", c.id),
			zap.Stringer("user_id", c.userID),
		)
	})
}
