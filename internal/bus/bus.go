// Package bus implements the process-local publish/subscribe registry that
// fans domain events out to every live connection of a user. It keeps no
// history: an event published with zero subscribers is dropped, and clients
// recover through a full resync on reconnect.
package bus

import (
	"sync"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// DeliverFunc pushes one serialized event to a single connection. It must
// not block; a typical implementation enqueues on a bounded channel and
// returns an error when the connection is gone or its queue is full.
type DeliverFunc func(message []byte) error

// Bus routes events by user id to the current set of connections.
// Safe for concurrent Subscribe/Unsubscribe/Publish.
type Bus struct {
	log *zap.Logger

	mu   sync.RWMutex
	subs map[uuid.UUID]map[uuid.UUID]DeliverFunc // userID -> connID -> deliver
}

// New creates an empty bus.
func New(log *zap.Logger) *Bus {
	return &Bus{
		log:  log,
		subs: make(map[uuid.UUID]map[uuid.UUID]DeliverFunc),
	}
}

// Subscribe registers connID under userID. Re-subscribing an existing
// connID replaces its delivery callback without duplicating the entry.
func (b *Bus) Subscribe(userID, connID uuid.UUID, deliver DeliverFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	conns, ok := b.subs[userID]
	if !ok {
		conns = make(map[uuid.UUID]DeliverFunc)
		b.subs[userID] = conns
	}
	conns[connID] = deliver
}

// Unsubscribe removes the registration; a no-op if it is already gone.
func (b *Bus) Unsubscribe(userID, connID uuid.UUID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	conns, ok := b.subs[userID]
	if !ok {
		return
	}
	delete(conns, connID)
	if len(conns) == 0 {
		delete(b.subs, userID)
	}
}

// Publish delivers message to every connection currently subscribed under
// userID. A failing or panicking delivery is logged and isolated; it never
// aborts delivery to siblings and never fails the publish itself.
func (b *Bus) Publish(userID uuid.UUID, message []byte) {
	b.mu.RLock()
	targets := make(map[uuid.UUID]DeliverFunc, len(b.subs[userID]))
	for connID, deliver := range b.subs[userID] {
		targets[connID] = deliver
	}
	b.mu.RUnlock()

	for connID, deliver := range targets {
		b.send(userID, connID, deliver, message)
	}
}

func (b *Bus) send(userID, connID uuid.UUID, deliver DeliverFunc, message []byte) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("subscriber delivery panic",
				zap.Stringer("user_id", userID),
				zap.Stringer("conn_id", connID),
				zap.Any("reason", r),
			)
		}
	}()
	if err := deliver(message); err != nil {
		b.log.Warn("subscriber delivery failed",
			zap.Stringer("user_id", userID),
			zap.Stringer("conn_id", connID),
			zap.Error(err),
		)
	}
}

// Connections reports how many connections are subscribed under userID.
func (b *Bus) Connections(userID uuid.UUID) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userID])
}
