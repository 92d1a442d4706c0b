package ws

import (
	"sync"

	"go.uber.org/zap"
)

// Sender is the minimal surface the fan-out path needs from a live
// connection: push a payload, or tear the connection down.
type Sender interface {
	Send(payload []byte) error
	Close() error
}

// Registry maps a user id to at most one live connection. It holds no
// durable truth: it starts empty on process boot and is rebuilt by clients
// reconnecting. All methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	conns  map[int64]Sender
	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		conns:  make(map[int64]Sender),
		logger: logger,
	}
}

// Register installs s as the user's live connection. Last connect wins: a
// prior connection for the same user is closed and replaced without
// notification.
func (r *Registry) Register(userID int64, s Sender) {
	r.mu.Lock()
	prior, had := r.conns[userID]
	r.conns[userID] = s
	r.mu.Unlock()

	if had {
		prior.Close()
		r.logger.Debug("evicted prior connection", zap.Int64("user_id", userID))
	}
}

// Unregister drops the user's connection. Unregistering an absent user is a
// no-op.
func (r *Registry) Unregister(userID int64) {
	r.mu.Lock()
	delete(r.conns, userID)
	r.mu.Unlock()
}

// UnregisterSession drops the user's connection only if it still is s.
// A disconnecting socket that has already been superseded by a reconnect
// must not tear down its replacement.
func (r *Registry) UnregisterSession(userID int64, s Sender) {
	r.mu.Lock()
	if cur, ok := r.conns[userID]; ok && cur == s {
		delete(r.conns, userID)
	}
	r.mu.Unlock()
}

// Lookup returns the user's current live connection, if any.
func (r *Registry) Lookup(userID int64) (Sender, bool) {
	r.mu.RLock()
	s, ok := r.conns[userID]
	r.mu.RUnlock()
	return s, ok
}

// Online reports the number of registered connections.
func (r *Registry) Online() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
