package chat

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Connection is one live websocket session. A user may hold several at once
// (multiple tabs or devices); each gets every push addressed to the user.
type Connection interface {
	ID() string
	UserID() uuid.UUID
	Username() string
	// Send queues a frame for the write pump. It must not block; a full
	// buffer returns an error and the connection is considered dead.
	Send(data []byte) error
}

// Registry tracks live connections by user. All methods are safe for
// concurrent use.
type Registry struct {
	mu      sync.RWMutex
	byUser  map[uuid.UUID]map[string]Connection
	byConn  map[string]Connection
	viewing map[string]uuid.UUID // connection ID -> conversation partner being viewed
	logger  *slog.Logger
}

// NewRegistry creates an empty connection registry
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		byUser:  make(map[uuid.UUID]map[string]Connection),
		byConn:  make(map[string]Connection),
		viewing: make(map[string]uuid.UUID),
		logger:  logger,
	}
}

// Register adds a connection and reports whether it is the user's first,
// meaning the user just came online.
func (r *Registry) Register(conn Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID := conn.UserID()
	conns, ok := r.byUser[userID]
	if !ok {
		conns = make(map[string]Connection)
		r.byUser[userID] = conns
	}
	conns[conn.ID()] = conn
	r.byConn[conn.ID()] = conn

	r.logger.Debug("Connection registered",
		"conn_id", conn.ID(),
		"user_id", userID,
		"user_conns", len(conns))
	return len(conns) == 1
}

// Unregister removes a connection. It returns the owning user and whether it
// was the user's last connection, meaning the user just went offline. The
// found flag is false for unknown connection IDs; unregistering twice is safe.
func (r *Registry) Unregister(connID string) (userID uuid.UUID, last bool, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.byConn[connID]
	if !ok {
		return uuid.Nil, false, false
	}
	delete(r.byConn, connID)
	delete(r.viewing, connID)

	userID = conn.UserID()
	conns := r.byUser[userID]
	delete(conns, connID)
	if len(conns) == 0 {
		delete(r.byUser, userID)
		last = true
	}

	r.logger.Debug("Connection unregistered",
		"conn_id", connID,
		"user_id", userID,
		"last", last)
	return userID, last, true
}

// IsOnline reports whether the user has at least one live connection
func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// ConnectionsFor returns a snapshot of the user's live connections
func (r *Registry) ConnectionsFor(userID uuid.UUID) []Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]Connection, 0, len(r.byUser[userID]))
	for _, conn := range r.byUser[userID] {
		conns = append(conns, conn)
	}
	return conns
}

// CountFor returns the number of live connections for a user
func (r *Registry) CountFor(userID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}

// OnlineUsers returns a snapshot of every user with a live connection
func (r *Registry) OnlineUsers() []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]uuid.UUID, 0, len(r.byUser))
	for userID := range r.byUser {
		users = append(users, userID)
	}
	return users
}

// SendToUser pushes a frame to every connection of the user and returns the
// number of successful sends. Failed sends are logged and skipped; the read
// pump tears the broken connection down on its own.
func (r *Registry) SendToUser(userID uuid.UUID, data []byte) int {
	delivered := 0
	for _, conn := range r.ConnectionsFor(userID) {
		if err := conn.Send(data); err != nil {
			r.logger.Warn("Failed to push frame to connection",
				"conn_id", conn.ID(),
				"user_id", userID,
				"error", err)
			continue
		}
		delivered++
	}
	return delivered
}

// Broadcast pushes a frame to every connection except those owned by the
// excluded user
func (r *Registry) Broadcast(data []byte, exclude uuid.UUID) {
	r.mu.RLock()
	conns := make([]Connection, 0, len(r.byConn))
	for _, conn := range r.byConn {
		if conn.UserID() == exclude {
			continue
		}
		conns = append(conns, conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		if err := conn.Send(data); err != nil {
			r.logger.Warn("Failed to broadcast frame",
				"conn_id", conn.ID(),
				"error", err)
		}
	}
}

// SetViewing records the conversation partner a connection has open and
// returns the previously open partner, if any. Passing nil clears the state.
func (r *Registry) SetViewing(connID string, otherID *uuid.UUID) *uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byConn[connID]; !ok {
		return nil
	}

	var prev *uuid.UUID
	if p, ok := r.viewing[connID]; ok {
		prev = &p
	}
	if otherID == nil {
		delete(r.viewing, connID)
		return prev
	}
	r.viewing[connID] = *otherID
	return prev
}

// IsViewing reports whether any of the user's connections currently has the
// conversation with otherID open
func (r *Registry) IsViewing(userID, otherID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for connID := range r.byUser[userID] {
		if r.viewing[connID] == otherID {
			return true
		}
	}
	return false
}
