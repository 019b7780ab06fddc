package chat

import (
	"log/slog"
	"time"
)

// PresenceTracker derives online/offline transitions from connection
// registrations. Only the first connection of a user announces user_online
// and only the last disconnect announces user_offline; intermediate
// connections of the same user change nothing.
type PresenceTracker struct {
	registry *Registry
	logger   *slog.Logger
}

// NewPresenceTracker creates a tracker over the registry
func NewPresenceTracker(registry *Registry, logger *slog.Logger) *PresenceTracker {
	return &PresenceTracker{registry: registry, logger: logger}
}

// HandleConnect registers the connection and broadcasts user_online when the
// user just came online
func (p *PresenceTracker) HandleConnect(conn Connection) {
	first := p.registry.Register(conn)
	if !first {
		return
	}

	data, err := NewEnvelope(EventUserOnline, "", PresenceNotice{
		UserID:    conn.UserID(),
		Username:  conn.Username(),
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		p.logger.Error("Failed to build presence frame", "error", err)
		return
	}
	p.registry.Broadcast(data, conn.UserID())
	p.logger.Info("User online", "user_id", conn.UserID(), "username", conn.Username())
}

// HandleDisconnect unregisters the connection and broadcasts user_offline
// with a last-seen timestamp when it was the user's last connection
func (p *PresenceTracker) HandleDisconnect(conn Connection) {
	userID, last, found := p.registry.Unregister(conn.ID())
	if !found || !last {
		return
	}

	lastSeen := time.Now().UTC()
	data, err := NewEnvelope(EventUserOffline, "", PresenceNotice{
		UserID:    userID,
		Username:  conn.Username(),
		Timestamp: lastSeen,
		LastSeen:  &lastSeen,
	})
	if err != nil {
		p.logger.Error("Failed to build presence frame", "error", err)
		return
	}
	p.registry.Broadcast(data, userID)
	p.logger.Info("User offline", "user_id", userID, "username", conn.Username())
}
