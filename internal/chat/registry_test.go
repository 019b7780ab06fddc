package chat

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeConn is an in-memory Connection capturing pushed frames
type fakeConn struct {
	id       string
	userID   uuid.UUID
	username string

	mu       sync.Mutex
	frames   [][]byte
	failSend bool
}

func newFakeConn(userID uuid.UUID, username string) *fakeConn {
	return &fakeConn{id: uuid.NewString(), userID: userID, username: username}
}

func (c *fakeConn) ID() string        { return c.id }
func (c *fakeConn) UserID() uuid.UUID { return c.userID }
func (c *fakeConn) Username() string  { return c.username }

func (c *fakeConn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend {
		return errors.New("send buffer full")
	}
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeConn) sentFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	frames := make([][]byte, len(c.frames))
	copy(frames, c.frames)
	return frames
}

func (c *fakeConn) lastEnvelope(t *testing.T) *Envelope {
	t.Helper()
	frames := c.sentFrames()
	require.NotEmpty(t, frames)
	var env Envelope
	require.NoError(t, json.Unmarshal(frames[len(frames)-1], &env))
	return &env
}

func TestRegistry_RegisterUnregister(t *testing.T) {
	registry := NewRegistry(newTestLogger())
	userID := uuid.New()

	conn1 := newFakeConn(userID, "alice")
	conn2 := newFakeConn(userID, "alice")

	assert.True(t, registry.Register(conn1), "first connection should report online transition")
	assert.False(t, registry.Register(conn2), "second connection is not a transition")
	assert.True(t, registry.IsOnline(userID))
	assert.Equal(t, 2, registry.CountFor(userID))

	gotUser, last, found := registry.Unregister(conn1.ID())
	assert.True(t, found)
	assert.False(t, last, "one connection remains")
	assert.Equal(t, userID, gotUser)
	assert.True(t, registry.IsOnline(userID))

	gotUser, last, found = registry.Unregister(conn2.ID())
	assert.True(t, found)
	assert.True(t, last, "last connection should report offline transition")
	assert.Equal(t, userID, gotUser)
	assert.False(t, registry.IsOnline(userID))
}

func TestRegistry_UnregisterUnknown(t *testing.T) {
	registry := NewRegistry(newTestLogger())

	_, _, found := registry.Unregister("no-such-conn")
	assert.False(t, found)

	// Unregistering twice is safe
	conn := newFakeConn(uuid.New(), "alice")
	registry.Register(conn)
	_, _, found = registry.Unregister(conn.ID())
	assert.True(t, found)
	_, _, found = registry.Unregister(conn.ID())
	assert.False(t, found)
}

func TestRegistry_SendToUser(t *testing.T) {
	registry := NewRegistry(newTestLogger())
	userID := uuid.New()

	conn1 := newFakeConn(userID, "alice")
	conn2 := newFakeConn(userID, "alice")
	conn3 := newFakeConn(userID, "alice")
	conn2.failSend = true
	registry.Register(conn1)
	registry.Register(conn2)
	registry.Register(conn3)

	other := newFakeConn(uuid.New(), "bob")
	registry.Register(other)

	delivered := registry.SendToUser(userID, []byte(`{"type":"test"}`))

	assert.Equal(t, 2, delivered, "failed send is skipped, not fatal")
	assert.Len(t, conn1.sentFrames(), 1)
	assert.Empty(t, conn2.sentFrames())
	assert.Len(t, conn3.sentFrames(), 1)
	assert.Empty(t, other.sentFrames(), "other users receive nothing")
}

func TestRegistry_Broadcast(t *testing.T) {
	registry := NewRegistry(newTestLogger())
	alice := uuid.New()
	bob := uuid.New()

	aliceConn := newFakeConn(alice, "alice")
	bobConn1 := newFakeConn(bob, "bob")
	bobConn2 := newFakeConn(bob, "bob")
	registry.Register(aliceConn)
	registry.Register(bobConn1)
	registry.Register(bobConn2)

	registry.Broadcast([]byte(`{"type":"user_online"}`), alice)

	assert.Empty(t, aliceConn.sentFrames(), "excluded user receives nothing")
	assert.Len(t, bobConn1.sentFrames(), 1)
	assert.Len(t, bobConn2.sentFrames(), 1)
}

func TestRegistry_Viewing(t *testing.T) {
	registry := NewRegistry(newTestLogger())
	alice := uuid.New()
	bob := uuid.New()

	conn := newFakeConn(alice, "alice")
	registry.Register(conn)

	assert.False(t, registry.IsViewing(alice, bob))

	assert.Nil(t, registry.SetViewing(conn.ID(), &bob))
	assert.True(t, registry.IsViewing(alice, bob))
	assert.False(t, registry.IsViewing(alice, uuid.New()))

	prev := registry.SetViewing(conn.ID(), nil)
	require.NotNil(t, prev)
	assert.Equal(t, bob, *prev)
	assert.False(t, registry.IsViewing(alice, bob))

	// Viewing state dies with the connection
	registry.SetViewing(conn.ID(), &bob)
	registry.Unregister(conn.ID())
	assert.False(t, registry.IsViewing(alice, bob))

	// Unknown connections are ignored
	registry.SetViewing("no-such-conn", &bob)
	assert.False(t, registry.IsViewing(alice, bob))
}

func TestRegistry_OnlineUsers(t *testing.T) {
	registry := NewRegistry(newTestLogger())
	alice := uuid.New()
	bob := uuid.New()

	registry.Register(newFakeConn(alice, "alice"))
	registry.Register(newFakeConn(bob, "bob"))

	users := registry.OnlineUsers()
	assert.ElementsMatch(t, []uuid.UUID{alice, bob}, users)
}
