package registry

import (
	"sync"
	"sync/atomic"

	"meethub/backend/internal/models"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"
)

// Client is the outbound side of a live realtime connection.
type Client interface {
	// Send queues an envelope without blocking. It reports false if the
	// connection is closed or its buffer is full.
	Send(env models.Envelope) bool
	// Close terminates the connection with a close reason.
	Close(reason string)
}

// Connection is the identity bound to one live socket.
type Connection struct {
	Handle   string
	RoomID   string
	UserID   string
	Username string
	IsHost   bool
	RemoteIP string
	Lang     string
	Client   Client

	guest atomic.Bool
}

// NewConnection creates a connection with a fresh handle.
func NewConnection(roomID, userID, username, remoteIP string, isHost, isGuest bool, client Client) *Connection {
	c := &Connection{
		Handle:   ksuid.New().String(),
		RoomID:   roomID,
		UserID:   userID,
		Username: username,
		IsHost:   isHost,
		RemoteIP: remoteIP,
		Client:   client,
	}
	c.guest.Store(isGuest)
	return c
}

// IsGuest reports whether the connection is still waiting for admission.
func (c *Connection) IsGuest() bool { return c.guest.Load() }

// Admit marks a guest connection as a regular participant.
func (c *Connection) Admit() { c.guest.Store(false) }

// Send forwards to the underlying client. A connection without a client drops the message.
func (c *Connection) Send(env models.Envelope) bool {
	if c.Client == nil {
		return false
	}
	return c.Client.Send(env)
}

type userKey struct {
	roomID string
	userID string
}

// Registry tracks live connections by handle, room and user.
type Registry struct {
	mu       sync.RWMutex
	byHandle map[string]*Connection
	byRoom   map[string]map[string]*Connection
	byUser   map[userKey]*Connection
}

func New() *Registry {
	return &Registry{
		byHandle: make(map[string]*Connection),
		byRoom:   make(map[string]map[string]*Connection),
		byUser:   make(map[userKey]*Connection),
	}
}

// Register adds c. A later connection of the same user in the same room
// becomes the one returned by Find.
func (r *Registry) Register(c *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byHandle[c.Handle] = c
	room, ok := r.byRoom[c.RoomID]
	if !ok {
		room = make(map[string]*Connection)
		r.byRoom[c.RoomID] = room
	}
	room[c.Handle] = c
	r.byUser[userKey{c.RoomID, c.UserID}] = c
	log.Debug().Str("module", "registry").Str("handle", c.Handle).Str("room", c.RoomID).Str("user", c.UserID).Msg("registered connection")
}

// Unregister removes the connection behind handle. It returns nil for an unknown
// handle, and roomEmpty is true only for the call that removed the room's last connection.
func (r *Registry) Unregister(handle string) (conn *Connection, roomEmpty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byHandle[handle]
	if !ok {
		return nil, false
	}
	delete(r.byHandle, handle)

	room := r.byRoom[c.RoomID]
	delete(room, handle)

	key := userKey{c.RoomID, c.UserID}
	if r.byUser[key] == c {
		delete(r.byUser, key)
		for _, other := range room {
			if other.UserID == c.UserID {
				r.byUser[key] = other
				break
			}
		}
	}

	if len(room) == 0 {
		delete(r.byRoom, c.RoomID)
		roomEmpty = true
	}
	log.Debug().Str("module", "registry").Str("handle", handle).Str("room", c.RoomID).Bool("room_empty", roomEmpty).Msg("unregistered connection")
	return c, roomEmpty
}

// Find returns the user's connection in the room, or nil.
func (r *Registry) Find(roomID, userID string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byUser[userKey{roomID, userID}]
}

// FindByHandle returns the connection behind handle, or nil.
func (r *Registry) FindByHandle(handle string) *Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byHandle[handle]
}

// RoomConnections returns a snapshot of the room's connections.
func (r *Registry) RoomConnections(roomID string) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room := r.byRoom[roomID]
	out := make([]*Connection, 0, len(room))
	for _, c := range room {
		out = append(out, c)
	}
	return out
}

// Count returns the number of live connections in the room.
func (r *Registry) Count(roomID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byRoom[roomID])
}

// Rooms returns the ids of rooms with at least one live connection.
func (r *Registry) Rooms() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byRoom))
	for id := range r.byRoom {
		out = append(out, id)
	}
	return out
}
