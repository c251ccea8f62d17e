package session

import (
	"sync"

	"github.com/google/uuid"
)

// Role classifies a session for room membership.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// AdminRoom is the shared room every admin session joins.
const AdminRoom = "admin"

// UserRoom returns the room name for a user subject.
func UserRoom(subject string) string {
	return "user:" + subject
}

// Session is one live authenticated push connection. A subject may hold any
// number of concurrent sessions; each receives its own copy of every event.
type Session struct {
	ID      string
	Subject string
	Role    Role

	ch chan []byte
}

// New creates a session with a buffered event channel. A full buffer drops
// events for that session only; push delivery is best-effort.
func New(subject string, role Role, buffer int) *Session {
	if buffer <= 0 {
		buffer = 16
	}
	return &Session{
		ID:      uuid.NewString(),
		Subject: subject,
		Role:    role,
		ch:      make(chan []byte, buffer),
	}
}

// Events exposes the session's delivery channel to its connection handler.
func (s *Session) Events() <-chan []byte { return s.ch }

// Room returns the single room this session belongs to.
func (s *Session) Room() string {
	if s.Role == RoleAdmin {
		return AdminRoom
	}
	return UserRoom(s.Subject)
}

// Registry maps live connections to room memberships. It is the sole shared
// synchronization point of the push subsystem: join/leave run concurrently
// with deliver.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]map[*Session]struct{}
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]map[*Session]struct{})}
}

// Join adds the session to its room. Concurrent sessions for the same subject
// are all kept; none evicts another.
func (r *Registry) Join(s *Session) {
	room := s.Room()
	r.mu.Lock()
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[*Session]struct{})
		r.rooms[room] = members
	}
	members[s] = struct{}{}
	r.mu.Unlock()
}

// Leave removes the session from its room. Removing an absent session is a
// no-op so disconnect races are harmless.
func (r *Registry) Leave(s *Session) {
	room := s.Room()
	r.mu.Lock()
	if members, ok := r.rooms[room]; ok {
		delete(members, s)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	r.mu.Unlock()
}

// Deliver sends payload to every session in any of the given rooms. Each send
// is independent and non-blocking: a session whose buffer is full misses this
// event, the rest still receive it, and the caller never sees an error.
func (r *Registry) Deliver(rooms []string, payload []byte) {
	r.mu.RLock()
	for _, room := range rooms {
		for s := range r.rooms[room] {
			select {
			case s.ch <- payload:
			default:
			}
		}
	}
	r.mu.RUnlock()
}

// Count reports the number of live sessions in a room.
func (r *Registry) Count(room string) int {
	r.mu.RLock()
	n := len(r.rooms[room])
	r.mu.RUnlock()
	return n
}
