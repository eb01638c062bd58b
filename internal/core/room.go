package core

import (
	"fmt"
	"sort"
	"sync"
)

// Room groups the members subscribed to one broadcast stream.
//
// Room owns the membership invariant: a name is registered at most once and
// always maps to exactly one open receiver.
type Room struct {
	Name string

	mu      sync.Mutex
	members map[string]*Receiver
	stream  *Stream
}

// NewRoom constructs a room with no members whose stream buffers up to
// capacity unread messages per receiver.
func NewRoom(name string, capacity int) *Room {
	return &Room{
		Name:    name,
		members: make(map[string]*Receiver),
		stream:  NewStream(capacity),
	}
}

// AddUser registers name and subscribes it to the room stream. Returns the new
// receiver and true if newly added; nil and false if name is already a member.
func (r *Room) AddUser(name string) (*Receiver, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.members[name]; exists {
		return nil, false
	}
	rx := r.stream.Subscribe()
	r.members[name] = rx
	return rx, true
}

// RemoveUser unregisters name and closes its receiver. Returns true if removed.
func (r *Room) RemoveUser(name string) bool {
	r.mu.Lock()
	rx, exists := r.members[name]
	if exists {
		delete(r.members, name)
	}
	r.mu.Unlock()

	if !exists {
		return false
	}
	rx.Close()
	return true
}

// HasUser reports whether name is a member.
func (r *Room) HasUser(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[name]
	return ok
}

// Subscribe returns a receiver that is not tied to any member.
func (r *Room) Subscribe() *Receiver {
	return r.stream.Subscribe()
}

// Broadcast publishes msg to every open receiver. No receivers is not an error.
func (r *Room) Broadcast(msg Message) error {
	if _, err := r.stream.Publish(msg); err != nil {
		return fmt.Errorf("%w: room %q: %w", ErrSendFailed, r.Name, err)
	}
	return nil
}

// Members returns a sorted snapshot of member names.
func (r *Room) Members() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.members))
	for name := range r.members {
		names = append(names, name)
	}
	r.mu.Unlock()

	sort.Strings(names)
	return names
}

// Empty returns true if no members are in the room.
func (r *Room) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members) == 0
}

func (r *Room) close() {
	r.stream.Close()
}
