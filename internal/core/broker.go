package core

import (
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// DefaultBufferSize is the per-room stream capacity used when none is set.
const DefaultBufferSize = 16

// Broker owns the room table and routes every per-room operation by name.
//
// Mutating operations take the table lock exclusively and only for lookup and
// mutation; delivery goroutines are started after the lock is released. Sends
// and snapshots take it shared, so a room cannot be removed while a send to it
// is in flight.
type Broker struct {
	mu     sync.RWMutex
	rooms  map[string]*Room
	closed bool

	log        *zerolog.Logger
	bufferSize int
	sinks      SinkFactory
	recorder   Recorder
	transcript bool

	tasks  sync.WaitGroup
	active atomic.Int64
}

// Option configures a Broker.
type Option func(*Broker)

// WithLogger sets the broker logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(b *Broker) {
		if logger != nil {
			l := logger.With().Str("component", "broker").Logger()
			b.log = &l
		}
	}
}

// WithBufferSize sets the per-room stream capacity.
func WithBufferSize(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.bufferSize = n
		}
	}
}

// WithSinkFactory sets where delivery tasks render messages.
func WithSinkFactory(f SinkFactory) Option {
	return func(b *Broker) {
		if f != nil {
			b.sinks = f
		}
	}
}

// WithRecorder installs an activity recorder.
func WithRecorder(r Recorder) Option {
	return func(b *Broker) {
		if r != nil {
			b.recorder = r
		}
	}
}

// WithTranscript enables one debug-level transcript subscriber per room. The
// transcript is not a member and does not keep a room from being removed.
func WithTranscript(enabled bool) Option {
	return func(b *Broker) {
		b.transcript = enabled
	}
}

// NewBroker creates an empty broker.
func NewBroker(opts ...Option) *Broker {
	nop := zerolog.Nop()
	stdout := NewWriterSink(os.Stdout)
	b := &Broker{
		rooms:      make(map[string]*Room),
		log:        &nop,
		bufferSize: DefaultBufferSize,
		sinks:      func(_, user string) Sink { return stdout.For(user) },
		recorder:   nopRecorder{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CreateRoom adds an empty room. Fails with ErrRoomExists if name is taken.
func (b *Broker) CreateRoom(name string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBrokerClosed
	}
	if _, exists := b.rooms[name]; exists {
		b.mu.Unlock()
		return ErrRoomExists
	}
	room := NewRoom(name, b.bufferSize)
	b.rooms[name] = room

	var transcript *Receiver
	if b.transcript {
		transcript = room.Subscribe()
		b.tasks.Add(1)
	}
	b.mu.Unlock()

	b.recorder.RoomCreated()
	b.log.Debug().Str("room", name).Msg("room created")

	if transcript != nil {
		go b.runTranscript(name, transcript)
	}
	return nil
}

// RemoveRoom deletes an empty room and closes its stream. Rooms with members
// are never removed: the call fails with ErrRoomNotEmpty and changes nothing.
func (b *Broker) RemoveRoom(name string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBrokerClosed
	}
	room, ok := b.rooms[name]
	if !ok {
		b.mu.Unlock()
		return ErrRoomNotFound
	}
	if !room.Empty() {
		b.mu.Unlock()
		return ErrRoomNotEmpty
	}
	delete(b.rooms, name)
	b.mu.Unlock()

	room.close()
	b.recorder.RoomRemoved()
	b.log.Debug().Str("room", name).Msg("room removed")
	return nil
}

// JoinRoom subscribes user to room and starts its delivery task. Joining a
// room the user is already in succeeds without a second subscription.
func (b *Broker) JoinRoom(room, user string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBrokerClosed
	}
	r, ok := b.rooms[room]
	if !ok {
		b.mu.Unlock()
		return ErrRoomNotFound
	}
	rx, added := r.AddUser(user)
	if added {
		b.tasks.Add(1)
		b.active.Add(1)
	}
	b.mu.Unlock()

	if !added {
		b.log.Debug().Str("room", room).Str("user", user).Msg("already a member")
		return nil
	}

	b.recorder.MemberJoined()
	b.log.Debug().Str("room", room).Str("user", user).Msg("user joined")
	b.startDelivery(room, user, rx)
	return nil
}

// LeaveRoom removes user from room. Leaving a room the user is not in is a
// no-op.
func (b *Broker) LeaveRoom(room, user string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBrokerClosed
	}
	r, ok := b.rooms[room]
	if !ok {
		b.mu.Unlock()
		return ErrRoomNotFound
	}
	removed := r.RemoveUser(user)
	b.mu.Unlock()

	if removed {
		b.recorder.MemberLeft()
		b.log.Debug().Str("room", room).Str("user", user).Msg("user left")
	}
	return nil
}

// SendMessage broadcasts msg to the current members of room. A message with
// an empty Room is stamped with room.
func (b *Broker) SendMessage(room string, msg Message) error {
	if msg.Room == "" {
		msg.Room = room
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBrokerClosed
	}
	r, ok := b.rooms[room]
	if !ok {
		return ErrRoomNotFound
	}
	if err := r.Broadcast(msg); err != nil {
		b.log.Error().Err(err).Str("room", room).Str("from", msg.From).Msg("broadcast failed")
		return err
	}
	b.recorder.MessagePublished()
	return nil
}

// ListRooms returns a sorted point-in-time snapshot of room names. A closed
// broker has no rooms.
func (b *Broker) ListRooms() []string {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil
	}
	names := make([]string, 0, len(b.rooms))
	for name := range b.rooms {
		names = append(names, name)
	}
	b.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Members returns a sorted snapshot of the members of room.
func (b *Broker) Members(room string) ([]string, error) {
	b.mu.RLock()
	closed := b.closed
	r, ok := b.rooms[room]
	b.mu.RUnlock()

	if closed {
		return nil, ErrBrokerClosed
	}
	if !ok {
		return nil, ErrRoomNotFound
	}
	return r.Members(), nil
}

// ActiveDeliveries returns the number of running delivery tasks.
func (b *Broker) ActiveDeliveries() int {
	return int(b.active.Load())
}

// Close shuts every room stream and waits for all delivery and transcript
// goroutines to finish. Later operations fail with ErrBrokerClosed and
// ListRooms reports no rooms.
func (b *Broker) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.tasks.Wait()
		return
	}
	b.closed = true
	rooms := make([]*Room, 0, len(b.rooms))
	for _, r := range b.rooms {
		rooms = append(rooms, r)
	}
	b.mu.Unlock()

	for _, r := range rooms {
		r.close()
	}
	b.tasks.Wait()
	b.log.Debug().Int("rooms", len(rooms)).Msg("broker closed")
}
