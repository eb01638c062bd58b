package core

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recordingSink collects every rendered message for one member.
type recordingSink struct {
	mu    sync.Mutex
	lines []string
	msgs  chan Message
}

func newRecordingSink() *recordingSink {
	return &recordingSink{msgs: make(chan Message, 256)}
}

func (s *recordingSink) Render(msg Message) error {
	s.mu.Lock()
	s.lines = append(s.lines, msg.String())
	s.mu.Unlock()
	s.msgs <- msg
	return nil
}

func (s *recordingSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

// sinkSet hands out one recordingSink per (room, user).
type sinkSet struct {
	mu    sync.Mutex
	sinks map[string]*recordingSink
}

func newSinkSet() *sinkSet {
	return &sinkSet{sinks: make(map[string]*recordingSink)}
}

func (s *sinkSet) factory(room, user string) Sink {
	return s.get(room, user)
}

func (s *sinkSet) get(room, user string) *recordingSink {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := room + "/" + user
	sink, ok := s.sinks[key]
	if !ok {
		sink = newRecordingSink()
		s.sinks[key] = sink
	}
	return sink
}

func newTestBroker(t *testing.T, opts ...Option) (*Broker, *sinkSet) {
	t.Helper()

	sinks := newSinkSet()
	opts = append([]Option{WithSinkFactory(sinks.factory)}, opts...)
	b := NewBroker(opts...)
	t.Cleanup(b.Close)
	return b, sinks
}

func mustMessage(t *testing.T, ch <-chan Message) Message {
	t.Helper()

	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatalf("expected message not received")
	}
	return Message{}
}

func expectNoMessage(t *testing.T, ch <-chan Message, wait time.Duration) {
	t.Helper()

	select {
	case msg := <-ch:
		t.Fatalf("unexpected message: %+v", msg)
	case <-time.After(wait):
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// countingRecorder counts recorder callbacks.
type countingRecorder struct {
	rooms     atomic.Int64
	members   atomic.Int64
	tasks     atomic.Int64
	published atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Uint64
	failed    atomic.Int64
}

func (r *countingRecorder) RoomCreated()             { r.rooms.Add(1) }
func (r *countingRecorder) RoomRemoved()             { r.rooms.Add(-1) }
func (r *countingRecorder) MemberJoined()            { r.members.Add(1) }
func (r *countingRecorder) MemberLeft()              { r.members.Add(-1) }
func (r *countingRecorder) DeliveryStarted()         { r.tasks.Add(1) }
func (r *countingRecorder) DeliveryStopped()         { r.tasks.Add(-1) }
func (r *countingRecorder) MessagePublished()        { r.published.Add(1) }
func (r *countingRecorder) MessageDelivered()        { r.delivered.Add(1) }
func (r *countingRecorder) MessagesDropped(n uint64) { r.dropped.Add(n) }
func (r *countingRecorder) RenderFailed()            { r.failed.Add(1) }
