package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrStreamClosed is returned by Publish on a closed stream and by Recv
	// once a closed stream has been drained.
	ErrStreamClosed = errors.New("stream closed")
	// ErrReceiverClosed is returned by Recv after the receiver was closed.
	ErrReceiverClosed = errors.New("receiver closed")
)

// LaggedError reports that a receiver fell behind by more than the stream
// capacity. Skipped messages are gone; the next Recv continues from the oldest
// message still buffered.
type LaggedError struct {
	Skipped uint64
}

func (e *LaggedError) Error() string {
	return fmt.Sprintf("receiver lagged, %d messages skipped", e.Skipped)
}

// Stream is a bounded broadcast buffer with a single publish order.
//
// Published messages go into a ring of fixed capacity. Every Receiver keeps its
// own cursor into the ring, so a slow receiver never blocks the publisher or
// other receivers. When a receiver falls more than capacity messages behind,
// the oldest unread messages are overwritten and the receiver observes a
// LaggedError on its next Recv.
type Stream struct {
	mu        sync.Mutex
	buf       []Message
	head      uint64 // sequence of the next published message
	wake      chan struct{}
	closed    bool
	receivers int
}

// NewStream creates a stream holding up to capacity unread messages per receiver.
func NewStream(capacity int) *Stream {
	if capacity < 1 {
		capacity = 1
	}
	return &Stream{
		buf:  make([]Message, capacity),
		wake: make(chan struct{}),
	}
}

// Capacity returns the ring size.
func (s *Stream) Capacity() int {
	return len(s.buf)
}

// Publish appends msg and wakes all waiting receivers. It returns the number of
// open receivers at publish time; zero receivers is not an error.
func (s *Stream) Publish(msg Message) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStreamClosed
	}
	s.buf[s.head%uint64(len(s.buf))] = msg
	s.head++

	close(s.wake)
	s.wake = make(chan struct{})
	return s.receivers, nil
}

// Subscribe returns a receiver that observes every message published after
// this call. There is no replay of earlier messages.
func (s *Stream) Subscribe() *Receiver {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.receivers++
	return &Receiver{
		stream: s,
		next:   s.head,
		done:   make(chan struct{}),
	}
}

// Receivers returns the number of open receivers.
func (s *Stream) Receivers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receivers
}

// Close stops the stream. Receivers drain what is still buffered for them and
// then get ErrStreamClosed.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.wake)
}

// Receiver is one independent cursor into a Stream. Recv must be called from a
// single goroutine; Close may be called from any goroutine.
type Receiver struct {
	stream *Stream
	next   uint64 // guarded by stream.mu
	closed bool   // guarded by stream.mu

	done      chan struct{}
	closeOnce sync.Once
}

// Recv blocks until the next message is available, the receiver or stream is
// closed, or ctx is done.
func (r *Receiver) Recv(ctx context.Context) (Message, error) {
	s := r.stream
	for {
		select {
		case <-r.done:
			return Message{}, ErrReceiverClosed
		default:
		}

		s.mu.Lock()
		if r.closed {
			s.mu.Unlock()
			return Message{}, ErrReceiverClosed
		}
		if r.next < s.head {
			size := uint64(len(s.buf))
			if s.head-r.next > size {
				oldest := s.head - size
				skipped := oldest - r.next
				r.next = oldest
				s.mu.Unlock()
				return Message{}, &LaggedError{Skipped: skipped}
			}
			msg := s.buf[r.next%size]
			r.next++
			s.mu.Unlock()
			return msg, nil
		}
		if s.closed {
			s.mu.Unlock()
			return Message{}, ErrStreamClosed
		}
		wake := s.wake
		s.mu.Unlock()

		select {
		case <-wake:
		case <-r.done:
			return Message{}, ErrReceiverClosed
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

// Close detaches the receiver. A pending Recv returns ErrReceiverClosed, and
// nothing published after Close returns is handed out.
func (r *Receiver) Close() {
	r.closeOnce.Do(func() {
		r.stream.mu.Lock()
		r.closed = true
		r.stream.receivers--
		r.stream.mu.Unlock()
		close(r.done)
	})
}
