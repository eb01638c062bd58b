package core

import (
	"fmt"
	"io"
	"sync"
)

// Sink renders delivered messages.
type Sink interface {
	Render(msg Message) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(msg Message) error

// Render calls f(msg).
func (f SinkFunc) Render(msg Message) error {
	return f(msg)
}

// SinkFactory returns the sink a member's delivery task renders into.
type SinkFactory func(room, user string) Sink

// WriterSink writes one line per message to an io.Writer. Lines written by
// concurrent delivery tasks never interleave.
type WriterSink struct {
	mu     *sync.Mutex
	w      io.Writer
	prefix string
}

// NewWriterSink builds a sink over w.
func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{mu: &sync.Mutex{}, w: w}
}

// For returns a sink sharing the same writer that tags each line with the
// receiving user.
func (s *WriterSink) For(user string) *WriterSink {
	return &WriterSink{mu: s.mu, w: s.w, prefix: "@" + lineBreaks.Replace(user) + " "}
}

// Render writes msg as a single line.
func (s *WriterSink) Render(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.w, "%s%s\n", s.prefix, msg)
	return err
}
