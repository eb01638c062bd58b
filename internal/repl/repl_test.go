package repl

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/chatcore/internal/core"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newTestConsole(t *testing.T) (*Console, *core.Broker, *syncBuffer, *syncBuffer) {
	t.Helper()

	replies := &syncBuffer{}
	chat := &syncBuffer{}
	sink := core.NewWriterSink(chat)
	b := core.NewBroker(core.WithSinkFactory(func(_, user string) core.Sink {
		return sink.For(user)
	}))
	t.Cleanup(b.Close)

	return New(b, replies, nil), b, replies, chat
}

func TestConsoleGeneralRoomSession(t *testing.T) {
	c, b, replies, chat := newTestConsole(t)

	input := strings.Join([]string{
		"create general",
		"join general alice",
		"join general bob",
		"send general alice hi there",
		"",
	}, "\n")
	if err := c.Run(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("run: %v", err)
	}

	out := replies.String()
	for _, want := range []string{"created room general", "alice joined general", "bob joined general"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in replies:\n%s", want, out)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for strings.Count(chat.String(), "\n") < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	lines := chat.String()
	for _, prefix := range []string{"@alice ", "@bob "} {
		if !strings.Contains(lines, prefix) {
			t.Fatalf("missing delivery for %s:\n%s", prefix, lines)
		}
	}
	if !strings.Contains(lines, "alice said in general: hi there") {
		t.Fatalf("unexpected chat lines:\n%s", lines)
	}

	c.Exec("leave general alice")
	c.Exec("leave general bob")
	c.Exec("remove general")
	if rooms := b.ListRooms(); len(rooms) != 0 {
		t.Fatalf("expected no rooms, got %v", rooms)
	}
}

func TestConsoleReportsErrorCodes(t *testing.T) {
	c, _, replies, _ := newTestConsole(t)

	c.Exec("join ghost alice")
	c.Exec("create general")
	c.Exec("create general")
	c.Exec("join general alice")
	c.Exec("remove general")
	c.Exec("send general")
	c.Exec("dance")

	out := replies.String()
	for _, want := range []string{
		"error: room_not_found",
		"error: room_exists",
		"error: room_not_empty",
		"error: bad_request: bad request: expected 3 argument(s)",
		`error: bad_request: bad request: unknown command "dance"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in replies:\n%s", want, out)
		}
	}
}

func TestConsoleListAndMembers(t *testing.T) {
	c, _, replies, _ := newTestConsole(t)

	c.Exec("list")
	c.Exec("create b")
	c.Exec("create a")
	c.Exec("members a")
	c.Exec("join a carol")
	c.Exec("join a alice")
	c.Exec("members a")
	c.Exec("list")

	out := replies.String()
	for _, want := range []string{"no rooms", "a is empty", "alice\ncarol", "a\nb"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in replies:\n%s", want, out)
		}
	}
}

func TestConsoleQuitStopsRun(t *testing.T) {
	c, b, _, _ := newTestConsole(t)

	input := "create before\nquit\ncreate after\n"
	if err := c.Run(context.Background(), strings.NewReader(input)); err != nil {
		t.Fatalf("run: %v", err)
	}
	rooms := b.ListRooms()
	if len(rooms) != 1 || rooms[0] != "before" {
		t.Fatalf("commands after quit should not run, got %v", rooms)
	}
}

func TestConsoleHelp(t *testing.T) {
	c, _, replies, _ := newTestConsole(t)

	if quit := c.Exec("HELP"); quit {
		t.Fatalf("help should not quit")
	}
	if !strings.Contains(replies.String(), "send <room> <user> <text...>") {
		t.Fatalf("help text missing:\n%s", replies.String())
	}
}

func TestConsoleSendKeepsTextSpacing(t *testing.T) {
	c, _, _, chat := newTestConsole(t)

	c.Exec("create general")
	c.Exec("join general alice")
	c.Exec("send  general\talice   spaced    out\ttext  ")

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(chat.String(), "\n") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if want := "alice said in general: spaced    out\ttext  \n"; !strings.HasSuffix(chat.String(), want) {
		t.Fatalf("expected line ending in %q, got %q", want, chat.String())
	}
	if got := skipFields("send general alice", 3); got != "" {
		t.Fatalf("expected empty rest, got %q", got)
	}
}
