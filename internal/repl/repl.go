// Package repl is a line-oriented console front end for the broker. Each
// input line maps to one broker operation.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chatcore/internal/core"
)

// Broker is the subset of core.Broker the console drives.
type Broker interface {
	CreateRoom(name string) error
	RemoveRoom(name string) error
	JoinRoom(room, user string) error
	LeaveRoom(room, user string) error
	SendMessage(room string, msg core.Message) error
	ListRooms() []string
	Members(room string) ([]string, error)
}

const helpText = `commands:
  create <room>                 create a room
  remove <room>                 remove an empty room
  join <room> <user>            subscribe user to room
  leave <room> <user>           unsubscribe user from room
  send <room> <user> <text...>  broadcast text from user
  list                          list rooms
  members <room>                list members of room
  help                          show this help
  quit                          exit`

// Console reads commands and writes replies. Delivered chat lines are
// rendered by the broker's sinks, not by Console.
type Console struct {
	broker Broker
	out    io.Writer
	log    *zerolog.Logger
	prompt string
}

// New builds a console writing replies to out.
func New(broker Broker, out io.Writer, logger *zerolog.Logger) *Console {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Console{broker: broker, out: out, log: logger, prompt: "> "}
}

// Run processes lines from in until EOF, quit, or ctx cancellation.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	c.printPrompt()
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					if err != nil {
						return fmt.Errorf("read input: %w", err)
					}
				default:
				}
				return nil
			}
			if quit := c.Exec(line); quit {
				return nil
			}
			c.printPrompt()
		}
	}
}

// Exec runs a single command line and reports whether the console should exit.
func (c *Console) Exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		c.println(helpText)
	case "create":
		err = c.withArgs(args, 1, func() error {
			if err := c.broker.CreateRoom(args[0]); err != nil {
				return err
			}
			c.printf("created room %s\n", args[0])
			return nil
		})
	case "remove":
		err = c.withArgs(args, 1, func() error {
			if err := c.broker.RemoveRoom(args[0]); err != nil {
				return err
			}
			c.printf("removed room %s\n", args[0])
			return nil
		})
	case "join":
		err = c.withArgs(args, 2, func() error {
			if err := c.broker.JoinRoom(args[0], args[1]); err != nil {
				return err
			}
			c.printf("%s joined %s\n", args[1], args[0])
			return nil
		})
	case "leave":
		err = c.withArgs(args, 2, func() error {
			if err := c.broker.LeaveRoom(args[0], args[1]); err != nil {
				return err
			}
			c.printf("%s left %s\n", args[1], args[0])
			return nil
		})
	case "send":
		err = c.withArgs(args, 3, func() error {
			room, user := args[0], args[1]
			text := skipFields(line, 3)
			return c.broker.SendMessage(room, core.NewMessage(room, user, text))
		})
	case "list":
		rooms := c.broker.ListRooms()
		if len(rooms) == 0 {
			c.println("no rooms")
			break
		}
		c.println(strings.Join(rooms, "\n"))
	case "members":
		err = c.withArgs(args, 1, func() error {
			members, err := c.broker.Members(args[0])
			if err != nil {
				return err
			}
			if len(members) == 0 {
				c.printf("%s is empty\n", args[0])
				return nil
			}
			c.println(strings.Join(members, "\n"))
			return nil
		})
	default:
		err = fmt.Errorf("%w: unknown command %q, try help", core.ErrBadRequest, cmd)
	}

	if err != nil {
		c.log.Debug().Err(err).Str("command", cmd).Msg("command failed")
		c.printf("error: %s: %v\n", core.Code(err), err)
	}
	return false
}

// withArgs checks that at least n non-empty arguments were given before
// running fn. Name validation belongs to the front end, not the broker.
func (c *Console) withArgs(args []string, n int, fn func() error) error {
	if len(args) < n {
		return fmt.Errorf("%w: expected %d argument(s)", core.ErrBadRequest, n)
	}
	return fn()
}

// skipFields drops the first n whitespace-separated fields of line and returns
// the rest verbatim, without its leading whitespace.
func skipFields(line string, n int) string {
	rest := line
	for range n {
		rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
		i := strings.IndexFunc(rest, unicode.IsSpace)
		if i < 0 {
			return ""
		}
		rest = rest[i:]
	}
	return strings.TrimLeftFunc(rest, unicode.IsSpace)
}

func (c *Console) printPrompt() {
	_, _ = io.WriteString(c.out, c.prompt)
}

func (c *Console) println(s string) {
	_, _ = fmt.Fprintln(c.out, s)
}

func (c *Console) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(c.out, format, args...)
}
