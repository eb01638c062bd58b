package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/vovakirdan/chatcore/internal/utils"
)

// Message is the domain model for a chat message. It is passed by value and
// never mutated after creation, so every receiver gets its own copy.
type Message struct {
	ID        string
	Room      string
	From      string
	Text      string
	CreatedAt time.Time
}

// NewMessage stamps a message with a fresh ID and the current UTC time.
func NewMessage(room, from, text string) Message {
	return Message{
		ID:        utils.NewID(),
		Room:      room,
		From:      from,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

// lineBreaks escapes characters that would split a rendered line.
var lineBreaks = strings.NewReplacer("\r", `\r`, "\n", `\n`)

// String renders the message as a single human-readable line:
// timestamp, sender, room and text, in that order. Line breaks in any field
// are escaped.
func (m Message) String() string {
	return fmt.Sprintf("[%s] %s said in %s: %s",
		m.CreatedAt.Format(time.RFC3339),
		lineBreaks.Replace(m.From),
		lineBreaks.Replace(m.Room),
		lineBreaks.Replace(m.Text),
	)
}
