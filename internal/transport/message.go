package transport

import (
	"context"
	"fmt"
	"strings"
)

// Button is a selectable choice attached to a message.
type Button struct {
	Label string
	Tag   string
}

// Message is one outbound reply.
type Message struct {
	Text    string
	Buttons [][]Button
	// Notice marks out-of-band messages (reminders, moderation notices).
	// Consoles keep the previously shown buttons selectable after a notice.
	Notice bool
}

// Text builds a plain message.
func Text(format string, args ...any) Message {
	return Message{Text: fmt.Sprintf(format, args...)}
}

// Notice builds an out-of-band message.
func Notice(format string, args ...any) Message {
	return Message{Text: fmt.Sprintf(format, args...), Notice: true}
}

// Renderer delivers messages to a channel.
type Renderer interface {
	Deliver(ctx context.Context, channel int64, msg Message) error
}

// ButtonAt returns the n-th button, counting from 1 in reading order.
func ButtonAt(buttons [][]Button, n int) (Button, bool) {
	if n < 1 {
		return Button{}, false
	}
	for _, row := range buttons {
		if n <= len(row) {
			return row[n-1], true
		}
		n -= len(row)
	}
	return Button{}, false
}

// Render formats a message as plain text lines with numbered buttons.
func Render(msg Message) []string {
	lines := strings.Split(strings.TrimRight(msg.Text, "\n"), "\n")
	if msg.Notice {
		for i, l := range lines {
			lines[i] = "*** " + l
		}
	}
	n := 0
	for _, row := range msg.Buttons {
		var parts []string
		for _, b := range row {
			n++
			parts = append(parts, fmt.Sprintf("[%d] %s", n, b.Label))
		}
		lines = append(lines, "  "+strings.Join(parts, "   "))
	}
	return lines
}
