// Package transport defines the inbound events and outbound messages that
// connect users to the session manager, and the Hub that routes messages to
// live connections.
package transport

import (
	"strconv"
	"strings"
)

// Kind classifies an inbound event.
type Kind int

const (
	Command Kind = iota
	Action
	FreeText
)

func (k Kind) String() string {
	switch k {
	case Command:
		return "command"
	case Action:
		return "action"
	case FreeText:
		return "text"
	}
	return "unknown"
}

// User identifies who sent an event.
type User struct {
	ID   int64
	Name string
}

// Event is one inbound interaction.
//
// Command events carry Name and Args, Action events carry Tag and FreeText
// events carry Text.
type Event struct {
	Kind    Kind
	Name    string
	Args    []string
	Tag     string
	Text    string
	User    User
	Channel int64
}

// NewCommand builds a Command event.
func NewCommand(u User, channel int64, name string, args ...string) Event {
	return Event{Kind: Command, Name: strings.ToLower(name), Args: args, User: u, Channel: channel}
}

// NewAction builds an Action event.
func NewAction(u User, channel int64, tag string) Event {
	return Event{Kind: Action, Tag: tag, User: u, Channel: channel}
}

// NewFreeText builds a FreeText event.
func NewFreeText(u User, channel int64, text string) Event {
	return Event{Kind: FreeText, Text: text, User: u, Channel: channel}
}

// ParseLine turns a typed console line into an event. "/name args" is a
// command; a number selecting one of buttons (numbered from 1 in reading
// order) is that button's action; anything else is free text. It returns
// false for a blank line.
func ParseLine(line string, buttons [][]Button, u User, channel int64) (Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Event{}, false
	}

	if strings.HasPrefix(line, "/") {
		fields := strings.Fields(line[1:])
		if len(fields) == 0 {
			return NewFreeText(u, channel, line), true
		}
		return NewCommand(u, channel, fields[0], fields[1:]...), true
	}

	if n, err := strconv.Atoi(line); err == nil {
		if b, ok := ButtonAt(buttons, n); ok {
			return NewAction(u, channel, b.Tag), true
		}
	}
	return NewFreeText(u, channel, line), true
}
