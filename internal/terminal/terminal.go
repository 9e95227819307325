package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"
)

// Terminal provides line-oriented I/O over a raw connection. It handles
// CRLF line endings and server-side echo. Writes are serialized so a
// background writer can push notices while the reader is echoing input.
type Terminal struct {
	rwc    io.ReadWriteCloser
	Width  int
	Height int
	Color  bool

	mu sync.Mutex

	// echoControl is called around password input. For telnet it keeps the
	// client from echoing locally.
	echoControl func(on bool) error
}

// New creates a new Terminal wrapping the given ReadWriteCloser.
func New(rwc io.ReadWriteCloser, width, height int, color bool) *Terminal {
	return &Terminal{
		rwc:    rwc,
		Width:  width,
		Height: height,
		Color:  color,
	}
}

// SetEchoControl registers a callback for enabling/disabling echo behavior.
func (t *Terminal) SetEchoControl(fn func(on bool) error) {
	t.echoControl = fn
}

// Close closes the underlying connection.
func (t *Terminal) Close() error {
	return t.rwc.Close()
}

// Send writes text to the terminal, converting bare LF to CRLF.
func (t *Terminal) Send(text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := io.WriteString(t.rwc, toCRLF(text))
	return err
}

// SendLn writes a line of text followed by CR+LF.
func (t *Terminal) SendLn(text string) error {
	return t.Send(text + "\r\n")
}

// Sendf formats and writes text.
func (t *Terminal) Sendf(format string, args ...any) error {
	return t.Send(fmt.Sprintf(format, args...))
}

// Paint wraps text in an SGR sequence when color is enabled.
func (t *Terminal) Paint(sgr, text string) string {
	if !t.Color {
		return text
	}
	return sgr + text + Reset
}

// Cls clears the screen.
func (t *Terminal) Cls() error {
	if t.Color {
		return t.Send(ClearScreen())
	}
	return t.Send(strings.Repeat("\r\n", 3))
}

func toCRLF(s string) string {
	if !strings.Contains(s, "\n") {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\n", "\r\n")
}

// ReadByte reads a single byte from the terminal.
func (t *Terminal) ReadByte() (byte, error) {
	buf := make([]byte, 1)
	for {
		n, err := t.rwc.Read(buf)
		if n == 1 {
			return buf[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}

// GetLine reads a line of input up to maxLen runes, echoing as it goes.
// Multi-byte UTF-8 input is accepted. The trailing CR/LF is dropped.
func (t *Terminal) GetLine(maxLen int) (string, error) {
	return t.readLine(maxLen, func(r rune) string { return string(r) })
}

// GetPassword reads a line of input echoing asterisks.
func (t *Terminal) GetPassword(maxLen int) (string, error) {
	if t.echoControl != nil {
		t.echoControl(false)
		defer t.echoControl(true)
	}
	return t.readLine(maxLen, func(rune) string { return "*" })
}

func (t *Terminal) readLine(maxLen int, echo func(rune) string) (string, error) {
	var runes []rune
	var pending []byte
	for {
		b, err := t.ReadByte()
		if err != nil {
			return string(runes), err
		}

		switch {
		case b == '\r' || b == '\n':
			t.Send("\r\n")
			return string(runes), nil
		case b == 8 || b == 127:
			pending = pending[:0]
			if len(runes) > 0 {
				runes = runes[:len(runes)-1]
				t.Send("\b \b")
			}
		case b < 32:
			// control bytes are ignored
		case b < utf8.RuneSelf:
			if len(runes) < maxLen {
				runes = append(runes, rune(b))
				t.Send(echo(rune(b)))
			}
		default:
			pending = append(pending, b)
			if !utf8.FullRune(pending) {
				continue
			}
			r, _ := utf8.DecodeRune(pending)
			pending = pending[:0]
			if r != utf8.RuneError && len(runes) < maxLen {
				runes = append(runes, r)
				t.Send(echo(r))
			}
		}
	}
}

// YesNo displays a prompt and waits for Y or N.
func (t *Terminal) YesNo(prompt string) (bool, error) {
	t.Sendf("%s (Y/N) ", prompt)
	for {
		b, err := t.ReadByte()
		if err != nil {
			return false, err
		}
		switch b {
		case 'Y', 'y':
			t.SendLn("Yes")
			return true, nil
		case 'N', 'n':
			t.SendLn("No")
			return false, nil
		}
	}
}

// Ask displays a prompt and reads a line of input.
func (t *Terminal) Ask(prompt string, maxLen int) (string, error) {
	t.Send(prompt)
	return t.GetLine(maxLen)
}
