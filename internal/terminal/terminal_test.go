package terminal

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

type fakeConn struct {
	in     io.Reader
	out    bytes.Buffer
	closed bool
}

func (c *fakeConn) Read(p []byte) (int, error)  { return c.in.Read(p) }
func (c *fakeConn) Write(p []byte) (int, error) { return c.out.Write(p) }
func (c *fakeConn) Close() error                { c.closed = true; return nil }

func newTerm(input string) (*Terminal, *fakeConn) {
	c := &fakeConn{in: strings.NewReader(input)}
	return New(c, 80, 24, false), c
}

func TestGetLineEditsAndEchoes(t *testing.T) {
	term, c := newTerm("helx\x7flo\r")
	got, err := term.GetLine(40)
	if err != nil {
		t.Fatalf("GetLine: %v", err)
	}
	if got != "hello" {
		t.Fatalf("expected hello, got %q", got)
	}
	if !strings.HasSuffix(c.out.String(), "lo\r\n") {
		t.Fatalf("expected echo ending in CRLF, got %q", c.out.String())
	}
}

func TestGetLineLimitsLength(t *testing.T) {
	term, _ := newTerm("abcdef\n")
	got, _ := term.GetLine(3)
	if got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}

func TestGetLineAcceptsUTF8(t *testing.T) {
	term, _ := newTerm("café 25°C\r")
	got, err := term.GetLine(40)
	if err != nil {
		t.Fatalf("GetLine: %v", err)
	}
	if got != "café 25°C" {
		t.Fatalf("expected café 25°C, got %q", got)
	}
}

func TestGetPasswordMasks(t *testing.T) {
	term, c := newTerm("secret\r")
	var calls []bool
	term.SetEchoControl(func(on bool) error {
		calls = append(calls, on)
		return nil
	})
	got, err := term.GetPassword(20)
	if err != nil {
		t.Fatalf("GetPassword: %v", err)
	}
	if got != "secret" {
		t.Fatalf("expected secret, got %q", got)
	}
	if strings.Contains(c.out.String(), "secret") {
		t.Fatalf("password leaked to output: %q", c.out.String())
	}
	if len(calls) != 2 || calls[0] || !calls[1] {
		t.Fatalf("expected echo off then on, got %v", calls)
	}
}

func TestGetLineEOF(t *testing.T) {
	term, _ := newTerm("partial")
	got, err := term.GetLine(40)
	if err != io.EOF {
		t.Fatalf("expected EOF, got %v", err)
	}
	if got != "partial" {
		t.Fatalf("expected partial input returned, got %q", got)
	}
}

func TestSendConvertsNewlines(t *testing.T) {
	term, c := newTerm("")
	term.Send("a\nb\r\nc")
	if got := c.out.String(); got != "a\r\nb\r\nc" {
		t.Fatalf("expected CRLF endings, got %q", got)
	}
}

func TestYesNo(t *testing.T) {
	term, _ := newTerm("xn")
	ok, err := term.YesNo("Sure?")
	if err != nil || ok {
		t.Fatalf("expected no, got %v %v", ok, err)
	}
}
