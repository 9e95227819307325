package server

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"
)

// Telnet protocol constants.
const (
	IAC  byte = 255 // Interpret As Command
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250 // Sub-negotiation Begin
	SE   byte = 240 // Sub-negotiation End

	OptEcho    byte = 1
	OptSGA     byte = 3
	OptTType   byte = 24
	OptNAWS    byte = 31
	OptLinemod byte = 34
)

const maxSubnegLen = 256

// TelnetConn wraps a TCP connection, stripping telnet commands from the
// input stream and escaping IAC bytes on output.
type TelnetConn struct {
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex

	// Discovered through negotiation.
	TermType string
	Width    int
	Height   int
}

// NewTelnetConn wraps a raw TCP connection.
func NewTelnetConn(conn net.Conn) *TelnetConn {
	return &TelnetConn{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, 1024),
		Width:  80,
		Height: 24,
	}
}

// Negotiate announces server-side echo and character mode, and asks for
// the window size and terminal type.
func (tc *TelnetConn) Negotiate() error {
	for _, c := range [][2]byte{
		{WILL, OptEcho},
		{WILL, OptSGA},
		{DO, OptSGA},
		{DONT, OptLinemod},
		{DO, OptNAWS},
		{DO, OptTType},
	} {
		if err := tc.command(c[0], c[1]); err != nil {
			return fmt.Errorf("telnet negotiate: %w", err)
		}
	}
	return nil
}

func (tc *TelnetConn) command(cmd, option byte) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	_, err := tc.conn.Write([]byte{IAC, cmd, option})
	return err
}

// ReadByte returns the next data byte, handling any commands before it.
func (tc *TelnetConn) ReadByte() (byte, error) {
	for {
		b, err := tc.reader.ReadByte()
		if err != nil {
			return 0, err
		}
		if b != IAC {
			return b, nil
		}

		cmd, err := tc.reader.ReadByte()
		if err != nil {
			return 0, err
		}
		switch cmd {
		case IAC:
			return IAC, nil
		case WILL, WONT, DO, DONT:
			opt, err := tc.reader.ReadByte()
			if err != nil {
				return 0, err
			}
			tc.answer(cmd, opt)
		case SB:
			if err := tc.subnegotiation(); err != nil {
				return 0, err
			}
		}
	}
}

// Read implements io.Reader. It returns as soon as buffered input runs out.
func (tc *TelnetConn) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		b, err := tc.ReadByte()
		if err != nil {
			if n > 0 {
				return n, nil
			}
			return 0, err
		}
		p[n] = b
		n++
		if tc.reader.Buffered() == 0 {
			break
		}
	}
	return n, nil
}

// Write sends data, doubling literal 0xFF bytes.
func (tc *TelnetConn) Write(p []byte) (int, error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	start := 0
	for i, b := range p {
		if b != IAC {
			continue
		}
		if _, err := tc.conn.Write(p[start : i+1]); err != nil {
			return start, err
		}
		if _, err := tc.conn.Write([]byte{IAC}); err != nil {
			return i, err
		}
		start = i + 1
	}
	if start < len(p) {
		if _, err := tc.conn.Write(p[start:]); err != nil {
			return start, err
		}
	}
	return len(p), nil
}

// Close closes the underlying connection.
func (tc *TelnetConn) Close() error {
	return tc.conn.Close()
}

// RemoteAddr returns the remote address of the connection.
func (tc *TelnetConn) RemoteAddr() string {
	return tc.conn.RemoteAddr().String()
}

// SetEcho keeps the server in charge of echo. Letting the client echo would
// print password characters while the server masks them.
func (tc *TelnetConn) SetEcho(bool) error {
	return tc.command(WILL, OptEcho)
}

func (tc *TelnetConn) answer(cmd, opt byte) {
	switch cmd {
	case WILL:
		switch opt {
		case OptTType:
			tc.mu.Lock()
			tc.conn.Write([]byte{IAC, SB, OptTType, 1, IAC, SE})
			tc.mu.Unlock()
		case OptLinemod:
			tc.command(DONT, OptLinemod)
		}
	case DO:
		if opt != OptEcho && opt != OptSGA {
			tc.command(WONT, opt)
		}
	}
}

// subnegotiation reads up to IAC SE and records NAWS and TTYPE answers.
func (tc *TelnetConn) subnegotiation() error {
	var buf []byte
	for {
		b, err := tc.reader.ReadByte()
		if err != nil {
			return fmt.Errorf("subneg read: %w", err)
		}
		if b == IAC {
			next, err := tc.reader.ReadByte()
			if err != nil {
				return fmt.Errorf("subneg read: %w", err)
			}
			if next != IAC {
				break
			}
		}
		if buf = append(buf, b); len(buf) > maxSubnegLen {
			return fmt.Errorf("subneg too long")
		}
	}
	if len(buf) == 0 {
		return nil
	}

	switch buf[0] {
	case OptNAWS:
		if len(buf) >= 5 {
			tc.Width = int(buf[1])<<8 | int(buf[2])
			tc.Height = int(buf[3])<<8 | int(buf[4])
		}
	case OptTType:
		if len(buf) >= 2 && buf[1] == 0 {
			term := string(buf[2:])
			if len(term) > 64 {
				term = term[:64]
			}
			tc.TermType = term
		}
	}
	return nil
}

var _ io.ReadWriteCloser = (*TelnetConn)(nil)
