package server

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/binary"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

const userIDExtension = "arcade-user-id"

// Authenticator checks arcade credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, handle, password string) (int64, error)
}

// Identity is the arcade user an SSH session logged in as.
type Identity struct {
	UserID int64
	Handle string
}

// SSHConn wraps an SSH session channel.
type SSHConn struct {
	channel ssh.Channel
	mu      sync.Mutex

	Width    int
	Height   int
	TermType string
}

// Read implements io.Reader.
func (sc *SSHConn) Read(p []byte) (int, error) {
	return sc.channel.Read(p)
}

// Write implements io.Writer.
func (sc *SSHConn) Write(p []byte) (int, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.channel.Write(p)
}

// Close implements io.Closer.
func (sc *SSHConn) Close() error {
	return sc.channel.Close()
}

// SSHHandler runs one authenticated SSH shell session.
type SSHHandler func(ctx context.Context, conn *SSHConn, remote string, who Identity)

// SSHListener accepts incoming SSH connections. Only password auth against
// arcade credentials is offered.
type SSHListener struct {
	addr    string
	config  *ssh.ServerConfig
	handler SSHHandler

	attemptMu sync.Mutex
	attempts  map[string]*sshAttempt
}

// NewSSHListener creates a new SSH listener. The host key is loaded from
// hostKeyPath, or generated there on first start.
func NewSSHListener(port int, hostKeyPath string, auth Authenticator, handler SSHHandler) (*SSHListener, error) {
	config := &ssh.ServerConfig{
		ServerVersion: "SSH-2.0-TwilightArcade",
		MaxAuthTries:  3,
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			id, err := auth.Authenticate(ctx, c.User(), string(pass))
			if err != nil {
				log.Printf("SSH auth failed for %q from %s: %v", c.User(), c.RemoteAddr(), err)
				return nil, errors.New("access denied")
			}
			return &ssh.Permissions{
				Extensions: map[string]string{userIDExtension: strconv.FormatInt(id, 10)},
			}, nil
		},
	}

	signer, err := loadOrGenerateHostKey(hostKeyPath)
	if err != nil {
		return nil, fmt.Errorf("host key: %w", err)
	}
	config.AddHostKey(signer)

	return &SSHListener{
		addr:     fmt.Sprintf(":%d", port),
		config:   config,
		handler:  handler,
		attempts: make(map[string]*sshAttempt),
	}, nil
}

// loadOrGenerateHostKey reads an ED25519 key, creating it if missing.
func loadOrGenerateHostKey(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		signer, err := ssh.ParsePrivateKey(data)
		if err != nil {
			return nil, fmt.Errorf("parse host key %s: %w", path, err)
		}
		log.Printf("SSH: loaded host key from %s (%s)", path, signer.PublicKey().Type())
		return signer, nil
	}
	if !os.IsNotExist(err) {
		return nil, err
	}

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("marshal ed25519 key: %w", err)
	}
	pemData := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	if err := os.WriteFile(path, pemData, 0600); err != nil {
		return nil, fmt.Errorf("write host key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(pemData)
	if err != nil {
		return nil, fmt.Errorf("parse new ed25519 key: %w", err)
	}
	log.Printf("SSH: generated new host key at %s", path)
	return signer, nil
}

type sshAttempt struct {
	last  time.Time
	count int
}

// allowConnection applies a per-host backoff to connection floods.
func (l *SSHListener) allowConnection(host string, now time.Time) (time.Duration, bool) {
	const (
		window     = 10 * time.Second
		resetAfter = 30 * time.Second
		maxCount   = 30
		step       = 250 * time.Millisecond
		maxDelay   = 5 * time.Second
	)

	l.attemptMu.Lock()
	defer l.attemptMu.Unlock()

	a := l.attempts[host]
	if a == nil {
		a = &sshAttempt{last: now}
		l.attempts[host] = a
	}
	switch since := now.Sub(a.last); {
	case since > resetAfter:
		a.count = 1
	case since <= window:
		a.count++
	default:
		a.count = 1
	}
	a.last = now

	if a.count > maxCount {
		return 0, false
	}
	if a.count <= 3 {
		return 0, true
	}
	return min(time.Duration(a.count-3)*step, maxDelay), true
}

// ListenAndServe accepts SSH connections until ctx is cancelled.
func (l *SSHListener) ListenAndServe(ctx context.Context) error {
	return serve(ctx, l.addr, "SSH", l.handleConnection)
}

func (l *SSHListener) handleConnection(ctx context.Context, conn net.Conn) {
	remote := conn.RemoteAddr().String()
	host := remote
	if h, _, err := net.SplitHostPort(remote); err == nil {
		host = h
	}
	if delay, ok := l.allowConnection(host, time.Now()); !ok {
		conn.Close()
		return
	} else if delay > 0 {
		time.Sleep(delay)
	}

	_ = conn.SetDeadline(time.Now().Add(20 * time.Second))
	sshConn, chans, reqs, err := ssh.NewServerConn(conn, l.config)
	if err != nil {
		log.Printf("SSH handshake failed from %s: %v", remote, err)
		conn.Close()
		return
	}
	defer sshConn.Close()
	_ = conn.SetDeadline(time.Time{})

	id, _ := strconv.ParseInt(sshConn.Permissions.Extensions[userIDExtension], 10, 64)
	who := Identity{UserID: id, Handle: sshConn.User()}
	log.Printf("SSH connection from %s (user %s, id %d)", remote, who.Handle, who.UserID)

	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			log.Printf("SSH channel accept error: %v", err)
			continue
		}
		go l.session(ctx, channel, requests, remote, who)
	}
}

// session answers pty and shell requests, then hands the channel over.
func (l *SSHListener) session(ctx context.Context, channel ssh.Channel, requests <-chan *ssh.Request, remote string, who Identity) {
	sc := &SSHConn{channel: channel, Width: 80, Height: 24, TermType: "xterm"}
	for req := range requests {
		switch req.Type {
		case "pty-req":
			if term, w, h, ok := parsePtyRequest(req.Payload); ok {
				sc.TermType, sc.Width, sc.Height = term, w, h
			}
			req.Reply(true, nil)
		case "window-change":
			if len(req.Payload) >= 8 {
				sc.Width = int(binary.BigEndian.Uint32(req.Payload[0:4]))
				sc.Height = int(binary.BigEndian.Uint32(req.Payload[4:8]))
			}
		case "shell":
			req.Reply(true, nil)
			go ssh.DiscardRequests(requests)
			l.handler(ctx, sc, remote, who)
			channel.Close()
			return
		default:
			req.Reply(false, nil)
		}
	}
}

// parsePtyRequest decodes the terminal type and size from a pty-req payload.
func parsePtyRequest(p []byte) (string, int, int, bool) {
	if len(p) < 4 {
		return "", 0, 0, false
	}
	n := int(binary.BigEndian.Uint32(p[0:4]))
	if len(p) < 4+n+8 {
		return "", 0, 0, false
	}
	term := string(p[4 : 4+n])
	off := 4 + n
	w := int(binary.BigEndian.Uint32(p[off : off+4]))
	h := int(binary.BigEndian.Uint32(p[off+4 : off+8]))
	return term, w, h, true
}

var _ io.ReadWriteCloser = (*SSHConn)(nil)
