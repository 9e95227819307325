// Package console runs one interactive terminal connection: login, then a
// loop that turns typed lines into events and prints routed messages.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/notepid/twilight_arcade/internal/account"
	"github.com/notepid/twilight_arcade/internal/server"
	"github.com/notepid/twilight_arcade/internal/terminal"
	"github.com/notepid/twilight_arcade/internal/transport"
)

const (
	maxLineLen   = 200
	loginRetries = 3
)

// Accounts is the subset of account.Repo the login screen needs.
type Accounts interface {
	Authenticate(ctx context.Context, handle, password string) (int64, error)
	Register(ctx context.Context, handle, password string) (*account.User, error)
	HandleExists(ctx context.Context, handle string) bool
	Get(ctx context.Context, id int64) (*account.User, error)
}

// Handler processes inbound events.
type Handler interface {
	Handle(ctx context.Context, ev transport.Event) error
}

// Console serves terminal connections.
type Console struct {
	hub      *transport.Hub
	accounts Accounts
	handler  Handler
	name     string

	mu      sync.Mutex
	welcome string
}

// New creates a Console.
func New(hub *transport.Hub, accounts Accounts, handler Handler, arcadeName string) *Console {
	return &Console{hub: hub, accounts: accounts, handler: handler, name: arcadeName}
}

// SetWelcome changes the line shown under the banner on new connections.
func (c *Console) SetWelcome(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.welcome = strings.TrimSpace(text)
}

func (c *Console) welcomeText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.welcome
}

// ServeTelnet runs a negotiated telnet connection.
func (c *Console) ServeTelnet(ctx context.Context, tc *server.TelnetConn) {
	term := terminal.New(tc, tc.Width, tc.Height, false)
	term.SetEchoControl(tc.SetEcho)
	c.Run(ctx, term, tc.RemoteAddr(), nil, func() bool {
		// TTYPE answers arrive while the login prompt is read.
		return terminal.ColorTerm(tc.TermType)
	})
}

// ServeSSH runs an SSH shell session for an already authenticated user.
func (c *Console) ServeSSH(ctx context.Context, sc *server.SSHConn, remote string, who server.Identity) {
	term := terminal.New(sc, sc.Width, sc.Height, terminal.ColorTerm(sc.TermType))
	u := &transport.User{ID: who.UserID, Name: who.Handle}
	if acct, err := c.accounts.Get(ctx, who.UserID); err == nil && acct != nil {
		u.Name = acct.DisplayName
	}
	c.Run(ctx, term, remote, u, nil)
}

// Run serves term until the user quits, the connection drops or ctx ends.
// A nil user goes through the login screen first. color, when set, is
// consulted after login to decide whether to paint output.
func (c *Console) Run(ctx context.Context, term *terminal.Terminal, remote string, u *transport.User, color func() bool) {
	defer term.Close()

	ep, err := c.hub.Open(remote)
	if errors.Is(err, transport.ErrFull) {
		term.SendLn("Sorry, all nodes are busy. Please try again later.")
		return
	}
	if err != nil {
		log.Printf("Open node for %s: %v", remote, err)
		return
	}
	defer c.hub.Close(ep.ID)
	log.Printf("Node %d connected from %s", ep.ID, remote)
	defer log.Printf("Node %d disconnected (%s)", ep.ID, remote)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			term.SendLn("\n*** The arcade is shutting down. Goodbye!")
			term.Close()
		case <-stop:
		}
	}()

	term.SendLn(term.Paint(terminal.FgBrightCyan, c.name))
	if w := c.welcomeText(); w != "" {
		term.SendLn(w)
	}
	term.SendLn("")

	if u == nil {
		if u, err = c.login(ctx, term); err != nil {
			if !errors.Is(err, io.EOF) {
				log.Printf("Node %d login ended: %v", ep.ID, err)
			}
			return
		}
	}
	if color != nil {
		term.Color = color()
	}
	c.hub.Bind(ep.ID, u.ID, u.Name)
	log.Printf("Node %d logged in as %s (%d)", ep.ID, u.Name, u.ID)

	s := &screen{term: term}
	flush := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.pump(ep.Out, flush)
	}()

	c.loop(ctx, s, *u)
	close(flush)
	<-done
}

// loop reads lines until /quit or a read error.
func (c *Console) loop(ctx context.Context, s *screen, u transport.User) {
	if err := c.handler.Handle(ctx, transport.NewCommand(u, u.ID, "start")); err != nil {
		log.Printf("Start for user %d: %v", u.ID, err)
	}
	for {
		line, err := s.term.GetLine(maxLineLen)
		if err != nil {
			return
		}
		if strings.EqualFold(strings.TrimSpace(line), "/quit") {
			s.term.SendLn("Goodbye!")
			return
		}
		ev, ok := transport.ParseLine(line, s.lastButtons(), u, u.ID)
		if !ok {
			continue
		}
		if err := c.handler.Handle(ctx, ev); err != nil {
			log.Printf("Handle %s for user %d: %v", ev.Kind, u.ID, err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// login asks for a handle and password, or registers a new account when
// the handle is NEW.
func (c *Console) login(ctx context.Context, term *terminal.Terminal) (*transport.User, error) {
	term.SendLn("Enter your handle, or NEW to create an account.")
	for range loginRetries {
		handle, err := term.Ask("Handle: ", account.MaxHandleLen)
		if err != nil {
			return nil, err
		}
		handle = strings.TrimSpace(handle)
		if handle == "" {
			continue
		}
		if strings.EqualFold(handle, "new") {
			return c.register(ctx, term)
		}

		term.Send("Password: ")
		pw, err := term.GetPassword(account.MaxPasswordLen)
		if err != nil {
			return nil, err
		}
		id, err := c.accounts.Authenticate(ctx, handle, pw)
		if errors.Is(err, account.ErrInvalidCredentials) {
			term.SendLn(term.Paint(terminal.FgBrightRed, "Login incorrect."))
			continue
		}
		if err != nil {
			term.SendLn("Login is unavailable right now.")
			return nil, err
		}
		u := &transport.User{ID: id, Name: handle}
		if acct, err := c.accounts.Get(ctx, id); err == nil && acct != nil {
			u.Name = acct.DisplayName
		}
		return u, nil
	}
	term.SendLn("Too many attempts.")
	return nil, fmt.Errorf("login: too many attempts")
}

func (c *Console) register(ctx context.Context, term *terminal.Terminal) (*transport.User, error) {
	for range loginRetries {
		handle, err := term.Ask("Choose a handle: ", account.MaxHandleLen)
		if err != nil {
			return nil, err
		}
		handle = strings.TrimSpace(handle)
		if err := account.ValidateHandle(handle); err != nil {
			term.SendLn(term.Paint(terminal.FgBrightRed, err.Error()))
			continue
		}
		if c.accounts.HandleExists(ctx, handle) {
			term.SendLn(term.Paint(terminal.FgBrightRed, "That handle is taken."))
			continue
		}

		term.Send("Choose a password: ")
		pw, err := term.GetPassword(account.MaxPasswordLen)
		if err != nil {
			return nil, err
		}
		if err := account.ValidatePassword(pw); err != nil {
			term.SendLn(term.Paint(terminal.FgBrightRed, err.Error()))
			continue
		}
		term.Send("Repeat password: ")
		again, err := term.GetPassword(account.MaxPasswordLen)
		if err != nil {
			return nil, err
		}
		if again != pw {
			term.SendLn(term.Paint(terminal.FgBrightRed, "Passwords do not match."))
			continue
		}

		acct, err := c.accounts.Register(ctx, handle, pw)
		if errors.Is(err, account.ErrHandleTaken) {
			term.SendLn(term.Paint(terminal.FgBrightRed, "That handle is taken."))
			continue
		}
		if err != nil {
			term.SendLn("Registration is unavailable right now.")
			return nil, err
		}
		term.SendLn(term.Paint(terminal.FgBrightGreen, "Welcome aboard, "+acct.DisplayName+"!"))
		return &transport.User{ID: acct.ID, Name: acct.DisplayName}, nil
	}
	term.SendLn("Too many attempts.")
	return nil, fmt.Errorf("register: too many attempts")
}

// screen prints routed messages and remembers the buttons the user can
// pick by number.
type screen struct {
	term *terminal.Terminal

	mu      sync.Mutex
	buttons [][]transport.Button
}

func (s *screen) lastButtons() [][]transport.Button {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buttons
}

// pump prints messages until stop fires, then flushes what is queued.
func (s *screen) pump(out <-chan transport.Message, stop <-chan struct{}) {
	for {
		select {
		case msg := <-out:
			s.print(msg)
		case <-stop:
			for {
				select {
				case msg := <-out:
					s.print(msg)
				default:
					return
				}
			}
		}
	}
}

func (s *screen) print(msg transport.Message) {
	if !msg.Notice {
		s.mu.Lock()
		s.buttons = msg.Buttons
		s.mu.Unlock()
	}

	lines := transport.Render(msg)
	firstButton := len(lines) - len(msg.Buttons)
	var b strings.Builder
	b.WriteString("\n")
	for i, l := range lines {
		switch {
		case msg.Notice:
			l = s.term.Paint(terminal.FgYellow, l)
		case i >= firstButton:
			l = s.term.Paint(terminal.FgBrightCyan, l)
		}
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString(s.term.Paint(terminal.FgDarkGray, "> "))
	s.term.Send(b.String())
}
