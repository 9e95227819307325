package console

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/notepid/twilight_arcade/internal/account"
	"github.com/notepid/twilight_arcade/internal/terminal"
	"github.com/notepid/twilight_arcade/internal/transport"
)

type fakeConn struct {
	in *strings.Reader

	mu     sync.Mutex
	out    bytes.Buffer
	closed bool
}

func (c *fakeConn) Read(p []byte) (int, error) { return c.in.Read(p) }

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.Write(p)
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) output() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out.String()
}

type fakeAccounts struct {
	creds map[string]string
	users map[int64]*account.User
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		creds: map[string]string{"bob": "secret1"},
		users: map[int64]*account.User{7: {ID: 7, DisplayName: "Bob"}},
	}
}

func (a *fakeAccounts) Authenticate(_ context.Context, handle, password string) (int64, error) {
	if pw, ok := a.creds[strings.ToLower(handle)]; ok && pw == password {
		return 7, nil
	}
	return 0, account.ErrInvalidCredentials
}

func (a *fakeAccounts) Register(_ context.Context, handle, password string) (*account.User, error) {
	if _, ok := a.creds[strings.ToLower(handle)]; ok {
		return nil, account.ErrHandleTaken
	}
	a.creds[strings.ToLower(handle)] = password
	u := &account.User{ID: int64(len(a.users) + 10), DisplayName: handle}
	a.users[u.ID] = u
	return u, nil
}

func (a *fakeAccounts) HandleExists(_ context.Context, handle string) bool {
	_, ok := a.creds[strings.ToLower(handle)]
	return ok
}

func (a *fakeAccounts) Get(_ context.Context, id int64) (*account.User, error) {
	return a.users[id], nil
}

// echoHandler answers start with a menu and echoes free text.
type echoHandler struct {
	hub    *transport.Hub
	events []transport.Event
}

func (h *echoHandler) Handle(ctx context.Context, ev transport.Event) error {
	h.events = append(h.events, ev)
	switch ev.Kind {
	case transport.Command:
		return h.hub.Deliver(ctx, ev.Channel, transport.Message{
			Text:    "Main menu",
			Buttons: [][]transport.Button{{{Label: "Roll dice", Tag: "game_dice"}}},
		})
	case transport.FreeText:
		return h.hub.Deliver(ctx, ev.Channel, transport.Text("echo: %s", ev.Text))
	}
	return nil
}

func setup(input string, maxNodes int) (*Console, *echoHandler, *fakeConn, *terminal.Terminal) {
	hub := transport.NewHub(maxNodes)
	h := &echoHandler{hub: hub}
	conn := &fakeConn{in: strings.NewReader(input)}
	term := terminal.New(conn, 80, 24, false)
	return New(hub, newFakeAccounts(), h, "Test Arcade"), h, conn, term
}

func TestRunLoginAndEcho(t *testing.T) {
	c, h, conn, term := setup("bob\rsecret1\rhello\r/quit\r", 2)
	c.Run(context.Background(), term, "test", nil, nil)

	if len(h.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(h.events))
	}
	start := h.events[0]
	if start.Kind != transport.Command || start.Name != "start" {
		t.Fatalf("expected start command first, got %+v", start)
	}
	if start.User.ID != 7 || start.User.Name != "Bob" || start.Channel != 7 {
		t.Fatalf("expected user 7 Bob on channel 7, got %+v", start)
	}
	if h.events[1].Kind != transport.FreeText || h.events[1].Text != "hello" {
		t.Fatalf("expected free text hello, got %+v", h.events[1])
	}

	out := conn.output()
	for _, want := range []string{"Test Arcade", "[1] Roll dice", "echo: hello", "Goodbye!"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got %q", want, out)
		}
	}
	if strings.Contains(out, "secret1") {
		t.Fatalf("password echoed: %q", out)
	}
	if c.hub.Count() != 0 {
		t.Fatalf("expected node released, got %d", c.hub.Count())
	}
	if !conn.closed {
		t.Fatalf("expected connection closed")
	}
}

func TestRunPreauthenticated(t *testing.T) {
	c, h, _, term := setup("/quit\r", 2)
	c.Run(context.Background(), term, "ssh", &transport.User{ID: 7, Name: "Bob"}, nil)

	if len(h.events) != 1 || h.events[0].Name != "start" {
		t.Fatalf("expected only the start command, got %+v", h.events)
	}
}

func TestRunShowsWelcome(t *testing.T) {
	c, _, conn, term := setup("/quit\r", 2)
	c.SetWelcome("  Double points this weekend  ")
	c.Run(context.Background(), term, "ssh", &transport.User{ID: 7, Name: "Bob"}, nil)

	if !strings.Contains(conn.output(), "Test Arcade\r\nDouble points this weekend\r\n") {
		t.Fatalf("expected welcome under the banner, got %q", conn.output())
	}
}

func TestRunLoginFailures(t *testing.T) {
	c, h, conn, term := setup("bob\rwrong\rbob\rwrong\rbob\rwrong\r", 2)
	c.Run(context.Background(), term, "test", nil, nil)

	if len(h.events) != 0 {
		t.Fatalf("expected no events, got %+v", h.events)
	}
	out := conn.output()
	if strings.Count(out, "Login incorrect.") != 3 || !strings.Contains(out, "Too many attempts.") {
		t.Fatalf("expected three failures then lockout, got %q", out)
	}
}

func TestRunRegister(t *testing.T) {
	c, h, conn, term := setup("new\rbob\rnewbie\rpass123\rpass123\r/quit\r", 2)
	c.Run(context.Background(), term, "test", nil, nil)

	out := conn.output()
	if !strings.Contains(out, "That handle is taken.") {
		t.Fatalf("expected taken handle notice, got %q", out)
	}
	if !strings.Contains(out, "Welcome aboard, newbie!") {
		t.Fatalf("expected welcome, got %q", out)
	}
	if len(h.events) != 1 || h.events[0].User.Name != "newbie" {
		t.Fatalf("expected start as newbie, got %+v", h.events)
	}
}

func TestRunAllNodesBusy(t *testing.T) {
	c, h, conn, term := setup("bob\r", 0)
	c.Run(context.Background(), term, "test", nil, nil)

	if !strings.Contains(conn.output(), "all nodes are busy") {
		t.Fatalf("expected busy notice, got %q", conn.output())
	}
	if len(h.events) != 0 {
		t.Fatalf("expected no events, got %+v", h.events)
	}
}

func TestScreenKeepsButtonsAcrossNotices(t *testing.T) {
	conn := &fakeConn{in: strings.NewReader("")}
	s := &screen{term: terminal.New(conn, 80, 24, false)}

	menu := [][]transport.Button{{{Label: "A", Tag: "a"}}}
	s.print(transport.Message{Text: "menu", Buttons: menu})
	s.print(transport.Notice("Reminder: stretch"))

	if got := s.lastButtons(); len(got) != 1 || got[0][0].Tag != "a" {
		t.Fatalf("expected menu buttons kept, got %+v", got)
	}
	if !strings.Contains(conn.output(), "*** Reminder: stretch") {
		t.Fatalf("expected notice marker, got %q", conn.output())
	}

	s.print(transport.Text("plain"))
	if got := s.lastButtons(); len(got) != 0 {
		t.Fatalf("expected buttons cleared by a plain reply, got %+v", got)
	}
}
