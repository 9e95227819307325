package transport

import (
	"context"
	"errors"
	"testing"

	"github.com/notepid/twilight_arcade/internal/apperr"
)

func TestHubOpenLowestAvailable(t *testing.T) {
	hub := NewHub(3)

	a, err := hub.Open("a")
	if err != nil || a.ID != 1 {
		t.Fatalf("expected id=1, got %+v err=%v", a, err)
	}
	b, err := hub.Open("b")
	if err != nil || b.ID != 2 {
		t.Fatalf("expected id=2, got %+v err=%v", b, err)
	}

	hub.Close(a.ID)

	c, err := hub.Open("c")
	if err != nil || c.ID != 1 {
		t.Fatalf("expected reused id=1, got %+v err=%v", c, err)
	}
}

func TestHubCapacity(t *testing.T) {
	hub := NewHub(2)
	first, _ := hub.Open("a")
	hub.Open("b")

	if _, err := hub.Open("c"); !errors.Is(err, ErrFull) {
		t.Fatalf("expected ErrFull, got %v", err)
	}
	hub.Close(first.ID)
	ep, err := hub.Open("d")
	if err != nil || ep.ID != 1 {
		t.Fatalf("expected reused id=1, got %+v err=%v", ep, err)
	}

	hub.SetMaxNodes(5)
	if _, err := hub.Open("e"); err != nil {
		t.Fatalf("expected room after raising limit, got %v", err)
	}
}

func TestHubDeliver(t *testing.T) {
	hub := NewHub(5)
	ctx := context.Background()
	ep, _ := hub.Open("a")

	err := hub.Deliver(ctx, 42, Text("hi"))
	if !errors.Is(err, ErrNotConnected) || apperr.CodeOf(err) != apperr.CodeTransport {
		t.Fatalf("expected transport ErrNotConnected before bind, got %v", err)
	}

	hub.Bind(ep.ID, 42, "ada")
	if !hub.Online(42) {
		t.Fatalf("expected channel 42 online")
	}
	if err := hub.Deliver(ctx, 42, Text("hi %s", "ada")); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	msg := <-ep.Out
	if msg.Text != "hi ada" {
		t.Fatalf("expected hi ada, got %q", msg.Text)
	}

	for i := 0; i < outboxSize; i++ {
		hub.Deliver(ctx, 42, Text("fill"))
	}
	if err := hub.Deliver(ctx, 42, Text("overflow")); apperr.CodeOf(err) != apperr.CodeTransport {
		t.Fatalf("expected transport error on full outbox, got %v", err)
	}
}

func TestHubBroadcastSkipsUnbound(t *testing.T) {
	hub := NewHub(5)
	bound, _ := hub.Open("a")
	anon, _ := hub.Open("b")
	hub.Bind(bound.ID, 7, "ada")

	hub.Broadcast("shutting down")

	select {
	case msg := <-bound.Out:
		if !msg.Notice || msg.Text != "shutting down" {
			t.Fatalf("unexpected broadcast %+v", msg)
		}
	default:
		t.Fatalf("expected bound endpoint to receive broadcast")
	}
	select {
	case msg := <-anon.Out:
		t.Fatalf("expected unbound endpoint to be skipped, got %+v", msg)
	default:
	}
}

func TestHubList(t *testing.T) {
	hub := NewHub(5)
	a, _ := hub.Open("10.0.0.1")
	hub.Open("10.0.0.2")
	hub.Bind(a.ID, 3, "ada")

	list := hub.List()
	if len(list) != 2 || list[0].UserName != "ada" || list[1].UserName != "(logging in)" {
		t.Fatalf("unexpected list %+v", list)
	}
}

var menu = [][]Button{
	{{Label: "Dice", Tag: "game_dice"}, {Label: "Coin", Tag: "game_coin"}},
	{{Label: "Back", Tag: "main_menu"}},
}

func TestParseLine(t *testing.T) {
	u := User{ID: 5, Name: "ada"}

	ev, ok := ParseLine("/Remind stretch 10", nil, u, 5)
	if !ok || ev.Kind != Command || ev.Name != "remind" || len(ev.Args) != 2 || ev.Args[1] != "10" {
		t.Fatalf("unexpected command event %+v", ev)
	}

	ev, _ = ParseLine("3", menu, u, 5)
	if ev.Kind != Action || ev.Tag != "main_menu" {
		t.Fatalf("expected main_menu action, got %+v", ev)
	}

	ev, _ = ParseLine("4", menu, u, 5)
	if ev.Kind != FreeText || ev.Text != "4" {
		t.Fatalf("expected out-of-range number as text, got %+v", ev)
	}

	ev, _ = ParseLine("12", nil, u, 5)
	if ev.Kind != FreeText {
		t.Fatalf("expected number without buttons as text, got %+v", ev)
	}

	if _, ok := ParseLine("   ", menu, u, 5); ok {
		t.Fatalf("expected blank line to be ignored")
	}
	if ev.User != u || ev.Channel != 5 {
		t.Fatalf("expected user and channel carried, got %+v", ev)
	}
}

func TestRender(t *testing.T) {
	lines := Render(Message{Text: "Pick a game", Buttons: menu})
	want := []string{"Pick a game", "  [1] Dice   [2] Coin", "  [3] Back"}
	if len(lines) != len(want) {
		t.Fatalf("expected %d lines, got %q", len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: expected %q, got %q", i, want[i], lines[i])
		}
	}

	lines = Render(Notice("Reminder\nstretch"))
	if lines[0] != "*** Reminder" || lines[1] != "*** stretch" {
		t.Fatalf("unexpected notice rendering %q", lines)
	}
}
