package ui

import (
	"strings"
	"testing"
	"time"

	"github.com/notepid/twilight_arcade/internal/account"
	"github.com/notepid/twilight_arcade/internal/db"
	"github.com/notepid/twilight_arcade/internal/ledger"
	"github.com/notepid/twilight_arcade/internal/moderation"
)

func TestParseBanDays(t *testing.T) {
	days, err := parseBanDays("  ")
	if err != nil || days != nil {
		t.Fatalf("expected permanent ban for blank input, got %v %v", days, err)
	}
	days, err = parseBanDays("3")
	if err != nil || days == nil || *days != 3 {
		t.Fatalf("expected 3 days, got %v %v", days, err)
	}
	for _, bad := range []string{"0", "-2", "week"} {
		if _, err := parseBanDays(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseAmount(t *testing.T) {
	if v, err := parseAmount("-25"); err != nil || v != -25 {
		t.Fatalf("expected -25, got %d %v", v, err)
	}
	if _, err := parseAmount("0"); err == nil {
		t.Fatalf("expected zero to be rejected")
	}
	if _, err := parseAmount("1.5"); err == nil {
		t.Fatalf("expected fraction to be rejected")
	}
}

func TestSettingsFieldsParse(t *testing.T) {
	f := settingsFields{name: " Night Arcade ", operator: "ops", maxNodes: " 8 ", welcome: "  hi  "}
	got, err := f.parse()
	if err != nil {
		t.Fatalf("parse returned error: %v", err)
	}
	want := db.ArcadeSettings{Name: "Night Arcade", Operator: "ops", MaxNodes: 8, Welcome: "hi"}
	if *got != want {
		t.Fatalf("expected %+v, got %+v", want, *got)
	}

	bad := []settingsFields{
		{name: "", operator: "ops", maxNodes: "8"},
		{name: "x", operator: " ", maxNodes: "8"},
		{name: "x", operator: "ops", maxNodes: "0"},
		{name: "x", operator: "ops", maxNodes: "many"},
		{name: "x", operator: "ops", maxNodes: "8", welcome: strings.Repeat("w", welcomeLimit+1)},
	}
	for _, f := range bad {
		if _, err := f.parse(); err == nil {
			t.Fatalf("expected error for %+v", f)
		}
	}
}

func TestSettingsChanges(t *testing.T) {
	before := &db.ArcadeSettings{Name: "A", Operator: "op", MaxNodes: 10, Welcome: "hello"}
	if got := settingsChanges(before, before); len(got) != 0 {
		t.Fatalf("expected no changes, got %v", got)
	}

	after := &db.ArcadeSettings{Name: "B", Operator: "op", MaxNodes: 4}
	got := settingsChanges(before, after)
	if len(got) != 3 {
		t.Fatalf("expected 3 changes, got %v", got)
	}
	joined := strings.Join(got, "\n")
	for _, want := range []string{"Name: A -> B (next restart)", "Node limit: 10 -> 4 (live)", "Welcome message cleared (live)"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in %q", want, joined)
		}
	}
}

func TestBanLength(t *testing.T) {
	one, seven := 1, 7
	if got := banLength(nil); got != "permanently" {
		t.Fatalf("expected permanently, got %q", got)
	}
	if got := banLength(&one); got != "for 1 day" {
		t.Fatalf("expected singular day, got %q", got)
	}
	if got := banLength(&seven); got != "for 7 days" {
		t.Fatalf("expected 7 days, got %q", got)
	}
}

func TestRenderUserDetail(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expires := now.AddDate(0, 0, moderation.AutoBanDays)
	u := &account.User{ID: 42, DisplayName: "ada", Points: 130, Level: 2, Warnings: 3, JoinedAt: now, LastActiveAt: now}
	ban := &moderation.Ban{UserID: 42, Reason: moderation.AutoBanReason, BannedAt: now, ExpiresAt: &expires}
	history := []ledger.Entry{{Delta: 30, Reason: "Won dice", BalanceAfter: 130}}

	out := renderUserDetail(u, ban, true, history)
	for _, want := range []string{"ada (id 42)", "admin", "Warnings: 3/3", "Banned until 2026-03-08", "+30  Won dice (balance 130)"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected detail to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRenderStats(t *testing.T) {
	stats := &account.Stats{TotalUsers: 2, BannedUsers: 1, TotalPoints: 250}
	top := []*account.User{{DisplayName: "ada", Points: 150, Level: 2}, {DisplayName: "bob", Points: 100, Level: 2}}

	out := renderStats(stats, top)
	for _, want := range []string{"Users", "250", "Leaderboard", "ada", "150"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected stats to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(renderStats(stats, nil), "Leaderboard") {
		t.Fatalf("expected no leaderboard without users")
	}
}
