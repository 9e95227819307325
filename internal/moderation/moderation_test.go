package moderation

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/notepid/twilight_arcade/internal/account"
	"github.com/notepid/twilight_arcade/internal/apperr"
	"github.com/notepid/twilight_arcade/internal/db"
)

type fixture struct {
	svc      *Service
	accounts *account.Repo
	now      time.Time
}

func newFixture(t *testing.T, bootstrap ...int64) *fixture {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "arcade.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	f := &fixture{
		svc:      NewService(database.DB, bootstrap),
		accounts: account.NewRepo(database.DB),
		now:      time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	f.svc.SetClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) user(t *testing.T, id int64) {
	t.Helper()
	if _, _, err := f.accounts.Ensure(context.Background(), id, "player"); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
}

func (f *fixture) banned(t *testing.T, id int64) bool {
	t.Helper()
	b, err := f.svc.CheckBanned(context.Background(), id)
	if err != nil {
		t.Fatalf("CheckBanned: %v", err)
	}
	return b
}

func TestPermanentBanAndUnban(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, 5)

	if err := f.svc.Ban(ctx, 5, 1, "spam", nil); err != nil {
		t.Fatalf("Ban: %v", err)
	}
	f.now = f.now.AddDate(10, 0, 0)
	if !f.banned(t, 5) {
		t.Fatalf("expected permanent ban to hold")
	}
	u, _ := f.accounts.Get(ctx, 5)
	if !u.Banned {
		t.Fatalf("expected ban flag set")
	}

	if err := f.svc.Unban(ctx, 5); err != nil {
		t.Fatalf("Unban: %v", err)
	}
	if f.banned(t, 5) {
		t.Fatalf("expected user unbanned")
	}
	if err := f.svc.Unban(ctx, 5); err != nil {
		t.Fatalf("second Unban should be a no-op, got %v", err)
	}
}

func TestExpiredBanIsRemovedLazily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, 5)

	days := 2
	if err := f.svc.Ban(ctx, 5, 1, "cool off", &days); err != nil {
		t.Fatalf("Ban: %v", err)
	}
	f.now = f.now.Add(47 * time.Hour)
	if !f.banned(t, 5) {
		t.Fatalf("expected ban to hold before expiry")
	}

	f.now = f.now.Add(2 * time.Hour)
	if f.banned(t, 5) {
		t.Fatalf("expected expired ban to read as unbanned")
	}
	if b, _ := f.svc.GetBan(ctx, 5); b != nil {
		t.Fatalf("expected expired ban row deleted, got %+v", b)
	}
	u, _ := f.accounts.Get(ctx, 5)
	if u.Banned {
		t.Fatalf("expected ban flag cleared")
	}
	if f.banned(t, 5) {
		t.Fatalf("expected second check to stay unbanned")
	}
}

func TestBanUpsertReplacesExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, 5)

	days := 1
	f.svc.Ban(ctx, 5, 1, "first", &days)
	f.svc.Ban(ctx, 5, 2, "second", nil)

	b, err := f.svc.GetBan(ctx, 5)
	if err != nil || b == nil {
		t.Fatalf("GetBan: %v %v", b, err)
	}
	if !b.Permanent() || b.BannedBy != 2 || b.Reason != "second" {
		t.Fatalf("expected permanent ban by 2, got %+v", b)
	}
	bans, _ := f.svc.ListBans(ctx)
	if len(bans) != 1 {
		t.Fatalf("expected one ban row, got %d", len(bans))
	}
}

func TestBanRejectsNonPositiveDays(t *testing.T) {
	f := newFixture(t)
	days := 0
	err := f.svc.Ban(context.Background(), 5, 1, "x", &days)
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestThirdWarningEscalates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, 9)

	for i := 1; i <= 4; i++ {
		res, err := f.svc.Warn(ctx, 9, 42, "rude")
		if err != nil {
			t.Fatalf("Warn %d: %v", i, err)
		}
		if res.Count != i {
			t.Fatalf("expected count %d, got %d", i, res.Count)
		}
		if res.Escalated != (i == 3) {
			t.Fatalf("warning %d: expected escalated=%v, got %v", i, i == 3, res.Escalated)
		}
		if i == 2 && f.banned(t, 9) {
			t.Fatalf("expected no ban after two warnings")
		}
		if i == 3 {
			b, _ := f.svc.GetBan(ctx, 9)
			if b == nil {
				t.Fatalf("expected auto ban after third warning")
			}
			if b.BannedBy != 42 || b.Reason != AutoBanReason {
				t.Fatalf("expected ban by issuer 42, got %+v", b)
			}
			if b.ExpiresAt == nil || !b.ExpiresAt.Equal(f.now.AddDate(0, 0, AutoBanDays)) {
				t.Fatalf("expected 7-day expiry, got %v", b.ExpiresAt)
			}
			f.svc.Unban(ctx, 9)
		}
	}
	if f.banned(t, 9) {
		t.Fatalf("expected fourth warning alone not to ban")
	}

	warnings, _ := f.svc.Warnings(ctx, 9)
	if len(warnings) != 4 {
		t.Fatalf("expected 4 warning rows, got %d", len(warnings))
	}
}

func TestConcurrentWarningsEscalateOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, 9)
	f.svc.Warn(ctx, 9, 1, "one")

	var wg sync.WaitGroup
	var mu sync.Mutex
	escalations := 0
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Warn(ctx, 9, 1, "race")
			if err != nil {
				t.Errorf("Warn: %v", err)
				return
			}
			if res.Escalated {
				mu.Lock()
				escalations++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if escalations != 1 {
		t.Fatalf("expected exactly one escalation, got %d", escalations)
	}
}

func TestWarnUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Warn(context.Background(), 404, 1, "ghost")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	warnings, _ := f.svc.Warnings(context.Background(), 404)
	if len(warnings) != 0 {
		t.Fatalf("expected warning insert rolled back, got %d rows", len(warnings))
	}
}

func TestIsAdmin(t *testing.T) {
	f := newFixture(t, 1000)
	ctx := context.Background()

	if ok, _ := f.svc.IsAdmin(ctx, 1000); !ok {
		t.Fatalf("expected bootstrap admin")
	}
	if ok, _ := f.svc.IsAdmin(ctx, 7); ok {
		t.Fatalf("expected non-admin")
	}

	if err := f.svc.AddAdmin(ctx, 7, "Helper", 1000); err != nil {
		t.Fatalf("AddAdmin: %v", err)
	}
	if ok, _ := f.svc.IsAdmin(ctx, 7); !ok {
		t.Fatalf("expected helper to pass IsAdmin")
	}
	admins, _ := f.svc.ListAdmins(ctx)
	if len(admins) != 1 || admins[0].Level != LevelHelper {
		t.Fatalf("expected one helper admin, got %+v", admins)
	}

	if err := f.svc.AddAdmin(ctx, 8, "overlord", 1000); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error for bad level, got %v", err)
	}

	f.svc.RemoveAdmin(ctx, 7)
	if ok, _ := f.svc.IsAdmin(ctx, 7); ok {
		t.Fatalf("expected removed admin to lose access")
	}
	f.svc.RemoveAdmin(ctx, 1000)
	if ok, _ := f.svc.IsAdmin(ctx, 1000); !ok {
		t.Fatalf("expected bootstrap admin to survive removal")
	}
}

func TestBannedWords(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	added, err := f.svc.AddBannedWord(ctx, "  Spoiler ", 1)
	if err != nil || !added {
		t.Fatalf("expected word added, got %v %v", added, err)
	}
	if added, _ := f.svc.AddBannedWord(ctx, "spoiler", 1); added {
		t.Fatalf("expected duplicate to be ignored")
	}

	word, ok, err := f.svc.ContainsBannedWord(ctx, "No SPOILERS please")
	if err != nil || !ok || word != "spoiler" {
		t.Fatalf("expected match on spoiler, got %q %v %v", word, ok, err)
	}
	if _, ok, _ := f.svc.ContainsBannedWord(ctx, "hello"); ok {
		t.Fatalf("expected no match")
	}

	if removed, _ := f.svc.RemoveBannedWord(ctx, "SPOILER"); !removed {
		t.Fatalf("expected word removed")
	}
	words, _ := f.svc.BannedWords(ctx)
	if len(words) != 0 {
		t.Fatalf("expected no words, got %v", words)
	}
}
