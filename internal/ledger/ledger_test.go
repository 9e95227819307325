package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/notepid/twilight_arcade/internal/account"
	"github.com/notepid/twilight_arcade/internal/apperr"
	"github.com/notepid/twilight_arcade/internal/db"
	"github.com/notepid/twilight_arcade/internal/game"
)

type fixture struct {
	ledger   *Ledger
	accounts *account.Repo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "arcade.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return &fixture{ledger: New(database.DB), accounts: account.NewRepo(database.DB)}
}

func (f *fixture) user(t *testing.T, id int64) {
	t.Helper()
	if _, _, err := f.accounts.Ensure(context.Background(), id, "player"); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
}

func TestCreditKeepsHistoryConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, 1)

	deltas := []int64{15, 3, 250, 0, 28, 5}
	var sum int64
	for _, d := range deltas {
		sum += d
		got, err := f.ledger.Credit(ctx, 1, d, "test")
		if err != nil {
			t.Fatalf("Credit(%d): %v", d, err)
		}
		if want := account.StartingPoints + sum; got != want {
			t.Fatalf("expected balance %d, got %d", want, got)
		}
		u, _ := f.accounts.Get(ctx, 1)
		if u.Level != account.LevelFor(got) {
			t.Fatalf("expected level %d for balance %d, got %d", account.LevelFor(got), got, u.Level)
		}
	}

	history, err := f.ledger.History(ctx, 1, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != len(deltas) {
		t.Fatalf("expected %d history rows, got %d", len(deltas), len(history))
	}

	var historySum int64
	prev := int64(account.StartingPoints)
	for i := len(history) - 1; i >= 0; i-- {
		e := history[i]
		historySum += e.Delta
		if e.BalanceAfter-prev != e.Delta {
			t.Fatalf("row %d: balance_after step %d does not match delta %d", e.ID, e.BalanceAfter-prev, e.Delta)
		}
		prev = e.BalanceAfter
	}
	u, _ := f.accounts.Get(ctx, 1)
	if account.StartingPoints+historySum != u.Points {
		t.Fatalf("history sum %d + start does not reconstruct balance %d", historySum, u.Points)
	}
}

func TestCreditLevelBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, 1)

	balance, err := f.ledger.Credit(ctx, 1, 99, "almost")
	if err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if balance != 199 {
		t.Fatalf("expected 199, got %d", balance)
	}
	u, _ := f.accounts.Get(ctx, 1)
	if u.Level != 2 {
		t.Fatalf("expected level 2 at 199, got %d", u.Level)
	}

	f.ledger.Credit(ctx, 1, 1, "there")
	u, _ = f.accounts.Get(ctx, 1)
	if u.Level != 3 {
		t.Fatalf("expected level 3 at 200, got %d", u.Level)
	}
}

func TestCreditUnknownUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.Credit(context.Background(), 404, 10, "ghost")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	history, _ := f.ledger.History(context.Background(), 404, 0)
	if len(history) != 0 {
		t.Fatalf("expected no history for failed credit, got %d rows", len(history))
	}
}

func TestConcurrentCreditsDoNotLoseUpdates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, 1)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.ledger.Credit(ctx, 1, 5, "race"); err != nil {
				t.Errorf("Credit: %v", err)
			}
		}()
	}
	wg.Wait()

	u, _ := f.accounts.Get(ctx, 1)
	if u.Points != 200 {
		t.Fatalf("expected 200 after 20 concurrent +5 credits, got %d", u.Points)
	}
}

func TestRecordGame(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, 1)

	f.ledger.RecordGame(ctx, 1, "guess", true, 24)
	f.ledger.RecordGame(ctx, 1, "guess", false, 0)
	f.ledger.RecordGame(ctx, 1, "dice", false, 0)

	stats, err := f.ledger.GameStats(ctx, 1)
	if err != nil {
		t.Fatalf("GameStats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 games, got %d", len(stats))
	}
	guess := stats[1]
	if guess.Game != "guess" || guess.Played != 2 || guess.Won != 1 || guess.HighScore != 24 {
		t.Fatalf("unexpected guess stat: %+v", guess)
	}

	u, _ := f.accounts.Get(ctx, 1)
	if u.TotalGames != 3 || u.TotalWins != 1 {
		t.Fatalf("expected totals 3/1, got %d/%d", u.TotalGames, u.TotalWins)
	}
}

func TestCommitRollsBackWithStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.user(t, 1)

	out := game.Outcome{Game: "quiz", Reward: 25, Reason: "Quiz: correct", Won: true, Score: 25}
	balance, err := f.ledger.Commit(ctx, 1, out)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if balance != 125 {
		t.Fatalf("expected 125, got %d", balance)
	}

	if _, err := f.ledger.db.Exec(`CREATE TRIGGER stats_full BEFORE UPDATE ON game_stats
		BEGIN SELECT RAISE(ABORT, 'disk full'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	if _, err := f.ledger.Commit(ctx, 1, out); err == nil {
		t.Fatalf("expected stats failure")
	}

	u, _ := f.accounts.Get(ctx, 1)
	if u.Points != 125 || u.TotalGames != 1 {
		t.Fatalf("expected 125 points and 1 game after rollback, got %d/%d", u.Points, u.TotalGames)
	}
	hist, _ := f.ledger.History(ctx, 1, 0)
	if len(hist) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(hist))
	}
}
