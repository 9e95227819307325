// Package ledger keeps user point balances, levels and the points audit
// trail. Every balance change and its history row are written in the same
// transaction.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/notepid/twilight_arcade/internal/account"
	"github.com/notepid/twilight_arcade/internal/apperr"
	"github.com/notepid/twilight_arcade/internal/db"
	"github.com/notepid/twilight_arcade/internal/game"
)

// Entry is one row of the points history.
type Entry struct {
	ID           int64
	UserID       int64
	Delta        int64
	Reason       string
	BalanceAfter int64
	CreatedAt    time.Time
}

// GameStat is a per-user, per-game counter row.
type GameStat struct {
	Game      string
	Played    int
	Won       int
	HighScore int
}

// Ledger handles point accounting.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// New creates a ledger over the given database.
func New(sqlDB *sql.DB) *Ledger {
	return &Ledger{db: sqlDB, now: time.Now}
}

// SetClock overrides the time source. Used by tests.
func (l *Ledger) SetClock(now func() time.Time) {
	l.now = now
}

// Credit adds amount to the user's balance, recomputes the level and appends
// a history row, all in one transaction. It returns the new balance.
func (l *Ledger) Credit(ctx context.Context, userID, amount int64, reason string) (int64, error) {
	var balance int64
	err := db.InTx(ctx, l.db, func(tx *sql.Tx) error {
		var err error
		balance, err = l.credit(ctx, tx, userID, amount, reason)
		return err
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// Commit settles a finished game: the reward, its history row and the
// stats counters land together or not at all.
func (l *Ledger) Commit(ctx context.Context, userID int64, out game.Outcome) (int64, error) {
	var balance int64
	err := db.InTx(ctx, l.db, func(tx *sql.Tx) error {
		var err error
		if balance, err = l.credit(ctx, tx, userID, out.Reward, out.Reason); err != nil {
			return err
		}
		return recordGame(ctx, tx, userID, out.Game, out.Won, out.Score)
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (l *Ledger) credit(ctx context.Context, tx *sql.Tx, userID, amount int64, reason string) (int64, error) {
	var balance int64
	err := tx.QueryRowContext(ctx, `
		UPDATE users SET points = points + ? WHERE user_id = ? RETURNING points
	`, amount, userID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.New(apperr.CodeNotFound, fmt.Sprintf("user %d not found", userID))
	}
	if err != nil {
		return 0, fmt.Errorf("credit user %d: %w", userID, err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE users SET level = ? WHERE user_id = ?`,
		account.LevelFor(balance), userID); err != nil {
		return 0, fmt.Errorf("update level %d: %w", userID, err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO points_history (user_id, delta, reason, balance_after, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, userID, amount, reason, balance, db.Millis(l.now())); err != nil {
		return 0, fmt.Errorf("record points %d: %w", userID, err)
	}
	return balance, nil
}

// History returns the most recent history rows for a user, newest first.
// A limit of 0 returns every row.
func (l *Ledger) History(ctx context.Context, userID int64, limit int) ([]Entry, error) {
	q := `SELECT id, user_id, delta, reason, balance_after, created_at
		FROM points_history WHERE user_id = ? ORDER BY id DESC`
	args := []any{userID}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list history %d: %w", userID, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var at int64
		if err := rows.Scan(&e.ID, &e.UserID, &e.Delta, &e.Reason, &e.BalanceAfter, &at); err != nil {
			return nil, err
		}
		e.CreatedAt = db.FromMillis(at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecordGame counts one play of game for the user, bumping the aggregate
// counters on the account in the same transaction.
func (l *Ledger) RecordGame(ctx context.Context, userID int64, game string, won bool, score int) error {
	return db.InTx(ctx, l.db, func(tx *sql.Tx) error {
		return recordGame(ctx, tx, userID, game, won, score)
	})
}

func recordGame(ctx context.Context, tx *sql.Tx, userID int64, name string, won bool, score int) error {
	wins := 0
	if won {
		wins = 1
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO game_stats (user_id, game_name, games_played, games_won, high_score)
		VALUES (?, ?, 1, ?, ?)
		ON CONFLICT(user_id, game_name) DO UPDATE SET
			games_played = games_played + 1,
			games_won = games_won + excluded.games_won,
			high_score = MAX(high_score, excluded.high_score)
	`, userID, name, wins, score); err != nil {
		return fmt.Errorf("upsert game stat %d/%s: %w", userID, name, err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET total_games = total_games + 1, total_wins = total_wins + ? WHERE user_id = ?
	`, wins, userID); err != nil {
		return fmt.Errorf("update game totals %d: %w", userID, err)
	}
	return nil
}

// GameStats returns the per-game counters for a user, ordered by game name.
func (l *Ledger) GameStats(ctx context.Context, userID int64) ([]GameStat, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT game_name, games_played, games_won, high_score
		FROM game_stats WHERE user_id = ? ORDER BY game_name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list game stats %d: %w", userID, err)
	}
	defer rows.Close()

	var stats []GameStat
	for rows.Next() {
		var s GameStat
		if err := rows.Scan(&s.Game, &s.Played, &s.Won, &s.HighScore); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
