// Package todo stores per-user to-do items.
package todo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/notepid/twilight_arcade/internal/apperr"
	"github.com/notepid/twilight_arcade/internal/db"
)

// Rewards credited by the session layer.
const (
	AddReward      = 5
	CompleteReward = 10
)

// MaxTaskLen bounds the task text.
const MaxTaskLen = 500

// Item is one to-do entry.
type Item struct {
	ID          int64
	UserID      int64
	Task        string
	Completed   bool
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Repo handles database operations for to-do items.
type Repo struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepo creates a new to-do repository.
func NewRepo(sqlDB *sql.DB) *Repo {
	return &Repo{db: sqlDB, now: time.Now}
}

// SetClock overrides the time source. Used by tests.
func (r *Repo) SetClock(now func() time.Time) {
	r.now = now
}

// Add stores a new open item and returns its ID.
func (r *Repo) Add(ctx context.Context, userID int64, task string) (int64, error) {
	task = strings.TrimSpace(task)
	if task == "" {
		return 0, apperr.Validation("task must not be empty")
	}
	if len(task) > MaxTaskLen {
		return 0, apperr.Validation(fmt.Sprintf("task too long (max %d characters)", MaxTaskLen))
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO todos (user_id, task, created_at) VALUES (?, ?, ?)
	`, userID, task, db.Millis(r.now()))
	if err != nil {
		return 0, fmt.Errorf("insert todo for %d: %w", userID, err)
	}
	return res.LastInsertId()
}

// ListOpen returns the user's open items, oldest first.
func (r *Repo) ListOpen(ctx context.Context, userID int64) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, task, completed, created_at, completed_at
		FROM todos WHERE user_id = ? AND completed = 0 ORDER BY created_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list todos %d: %w", userID, err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var created int64
		var completed sql.NullInt64
		if err := rows.Scan(&it.ID, &it.UserID, &it.Task, &it.Completed, &created, &completed); err != nil {
			return nil, err
		}
		it.CreatedAt = db.FromMillis(created)
		it.CompletedAt = db.NullMillis(completed)
		items = append(items, it)
	}
	return items, rows.Err()
}

// Complete marks an open item done. It returns false when the item does not
// exist, belongs to someone else or is already complete.
func (r *Repo) Complete(ctx context.Context, id, userID int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE todos SET completed = 1, completed_at = ?
		WHERE id = ? AND user_id = ? AND completed = 0
	`, db.Millis(r.now()), id, userID)
	if err != nil {
		return false, fmt.Errorf("complete todo %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("complete todo %d: %w", id, err)
	}
	return n == 1, nil
}

// CountOpen returns how many open items the user has.
func (r *Repo) CountOpen(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM todos WHERE user_id = ? AND completed = 0`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count todos %d: %w", userID, err)
	}
	return n, nil
}
