// Package reminder persists reminders and fires them after their delay.
package reminder

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/notepid/twilight_arcade/internal/db"
)

// Reminder statuses. A reminder moves from pending to sent once and never
// back.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
)

// Reminder is one scheduled message.
type Reminder struct {
	ID        int64
	UserID    int64
	ChannelID int64
	Text      string
	FireAt    time.Time
	CreatedAt time.Time
	Status    string
}

// Repo handles database operations for reminders.
type Repo struct {
	db *sql.DB
}

// NewRepo creates a new reminder repository.
func NewRepo(sqlDB *sql.DB) *Repo {
	return &Repo{db: sqlDB}
}

// Insert stores a pending reminder and fills in its ID.
func (r *Repo) Insert(ctx context.Context, rem *Reminder) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO reminders (user_id, channel_id, text, fire_at, created_at, status)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rem.UserID, rem.ChannelID, rem.Text, db.Millis(rem.FireAt), db.Millis(rem.CreatedAt), StatusPending)
	if err != nil {
		return fmt.Errorf("insert reminder for %d: %w", rem.UserID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert reminder for %d: %w", rem.UserID, err)
	}
	rem.ID = id
	rem.Status = StatusPending
	return nil
}

// MarkSent moves a pending reminder to sent. It returns false if the
// reminder was not pending.
func (r *Repo) MarkSent(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE reminders SET status = ? WHERE id = ? AND status = ?`,
		StatusSent, id, StatusPending)
	if err != nil {
		return false, fmt.Errorf("mark reminder %d sent: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark reminder %d sent: %w", id, err)
	}
	return n == 1, nil
}

// Get returns a reminder by ID, or nil if absent.
func (r *Repo) Get(ctx context.Context, id int64) (*Reminder, error) {
	rems, err := r.query(ctx, `WHERE id = ?`, id)
	if err != nil || len(rems) == 0 {
		return nil, err
	}
	return rems[0], nil
}

// ListPending returns every pending reminder ordered by fire time.
func (r *Repo) ListPending(ctx context.Context) ([]*Reminder, error) {
	return r.query(ctx, `WHERE status = ? ORDER BY fire_at, id`, StatusPending)
}

// ListDuePending returns pending reminders whose fire time is not after now.
func (r *Repo) ListDuePending(ctx context.Context, now time.Time) ([]*Reminder, error) {
	return r.query(ctx, `WHERE status = ? AND fire_at <= ? ORDER BY fire_at, id`, StatusPending, db.Millis(now))
}

// ListPendingForUser returns a user's pending reminders ordered by fire time.
func (r *Repo) ListPendingForUser(ctx context.Context, userID int64) ([]*Reminder, error) {
	return r.query(ctx, `WHERE status = ? AND user_id = ? ORDER BY fire_at, id`, StatusPending, userID)
}

func (r *Repo) query(ctx context.Context, where string, args ...any) ([]*Reminder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, channel_id, text, fire_at, created_at, status FROM reminders `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	defer rows.Close()

	var rems []*Reminder
	for rows.Next() {
		rem := &Reminder{}
		var fire, created int64
		if err := rows.Scan(&rem.ID, &rem.UserID, &rem.ChannelID, &rem.Text, &fire, &created, &rem.Status); err != nil {
			return nil, err
		}
		rem.FireAt = db.FromMillis(fire)
		rem.CreatedAt = db.FromMillis(created)
		rems = append(rems, rem)
	}
	return rems, rows.Err()
}
