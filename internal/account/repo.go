package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/notepid/twilight_arcade/internal/db"
)

// Repo handles database operations for user accounts.
type Repo struct {
	db  *sql.DB
	now func() time.Time
}

// NewRepo creates a new account repository.
func NewRepo(sqlDB *sql.DB) *Repo {
	return &Repo{db: sqlDB, now: time.Now}
}

// SetClock overrides the time source. Used by tests.
func (r *Repo) SetClock(now func() time.Time) {
	r.now = now
}

const userColumns = `user_id, display_name, points, level, warnings, is_banned,
	total_games, total_wins, joined_at, last_active_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*User, error) {
	u := &User{}
	var joined, active int64
	if err := s.Scan(&u.ID, &u.DisplayName, &u.Points, &u.Level, &u.Warnings, &u.Banned,
		&u.TotalGames, &u.TotalWins, &joined, &active); err != nil {
		return nil, err
	}
	u.JoinedAt = db.FromMillis(joined)
	u.LastActiveAt = db.FromMillis(active)
	return u, nil
}

// Ensure inserts the user if absent and returns the stored row. created is
// true only for the call that inserted it.
func (r *Repo) Ensure(ctx context.Context, id int64, displayName string) (*User, bool, error) {
	created, err := ensureUser(ctx, r.db, id, displayName, r.now())
	if err != nil {
		return nil, false, err
	}
	u, err := r.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return u, created, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func ensureUser(ctx context.Context, ex execer, id int64, displayName string, now time.Time) (bool, error) {
	res, err := ex.ExecContext(ctx, `
		INSERT OR IGNORE INTO users (user_id, display_name, points, level, joined_at, last_active_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, displayName, StartingPoints, StartingLevel, db.Millis(now), db.Millis(now))
	if err != nil {
		return false, fmt.Errorf("ensure user %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ensure user %d: %w", id, err)
	}
	return n == 1, nil
}

// Get retrieves a user by ID. It returns nil, nil when no row exists.
func (r *Repo) Get(ctx context.Context, id int64) (*User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// Touch records activity for a user.
func (r *Repo) Touch(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET last_active_at = ? WHERE user_id = ?`, db.Millis(r.now()), id)
	if err != nil {
		return fmt.Errorf("touch user %d: %w", id, err)
	}
	return nil
}

// Rename updates a user's display name.
func (r *Repo) Rename(ctx context.Context, id int64, displayName string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET display_name = ? WHERE user_id = ?`, displayName, id)
	if err != nil {
		return fmt.Errorf("rename user %d: %w", id, err)
	}
	return nil
}

// List returns all users, ordered by ID.
func (r *Repo) List(ctx context.Context) ([]*User, error) {
	return r.query(ctx, `SELECT `+userColumns+` FROM users ORDER BY user_id`)
}

// Top returns the highest balances among users who are not banned.
func (r *Repo) Top(ctx context.Context, limit int) ([]*User, error) {
	return r.query(ctx, `SELECT `+userColumns+` FROM users WHERE is_banned = 0
		ORDER BY points DESC, user_id LIMIT ?`, limit)
}

func (r *Repo) query(ctx context.Context, q string, args ...any) ([]*User, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Stats returns arcade-wide counters.
func (r *Repo) Stats(ctx context.Context) (*Stats, error) {
	s := &Stats{}
	err := r.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM users WHERE is_banned = 1),
			(SELECT COALESCE(SUM(points), 0) FROM users),
			(SELECT COUNT(*) FROM admins),
			(SELECT COUNT(*) FROM banned_words),
			(SELECT COUNT(*) FROM todos WHERE completed = 0),
			(SELECT COUNT(*) FROM reminders WHERE status = 'pending')
	`).Scan(&s.TotalUsers, &s.BannedUsers, &s.TotalPoints, &s.TotalAdmins,
		&s.BannedWords, &s.PendingTodos, &s.PendingReminders)
	if err != nil {
		return nil, fmt.Errorf("load stats: %w", err)
	}
	return s, nil
}
