package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/notepid/twilight_arcade/internal/apperr"
	"github.com/notepid/twilight_arcade/internal/db"
)

// Admin levels. The level is recorded but every admin passes IsAdmin alike.
const (
	LevelSuperAdmin = "super_admin"
	LevelFullAdmin  = "full_admin"
	LevelModerator  = "moderator"
	LevelHelper     = "helper"
)

// Levels lists the accepted admin levels, highest first.
var Levels = []string{LevelSuperAdmin, LevelFullAdmin, LevelModerator, LevelHelper}

// Admin is a row of the admins table.
type Admin struct {
	UserID  int64
	Level   string
	AddedBy int64
	AddedAt time.Time
}

// ValidLevel reports whether level is one of Levels.
func ValidLevel(level string) bool {
	for _, l := range Levels {
		if l == level {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user is a bootstrap admin or has any row in
// the admins table.
func (s *Service) IsAdmin(ctx context.Context, userID int64) (bool, error) {
	if s.bootstrap[userID] {
		return true, nil
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins WHERE user_id = ?`, userID).Scan(&n); err != nil {
		return false, fmt.Errorf("check admin %d: %w", userID, err)
	}
	return n > 0, nil
}

// IsBootstrap reports whether the user is in the configured bootstrap set.
func (s *Service) IsBootstrap(userID int64) bool {
	return s.bootstrap[userID]
}

// AddAdmin grants or replaces the user's admin level.
func (s *Service) AddAdmin(ctx context.Context, userID int64, level string, issuer int64) error {
	level = strings.ToLower(strings.TrimSpace(level))
	if !ValidLevel(level) {
		return apperr.Validation(fmt.Sprintf("unknown admin level %q (use %s)", level, strings.Join(Levels, ", ")))
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admins (user_id, admin_level, added_by, added_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			admin_level = excluded.admin_level,
			added_by = excluded.added_by,
			added_at = excluded.added_at
	`, userID, level, issuer, db.Millis(s.now()))
	if err != nil {
		return fmt.Errorf("add admin %d: %w", userID, err)
	}
	return nil
}

// RemoveAdmin deletes the user's admin row. Bootstrap admins keep their
// privileges regardless.
func (s *Service) RemoveAdmin(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM admins WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("remove admin %d: %w", userID, err)
	}
	return nil
}

// ListAdmins returns the admins table ordered by user ID.
func (s *Service) ListAdmins(ctx context.Context) ([]Admin, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, admin_level, added_by, added_at FROM admins ORDER BY user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	var admins []Admin
	for rows.Next() {
		var a Admin
		var at int64
		if err := rows.Scan(&a.UserID, &a.Level, &a.AddedBy, &at); err != nil {
			return nil, err
		}
		a.AddedAt = db.FromMillis(at)
		admins = append(admins, a)
	}
	return admins, rows.Err()
}
