// Package moderation manages bans, warnings, admins and banned words.
//
// Bans expire lazily: CheckBanned removes a ban whose expiry has passed the
// first time it sees it. There is no background sweep.
package moderation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/notepid/twilight_arcade/internal/apperr"
	"github.com/notepid/twilight_arcade/internal/db"
)

// WarningThreshold is the warning count that triggers an automatic ban.
const WarningThreshold = 3

// AutoBanDays is the length of the ban issued at WarningThreshold.
const AutoBanDays = 7

// AutoBanReason is recorded on bans issued by warning escalation.
const AutoBanReason = "Reached 3 warnings"

// Ban is an active or expired ban row.
type Ban struct {
	UserID    int64
	BannedBy  int64
	Reason    string
	BannedAt  time.Time
	ExpiresAt *time.Time // nil means permanent
}

// Permanent reports whether the ban has no expiry.
func (b *Ban) Permanent() bool {
	return b.ExpiresAt == nil
}

// Warning is one issued warning.
type Warning struct {
	ID        int64
	UserID    int64
	WarnedBy  int64
	Reason    string
	CreatedAt time.Time
}

// WarnResult reports the outcome of Warn.
type WarnResult struct {
	Count     int
	Escalated bool
}

// Service implements moderation on top of the arcade database.
type Service struct {
	db        *sql.DB
	bootstrap map[int64]bool
	now       func() time.Time
}

// NewService creates a moderation service. bootstrap lists user IDs that are
// always treated as admins.
func NewService(sqlDB *sql.DB, bootstrap []int64) *Service {
	set := make(map[int64]bool, len(bootstrap))
	for _, id := range bootstrap {
		set[id] = true
	}
	return &Service{db: sqlDB, bootstrap: set, now: time.Now}
}

// SetClock overrides the time source. Used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// CheckBanned reports whether the user is currently banned. An expired ban
// is deleted and the user's ban flag cleared before returning false.
func (s *Service) CheckBanned(ctx context.Context, userID int64) (bool, error) {
	var expires sql.NullInt64
	err := s.db.QueryRowContext(ctx, `SELECT expires_at FROM bans WHERE user_id = ?`, userID).Scan(&expires)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get ban %d: %w", userID, err)
	}
	if !expires.Valid || s.now().UnixMilli() <= expires.Int64 {
		return true, nil
	}

	err = db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		// Only remove the row we judged stale; a fresh ban issued in the
		// meantime stays.
		if _, err := tx.ExecContext(ctx, `DELETE FROM bans WHERE user_id = ? AND expires_at = ?`,
			userID, expires.Int64); err != nil {
			return fmt.Errorf("expire ban %d: %w", userID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET is_banned = 0
			WHERE user_id = ? AND NOT EXISTS (SELECT 1 FROM bans WHERE user_id = ?)
		`, userID, userID); err != nil {
			return fmt.Errorf("clear ban flag %d: %w", userID, err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return false, nil
}

// Ban bans the user, replacing any existing ban. A nil days value makes the
// ban permanent.
func (s *Service) Ban(ctx context.Context, userID, issuer int64, reason string, days *int) error {
	if days != nil && *days <= 0 {
		return apperr.Validation("ban length must be at least one day")
	}
	return db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		return s.ban(ctx, tx, userID, issuer, reason, days)
	})
}

func (s *Service) ban(ctx context.Context, tx *sql.Tx, userID, issuer int64, reason string, days *int) error {
	now := s.now()
	var expires any
	if days != nil {
		expires = db.Millis(now.AddDate(0, 0, *days))
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO bans (user_id, banned_by, reason, banned_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			banned_by = excluded.banned_by,
			reason = excluded.reason,
			banned_at = excluded.banned_at,
			expires_at = excluded.expires_at
	`, userID, issuer, reason, db.Millis(now), expires); err != nil {
		return fmt.Errorf("ban user %d: %w", userID, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET is_banned = 1 WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("set ban flag %d: %w", userID, err)
	}
	return nil
}

// Unban removes any ban on the user. It is not an error if none exists.
func (s *Service) Unban(ctx context.Context, userID int64) error {
	return db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM bans WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("unban user %d: %w", userID, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users SET is_banned = 0 WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("clear ban flag %d: %w", userID, err)
		}
		return nil
	})
}

// GetBan returns the user's ban row, or nil if there is none. It does not
// expire anything.
func (s *Service) GetBan(ctx context.Context, userID int64) (*Ban, error) {
	b, err := scanBan(s.db.QueryRowContext(ctx, `
		SELECT user_id, banned_by, reason, banned_at, expires_at FROM bans WHERE user_id = ?
	`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ban %d: %w", userID, err)
	}
	return b, nil
}

// ListBans returns all ban rows, newest first.
func (s *Service) ListBans(ctx context.Context) ([]*Ban, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, banned_by, reason, banned_at, expires_at FROM bans ORDER BY banned_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list bans: %w", err)
	}
	defer rows.Close()

	var bans []*Ban
	for rows.Next() {
		b, err := scanBan(rows)
		if err != nil {
			return nil, err
		}
		bans = append(bans, b)
	}
	return bans, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBan(r rowScanner) (*Ban, error) {
	b := &Ban{}
	var at int64
	var expires sql.NullInt64
	if err := r.Scan(&b.UserID, &b.BannedBy, &b.Reason, &at, &expires); err != nil {
		return nil, err
	}
	b.BannedAt = db.FromMillis(at)
	b.ExpiresAt = db.NullMillis(expires)
	return b, nil
}

// Warn records a warning and increments the user's counter. When the new
// count reaches WarningThreshold exactly, an AutoBanDays ban authored by the
// same issuer is written in the same transaction.
func (s *Service) Warn(ctx context.Context, userID, issuer int64, reason string) (WarnResult, error) {
	var res WarnResult
	err := db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO warnings (user_id, warned_by, reason, created_at) VALUES (?, ?, ?, ?)
		`, userID, issuer, reason, db.Millis(s.now())); err != nil {
			return fmt.Errorf("insert warning %d: %w", userID, err)
		}
		err := tx.QueryRowContext(ctx, `
			UPDATE users SET warnings = warnings + 1 WHERE user_id = ? RETURNING warnings
		`, userID).Scan(&res.Count)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New(apperr.CodeNotFound, fmt.Sprintf("user %d not found", userID))
		}
		if err != nil {
			return fmt.Errorf("increment warnings %d: %w", userID, err)
		}
		if res.Count != WarningThreshold {
			return nil
		}
		days := AutoBanDays
		res.Escalated = true
		return s.ban(ctx, tx, userID, issuer, AutoBanReason, &days)
	})
	if err != nil {
		return WarnResult{}, err
	}
	return res, nil
}

// Warnings returns a user's warnings, oldest first.
func (s *Service) Warnings(ctx context.Context, userID int64) ([]Warning, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, warned_by, reason, created_at FROM warnings WHERE user_id = ? ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list warnings %d: %w", userID, err)
	}
	defer rows.Close()

	var warnings []Warning
	for rows.Next() {
		var w Warning
		var at int64
		if err := rows.Scan(&w.ID, &w.UserID, &w.WarnedBy, &w.Reason, &at); err != nil {
			return nil, err
		}
		w.CreatedAt = db.FromMillis(at)
		warnings = append(warnings, w)
	}
	return warnings, rows.Err()
}
