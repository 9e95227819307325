package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/notepid/twilight_arcade/internal/db"
)

const bcryptCost = 12

// Input validation limits
const (
	MaxHandleLen   = 30
	MinHandleLen   = 2
	MaxPasswordLen = 128
	MinPasswordLen = 6
)

// ErrInvalidCredentials is returned when a handle/password pair does not match.
var ErrInvalidCredentials = errors.New("invalid handle or password")

// ErrHandleTaken is returned when registering an existing handle.
var ErrHandleTaken = errors.New("handle already exists")

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword verifies a plaintext password against a bcrypt hash.
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ValidateHandle checks handle requirements.
func ValidateHandle(handle string) error {
	if !utf8.ValidString(handle) {
		return fmt.Errorf("handle contains invalid UTF-8")
	}
	n := utf8.RuneCountInString(handle)
	if n > MaxHandleLen {
		return fmt.Errorf("handle too long (max %d characters)", MaxHandleLen)
	}
	if n < MinHandleLen {
		return fmt.Errorf("handle too short (minimum %d characters)", MinHandleLen)
	}
	for _, r := range handle {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '_' || r == '-') {
			return fmt.Errorf("handle contains invalid characters (use letters, numbers, _ or -)")
		}
	}
	return nil
}

// ValidatePassword checks password requirements.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) > MaxPasswordLen {
		return fmt.Errorf("password too long (max %d characters)", MaxPasswordLen)
	}
	if len(password) < MinPasswordLen {
		return fmt.Errorf("password too short (minimum %d characters)", MinPasswordLen)
	}
	return nil
}

// HandleExists checks if a handle is already taken.
func (r *Repo) HandleExists(ctx context.Context, handle string) bool {
	var count int
	r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM credentials WHERE handle = ? COLLATE NOCASE", handle).Scan(&count)
	return count > 0
}

// Register creates credentials and the matching account in one transaction.
// The new user ID is one past the highest ID in use.
func (r *Repo) Register(ctx context.Context, handle, password string) (*User, error) {
	handle = strings.TrimSpace(handle)
	if err := ValidateHandle(handle); err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	var id int64
	now := r.now()
	err = db.InTx(ctx, r.db, func(tx *sql.Tx) error {
		var taken int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM credentials WHERE handle = ?", handle).Scan(&taken); err != nil {
			return fmt.Errorf("check handle %s: %w", handle, err)
		}
		if taken > 0 {
			return ErrHandleTaken
		}
		if err := tx.QueryRowContext(ctx, `
			SELECT MAX(
				(SELECT COALESCE(MAX(user_id), 0) FROM users),
				(SELECT COALESCE(MAX(user_id), 0) FROM credentials)
			) + 1
		`).Scan(&id); err != nil {
			return fmt.Errorf("allocate user id: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO credentials (handle, user_id, password_hash, created_at) VALUES (?, ?, ?, ?)
		`, handle, id, hash, db.Millis(now)); err != nil {
			return fmt.Errorf("create credentials %s: %w", handle, err)
		}
		_, err := ensureUser(ctx, tx, id, handle, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	return r.Get(ctx, id)
}

// Authenticate checks handle/password and returns the user ID if valid.
func (r *Repo) Authenticate(ctx context.Context, handle, password string) (int64, error) {
	var id int64
	var hash string
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, password_hash FROM credentials WHERE handle = ? COLLATE NOCASE
	`, handle).Scan(&id, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrInvalidCredentials
	}
	if err != nil {
		return 0, fmt.Errorf("get credentials %s: %w", handle, err)
	}
	if !CheckPassword(password, hash) {
		return 0, ErrInvalidCredentials
	}
	return id, nil
}

// UpdatePassword changes the password for a user.
func (r *Repo) UpdatePassword(ctx context.Context, id int64, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `UPDATE credentials SET password_hash = ? WHERE user_id = ?`, hash, id)
	if err != nil {
		return fmt.Errorf("update password %d: %w", id, err)
	}
	return nil
}
