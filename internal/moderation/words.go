package moderation

import (
	"context"
	"fmt"
	"strings"

	"github.com/notepid/twilight_arcade/internal/apperr"
	"github.com/notepid/twilight_arcade/internal/db"
)

// AddBannedWord stores a lower-cased word. It returns false if the word was
// already present.
func (s *Service) AddBannedWord(ctx context.Context, word string, issuer int64) (bool, error) {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return false, apperr.Validation("word must not be empty")
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO banned_words (word, added_by, added_at) VALUES (?, ?, ?)
	`, word, issuer, db.Millis(s.now()))
	if err != nil {
		return false, fmt.Errorf("add banned word: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add banned word: %w", err)
	}
	return n == 1, nil
}

// RemoveBannedWord deletes a word. It returns false if it was not present.
func (s *Service) RemoveBannedWord(ctx context.Context, word string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM banned_words WHERE word = ?`,
		strings.ToLower(strings.TrimSpace(word)))
	if err != nil {
		return false, fmt.Errorf("remove banned word: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// BannedWords returns all banned words in alphabetical order.
func (s *Service) BannedWords(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT word FROM banned_words ORDER BY word`)
	if err != nil {
		return nil, fmt.Errorf("list banned words: %w", err)
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, err
		}
		words = append(words, w)
	}
	return words, rows.Err()
}

// ContainsBannedWord returns the first banned word found as a substring of
// text, case-insensitively.
func (s *Service) ContainsBannedWord(ctx context.Context, text string) (string, bool, error) {
	words, err := s.BannedWords(ctx)
	if err != nil {
		return "", false, err
	}
	lower := strings.ToLower(text)
	for _, w := range words {
		if strings.Contains(lower, w) {
			return w, true, nil
		}
	}
	return "", false, nil
}
