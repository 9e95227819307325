package db

import (
	"context"
	"fmt"
	"log"
	"time"
)

// ArcadeSettings holds the arcade identity and limits from the database.
// MaxNodes and Welcome are picked up by a running server; Name and Operator
// apply on the next start.
type ArcadeSettings struct {
	Name     string
	Operator string
	MaxNodes int
	Welcome  string
}

// GetArcadeSettings retrieves the arcade settings from the database.
// Returns an error if the settings cannot be loaded.
func (db *DB) GetArcadeSettings() (*ArcadeSettings, error) {
	var settings ArcadeSettings
	err := db.QueryRow("SELECT name, operator, max_nodes, welcome FROM arcade_settings WHERE id = 1").Scan(
		&settings.Name,
		&settings.Operator,
		&settings.MaxNodes,
		&settings.Welcome,
	)
	if err != nil {
		return nil, fmt.Errorf("load arcade settings: %w", err)
	}
	return &settings, nil
}

// UpdateArcadeSettings updates the arcade settings in the database.
func (db *DB) UpdateArcadeSettings(settings *ArcadeSettings) error {
	if settings.MaxNodes <= 0 {
		return fmt.Errorf("update arcade settings: max nodes must be positive")
	}
	_, err := db.Exec(
		"UPDATE arcade_settings SET name = ?, operator = ?, max_nodes = ?, welcome = ? WHERE id = 1",
		settings.Name,
		settings.Operator,
		settings.MaxNodes,
		settings.Welcome,
	)
	if err != nil {
		return fmt.Errorf("update arcade settings: %w", err)
	}
	return nil
}

// WatchSettings polls the settings row every interval and calls apply
// whenever it differs from last. It returns when ctx is done.
func (db *DB) WatchSettings(ctx context.Context, interval time.Duration, last ArcadeSettings, apply func(ArcadeSettings)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s, err := db.GetArcadeSettings()
		if err != nil {
			log.Printf("Reload arcade settings: %v", err)
			continue
		}
		if *s == last {
			continue
		}
		last = *s
		apply(last)
	}
}
