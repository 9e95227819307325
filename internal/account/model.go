package account

import "time"

// StartingPoints is the balance granted on first contact.
const StartingPoints = 100

// StartingLevel is the level of a new account. Levels are recomputed only
// when the balance changes.
const StartingLevel = 1

// User represents an arcade user account.
type User struct {
	ID           int64
	DisplayName  string
	Points       int64
	Level        int
	Warnings     int
	Banned       bool
	TotalGames   int
	TotalWins    int
	JoinedAt     time.Time
	LastActiveAt time.Time
}

// LevelFor returns the level for a balance: one level per 100 points,
// starting at 1. Division floors, so negative balances drop below level 1.
func LevelFor(points int64) int {
	q := points / 100
	if points%100 != 0 && points < 0 {
		q--
	}
	return int(q) + 1
}

// Stats holds arcade-wide counters for the stats screens.
type Stats struct {
	TotalUsers       int
	BannedUsers      int
	TotalPoints      int64
	TotalAdmins      int
	BannedWords      int
	PendingTodos     int
	PendingReminders int
}
