// Package game implements the arcade's game rules. Everything here is pure:
// functions take the current state and a Rand and return the next state and
// an Outcome. Persisting rewards is the caller's job.
package game

import "math/rand/v2"

// Game names, used for stats rows.
const (
	Dice  = "dice"
	Coin  = "coin"
	Luck  = "luck"
	Guess = "guess"
	XO    = "xo"
	Quiz  = "quiz"
)

// Rand is the source of randomness for the games.
type Rand interface {
	// IntN returns a uniform value in [0, n).
	IntN(n int) int
}

// DefaultRand draws from the math/rand/v2 global source.
var DefaultRand Rand = globalRand{}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// between returns a uniform value in [lo, hi].
func between(r Rand, lo, hi int) int {
	return lo + r.IntN(hi-lo+1)
}

// Outcome is what a finished play commits: a reward to credit with its
// reason, and the stats row to bump.
type Outcome struct {
	Game   string
	Reward int64
	Reason string
	Won    bool
	Score  int
}
