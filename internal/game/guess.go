package game

import (
	"strconv"
	"strings"

	"github.com/notepid/twilight_arcade/internal/apperr"
)

// Guess game limits.
const (
	GuessMin         = 1
	GuessMax         = 20
	GuessMaxAttempts = 7
	guessFloor       = 5
)

// GuessState is an in-flight guess-the-number game.
type GuessState struct {
	Secret   int
	Attempts int
}

// Verdict is the result of one guess.
type Verdict int

const (
	TooLow Verdict = iota
	TooHigh
	Correct
	OutOfAttempts
)

// StartGuess draws the secret. It is fixed for the rest of the game.
func StartGuess(r Rand) GuessState {
	return GuessState{Secret: between(r, GuessMin, GuessMax)}
}

// ParseGuess validates free text as a guess. A rejected guess must not
// consume an attempt.
func ParseGuess(text string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, apperr.Validation("send a whole number")
	}
	return n, nil
}

// GuessReward is the payout for a correct guess on the given attempt:
// 30 minus 2 per attempt, never below 5.
func GuessReward(attempts int) int64 {
	return int64(max(30-2*attempts, guessFloor))
}

// Play applies one guess. The returned Outcome is non-nil only for a correct
// guess; running out of attempts pays nothing and records nothing.
func (g GuessState) Play(n int) (GuessState, Verdict, *Outcome) {
	g.Attempts++
	switch {
	case n == g.Secret:
		reward := GuessReward(g.Attempts)
		return g, Correct, &Outcome{
			Game:   Guess,
			Reward: reward,
			Reason: "Guess win",
			Won:    true,
			Score:  int(reward),
		}
	case g.Attempts >= GuessMaxAttempts:
		return g, OutOfAttempts, nil
	case n < g.Secret:
		return g, TooLow, nil
	default:
		return g, TooHigh, nil
	}
}

// Remaining returns how many guesses are left.
func (g GuessState) Remaining() int {
	return GuessMaxAttempts - g.Attempts
}
