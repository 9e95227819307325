package game

// Side is a coin face.
type Side string

const (
	Heads Side = "heads"
	Tails Side = "tails"
)

// RollDice rolls one die. Reward is 5..15 points; a roll is never a win.
func RollDice(r Rand) (int, Outcome) {
	value := between(r, 1, 6)
	return value, Outcome{
		Game:   Dice,
		Reward: int64(between(r, 5, 15)),
		Reason: "Dice game",
		Score:  value,
	}
}

// FlipCoin flips a coin. Reward is 3..10 points.
func FlipCoin(r Rand) (Side, Outcome) {
	side := Heads
	if r.IntN(2) == 1 {
		side = Tails
	}
	return side, Outcome{
		Game:   Coin,
		Reward: int64(between(r, 3, 10)),
		Reason: "Coin toss",
	}
}

// Luck tiers.
const (
	LuckHigh   = "high"
	LuckGood   = "good"
	LuckNormal = "normal"
)

// LuckDraw is the result of a luck game.
type LuckDraw struct {
	Numbers [3]int
	Total   int
	Tier    string
}

// PlayLuck draws three numbers in 1..50 and pays by their sum: above 100
// pays 30, above 70 pays 20, anything else 10.
func PlayLuck(r Rand) (LuckDraw, Outcome) {
	var d LuckDraw
	for i := range d.Numbers {
		d.Numbers[i] = between(r, 1, 50)
		d.Total += d.Numbers[i]
	}
	reward := LuckReward(d.Total)
	switch reward {
	case 30:
		d.Tier = LuckHigh
	case 20:
		d.Tier = LuckGood
	default:
		d.Tier = LuckNormal
	}
	return d, Outcome{Game: Luck, Reward: reward, Reason: "Luck game", Score: d.Total}
}

// LuckReward maps a luck total to its reward.
func LuckReward(total int) int64 {
	switch {
	case total > 100:
		return 30
	case total > 70:
		return 20
	default:
		return 10
	}
}
