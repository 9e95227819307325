package session

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/notepid/twilight_arcade/internal/game"
	"github.com/notepid/twilight_arcade/internal/transport"
)

type button = transport.Button

var backButton = button{Label: "Back", Tag: "main_menu"}

func mainMenu(admin bool) [][]button {
	rows := [][]button{
		{{Label: "Games", Tag: "games_menu"}, {Label: "Services", Tag: "services_menu"}},
		{{Label: "Profile", Tag: "profile"}, {Label: "Leaderboard", Tag: "leaderboard"}},
		{{Label: "To-dos", Tag: "todos_menu"}, {Label: "Reminders", Tag: "reminders_menu"}},
		{{Label: "Help", Tag: "help"}, {Label: "Contact", Tag: "contact"}},
	}
	if admin {
		rows = append(rows, []button{{Label: "Admin panel", Tag: "admin_panel"}})
	}
	return rows
}

var gamesMenu = [][]button{
	{{Label: "Dice", Tag: "game_dice"}, {Label: "Coin", Tag: "game_coin"}},
	{{Label: "Guess the number", Tag: "game_guess"}, {Label: "XO", Tag: "game_xo"}},
	{{Label: "Luck", Tag: "game_luck"}, {Label: "Quiz", Tag: "game_quiz"}},
	{backButton},
}

var servicesMenu = [][]button{
	{{Label: "Translate", Tag: "service_translate"}, {Label: "Currency", Tag: "service_currency"}},
	{{Label: "Weather", Tag: "service_weather"}, {Label: "Quote", Tag: "service_quote"}},
	{{Label: "Stats", Tag: "service_stats"}, backButton},
}

var adminMenu = [][]button{
	{{Label: "Stats", Tag: "admin_stats"}, {Label: "Users", Tag: "admin_users"}},
	{{Label: "Admins", Tag: "admin_admins"}, {Label: "Banned", Tag: "admin_banned"}},
	{{Label: "Banned words", Tag: "admin_words"}, backButton},
}

func backTo(tag string) [][]button {
	return [][]button{{{Label: "Back", Tag: tag}}}
}

func playAgain(tag string) [][]button {
	return [][]button{{{Label: "Play again", Tag: tag}, {Label: "Games", Tag: "games_menu"}}}
}

// xoButtons labels empty cells with their number and taken cells with
// their mark, so typing a cell number selects that cell.
func xoButtons(b game.Board) [][]button {
	rows := make([][]button, 0, 4)
	for r := 0; r < 3; r++ {
		row := make([]button, 3)
		for c := 0; c < 3; c++ {
			i := r*3 + c
			label := strconv.Itoa(i + 1)
			if b[i] != game.Empty {
				label = string(rune(b[i]))
			}
			row[c] = button{Label: label, Tag: fmt.Sprintf("xo_%d", i)}
		}
		rows = append(rows, row)
	}
	return append(rows, []button{{Label: "End game", Tag: "xo_end"}})
}

func quizButtons(q game.Question) [][]button {
	opt := func(i int) button {
		return button{Label: q.Options[i], Tag: "quiz_" + q.Options[i]}
	}
	return [][]button{
		{opt(0), opt(1)},
		{opt(2), opt(3)},
		{{Label: "Skip", Tag: "cancel"}},
	}
}

// levelBadge names the tier for a balance.
func levelBadge(points int64) string {
	switch {
	case points < 500:
		return "Bronze"
	case points < 1000:
		return "Silver"
	case points < 5000:
		return "Gold"
	case points < 10000:
		return "Crown"
	default:
		return "Star"
	}
}

// compact shortens large numbers: 1234 -> 1.2K, 2500000 -> 2.5M.
func compact(n int64) string {
	switch {
	case n < 1000 && n > -1000:
		return strconv.FormatInt(n, 10)
	case n < 1000000 && n > -1000000:
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	default:
		return fmt.Sprintf("%.1fM", float64(n)/1000000)
	}
}

func (m *Manager) points(n int64) string {
	return m.printer.Sprintf("%d", n)
}

func timeAgo(t, now time.Time) string {
	d := now.Sub(t)
	days := int(d.Hours() / 24)
	switch {
	case days > 365:
		return plural(days/365, "year") + " ago"
	case days > 30:
		return plural(days/30, "month") + " ago"
	case days > 0:
		return plural(days, "day") + " ago"
	case d > time.Hour:
		return plural(int(d.Hours()), "hour") + " ago"
	case d > time.Minute:
		return plural(int(d.Minutes()), "minute") + " ago"
	default:
		return "just now"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func lines(parts ...string) string {
	return strings.Join(parts, "\n")
}

func rule() string {
	return strings.Repeat("-", 24)
}
