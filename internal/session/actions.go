package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/notepid/twilight_arcade/internal/game"
	"github.com/notepid/twilight_arcade/internal/transport"
)

const busyHint = "Finish or /cancel the current game first."

// viewActions only read and may run while a flow waits.
var viewActions = map[string]bool{
	"profile":        true,
	"leaderboard":    true,
	"help":           true,
	"contact":        true,
	"todos_menu":     true,
	"reminders_menu": true,
}

// entryActions start a flow and may replace one in progress.
var entryActions = map[string]bool{
	"game_guess":        true,
	"game_xo":           true,
	"game_quiz":         true,
	"todo_add":          true,
	"service_weather":   true,
	"service_currency":  true,
	"service_translate": true,
}

func (m *Manager) registerActions() {
	m.actions = map[string]actionFunc{
		"main_menu":      m.cmdStart,
		"games_menu":     m.showGames,
		"services_menu":  m.showServices,
		"profile":        m.showProfile,
		"leaderboard":    m.showLeaderboard,
		"todos_menu":     m.showTodos,
		"reminders_menu": m.cmdReminders,
		"help":           m.cmdHelp,
		"contact":        m.showContact,

		"game_dice":  m.playDice,
		"game_coin":  m.playCoin,
		"game_luck":  m.playLuck,
		"game_guess": m.startGuess,
		"game_xo":    m.startXO,
		"game_quiz":  m.startQuiz,

		"todo_add":          m.promptTodo,
		"service_weather":   m.promptFreeform(Weather),
		"service_currency":  m.promptFreeform(Currency),
		"service_translate": m.promptFreeform(Translate),
		"service_quote":     m.serviceQuote,
		"service_stats":     m.serviceStats,

		"cancel": m.cmdCancel,
	}
}

func (m *Manager) handleAction(ctx context.Context, ev transport.Event) (transport.Message, error) {
	tag := ev.Tag
	current := m.store.Load(ev.User.ID)

	switch {
	case strings.HasPrefix(tag, "xo_"):
		if st, ok := current.(XOFlow); ok {
			return m.continueXO(ctx, ev, st, strings.TrimPrefix(tag, "xo_"))
		}
		return transport.Message{}, nil
	case strings.HasPrefix(tag, "quiz_"):
		if st, ok := current.(QuizFlow); ok {
			return m.answerQuiz(ctx, ev, st, strings.TrimPrefix(tag, "quiz_"))
		}
		return transport.Message{}, nil
	}

	if fn, ok := m.adminActions[tag]; ok {
		if err := m.requireAdmin(ctx, ev.User.ID); err != nil {
			return transport.Message{}, err
		}
		return fn(ctx, ev)
	}

	fn, ok := m.actions[tag]
	if !ok {
		return transport.Message{}, nil
	}
	if current != nil && !entryActions[tag] && !viewActions[tag] && tag != "cancel" {
		return transport.Message{Text: busyHint}, nil
	}
	return fn(ctx, ev)
}

func (m *Manager) showGames(ctx context.Context, ev transport.Event) (transport.Message, error) {
	return transport.Message{Text: "Games\n" + rule() + "\nPick a game:", Buttons: gamesMenu}, nil
}

func (m *Manager) showServices(ctx context.Context, ev transport.Event) (transport.Message, error) {
	return transport.Message{Text: "Services\n" + rule() + "\nPick a service:", Buttons: servicesMenu}, nil
}

func (m *Manager) showContact(ctx context.Context, ev transport.Event) (transport.Message, error) {
	return transport.Message{
		Text: lines(
			"Contact",
			rule(),
			"To report a problem or ask a question,",
			"message any admin and include your /id.",
		),
		Buttons: backTo("main_menu"),
	}, nil
}

func (m *Manager) showProfile(ctx context.Context, ev transport.Event) (transport.Message, error) {
	u, err := m.accounts.Get(ctx, ev.User.ID)
	if err != nil {
		return transport.Message{}, err
	}
	open, err := m.todos.CountOpen(ctx, ev.User.ID)
	if err != nil {
		return transport.Message{}, err
	}
	return transport.Message{
		Text: lines(
			"Profile",
			rule(),
			fmt.Sprintf("Name:      %s", u.DisplayName),
			fmt.Sprintf("ID:        %d", u.ID),
			fmt.Sprintf("Points:    %s (%s)", m.points(u.Points), compact(u.Points)),
			fmt.Sprintf("Level:     %d %s", u.Level, levelBadge(u.Points)),
			fmt.Sprintf("Warnings:  %d", u.Warnings),
			fmt.Sprintf("Games:     %d played, %d won", u.TotalGames, u.TotalWins),
			fmt.Sprintf("Open todos: %d", open),
			fmt.Sprintf("Joined:    %s", timeAgo(u.JoinedAt, m.now())),
		),
		Buttons: backTo("main_menu"),
	}, nil
}

func (m *Manager) showLeaderboard(ctx context.Context, ev transport.Event) (transport.Message, error) {
	top, err := m.accounts.Top(ctx, 10)
	if err != nil {
		return transport.Message{}, err
	}
	var sb strings.Builder
	sb.WriteString("Leaderboard\n" + rule() + "\n")
	if len(top) == 0 {
		sb.WriteString("Nobody yet.\n")
	}
	for i, u := range top {
		fmt.Fprintf(&sb, "%2d. %-16s %8s  L%d\n", i+1, u.DisplayName, m.points(u.Points), u.Level)
	}
	return transport.Message{Text: sb.String(), Buttons: backTo("main_menu")}, nil
}

func (m *Manager) showTodos(ctx context.Context, ev transport.Event) (transport.Message, error) {
	items, err := m.todos.ListOpen(ctx, ev.User.ID)
	if err != nil {
		return transport.Message{}, err
	}
	var sb strings.Builder
	sb.WriteString("To-dos\n" + rule() + "\n")
	if len(items) == 0 {
		sb.WriteString("No open tasks.\n")
	}
	for _, it := range items {
		fmt.Fprintf(&sb, "%4d  %s\n", it.ID, it.Task)
	}
	sb.WriteString("\nComplete one with /done <id>.")
	return transport.Message{
		Text:    sb.String(),
		Buttons: [][]button{{{Label: "Add task", Tag: "todo_add"}, backButton}},
	}, nil
}

func (m *Manager) playDice(ctx context.Context, ev transport.Event) (transport.Message, error) {
	value, out := game.RollDice(m.rand)
	balance, err := m.commit(ctx, ev.User.ID, out)
	if err != nil {
		return transport.Message{}, err
	}
	return transport.Message{
		Text:    fmt.Sprintf("You rolled %d.\n+%d points (balance %s)", value, out.Reward, m.points(balance)),
		Buttons: playAgain("game_dice"),
	}, nil
}

func (m *Manager) playCoin(ctx context.Context, ev transport.Event) (transport.Message, error) {
	side, out := game.FlipCoin(m.rand)
	balance, err := m.commit(ctx, ev.User.ID, out)
	if err != nil {
		return transport.Message{}, err
	}
	return transport.Message{
		Text:    fmt.Sprintf("The coin shows %s.\n+%d points (balance %s)", side, out.Reward, m.points(balance)),
		Buttons: playAgain("game_coin"),
	}, nil
}

var luckTitles = map[string]string{
	game.LuckHigh:   "High luck!",
	game.LuckGood:   "Good luck.",
	game.LuckNormal: "Ordinary luck.",
}

func (m *Manager) playLuck(ctx context.Context, ev transport.Event) (transport.Message, error) {
	draw, out := game.PlayLuck(m.rand)
	balance, err := m.commit(ctx, ev.User.ID, out)
	if err != nil {
		return transport.Message{}, err
	}
	n := draw.Numbers
	return transport.Message{
		Text: lines(
			fmt.Sprintf("Numbers: %d, %d, %d", n[0], n[1], n[2]),
			fmt.Sprintf("Total:   %d", draw.Total),
			luckTitles[draw.Tier],
			fmt.Sprintf("+%d points (balance %s)", out.Reward, m.points(balance)),
		),
		Buttons: playAgain("game_luck"),
	}, nil
}

func (m *Manager) startGuess(ctx context.Context, ev transport.Event) (transport.Message, error) {
	m.store.Save(ev.User.ID, GuessFlow{flowBase: newFlowBase(), Game: game.StartGuess(m.rand)})
	return transport.Text("Guess the number\n%s\nI picked a number between %d and %d.\nYou have %d tries. Type your guess.",
		rule(), game.GuessMin, game.GuessMax, game.GuessMaxAttempts), nil
}

func (m *Manager) startXO(ctx context.Context, ev transport.Event) (transport.Message, error) {
	st := XOFlow{flowBase: newFlowBase(), Game: game.StartXO()}
	m.store.Save(ev.User.ID, st)
	return transport.Message{
		Text:    "XO\n" + rule() + "\nYou are X. Pick a cell.\n\n" + st.Game.Board.String(),
		Buttons: xoButtons(st.Game.Board),
	}, nil
}

func (m *Manager) continueXO(ctx context.Context, ev transport.Event, st XOFlow, arg string) (transport.Message, error) {
	if arg == "end" {
		m.store.Clear(ev.User.ID)
		return transport.Message{Text: "Game ended.", Buttons: gamesMenu}, nil
	}
	cell, err := strconv.Atoi(arg)
	if err != nil {
		return transport.Message{}, nil
	}
	next, turn, out, err := st.Game.Play(cell, m.rand)
	if errors.Is(err, game.ErrBadCell) {
		return transport.Message{}, nil
	}
	if err != nil {
		return transport.Message{
			Text:    "That cell is taken. Pick another.\n\n" + st.Game.Board.String(),
			Buttons: xoButtons(st.Game.Board),
		}, nil
	}
	board := next.Board.String()
	if out == nil {
		st.Game = next
		m.store.Save(ev.User.ID, st)
		return transport.Message{
			Text:    fmt.Sprintf("I took cell %d. Your move.\n\n%s", turn.BotCell+1, board),
			Buttons: xoButtons(next.Board),
		}, nil
	}

	balance, err := m.commit(ctx, ev.User.ID, *out)
	if err != nil {
		return transport.Message{}, err
	}
	m.store.Clear(ev.User.ID)
	var verdict string
	switch turn.Status {
	case game.HumanWon:
		verdict = "You win!"
	case game.BotWon:
		verdict = "I win this time."
	default:
		verdict = "It's a draw."
	}
	return transport.Message{
		Text:    fmt.Sprintf("%s\n\n%s+%d points (balance %s)", verdict, board, out.Reward, m.points(balance)),
		Buttons: playAgain("game_xo"),
	}, nil
}

func (m *Manager) startQuiz(ctx context.Context, ev transport.Event) (transport.Message, error) {
	q := game.DrawQuestion(m.rand)
	m.store.Save(ev.User.ID, QuizFlow{flowBase: newFlowBase(), Question: q})
	return transport.Message{
		Text:    "Quiz\n" + rule() + "\n" + q.Prompt,
		Buttons: quizButtons(q),
	}, nil
}

func (m *Manager) answerQuiz(ctx context.Context, ev transport.Event, st QuizFlow, choice string) (transport.Message, error) {
	correct, out := st.Question.Check(choice)
	balance, err := m.commit(ctx, ev.User.ID, out)
	if err != nil {
		return transport.Message{}, err
	}
	m.store.Clear(ev.User.ID)
	verdict := "Correct!"
	if !correct {
		verdict = "Wrong. The answer was " + st.Question.Answer + "."
	}
	return transport.Message{
		Text:    fmt.Sprintf("%s\n+%d points (balance %s)", verdict, out.Reward, m.points(balance)),
		Buttons: playAgain("game_quiz"),
	}, nil
}

func (m *Manager) promptTodo(ctx context.Context, ev transport.Event) (transport.Message, error) {
	m.store.Save(ev.User.ID, AwaitingTodo{flowBase: newFlowBase()})
	return transport.Message{Text: "Add a task\n" + rule() + "\nType the new task:", Buttons: backTo("cancel")}, nil
}

var freeformPrompts = map[FreeformKind]string{
	Weather:   "Weather\n%s\nType a city name:",
	Currency:  "Currency\n%s\nType: <amount> <from> <to>\nExample: 100 USD EUR",
	Translate: "Translate\n%s\nType the text to translate:",
}

func (m *Manager) promptFreeform(kind FreeformKind) actionFunc {
	return func(ctx context.Context, ev transport.Event) (transport.Message, error) {
		m.store.Save(ev.User.ID, AwaitingFreeform{flowBase: newFlowBase(), Kind: kind})
		return transport.Message{Text: fmt.Sprintf(freeformPrompts[kind], rule()), Buttons: backTo("cancel")}, nil
	}
}
