package session

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/notepid/twilight_arcade/internal/apperr"
	"github.com/notepid/twilight_arcade/internal/game"
	"github.com/notepid/twilight_arcade/internal/transport"
)

// handleText routes free text to the active flow. XO and quiz flows take
// buttons only, so text during them is ignored.
func (m *Manager) handleText(ctx context.Context, ev transport.Event) (transport.Message, error) {
	switch st := m.store.Load(ev.User.ID).(type) {
	case nil:
		return m.idleText(ctx, ev)
	case GuessFlow:
		return m.continueGuess(ctx, ev, st)
	case AwaitingTodo:
		return m.finishTodo(ctx, ev)
	case AwaitingFreeform:
		return m.finishFreeform(ctx, ev, st)
	default:
		return transport.Message{}, nil
	}
}

func (m *Manager) continueGuess(ctx context.Context, ev transport.Event, st GuessFlow) (transport.Message, error) {
	n, err := game.ParseGuess(ev.Text)
	if err != nil {
		return transport.Message{}, apperr.Validation(fmt.Sprintf("Send a whole number between %d and %d.", game.GuessMin, game.GuessMax))
	}
	next, verdict, out := st.Game.Play(n)
	switch verdict {
	case game.Correct:
		balance, err := m.commit(ctx, ev.User.ID, *out)
		if err != nil {
			return transport.Message{}, err
		}
		m.store.Clear(ev.User.ID)
		return transport.Message{
			Text: fmt.Sprintf("Correct! The number was %d.\nYou got it in %s.\n+%d points (balance %s)",
				next.Secret, plural(next.Attempts, "attempt"), out.Reward, m.points(balance)),
			Buttons: playAgain("game_guess"),
		}, nil
	case game.OutOfAttempts:
		m.store.Clear(ev.User.ID)
		return transport.Message{
			Text:    fmt.Sprintf("Out of tries. The number was %d.", next.Secret),
			Buttons: playAgain("game_guess"),
		}, nil
	}

	st.Game = next
	m.store.Save(ev.User.ID, st)
	hint := "higher"
	if verdict == game.TooHigh {
		hint = "lower"
	}
	return transport.Text("Go %s. %s left.", hint, plural(next.Remaining(), "attempt")), nil
}

func (m *Manager) finishTodo(ctx context.Context, ev transport.Event) (transport.Message, error) {
	msg, err := m.addTodo(ctx, ev.User.ID, ev.Text)
	if err != nil {
		return transport.Message{}, err
	}
	m.store.Clear(ev.User.ID)
	msg.Buttons = [][]button{{{Label: "To-dos", Tag: "todos_menu"}, backButton}}
	return msg, nil
}

func (m *Manager) finishFreeform(ctx context.Context, ev transport.Event, st AwaitingFreeform) (transport.Message, error) {
	// Every answer ends the prompt, malformed input included.
	m.store.Clear(ev.User.ID)
	text := strings.TrimSpace(ev.Text)
	back := backTo("services_menu")

	switch st.Kind {
	case Weather:
		return transport.Message{Text: fmt.Sprintf("Weather for %s:\n25°C, sunny", text), Buttons: back}, nil
	case Currency:
		line, ok := convertCurrency(text)
		if !ok {
			return transport.Message{Text: line, Buttons: back}, nil
		}
		if _, err := m.ledger.Credit(ctx, ev.User.ID, serviceReward, "Currency conversion"); err != nil {
			return transport.Message{}, err
		}
		return transport.Message{Text: fmt.Sprintf("%s\n+%d points", line, serviceReward), Buttons: back}, nil
	case Translate:
		if _, err := m.ledger.Credit(ctx, ev.User.ID, serviceReward, "Translation"); err != nil {
			return transport.Message{}, err
		}
		return transport.Message{
			Text:    fmt.Sprintf("Translation:\n%s\n\n[demo translation]\n+%d points", text, serviceReward),
			Buttons: back,
		}, nil
	}
	return transport.Message{}, nil
}

func (m *Manager) idleText(ctx context.Context, ev transport.Event) (transport.Message, error) {
	if _, found, err := m.mod.ContainsBannedWord(ctx, ev.Text); err != nil {
		return transport.Message{}, err
	} else if found {
		return transport.Message{Text: "Please keep it clean. That word is not allowed here."}, nil
	}
	if m.replier == nil {
		return transport.Message{}, nil
	}
	reply, err := m.replier.Reply(ev.User.ID, ev.User.Name, ev.Text)
	if err != nil {
		log.Printf("Reply script failed for user %d: %v", ev.User.ID, err)
		return transport.Message{}, nil
	}
	return transport.Message{Text: reply}, nil
}

// rates are units per US dollar.
var rates = map[string]float64{
	"USD": 1,
	"EUR": 0.92,
	"GBP": 0.79,
	"EGP": 30.9,
	"AED": 3.67,
	"SAR": 3.75,
}

// convertCurrency parses "<amount> <from> <to>". On failure it returns the
// message to show and false.
func convertCurrency(text string) (string, bool) {
	parts := strings.Fields(text)
	if len(parts) != 3 {
		return "Format: <amount> <from> <to>", false
	}
	amount, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return "Amount must be a number.", false
	}
	from, to := strings.ToUpper(parts[1]), strings.ToUpper(parts[2])
	fr, ok1 := rates[from]
	tr, ok2 := rates[to]
	if !ok1 || !ok2 {
		return "Unsupported currency. Try USD, EUR, GBP, EGP, AED or SAR.", false
	}
	return fmt.Sprintf("%s %s = %.2f %s", strconv.FormatFloat(amount, 'f', -1, 64), from, amount/fr*tr, to), true
}
