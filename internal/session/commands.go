package session

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/notepid/twilight_arcade/internal/apperr"
	"github.com/notepid/twilight_arcade/internal/reminder"
	"github.com/notepid/twilight_arcade/internal/todo"
	"github.com/notepid/twilight_arcade/internal/transport"
)

func (m *Manager) registerCommands() {
	m.commands = map[string]commandFunc{
		"start":     m.cmdStart,
		"menu":      m.cmdStart,
		"help":      m.cmdHelp,
		"id":        m.cmdID,
		"profile":   m.showProfile,
		"top":       m.showLeaderboard,
		"stats":     m.cmdStats,
		"todos":     m.showTodos,
		"add":       m.cmdAdd,
		"done":      m.cmdDone,
		"remind":    m.cmdRemind,
		"reminders": m.cmdReminders,
		"history":   m.cmdHistory,
		"cancel":    m.cmdCancel,
	}
}

func (m *Manager) handleCommand(ctx context.Context, ev transport.Event) (transport.Message, error) {
	if fn, ok := m.commands[ev.Name]; ok {
		return fn(ctx, ev)
	}
	if fn, ok := m.admin[ev.Name]; ok {
		if err := m.requireAdmin(ctx, ev.User.ID); err != nil {
			return transport.Message{}, err
		}
		return fn(ctx, ev)
	}
	return transport.Text("Unknown command /%s. Type /help for the list.", ev.Name), nil
}

func usage(format string) error {
	return apperr.Validation("Usage: " + format)
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	return id, err == nil && id > 0
}

func (m *Manager) cmdStart(ctx context.Context, ev transport.Event) (transport.Message, error) {
	u, err := m.accounts.Get(ctx, ev.User.ID)
	if err != nil {
		return transport.Message{}, err
	}
	admin, err := m.isAdmin(ctx, ev.User.ID)
	if err != nil {
		return transport.Message{}, err
	}
	return transport.Message{
		Text: lines(
			fmt.Sprintf("Welcome to %s, %s!", m.name, u.DisplayName),
			"",
			fmt.Sprintf("Balance: %s points", m.points(u.Points)),
			fmt.Sprintf("Level:   %d", u.Level),
			"",
			"Pick an option:",
		),
		Buttons: mainMenu(admin),
	}, nil
}

func (m *Manager) cmdHelp(ctx context.Context, ev transport.Event) (transport.Message, error) {
	text := lines(
		"Help",
		rule(),
		"Commands:",
		"  /start               main menu",
		"  /profile             your profile",
		"  /top                 leaderboard",
		"  /add <task>          add a to-do (+5)",
		"  /done <id>           complete a to-do (+10)",
		"  /todos               list open to-dos",
		"  /remind <text> <min> set a reminder (+3)",
		"  /reminders           list pending reminders",
		"  /history             recent point changes",
		"  /cancel              leave the current game or prompt",
		"",
		"Games:",
		"  Dice 5-15, Coin 3-10, Luck 10-30,",
		"  Guess up to 28, XO 25-50, Quiz 5-25 points",
		"",
		"Points:",
		"  100 points on your first visit",
		"  every 100 points is a new level",
	)
	admin, err := m.isAdmin(ctx, ev.User.ID)
	if err != nil {
		return transport.Message{}, err
	}
	if admin {
		text = lines(text, "",
			"Admin:",
			"  /addadmin <id> <level>  /removeadmin <id>",
			"  /ban <id> <reason>      /tempban <id> <days> <reason>",
			"  /unban <id>             /warn <id> <reason>",
			"  /addpoints <id> <points> <reason>",
			"  /addword <word>         /delword <word>",
			"  /bans",
		)
	}
	return transport.Message{Text: text, Buttons: backTo("main_menu")}, nil
}

func (m *Manager) cmdID(ctx context.Context, ev transport.Event) (transport.Message, error) {
	return transport.Text("Your ID: %d", ev.User.ID), nil
}

func (m *Manager) cmdStats(ctx context.Context, ev transport.Event) (transport.Message, error) {
	stats, err := m.ledger.GameStats(ctx, ev.User.ID)
	if err != nil {
		return transport.Message{}, err
	}
	if len(stats) == 0 {
		return transport.Message{Text: "You have not played any games yet.", Buttons: backTo("games_menu")}, nil
	}
	var sb strings.Builder
	sb.WriteString("Your games\n" + rule() + "\n")
	for _, s := range stats {
		fmt.Fprintf(&sb, "%-6s played %d, won %d, best %d\n", s.Game, s.Played, s.Won, s.HighScore)
	}
	return transport.Message{Text: sb.String(), Buttons: backTo("games_menu")}, nil
}

func (m *Manager) cmdAdd(ctx context.Context, ev transport.Event) (transport.Message, error) {
	if len(ev.Args) == 0 {
		return transport.Message{}, usage("/add <task>")
	}
	return m.addTodo(ctx, ev.User.ID, strings.Join(ev.Args, " "))
}

func (m *Manager) addTodo(ctx context.Context, userID int64, task string) (transport.Message, error) {
	id, err := m.todos.Add(ctx, userID, task)
	if err != nil {
		return transport.Message{}, err
	}
	if _, err := m.ledger.Credit(ctx, userID, todo.AddReward, "Added a task"); err != nil {
		return transport.Message{}, err
	}
	return transport.Text("Task %d added: %s\n+%d points", id, strings.TrimSpace(task), todo.AddReward), nil
}

func (m *Manager) cmdDone(ctx context.Context, ev transport.Event) (transport.Message, error) {
	if len(ev.Args) == 0 {
		return transport.Message{}, usage("/done <task id>")
	}
	id, ok := parseID(ev.Args[0])
	if !ok {
		return transport.Message{}, apperr.Validation("Task id must be a positive number.")
	}
	done, err := m.todos.Complete(ctx, id, ev.User.ID)
	if err != nil {
		return transport.Message{}, err
	}
	if !done {
		return transport.Message{}, apperr.New(apperr.CodeNotFound, fmt.Sprintf("Task %d not found.", id))
	}
	if _, err := m.ledger.Credit(ctx, ev.User.ID, todo.CompleteReward, "Completed a task"); err != nil {
		return transport.Message{}, err
	}
	return transport.Text("Task %d completed.\n+%d points", id, todo.CompleteReward), nil
}

func (m *Manager) cmdRemind(ctx context.Context, ev transport.Event) (transport.Message, error) {
	if len(ev.Args) < 2 {
		return transport.Message{}, usage("/remind <text> <minutes>")
	}
	minutes, err := strconv.Atoi(ev.Args[len(ev.Args)-1])
	if err != nil || minutes <= 0 {
		return transport.Message{}, apperr.Validation("Minutes must be a positive whole number.")
	}
	text := strings.Join(ev.Args[:len(ev.Args)-1], " ")

	if _, err := m.reminders.Schedule(ctx, ev.User.ID, ev.Channel, text, time.Duration(minutes)*time.Minute); err != nil {
		return transport.Message{}, err
	}
	if _, err := m.ledger.Credit(ctx, ev.User.ID, reminder.Reward, "Set a reminder"); err != nil {
		return transport.Message{}, err
	}
	return transport.Text("Reminder set for %s from now:\n%s\n+%d points", plural(minutes, "minute"), text, reminder.Reward), nil
}

func (m *Manager) cmdReminders(ctx context.Context, ev transport.Event) (transport.Message, error) {
	pending, err := m.reminders.Pending(ctx, ev.User.ID)
	if err != nil {
		return transport.Message{}, err
	}
	if len(pending) == 0 {
		return transport.Message{Text: "You have no pending reminders.", Buttons: backTo("main_menu")}, nil
	}
	var sb strings.Builder
	sb.WriteString("Pending reminders\n" + rule() + "\n")
	for _, r := range pending {
		fmt.Fprintf(&sb, "%s  %s\n", r.FireAt.Format("2006-01-02 15:04"), r.Text)
	}
	return transport.Message{Text: sb.String(), Buttons: backTo("main_menu")}, nil
}

func (m *Manager) cmdHistory(ctx context.Context, ev transport.Event) (transport.Message, error) {
	entries, err := m.ledger.History(ctx, ev.User.ID, 10)
	if err != nil {
		return transport.Message{}, err
	}
	if len(entries) == 0 {
		return transport.Message{Text: "No point changes yet.", Buttons: backTo("main_menu")}, nil
	}
	var sb strings.Builder
	sb.WriteString("Recent points\n" + rule() + "\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "%+5d  %-22s %s\n", e.Delta, e.Reason, m.points(e.BalanceAfter))
	}
	return transport.Message{Text: sb.String(), Buttons: backTo("main_menu")}, nil
}

func (m *Manager) cmdCancel(ctx context.Context, ev transport.Event) (transport.Message, error) {
	st := m.store.Load(ev.User.ID)
	if st == nil {
		return transport.Message{Text: "Nothing to cancel."}, nil
	}
	m.store.Clear(ev.User.ID)
	log.Printf("User %d cancelled %s flow %s", ev.User.ID, st.Flow(), st.FlowID())
	return m.cmdStart(ctx, ev)
}
