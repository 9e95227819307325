package session

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/notepid/twilight_arcade/internal/account"
	"github.com/notepid/twilight_arcade/internal/db"
	"github.com/notepid/twilight_arcade/internal/ledger"
	"github.com/notepid/twilight_arcade/internal/moderation"
	"github.com/notepid/twilight_arcade/internal/reminder"
	"github.com/notepid/twilight_arcade/internal/todo"
	"github.com/notepid/twilight_arcade/internal/transport"
)

const adminID = 1

type fakeRenderer struct {
	mu  sync.Mutex
	got map[int64][]transport.Message
}

func (f *fakeRenderer) Deliver(_ context.Context, channel int64, msg transport.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.got == nil {
		f.got = make(map[int64][]transport.Message)
	}
	f.got[channel] = append(f.got[channel], msg)
	return nil
}

func (f *fakeRenderer) count(channel int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got[channel])
}

func (f *fakeRenderer) last(t *testing.T, channel int64) transport.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	msgs := f.got[channel]
	if len(msgs) == 0 {
		t.Fatalf("no messages on channel %d", channel)
	}
	return msgs[len(msgs)-1]
}

// seqRand returns queued values, then zeros.
type seqRand struct {
	vals []int
}

func (r *seqRand) IntN(n int) int {
	if len(r.vals) == 0 {
		return 0
	}
	v := r.vals[0]
	r.vals = r.vals[1:]
	return v % n
}

type stubReplier struct{}

func (stubReplier) Reply(_ int64, name, text string) (string, error) {
	if strings.Contains(strings.ToLower(text), "hello") {
		return "Hello " + name + "!", nil
	}
	return "", nil
}

type fixture struct {
	m        *Manager
	out      *fakeRenderer
	rand     *seqRand
	db       *sql.DB
	accounts *account.Repo
	ledger   *ledger.Ledger
	mod      *moderation.Service
	sched    *reminder.Scheduler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "arcade.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	f := &fixture{
		out:      &fakeRenderer{},
		rand:     &seqRand{},
		db:       database.DB,
		accounts: account.NewRepo(database.DB),
		ledger:   ledger.New(database.DB),
		mod:      moderation.NewService(database.DB, []int64{adminID}),
	}
	f.sched = reminder.NewScheduler(reminder.NewRepo(database.DB), f.out)
	t.Cleanup(f.sched.Stop)
	f.m = NewManager(Deps{
		Accounts:   f.accounts,
		Ledger:     f.ledger,
		Moderation: f.mod,
		Todos:      todo.NewRepo(database.DB),
		Reminders:  f.sched,
		Renderer:   f.out,
		Replier:    stubReplier{},
		Rand:       f.rand,
	})
	return f
}

func who(id int64) transport.User {
	return transport.User{ID: id, Name: "player" + string(rune('0'+id))}
}

func (f *fixture) handle(t *testing.T, ev transport.Event) {
	t.Helper()
	if err := f.m.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle(%s): %v", ev.Kind, err)
	}
}

func (f *fixture) command(t *testing.T, id int64, name string, args ...string) transport.Message {
	t.Helper()
	f.handle(t, transport.NewCommand(who(id), id, name, args...))
	return f.out.last(t, id)
}

func (f *fixture) action(t *testing.T, id int64, tag string) transport.Message {
	t.Helper()
	f.handle(t, transport.NewAction(who(id), id, tag))
	return f.out.last(t, id)
}

func (f *fixture) text(t *testing.T, id int64, text string) transport.Message {
	t.Helper()
	f.handle(t, transport.NewFreeText(who(id), id, text))
	return f.out.last(t, id)
}

func (f *fixture) balance(t *testing.T, id int64) int64 {
	t.Helper()
	u, err := f.accounts.Get(context.Background(), id)
	if err != nil || u == nil {
		t.Fatalf("Get %d: %v %v", id, u, err)
	}
	return u.Points
}

func contains(t *testing.T, msg transport.Message, want string) {
	t.Helper()
	if !strings.Contains(msg.Text, want) {
		t.Fatalf("expected reply containing %q, got %q", want, msg.Text)
	}
}

func TestFirstContactDefaults(t *testing.T) {
	f := newFixture(t)
	msg := f.command(t, 7, "start")
	contains(t, msg, "Welcome to Twilight Arcade")

	u, err := f.accounts.Get(context.Background(), 7)
	if err != nil || u == nil {
		t.Fatalf("Get: %v %v", u, err)
	}
	if u.Points != 100 || u.Level != 1 || u.Warnings != 0 || u.Banned {
		t.Fatalf("expected 100/1/0/false, got %d/%d/%d/%v", u.Points, u.Level, u.Warnings, u.Banned)
	}
	if len(msg.Buttons) != 4 {
		t.Fatalf("expected 4 menu rows for a regular user, got %d", len(msg.Buttons))
	}
	if rows := f.command(t, adminID, "start").Buttons; len(rows) != 5 {
		t.Fatalf("expected admin panel row for admin, got %d rows", len(rows))
	}
}

func TestGuessFlow(t *testing.T) {
	f := newFixture(t)
	f.rand.vals = []int{9} // secret 10
	f.action(t, 7, "game_guess")

	msg := f.text(t, 7, "ten")
	contains(t, msg, "whole number")
	st, ok := f.m.Store().Load(7).(GuessFlow)
	if !ok || st.Game.Attempts != 0 {
		t.Fatalf("expected guess flow with no attempts used, got %#v", f.m.Store().Load(7))
	}

	contains(t, f.text(t, 7, "5"), "Go higher")
	contains(t, f.text(t, 7, "15"), "Go lower")
	contains(t, f.text(t, 7, "10"), "+24 points")

	if f.m.Store().Load(7) != nil {
		t.Fatalf("expected idle after a correct guess")
	}
	if got := f.balance(t, 7); got != 124 {
		t.Fatalf("expected balance 124, got %d", got)
	}
	stats, err := f.ledger.GameStats(context.Background(), 7)
	if err != nil || len(stats) != 1 || stats[0].Won != 1 {
		t.Fatalf("expected one guess win recorded, got %+v %v", stats, err)
	}
}

func TestGuessOutOfAttempts(t *testing.T) {
	f := newFixture(t)
	f.rand.vals = []int{19} // secret 20
	f.action(t, 7, "game_guess")
	for i := 0; i < 6; i++ {
		f.text(t, 7, "1")
	}
	contains(t, f.text(t, 7, "1"), "The number was 20")
	if f.m.Store().Load(7) != nil {
		t.Fatalf("expected idle after the last attempt")
	}
	if got := f.balance(t, 7); got != 100 {
		t.Fatalf("expected no reward, got balance %d", got)
	}
}

func TestXOFlow(t *testing.T) {
	f := newFixture(t)
	f.action(t, 7, "game_xo")

	// Centre is taken, so the bot picks the first free corner.
	contains(t, f.action(t, 7, "xo_4"), "I took cell 1")
	st := f.m.Store().Load(7).(XOFlow)
	if st.Game.Moves != 1 {
		t.Fatalf("expected 1 move, got %d", st.Game.Moves)
	}

	contains(t, f.action(t, 7, "xo_0"), "taken")
	if got := f.m.Store().Load(7).(XOFlow).Game.Moves; got != 1 {
		t.Fatalf("expected taken cell to leave moves at 1, got %d", got)
	}

	f.action(t, 7, "xo_end")
	if f.m.Store().Load(7) != nil {
		t.Fatalf("expected idle after ending the game")
	}
	if got := f.balance(t, 7); got != 100 {
		t.Fatalf("expected no reward for ending, got %d", got)
	}
}

func TestContinuationWithoutFlowIsIgnored(t *testing.T) {
	f := newFixture(t)
	f.command(t, 7, "start")
	before := f.out.count(7)
	f.handle(t, transport.NewAction(who(7), 7, "xo_3"))
	f.handle(t, transport.NewAction(who(7), 7, "quiz_Cairo"))
	if got := f.out.count(7); got != before {
		t.Fatalf("expected no replies, got %d new", got-before)
	}
}

func TestEntryActionReplacesFlow(t *testing.T) {
	f := newFixture(t)
	f.action(t, 7, "game_guess")
	first := f.m.Store().Load(7).FlowID()
	f.action(t, 7, "game_xo")
	st := f.m.Store().Load(7)
	if _, ok := st.(XOFlow); !ok {
		t.Fatalf("expected xo flow, got %T", st)
	}
	if st.FlowID() == first {
		t.Fatalf("expected a new flow id")
	}
}

func TestOtherActionsDuringFlow(t *testing.T) {
	f := newFixture(t)
	f.action(t, 7, "game_guess")
	contains(t, f.action(t, 7, "game_dice"), "Finish or /cancel")
	if got := f.balance(t, 7); got != 100 {
		t.Fatalf("expected dice not to run, balance %d", got)
	}
	contains(t, f.action(t, 7, "profile"), "Profile")
	if _, ok := f.m.Store().Load(7).(GuessFlow); !ok {
		t.Fatalf("expected guess flow to survive")
	}
	f.command(t, 7, "cancel")
	if f.m.Store().Load(7) != nil {
		t.Fatalf("expected /cancel to clear the flow")
	}
}

func TestQuizFlow(t *testing.T) {
	f := newFixture(t)
	f.action(t, 7, "game_quiz") // first question, answer Cairo
	contains(t, f.action(t, 7, "quiz_Cairo"), "Correct")
	if got := f.balance(t, 7); got != 125 {
		t.Fatalf("expected 125, got %d", got)
	}

	f.action(t, 7, "game_quiz")
	contains(t, f.action(t, 7, "quiz_Giza"), "The answer was Cairo")
	if got := f.balance(t, 7); got != 130 {
		t.Fatalf("expected 130, got %d", got)
	}
}

func TestGameCommitIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.action(t, 7, "game_quiz") // first question, answer Cairo

	if _, err := f.db.Exec(`CREATE TRIGGER stats_full BEFORE INSERT ON game_stats
		BEGIN SELECT RAISE(ABORT, 'disk full'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := f.m.Handle(ctx, transport.NewAction(who(7), 7, "quiz_Cairo")); err == nil {
			t.Fatalf("attempt %d: expected storage error", i+1)
		}
		contains(t, f.out.last(t, 7), "Something went wrong")
	}
	if got := f.balance(t, 7); got != 100 {
		t.Fatalf("expected no credit from failed commits, balance %d", got)
	}
	hist, err := f.ledger.History(ctx, 7, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 0 {
		t.Fatalf("expected no history rows, got %+v", hist)
	}
	if _, ok := f.m.Store().Load(7).(QuizFlow); !ok {
		t.Fatalf("expected quiz flow kept for retry")
	}

	if _, err := f.db.Exec(`DROP TRIGGER stats_full`); err != nil {
		t.Fatalf("drop trigger: %v", err)
	}
	contains(t, f.action(t, 7, "quiz_Cairo"), "Correct")
	if got := f.balance(t, 7); got != 125 {
		t.Fatalf("expected one credit after retry, balance %d", got)
	}
}

func TestBannedUserActivityUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	joined := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	f.accounts.SetClock(func() time.Time { return joined })
	f.command(t, 7, "start")

	if err := f.mod.Ban(ctx, 7, adminID, "spam", nil); err != nil {
		t.Fatalf("Ban: %v", err)
	}
	f.accounts.SetClock(func() time.Time { return joined.Add(time.Hour) })
	contains(t, f.command(t, 7, "start"), "banned")

	u, err := f.accounts.Get(ctx, 7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !u.LastActiveAt.Equal(joined) {
		t.Fatalf("expected last active %v, got %v", joined, u.LastActiveAt)
	}
}

func TestBanGatesFlowContinuation(t *testing.T) {
	f := newFixture(t)
	f.action(t, 7, "game_xo")
	if err := f.mod.Ban(context.Background(), 7, adminID, "spam", nil); err != nil {
		t.Fatalf("Ban: %v", err)
	}
	contains(t, f.action(t, 7, "xo_4"), "banned")
	if got := f.m.Store().Load(7).(XOFlow).Game.Moves; got != 0 {
		t.Fatalf("expected board untouched, got %d moves", got)
	}
}

func TestWarnEscalation(t *testing.T) {
	f := newFixture(t)
	f.command(t, 2, "start")

	contains(t, f.command(t, adminID, "warn", "2", "spam"), "Warning 1 of 3")
	contains(t, f.command(t, adminID, "warn", "2", "spam"), "Warning 2 of 3")
	contains(t, f.command(t, adminID, "warn", "2", "spam"), "banned for 7 days")

	notice := f.out.last(t, 2)
	if !notice.Notice || !strings.Contains(notice.Text, "banned") {
		t.Fatalf("expected ban notice to the target, got %+v", notice)
	}
	contains(t, f.command(t, 2, "start"), "until")
}

func TestAdminPermission(t *testing.T) {
	f := newFixture(t)
	f.command(t, 3, "start")
	contains(t, f.command(t, 2, "ban", "3", "spam"), "You do not have permission")
	contains(t, f.action(t, 2, "admin_panel"), "You do not have permission")
	banned, err := f.mod.CheckBanned(context.Background(), 3)
	if err != nil || banned {
		t.Fatalf("expected user 3 unbanned, got %v %v", banned, err)
	}
}

func TestAdminTargetsUnknownUser(t *testing.T) {
	f := newFixture(t)
	contains(t, f.command(t, adminID, "warn", "99", "x"), "User 99 not found")
	contains(t, f.command(t, adminID, "tempban", "abc", "3"), "positive number")
}

func TestAddPoints(t *testing.T) {
	f := newFixture(t)
	f.command(t, 2, "start")
	contains(t, f.command(t, adminID, "addpoints", "2", "150", "event"), "New balance 250")
	entries, err := f.ledger.History(context.Background(), 2, 1)
	if err != nil || len(entries) != 1 || entries[0].Reason != "Admin bonus: event" {
		t.Fatalf("expected admin bonus entry, got %+v %v", entries, err)
	}
}

func TestTodoCommands(t *testing.T) {
	f := newFixture(t)
	contains(t, f.command(t, 7, "add"), "Usage: /add")
	contains(t, f.command(t, 7, "add", "buy", "milk"), "Task 1 added: buy milk")
	contains(t, f.command(t, 7, "done", "x"), "positive number")
	contains(t, f.command(t, 7, "done", "99"), "Task 99 not found")
	contains(t, f.command(t, 7, "done", "1"), "completed")
	contains(t, f.command(t, 7, "done", "1"), "Task 1 not found")
	if got := f.balance(t, 7); got != 115 {
		t.Fatalf("expected 115, got %d", got)
	}
}

func TestTodoPrompt(t *testing.T) {
	f := newFixture(t)
	f.action(t, 7, "todo_add")
	contains(t, f.text(t, 7, "   "), "")
	if _, ok := f.m.Store().Load(7).(AwaitingTodo); !ok {
		t.Fatalf("expected prompt to survive blank input")
	}
	contains(t, f.text(t, 7, "water plants"), "water plants")
	if f.m.Store().Load(7) != nil {
		t.Fatalf("expected idle after adding")
	}
}

func TestRemindCommand(t *testing.T) {
	f := newFixture(t)
	contains(t, f.command(t, 7, "remind", "stretch"), "Usage")
	contains(t, f.command(t, 7, "remind", "stretch", "0"), "positive whole number")
	contains(t, f.command(t, 7, "remind", "stand", "up", "30"), "30 minutes")

	pending, err := f.sched.Pending(context.Background(), 7)
	if err != nil || len(pending) != 1 || pending[0].Text != "stand up" {
		t.Fatalf("expected one pending reminder, got %+v %v", pending, err)
	}
	if d := time.Until(pending[0].FireAt); d < 29*time.Minute {
		t.Fatalf("expected fire time about 30 minutes out, got %v", d)
	}
	if got := f.balance(t, 7); got != 103 {
		t.Fatalf("expected 103, got %d", got)
	}
}

func TestCurrencyService(t *testing.T) {
	f := newFixture(t)
	f.action(t, 7, "service_currency")
	contains(t, f.text(t, 7, "100 usd eur"), "100 USD = 92.00 EUR")
	if got := f.balance(t, 7); got != 102 {
		t.Fatalf("expected 102, got %d", got)
	}

	f.action(t, 7, "service_currency")
	contains(t, f.text(t, 7, "100 usd xyz"), "Unsupported currency")
	if f.m.Store().Load(7) != nil {
		t.Fatalf("expected prompt cleared after bad input")
	}
}

func TestIdleText(t *testing.T) {
	f := newFixture(t)
	contains(t, f.text(t, 7, "hello there"), "Hello player7!")

	if _, err := f.mod.AddBannedWord(context.Background(), "darn", adminID); err != nil {
		t.Fatalf("AddBannedWord: %v", err)
	}
	contains(t, f.text(t, 7, "oh DARN it"), "not allowed")

	before := f.out.count(7)
	f.handle(t, transport.NewFreeText(who(7), 7, "nothing to say"))
	if f.out.count(7) != before {
		t.Fatalf("expected silence for unanswered text")
	}
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)
	contains(t, f.command(t, 7, "frobnicate"), "Unknown command /frobnicate")
}
