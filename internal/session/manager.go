// Package session routes inbound events to games, tasks and admin
// operations, and holds each user's in-flight interaction.
//
// Every event for a user runs under that user's lock: ensure the account,
// reject banned users, then dispatch. Commands never touch the flow state
// (except /cancel). Entry actions replace any flow in progress. Continuation
// events reach only the active flow's handler, and rewards are committed to
// the ledger before the flow is cleared.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/notepid/twilight_arcade/internal/account"
	"github.com/notepid/twilight_arcade/internal/apperr"
	"github.com/notepid/twilight_arcade/internal/game"
	"github.com/notepid/twilight_arcade/internal/keylock"
	"github.com/notepid/twilight_arcade/internal/ledger"
	"github.com/notepid/twilight_arcade/internal/moderation"
	"github.com/notepid/twilight_arcade/internal/reminder"
	"github.com/notepid/twilight_arcade/internal/todo"
	"github.com/notepid/twilight_arcade/internal/transport"
)

// Replier answers idle free text. An empty reply means stay quiet.
type Replier interface {
	Reply(userID int64, name, text string) (string, error)
}

// Deps are the collaborators of a Manager. Store, Locks, Rand and Now
// default to a MemoryStore, a local keyed mutex, the global random source
// and time.Now. Replier is optional.
type Deps struct {
	Accounts   *account.Repo
	Ledger     *ledger.Ledger
	Moderation *moderation.Service
	Todos      *todo.Repo
	Reminders  *reminder.Scheduler
	Renderer   transport.Renderer
	Replier    Replier
	Store      Store
	Locks      keylock.Locker
	Rand       game.Rand
	Now        func() time.Time

	// ArcadeName is shown in greetings.
	ArcadeName string
}

// Manager is the per-user state machine.
type Manager struct {
	accounts  *account.Repo
	ledger    *ledger.Ledger
	mod       *moderation.Service
	todos     *todo.Repo
	reminders *reminder.Scheduler
	renderer  transport.Renderer
	replier   Replier
	store     Store
	locks     keylock.Locker
	rand      game.Rand
	now       func() time.Time
	printer   *message.Printer
	name      string

	commands     map[string]commandFunc
	admin        map[string]commandFunc
	actions      map[string]actionFunc
	adminActions map[string]actionFunc
}

type commandFunc func(ctx context.Context, ev transport.Event) (transport.Message, error)

type actionFunc func(ctx context.Context, ev transport.Event) (transport.Message, error)

// NewManager wires a Manager.
func NewManager(d Deps) *Manager {
	m := &Manager{
		accounts:  d.Accounts,
		ledger:    d.Ledger,
		mod:       d.Moderation,
		todos:     d.Todos,
		reminders: d.Reminders,
		renderer:  d.Renderer,
		replier:   d.Replier,
		store:     d.Store,
		locks:     d.Locks,
		rand:      d.Rand,
		now:       d.Now,
		printer:   message.NewPrinter(language.English),
		name:      d.ArcadeName,
	}
	if m.store == nil {
		m.store = NewMemoryStore()
	}
	if m.locks == nil {
		m.locks = keylock.NewLocal()
	}
	if m.rand == nil {
		m.rand = game.DefaultRand
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.name == "" {
		m.name = "Twilight Arcade"
	}
	m.registerCommands()
	m.registerAdmin()
	m.registerActions()
	return m
}

// Store returns the session store.
func (m *Manager) Store() Store {
	return m.store
}

// Handle processes one event. Validation, permission and not-found errors
// become replies; storage errors are logged, answered with a generic reply
// and returned.
func (m *Manager) Handle(ctx context.Context, ev transport.Event) error {
	unlock, err := m.locks.Lock(ctx, ev.User.ID)
	if err != nil {
		return fmt.Errorf("lock user %d: %w", ev.User.ID, err)
	}
	defer unlock()

	if _, created, err := m.accounts.Ensure(ctx, ev.User.ID, ev.User.Name); err != nil {
		return m.fail(ctx, ev, err)
	} else if created {
		log.Printf("New user %d (%s)", ev.User.ID, ev.User.Name)
	}

	banned, err := m.mod.CheckBanned(ctx, ev.User.ID)
	if err != nil {
		return m.fail(ctx, ev, err)
	}
	if banned {
		return m.send(ctx, ev.Channel, m.bannedMessage(ctx, ev.User.ID))
	}
	if err := m.accounts.Touch(ctx, ev.User.ID); err != nil {
		return m.fail(ctx, ev, err)
	}

	var msg transport.Message
	switch ev.Kind {
	case transport.Command:
		msg, err = m.handleCommand(ctx, ev)
	case transport.Action:
		msg, err = m.handleAction(ctx, ev)
	case transport.FreeText:
		msg, err = m.handleText(ctx, ev)
	default:
		return fmt.Errorf("unknown event kind %d", ev.Kind)
	}
	if err != nil {
		return m.fail(ctx, ev, err)
	}
	if msg.Text == "" {
		return nil
	}
	return m.send(ctx, ev.Channel, msg)
}

// fail turns err into a reply. Only errors outside the user-facing codes
// are returned.
func (m *Manager) fail(ctx context.Context, ev transport.Event, err error) error {
	switch apperr.CodeOf(err) {
	case apperr.CodeValidation, apperr.CodePermission, apperr.CodeNotFound:
		return m.send(ctx, ev.Channel, transport.Message{Text: apperr.MessageOf(err, "Invalid request.")})
	}
	if st := m.store.Load(ev.User.ID); st != nil {
		log.Printf("Event %s from user %d in %s flow %s failed: %v", ev.Kind, ev.User.ID, st.Flow(), st.FlowID(), err)
	} else {
		log.Printf("Event %s from user %d failed: %v", ev.Kind, ev.User.ID, err)
	}
	m.send(ctx, ev.Channel, transport.Message{Text: "Something went wrong. Please try again."})
	return err
}

func (m *Manager) send(ctx context.Context, channel int64, msg transport.Message) error {
	if err := m.renderer.Deliver(ctx, channel, msg); err != nil {
		log.Printf("Deliver to channel %d failed: %v", channel, err)
	}
	return nil
}

// notify delivers an out-of-band notice to a user's channel, ignoring
// users who are not connected.
func (m *Manager) notify(ctx context.Context, userID int64, text string) {
	err := m.renderer.Deliver(ctx, userID, transport.Message{Text: text, Notice: true})
	if err != nil && !errors.Is(err, transport.ErrNotConnected) {
		log.Printf("Notify user %d failed: %v", userID, err)
	}
}

func (m *Manager) bannedMessage(ctx context.Context, userID int64) transport.Message {
	b, err := m.mod.GetBan(ctx, userID)
	if err != nil || b == nil || b.Permanent() {
		return transport.Message{Text: "You are banned from the arcade."}
	}
	return transport.Text("You are banned from the arcade until %s.", b.ExpiresAt.Format("2006-01-02 15:04"))
}

func (m *Manager) isAdmin(ctx context.Context, userID int64) (bool, error) {
	return m.mod.IsAdmin(ctx, userID)
}

func (m *Manager) requireAdmin(ctx context.Context, userID int64) error {
	admin, err := m.isAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if !admin {
		return apperr.New(apperr.CodePermission, "You do not have permission to do that.")
	}
	return nil
}

// commit settles a finished game in one ledger transaction.
func (m *Manager) commit(ctx context.Context, userID int64, out game.Outcome) (int64, error) {
	return m.ledger.Commit(ctx, userID, out)
}
