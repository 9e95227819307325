package session

import (
	"context"
	"fmt"

	"github.com/notepid/twilight_arcade/internal/transport"
)

// serviceReward is paid for a currency conversion or a translation.
const serviceReward = 2

type quote struct {
	Text   string
	Author string
}

var quotes = []quote{
	{"Success is not final, failure is not fatal: it is the courage to continue that counts.", "Winston Churchill"},
	{"The only way to do great work is to love what you do.", "Steve Jobs"},
	{"Don't cry because it's over, smile because it happened.", "Dr. Seuss"},
	{"Be the change that you wish to see in the world.", "Mahatma Gandhi"},
	{"Life is really simple, but we insist on making it complicated.", "Confucius"},
	{"The future belongs to those who believe in the beauty of their dreams.", "Eleanor Roosevelt"},
}

func (m *Manager) serviceQuote(ctx context.Context, ev transport.Event) (transport.Message, error) {
	q := quotes[m.rand.IntN(len(quotes))]
	reward := int64(2 + m.rand.IntN(4))
	if _, err := m.ledger.Credit(ctx, ev.User.ID, reward, "Read a quote"); err != nil {
		return transport.Message{}, err
	}
	return transport.Message{
		Text: fmt.Sprintf("Quote\n%s\n\n\"%s\"\n  - %s\n\n+%d points", rule(), q.Text, q.Author, reward),
		Buttons: [][]button{{
			{Label: "Another quote", Tag: "service_quote"},
			{Label: "Back", Tag: "services_menu"},
		}},
	}, nil
}

func (m *Manager) serviceStats(ctx context.Context, ev transport.Event) (transport.Message, error) {
	msg, err := m.arcadeStats(ctx)
	if err != nil {
		return transport.Message{}, err
	}
	msg.Buttons = backTo("services_menu")
	return msg, nil
}

func (m *Manager) arcadeStats(ctx context.Context) (transport.Message, error) {
	s, err := m.accounts.Stats(ctx)
	if err != nil {
		return transport.Message{}, err
	}
	return transport.Message{Text: lines(
		"Arcade stats",
		rule(),
		fmt.Sprintf("Users:         %d", s.TotalUsers),
		fmt.Sprintf("Banned:        %d", s.BannedUsers),
		fmt.Sprintf("Admins:        %d", s.TotalAdmins),
		fmt.Sprintf("Points:        %s", compact(s.TotalPoints)),
		fmt.Sprintf("Banned words:  %d", s.BannedWords),
		fmt.Sprintf("Open to-dos:   %d", s.PendingTodos),
		fmt.Sprintf("Reminders:     %d", s.PendingReminders),
	)}, nil
}
