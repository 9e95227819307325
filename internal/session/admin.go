package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/notepid/twilight_arcade/internal/account"
	"github.com/notepid/twilight_arcade/internal/apperr"
	"github.com/notepid/twilight_arcade/internal/moderation"
	"github.com/notepid/twilight_arcade/internal/transport"
)

func (m *Manager) registerAdmin() {
	m.admin = map[string]commandFunc{
		"addadmin":    m.cmdAddAdmin,
		"removeadmin": m.cmdRemoveAdmin,
		"ban":         m.cmdBan,
		"tempban":     m.cmdTempBan,
		"unban":       m.cmdUnban,
		"warn":        m.cmdWarn,
		"addpoints":   m.cmdAddPoints,
		"addword":     m.cmdAddWord,
		"delword":     m.cmdDelWord,
		"bans":        m.showBans,
	}
	m.adminActions = map[string]actionFunc{
		"admin_panel":  m.showAdminPanel,
		"admin_stats":  m.showAdminStats,
		"admin_users":  m.showUsers,
		"admin_admins": m.showAdmins,
		"admin_banned": m.showBans,
		"admin_words":  m.showWords,
	}
}

// target resolves the user named by args[0]. Admin commands act only on
// users the arcade has seen.
func (m *Manager) target(ctx context.Context, args []string, use string) (*account.User, error) {
	if len(args) == 0 {
		return nil, usage(use)
	}
	id, ok := parseID(args[0])
	if !ok {
		return nil, apperr.Validation("User id must be a positive number.")
	}
	u, err := m.accounts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.New(apperr.CodeNotFound, fmt.Sprintf("User %d not found.", id))
	}
	return u, nil
}

func reasonFrom(args []string) string {
	r := strings.TrimSpace(strings.Join(args, " "))
	if r == "" {
		return "No reason given"
	}
	return r
}

func (m *Manager) cmdAddAdmin(ctx context.Context, ev transport.Event) (transport.Message, error) {
	const use = "/addadmin <id> <level>"
	if len(ev.Args) < 2 {
		return transport.Message{}, usage(use)
	}
	u, err := m.target(ctx, ev.Args, use)
	if err != nil {
		return transport.Message{}, err
	}
	if err := m.mod.AddAdmin(ctx, u.ID, ev.Args[1], ev.User.ID); err != nil {
		return transport.Message{}, err
	}
	m.notify(ctx, u.ID, "You are now an arcade admin.")
	return transport.Text("%s (%d) is now %s.", u.DisplayName, u.ID, strings.ToLower(ev.Args[1])), nil
}

func (m *Manager) cmdRemoveAdmin(ctx context.Context, ev transport.Event) (transport.Message, error) {
	u, err := m.target(ctx, ev.Args, "/removeadmin <id>")
	if err != nil {
		return transport.Message{}, err
	}
	if err := m.mod.RemoveAdmin(ctx, u.ID); err != nil {
		return transport.Message{}, err
	}
	if m.mod.IsBootstrap(u.ID) {
		return transport.Text("Removed %d from the admins table, but they stay admin through configuration.", u.ID), nil
	}
	return transport.Text("%s (%d) is no longer an admin.", u.DisplayName, u.ID), nil
}

func (m *Manager) cmdBan(ctx context.Context, ev transport.Event) (transport.Message, error) {
	u, err := m.target(ctx, ev.Args, "/ban <id> <reason>")
	if err != nil {
		return transport.Message{}, err
	}
	reason := reasonFrom(ev.Args[1:])
	if err := m.mod.Ban(ctx, u.ID, ev.User.ID, reason, nil); err != nil {
		return transport.Message{}, err
	}
	m.store.Clear(u.ID)
	m.notify(ctx, u.ID, "You have been banned: "+reason)
	return transport.Text("Banned %s (%d) permanently.\nReason: %s", u.DisplayName, u.ID, reason), nil
}

func (m *Manager) cmdTempBan(ctx context.Context, ev transport.Event) (transport.Message, error) {
	const use = "/tempban <id> <days> <reason>"
	if len(ev.Args) < 2 {
		return transport.Message{}, usage(use)
	}
	u, err := m.target(ctx, ev.Args, use)
	if err != nil {
		return transport.Message{}, err
	}
	days, err := strconv.Atoi(ev.Args[1])
	if err != nil || days <= 0 {
		return transport.Message{}, apperr.Validation("Days must be a positive whole number.")
	}
	reason := reasonFrom(ev.Args[2:])
	if err := m.mod.Ban(ctx, u.ID, ev.User.ID, reason, &days); err != nil {
		return transport.Message{}, err
	}
	m.store.Clear(u.ID)
	m.notify(ctx, u.ID, fmt.Sprintf("You have been banned for %s: %s", plural(days, "day"), reason))
	return transport.Text("Banned %s (%d) for %s.\nReason: %s", u.DisplayName, u.ID, plural(days, "day"), reason), nil
}

func (m *Manager) cmdUnban(ctx context.Context, ev transport.Event) (transport.Message, error) {
	u, err := m.target(ctx, ev.Args, "/unban <id>")
	if err != nil {
		return transport.Message{}, err
	}
	if err := m.mod.Unban(ctx, u.ID); err != nil {
		return transport.Message{}, err
	}
	m.notify(ctx, u.ID, "Your ban has been lifted.")
	return transport.Text("Unbanned %s (%d).", u.DisplayName, u.ID), nil
}

func (m *Manager) cmdWarn(ctx context.Context, ev transport.Event) (transport.Message, error) {
	u, err := m.target(ctx, ev.Args, "/warn <id> <reason>")
	if err != nil {
		return transport.Message{}, err
	}
	reason := reasonFrom(ev.Args[1:])
	res, err := m.mod.Warn(ctx, u.ID, ev.User.ID, reason)
	if err != nil {
		return transport.Message{}, err
	}
	if res.Escalated {
		m.store.Clear(u.ID)
		m.notify(ctx, u.ID, fmt.Sprintf("You reached %d warnings and are banned for %s.",
			moderation.WarningThreshold, plural(moderation.AutoBanDays, "day")))
		return transport.Text("Warned %s (%d). Warning %d of %d.\nThey were banned for %s.",
			u.DisplayName, u.ID, res.Count, moderation.WarningThreshold, plural(moderation.AutoBanDays, "day")), nil
	}
	m.notify(ctx, u.ID, fmt.Sprintf("Warning %d of %d: %s", res.Count, moderation.WarningThreshold, reason))
	return transport.Text("Warned %s (%d). Warning %d of %d.", u.DisplayName, u.ID, res.Count, moderation.WarningThreshold), nil
}

func (m *Manager) cmdAddPoints(ctx context.Context, ev transport.Event) (transport.Message, error) {
	const use = "/addpoints <id> <points> <reason>"
	if len(ev.Args) < 2 {
		return transport.Message{}, usage(use)
	}
	u, err := m.target(ctx, ev.Args, use)
	if err != nil {
		return transport.Message{}, err
	}
	amount, err := strconv.ParseInt(ev.Args[1], 10, 64)
	if err != nil || amount == 0 {
		return transport.Message{}, apperr.Validation("Points must be a non-zero whole number.")
	}
	reason := "Admin bonus: " + reasonFrom(ev.Args[2:])
	balance, err := m.ledger.Credit(ctx, u.ID, amount, reason)
	if err != nil {
		return transport.Message{}, err
	}
	m.notify(ctx, u.ID, fmt.Sprintf("%+d points from an admin (%s).", amount, reason))
	return transport.Text("Gave %+d points to %s (%d). New balance %s.", amount, u.DisplayName, u.ID, m.points(balance)), nil
}

func (m *Manager) cmdAddWord(ctx context.Context, ev transport.Event) (transport.Message, error) {
	if len(ev.Args) == 0 {
		return transport.Message{}, usage("/addword <word>")
	}
	added, err := m.mod.AddBannedWord(ctx, ev.Args[0], ev.User.ID)
	if err != nil {
		return transport.Message{}, err
	}
	if !added {
		return transport.Text("%q is already banned.", strings.ToLower(ev.Args[0])), nil
	}
	return transport.Text("Banned the word %q.", strings.ToLower(ev.Args[0])), nil
}

func (m *Manager) cmdDelWord(ctx context.Context, ev transport.Event) (transport.Message, error) {
	if len(ev.Args) == 0 {
		return transport.Message{}, usage("/delword <word>")
	}
	removed, err := m.mod.RemoveBannedWord(ctx, ev.Args[0])
	if err != nil {
		return transport.Message{}, err
	}
	if !removed {
		return transport.Message{}, apperr.New(apperr.CodeNotFound, fmt.Sprintf("%q is not banned.", strings.ToLower(ev.Args[0])))
	}
	return transport.Text("Removed %q from the banned words.", strings.ToLower(ev.Args[0])), nil
}

func (m *Manager) showAdminPanel(ctx context.Context, ev transport.Event) (transport.Message, error) {
	return transport.Message{Text: "Admin panel\n" + rule() + "\nPick a section:", Buttons: adminMenu}, nil
}

func (m *Manager) showAdminStats(ctx context.Context, ev transport.Event) (transport.Message, error) {
	msg, err := m.arcadeStats(ctx)
	if err != nil {
		return transport.Message{}, err
	}
	msg.Buttons = backTo("admin_panel")
	return msg, nil
}

func (m *Manager) showUsers(ctx context.Context, ev transport.Event) (transport.Message, error) {
	users, err := m.accounts.List(ctx)
	if err != nil {
		return transport.Message{}, err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Users (%d)\n%s\n", len(users), rule())
	now := m.now()
	for i, u := range users {
		if i == 20 {
			fmt.Fprintf(&sb, "... and %d more\n", len(users)-i)
			break
		}
		flag := ""
		if u.Banned {
			flag = " [banned]"
		}
		fmt.Fprintf(&sb, "%d  %-16s %8s  %s%s\n", u.ID, u.DisplayName, m.points(u.Points), timeAgo(u.LastActiveAt, now), flag)
	}
	return transport.Message{Text: sb.String(), Buttons: backTo("admin_panel")}, nil
}

func (m *Manager) showAdmins(ctx context.Context, ev transport.Event) (transport.Message, error) {
	admins, err := m.mod.ListAdmins(ctx)
	if err != nil {
		return transport.Message{}, err
	}
	var sb strings.Builder
	sb.WriteString("Admins\n" + rule() + "\n")
	if len(admins) == 0 {
		sb.WriteString("Only configured admins.\n")
	}
	for _, a := range admins {
		fmt.Fprintf(&sb, "%d  %-12s added by %d\n", a.UserID, a.Level, a.AddedBy)
	}
	return transport.Message{Text: sb.String(), Buttons: backTo("admin_panel")}, nil
}

func (m *Manager) showBans(ctx context.Context, ev transport.Event) (transport.Message, error) {
	bans, err := m.mod.ListBans(ctx)
	if err != nil {
		return transport.Message{}, err
	}
	var sb strings.Builder
	sb.WriteString("Bans\n" + rule() + "\n")
	if len(bans) == 0 {
		sb.WriteString("Nobody is banned.\n")
	}
	for _, b := range bans {
		until := "permanent"
		if !b.Permanent() {
			until = "until " + b.ExpiresAt.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(&sb, "%d  %s  %s\n", b.UserID, until, b.Reason)
	}
	return transport.Message{Text: sb.String(), Buttons: backTo("admin_panel")}, nil
}

func (m *Manager) showWords(ctx context.Context, ev transport.Event) (transport.Message, error) {
	words, err := m.mod.BannedWords(ctx)
	if err != nil {
		return transport.Message{}, err
	}
	text := "No banned words."
	if len(words) > 0 {
		text = strings.Join(words, ", ")
	}
	return transport.Message{
		Text:    "Banned words\n" + rule() + "\n" + text + "\n\nManage with /addword and /delword.",
		Buttons: backTo("admin_panel"),
	}, nil
}
