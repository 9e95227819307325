package ui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/huh"

	"github.com/notepid/twilight_arcade/internal/account"
	"github.com/notepid/twilight_arcade/internal/admin/app"
	"github.com/notepid/twilight_arcade/internal/ledger"
	"github.com/notepid/twilight_arcade/internal/moderation"
)

const historyLines = 5

type usersModel struct {
	app *app.App

	width  int
	height int

	Done bool

	state usersState

	list   list.Model
	err    error
	notice string

	selected *account.User
	detail   string

	form *huh.Form

	createHandle   string
	createPassword string
	createConfirm  string
	createSave     bool

	pointsAmount string
	pointsReason string
	pointsSave   bool

	warnReason string
	warnSave   bool

	banDays   string
	banReason string
	banSave   bool

	adminLevel string
	adminSave  bool

	newPassword string
	pwConfirm   string
	pwSave      bool
}

type usersState int

const (
	usersStateList usersState = iota
	usersStateDetail
	usersStateCreate
	usersStateAddPoints
	usersStateWarn
	usersStateBan
	usersStateGrantAdmin
	usersStateResetPassword
)

type userItem struct {
	id    int64
	title string
	desc  string
	kind  string
}

func (i userItem) Title() string       { return i.title }
func (i userItem) Description() string { return i.desc }
func (i userItem) FilterValue() string { return i.title }

func newUsersModel(a *app.App) *usersModel {
	m := &usersModel{app: a, state: usersStateList}
	m.list = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	m.reloadList()
	return m
}

func (m *usersModel) SetSize(w, h int) {
	m.width, m.height = w, h
	m.list.SetSize(w, h-2)
}

func (m *usersModel) Update(msg tea.Msg) tea.Cmd {
	if m.err != nil {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			if msg.String() == "esc" || msg.String() == "q" || msg.String() == "enter" {
				m.err = nil
				m.form = nil
				if m.selected != nil {
					m.openDetail(m.selected.ID)
				} else {
					m.state = usersStateList
					m.reloadList()
				}
			}
		}
		return nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q":
			if m.state == usersStateList {
				m.Done = true
				return nil
			}
		case "esc":
			m.back()
			return nil
		}
	}

	switch m.state {
	case usersStateList:
		return m.updateList(msg)
	case usersStateDetail:
		return m.updateDetail(msg)
	default:
		return m.updateForm(msg)
	}
}

func (m *usersModel) updateList(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "enter" {
			it, ok := m.list.SelectedItem().(userItem)
			if !ok {
				return cmd
			}
			if it.kind == "create" {
				m.startCreate()
				return nil
			}
			m.openDetail(it.id)
			return nil
		}
	}

	return cmd
}

func (m *usersModel) updateDetail(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "enter" {
			it, ok := m.list.SelectedItem().(userItem)
			if !ok {
				return cmd
			}
			m.notice = ""
			switch it.kind {
			case "add_points":
				m.startAddPoints()
			case "warn":
				m.startWarn()
			case "ban":
				m.startBan()
			case "unban":
				m.unban()
			case "grant_admin":
				m.startGrantAdmin()
			case "revoke_admin":
				m.revokeAdmin()
			case "reset_password":
				m.startResetPassword()
			case "back":
				m.back()
			}
			return nil
		}
	}

	return cmd
}

func (m *usersModel) updateForm(msg tea.Msg) tea.Cmd {
	if m.form == nil {
		m.err = fmt.Errorf("internal error: form not initialized")
		return nil
	}
	var cmd tea.Cmd
	updated, cmd := m.form.Update(msg)
	f, ok := updated.(*huh.Form)
	if !ok {
		m.err = fmt.Errorf("internal error: unexpected form model type")
		return nil
	}
	m.form = f
	if m.form.State != huh.StateCompleted {
		return cmd
	}

	state := m.state
	m.form = nil
	if err := m.submit(state); err != nil {
		m.err = err
		return nil
	}
	if state == usersStateCreate {
		m.state = usersStateList
		m.reloadList()
		return nil
	}
	m.openDetail(m.selected.ID)
	return nil
}

// submit applies a completed form.
func (m *usersModel) submit(state usersState) error {
	ctx, cancel := m.app.Context()
	defer cancel()

	switch state {
	case usersStateCreate:
		if !m.createSave {
			return nil
		}
		u, err := m.app.Accounts.Register(ctx, m.createHandle, m.createPassword)
		if err != nil {
			return err
		}
		m.notice = fmt.Sprintf("Created %s (id %d)", u.DisplayName, u.ID)
	case usersStateAddPoints:
		if !m.pointsSave {
			return nil
		}
		amount, err := parseAmount(m.pointsAmount)
		if err != nil {
			return err
		}
		balance, err := m.app.Ledger.Credit(ctx, m.selected.ID, amount, "Admin bonus: "+reasonOrDefault(m.pointsReason))
		if err != nil {
			return err
		}
		m.notice = fmt.Sprintf("New balance: %d", balance)
	case usersStateWarn:
		if !m.warnSave {
			return nil
		}
		res, err := m.app.Moderation.Warn(ctx, m.selected.ID, app.OperatorID, reasonOrDefault(m.warnReason))
		if err != nil {
			return err
		}
		m.notice = fmt.Sprintf("Warning %d of %d", res.Count, moderation.WarningThreshold)
		if res.Escalated {
			m.notice += fmt.Sprintf(", banned for %d days", moderation.AutoBanDays)
		}
	case usersStateBan:
		if !m.banSave {
			return nil
		}
		days, err := parseBanDays(m.banDays)
		if err != nil {
			return err
		}
		if err := m.app.Moderation.Ban(ctx, m.selected.ID, app.OperatorID, reasonOrDefault(m.banReason), days); err != nil {
			return err
		}
		m.notice = "Banned " + banLength(days)
	case usersStateGrantAdmin:
		if !m.adminSave {
			return nil
		}
		if err := m.app.Moderation.AddAdmin(ctx, m.selected.ID, m.adminLevel, app.OperatorID); err != nil {
			return err
		}
		m.notice = "Granted " + m.adminLevel
	case usersStateResetPassword:
		if !m.pwSave {
			return nil
		}
		if err := m.app.Accounts.UpdatePassword(ctx, m.selected.ID, m.newPassword); err != nil {
			return err
		}
		m.notice = "Password updated"
	}
	return nil
}

func (m *usersModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Users error: %v\n\nPress Enter/Esc to go back.", m.err)
	}

	note := ""
	if m.notice != "" {
		note = noticeStyle.Render(m.notice) + "\n"
	}

	switch m.state {
	case usersStateList:
		m.list.Title = "Users"
		return note + m.list.View() + "\n(q to quit, enter to select)"
	case usersStateDetail:
		if m.selected == nil {
			return "No user selected\n\n(esc to go back)"
		}
		m.list.Title = "Actions"
		return m.detail + note + "\n" + m.list.View() + "\n(esc to go back)"
	default:
		return m.form.View() + "\n\n(esc to go back)"
	}
}

func (m *usersModel) reloadList() {
	ctx, cancel := m.app.Context()
	defer cancel()
	users, err := m.app.Accounts.List(ctx)
	if err != nil {
		m.err = err
		return
	}

	items := make([]list.Item, 0, len(users)+1)
	items = append(items, userItem{title: "+ Create new user", desc: "Register a login handle", kind: "create"})
	for _, u := range users {
		desc := fmt.Sprintf("id %d • %d points • level %d", u.ID, u.Points, u.Level)
		if u.Banned {
			desc += " • banned"
		}
		items = append(items, userItem{id: u.ID, title: u.DisplayName, desc: desc, kind: "user"})
	}

	m.list = list.New(items, list.NewDefaultDelegate(), m.width, m.height-2)
	m.list.SetShowStatusBar(false)
	m.list.SetFilteringEnabled(true)
	m.list.SetShowHelp(true)
	m.list.Title = "Users"
}

// openDetail loads the user, their ban and recent ledger rows.
func (m *usersModel) openDetail(id int64) {
	ctx, cancel := m.app.Context()
	defer cancel()

	u, err := m.app.Accounts.Get(ctx, id)
	if err == nil && u == nil {
		err = fmt.Errorf("user %d not found", id)
	}
	if err != nil {
		m.err = err
		return
	}
	ban, err := m.app.Moderation.GetBan(ctx, id)
	if err != nil {
		m.err = err
		return
	}
	admin, err := m.app.Moderation.IsAdmin(ctx, id)
	if err != nil {
		m.err = err
		return
	}
	history, err := m.app.Ledger.History(ctx, id, historyLines)
	if err != nil {
		m.err = err
		return
	}

	m.selected = u
	m.detail = renderUserDetail(u, ban, admin, history)
	m.state = usersStateDetail
	m.list = newActionList(m.width, m.height)
}

func renderUserDetail(u *account.User, ban *moderation.Ban, admin bool, history []ledger.Entry) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s (id %d)", u.DisplayName, u.ID)))
	if admin {
		b.WriteString(" " + badgeStyle.Render("admin"))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Points: %d   Level: %d   Warnings: %d/%d\n", u.Points, u.Level, u.Warnings, moderation.WarningThreshold)
	fmt.Fprintf(&b, "Games: %d   Wins: %d\n", u.TotalGames, u.TotalWins)
	fmt.Fprintf(&b, "Joined: %s   Last seen: %s\n", u.JoinedAt.Format("2006-01-02"), u.LastActiveAt.Format("2006-01-02 15:04"))
	if ban != nil {
		until := "permanently"
		if ban.ExpiresAt != nil {
			until = "until " + ban.ExpiresAt.Format("2006-01-02 15:04")
		}
		b.WriteString(errStyle.Render(fmt.Sprintf("Banned %s: %s", until, ban.Reason)) + "\n")
	}
	if len(history) > 0 {
		b.WriteString("\nRecent points:\n")
		for _, e := range history {
			fmt.Fprintf(&b, "  %+d  %s (balance %d)\n", e.Delta, e.Reason, e.BalanceAfter)
		}
	}
	return b.String()
}

func newActionList(w, h int) list.Model {
	items := []list.Item{
		userItem{title: "Add points", desc: "Credit or debit the balance", kind: "add_points"},
		userItem{title: "Warn", desc: fmt.Sprintf("%d warnings bring a %d-day ban", moderation.WarningThreshold, moderation.AutoBanDays), kind: "warn"},
		userItem{title: "Ban", desc: "For a number of days, or permanently", kind: "ban"},
		userItem{title: "Unban", desc: "Lift any ban", kind: "unban"},
		userItem{title: "Grant admin", desc: strings.Join(moderation.Levels, ", "), kind: "grant_admin"},
		userItem{title: "Revoke admin", desc: "Bootstrap admins keep their rights", kind: "revoke_admin"},
		userItem{title: "Reset password", desc: "Set a new login password", kind: "reset_password"},
		userItem{title: "Back", desc: "Return to users list", kind: "back"},
	}
	l := list.New(items, list.NewDefaultDelegate(), w, h-12)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(true)
	return l
}

func (m *usersModel) startCreate() {
	m.state = usersStateCreate
	m.createHandle = ""
	m.createPassword = ""
	m.createConfirm = ""
	m.createSave = true
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Handle").Value(&m.createHandle).Validate(account.ValidateHandle),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&m.createPassword).Validate(account.ValidatePassword),
			huh.NewInput().Title("Confirm password").EchoMode(huh.EchoModePassword).Value(&m.createConfirm).Validate(func(s string) error {
				if s != m.createPassword {
					return fmt.Errorf("passwords do not match")
				}
				return nil
			}),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Create user?").Value(&m.createSave),
		),
	)
}

func (m *usersModel) startAddPoints() {
	m.state = usersStateAddPoints
	m.pointsAmount = ""
	m.pointsReason = ""
	m.pointsSave = true
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Amount").Description("Negative to deduct").Value(&m.pointsAmount).Validate(func(s string) error {
				_, err := parseAmount(s)
				return err
			}),
			huh.NewInput().Title("Reason").Value(&m.pointsReason),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Apply?").Value(&m.pointsSave),
		),
	)
}

func (m *usersModel) startWarn() {
	m.state = usersStateWarn
	m.warnReason = ""
	m.warnSave = true
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Reason").Value(&m.warnReason),
		),
		huh.NewGroup(
			huh.NewConfirm().Title(fmt.Sprintf("Warn %s?", m.selected.DisplayName)).Value(&m.warnSave),
		),
	)
}

func (m *usersModel) startBan() {
	m.state = usersStateBan
	m.banDays = ""
	m.banReason = ""
	m.banSave = true
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Days").Description("Leave empty for a permanent ban").Value(&m.banDays).Validate(func(s string) error {
				_, err := parseBanDays(s)
				return err
			}),
			huh.NewInput().Title("Reason").Value(&m.banReason),
		),
		huh.NewGroup(
			huh.NewConfirm().Title(fmt.Sprintf("Ban %s?", m.selected.DisplayName)).Value(&m.banSave),
		),
	)
}

func (m *usersModel) startGrantAdmin() {
	m.state = usersStateGrantAdmin
	m.adminLevel = moderation.LevelModerator
	m.adminSave = true
	options := make([]huh.Option[string], 0, len(moderation.Levels))
	for _, l := range moderation.Levels {
		options = append(options, huh.NewOption(l, l))
	}
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Admin level").Options(options...).Value(&m.adminLevel),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Grant admin?").Value(&m.adminSave),
		),
	)
}

func (m *usersModel) startResetPassword() {
	m.state = usersStateResetPassword
	m.newPassword = ""
	m.pwConfirm = ""
	m.pwSave = true
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("New password").EchoMode(huh.EchoModePassword).Value(&m.newPassword).Validate(account.ValidatePassword),
			huh.NewInput().Title("Confirm password").EchoMode(huh.EchoModePassword).Value(&m.pwConfirm).Validate(func(s string) error {
				if s != m.newPassword {
					return fmt.Errorf("passwords do not match")
				}
				return nil
			}),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Reset password?").Value(&m.pwSave),
		),
	)
}

func (m *usersModel) unban() {
	ctx, cancel := m.app.Context()
	defer cancel()
	if err := m.app.Moderation.Unban(ctx, m.selected.ID); err != nil {
		m.err = err
		return
	}
	m.openDetail(m.selected.ID)
	m.notice = "Ban lifted"
}

func (m *usersModel) revokeAdmin() {
	ctx, cancel := m.app.Context()
	defer cancel()
	if err := m.app.Moderation.RemoveAdmin(ctx, m.selected.ID); err != nil {
		m.err = err
		return
	}
	m.openDetail(m.selected.ID)
	if m.app.Moderation.IsBootstrap(m.selected.ID) {
		m.notice = "Bootstrap admin, rights kept"
	} else {
		m.notice = "Admin revoked"
	}
}

func (m *usersModel) back() {
	m.notice = ""
	switch m.state {
	case usersStateList:
		m.Done = true
	case usersStateDetail:
		m.state = usersStateList
		m.selected = nil
		m.form = nil
		m.reloadList()
	case usersStateCreate:
		m.state = usersStateList
		m.form = nil
		m.reloadList()
	default:
		m.form = nil
		m.openDetail(m.selected.ID)
	}
}

func parseAmount(s string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount must be a whole number")
	}
	if v == 0 {
		return 0, fmt.Errorf("amount cannot be zero")
	}
	return v, nil
}

// parseBanDays returns nil for a permanent ban.
func parseBanDays(s string) (*int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v <= 0 {
		return nil, fmt.Errorf("days must be a positive number")
	}
	return &v, nil
}

func banLength(days *int) string {
	if days == nil {
		return "permanently"
	}
	if *days == 1 {
		return "for 1 day"
	}
	return fmt.Sprintf("for %d days", *days)
}

func reasonOrDefault(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "No reason given"
	}
	return s
}
