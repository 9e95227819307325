package ui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/notepid/twilight_arcade/internal/account"
	"github.com/notepid/twilight_arcade/internal/admin/app"
)

const leaderboardSize = 10

type statsModel struct {
	app *app.App

	width  int
	height int

	Done bool

	stats *account.Stats
	top   []*account.User
	err   error
}

func newStatsModel(a *app.App) *statsModel {
	m := &statsModel{app: a}
	m.reload()
	return m
}

func (m *statsModel) SetSize(w, h int) {
	m.width, m.height = w, h
}

func (m *statsModel) reload() {
	ctx, cancel := m.app.Context()
	defer cancel()

	stats, err := m.app.Accounts.Stats(ctx)
	if err != nil {
		m.err = err
		return
	}
	top, err := m.app.Accounts.Top(ctx, leaderboardSize)
	if err != nil {
		m.err = err
		return
	}
	m.stats, m.top, m.err = stats, top, nil
}

func (m *statsModel) Update(msg tea.Msg) tea.Cmd {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc", "q":
			m.Done = true
		case "r":
			m.reload()
		}
	}
	return nil
}

func (m *statsModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Stats error: %v\n\nPress Esc to go back.", m.err)
	}
	if m.stats == nil {
		return "Loading stats..."
	}
	return renderStats(m.stats, m.top) + "\n(r to refresh, esc to go back)"
}

func renderStats(s *account.Stats, top []*account.User) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Arcade statistics") + "\n\n")

	counters := [][2]string{
		{"Users", strconv.Itoa(s.TotalUsers)},
		{"Banned", strconv.Itoa(s.BannedUsers)},
		{"Admins", strconv.Itoa(s.TotalAdmins)},
		{"Points in circulation", strconv.FormatInt(s.TotalPoints, 10)},
		{"Banned words", strconv.Itoa(s.BannedWords)},
		{"Open tasks", strconv.Itoa(s.PendingTodos)},
		{"Pending reminders", strconv.Itoa(s.PendingReminders)},
	}
	label := lipgloss.NewStyle().Width(24)
	for _, c := range counters {
		b.WriteString(label.Render(c[0]) + c[1] + "\n")
	}

	if len(top) == 0 {
		return b.String()
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "Name", "Points", "Level")
	for i, u := range top {
		t.Row(strconv.Itoa(i+1), u.DisplayName, strconv.FormatInt(u.Points, 10), strconv.Itoa(u.Level))
	}
	b.WriteString("\n" + titleStyle.Render("Leaderboard") + "\n")
	b.WriteString(t.Render() + "\n")
	return b.String()
}
