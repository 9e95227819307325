package ui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"

	"github.com/notepid/twilight_arcade/internal/admin/app"
)

type screen int

const (
	screenHome screen = iota
	screenSettings
	screenUsers
	screenModeration
	screenStats
)

// subModel is a screen reached from the home menu.
type subModel interface {
	Update(msg tea.Msg) tea.Cmd
	View() string
	SetSize(w, h int)
	done() bool
}

func (m *settingsModel) done() bool   { return m.Done }
func (m *usersModel) done() bool      { return m.Done }
func (m *moderationModel) done() bool { return m.Done }
func (m *statsModel) done() bool      { return m.Done }

type rootModel struct {
	app *app.App

	width  int
	height int

	active screen

	homeList list.Model
	current  subModel
}

type menuItem struct {
	title string
	desc  string
	to    screen
}

func (m menuItem) Title() string       { return m.title }
func (m menuItem) Description() string { return m.desc }
func (m menuItem) FilterValue() string { return m.title }

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	badgeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("0")).Background(lipgloss.Color("11")).Padding(0, 1)
)

func NewRootModel(a *app.App) tea.Model {
	items := []list.Item{
		menuItem{title: "Arcade Settings", desc: "Edit arcade name, operator, max nodes", to: screenSettings},
		menuItem{title: "Users", desc: "Points, warnings, bans and admin rights", to: screenUsers},
		menuItem{title: "Moderation", desc: "Ban list and banned words", to: screenModeration},
		menuItem{title: "Statistics", desc: "Counters and leaderboard", to: screenStats},
		menuItem{title: "Quit", desc: "Exit", to: -1},
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Twilight Arcade Admin"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(true)

	return &rootModel{
		app:      a,
		active:   screenHome,
		homeList: l,
	}
}

func (m *rootModel) Init() tea.Cmd {
	return nil
}

func (m *rootModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.homeList.SetSize(msg.Width, msg.Height-2)
		if m.current != nil {
			m.current.SetSize(msg.Width, msg.Height)
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
	}

	if m.active == screenHome || m.current == nil {
		return m.updateHome(msg)
	}
	cmd := m.current.Update(msg)
	if m.current.done() {
		m.active = screenHome
		m.current = nil
	}
	return m, cmd
}

func (m *rootModel) updateHome(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.homeList, cmd = m.homeList.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			if it, ok := m.homeList.SelectedItem().(menuItem); ok {
				if it.to == -1 {
					return m, tea.Quit
				}
				m.activate(it.to)
				return m, nil
			}
		}
	}

	return m, cmd
}

func (m *rootModel) activate(s screen) {
	m.active = s

	switch s {
	case screenSettings:
		m.current = newSettingsModel(m.app)
	case screenUsers:
		m.current = newUsersModel(m.app)
	case screenModeration:
		m.current = newModerationModel(m.app)
	case screenStats:
		m.current = newStatsModel(m.app)
	default:
		m.active = screenHome
		m.current = nil
		return
	}
	m.current.SetSize(m.width, m.height)
}

func (m *rootModel) View() string {
	if m.active == screenHome {
		return m.homeList.View()
	}
	if m.current == nil {
		return titleStyle.Render("Unknown screen") + "\n" + fmt.Sprint(m.active)
	}
	return m.current.View()
}
