package ui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/notepid/twilight_arcade/internal/admin/app"
	"github.com/notepid/twilight_arcade/internal/db"
)

const welcomeLimit = 200

// settingsFields is the editable text of the arcade_settings row.
type settingsFields struct {
	name     string
	operator string
	maxNodes string
	welcome  string
}

func fieldsFrom(s *db.ArcadeSettings) settingsFields {
	return settingsFields{
		name:     s.Name,
		operator: s.Operator,
		maxNodes: strconv.Itoa(s.MaxNodes),
		welcome:  s.Welcome,
	}
}

// parse validates the fields and builds the row to store.
func (f settingsFields) parse() (*db.ArcadeSettings, error) {
	name := strings.TrimSpace(f.name)
	if name == "" {
		return nil, fmt.Errorf("name cannot be empty")
	}
	op := strings.TrimSpace(f.operator)
	if op == "" {
		return nil, fmt.Errorf("operator cannot be empty")
	}
	n, err := parseNodeLimit(f.maxNodes)
	if err != nil {
		return nil, err
	}
	welcome := strings.TrimSpace(f.welcome)
	if len(welcome) > welcomeLimit {
		return nil, fmt.Errorf("welcome message is limited to %d characters", welcomeLimit)
	}
	return &db.ArcadeSettings{Name: name, Operator: op, MaxNodes: n, Welcome: welcome}, nil
}

func parseNodeLimit(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("node limit must be a number")
	}
	if n < 1 {
		return 0, fmt.Errorf("node limit must be at least 1")
	}
	return n, nil
}

// settingsChanges lists what a save changes and when a running server
// sees it.
func settingsChanges(before, after *db.ArcadeSettings) []string {
	var out []string
	if before.Name != after.Name {
		out = append(out, fmt.Sprintf("Name: %s -> %s (next restart)", before.Name, after.Name))
	}
	if before.Operator != after.Operator {
		out = append(out, fmt.Sprintf("Operator: %s -> %s (next restart)", before.Operator, after.Operator))
	}
	if before.MaxNodes != after.MaxNodes {
		out = append(out, fmt.Sprintf("Node limit: %d -> %d (live)", before.MaxNodes, after.MaxNodes))
	}
	if before.Welcome != after.Welcome {
		if after.Welcome == "" {
			out = append(out, "Welcome message cleared (live)")
		} else {
			out = append(out, "Welcome message updated (live)")
		}
	}
	return out
}

type settingsModel struct {
	app *app.App

	width  int
	height int

	Done bool

	current *db.ArcadeSettings
	fields  settingsFields
	save    bool
	form    *huh.Form

	summary []string
	err     error
}

func newSettingsModel(a *app.App) *settingsModel {
	m := &settingsModel{app: a}
	m.current, m.err = a.DB.GetArcadeSettings()
	if m.err == nil {
		m.edit()
	}
	return m
}

func (m *settingsModel) edit() {
	m.fields = fieldsFrom(m.current)
	m.save = true
	m.summary = nil
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Arcade name").Value(&m.fields.name).Validate(nonEmpty("name")),
			huh.NewInput().Title("Operator").Value(&m.fields.operator).Validate(nonEmpty("operator")),
		).Title("Identity").Description("Shown in the banner and logs. Applied on the next server start."),
		huh.NewGroup(
			huh.NewInput().Title("Node limit").Description("Concurrent telnet and SSH connections").
				Value(&m.fields.maxNodes).Validate(func(s string) error {
				_, err := parseNodeLimit(s)
				return err
			}),
			huh.NewText().Title("Welcome message").Description("Printed under the banner. Leave empty for none.").
				CharLimit(welcomeLimit).Value(&m.fields.welcome),
		).Title("Live").Description("A running server picks these up within a minute."),
		huh.NewGroup(
			huh.NewConfirm().Title("Save settings?").Value(&m.save),
		),
	)
}

func (m *settingsModel) SetSize(w, h int) {
	m.width, m.height = w, h
}

func (m *settingsModel) Update(msg tea.Msg) tea.Cmd {
	if m.err != nil || m.summary != nil {
		if km, ok := msg.(tea.KeyMsg); ok {
			switch km.String() {
			case "esc", "q", "enter":
				m.Done = true
			}
		}
		return nil
	}

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

	if !m.save {
		m.Done = true
		return nil
	}
	next, err := m.fields.parse()
	if err != nil {
		m.err = err
		return nil
	}
	if err := m.app.DB.UpdateArcadeSettings(next); err != nil {
		m.err = err
		return nil
	}
	m.summary = settingsChanges(m.current, next)
	if len(m.summary) == 0 {
		m.summary = []string{"Nothing changed"}
	}
	m.current = next
	return nil
}

func (m *settingsModel) View() string {
	switch {
	case m.err != nil:
		return fmt.Sprintf("Settings error: %v\n\nPress Enter/Esc to go back.", m.err)
	case m.summary != nil:
		return noticeStyle.Render("Settings saved") + "\n\n" + strings.Join(m.summary, "\n") + "\n\n(enter to go back)"
	}
	return m.form.View() + "\n\n(esc to go back)"
}

func nonEmpty(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", field)
		}
		return nil
	}
}
