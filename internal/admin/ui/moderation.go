package ui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/huh"

	"github.com/notepid/twilight_arcade/internal/admin/app"
)

// moderationModel lists active bans and the banned word filter.
type moderationModel struct {
	app *app.App

	width  int
	height int

	Done bool

	state moderationState
	list  list.Model
	err   error

	notice string

	form    *huh.Form
	addWord string
	addSave bool
}

type moderationState int

const (
	moderationStateHome moderationState = iota
	moderationStateBans
	moderationStateWords
	moderationStateAddWord
)

type modItem struct {
	id    int64
	title string
	desc  string
	kind  string
}

func (i modItem) Title() string       { return i.title }
func (i modItem) Description() string { return i.desc }
func (i modItem) FilterValue() string { return i.title }

func newModerationModel(a *app.App) *moderationModel {
	m := &moderationModel{app: a, state: moderationStateHome}
	m.showHome()
	return m
}

func (m *moderationModel) SetSize(w, h int) {
	m.width, m.height = w, h
	m.list.SetSize(w, h-2)
}

func (m *moderationModel) Update(msg tea.Msg) tea.Cmd {
	if m.err != nil {
		switch msg := msg.(type) {
		case tea.KeyMsg:
			if msg.String() == "esc" || msg.String() == "q" || msg.String() == "enter" {
				m.err = nil
				m.form = nil
				m.showHome()
			}
		}
		return nil
	}

	if m.state == moderationStateAddWord {
		if km, ok := msg.(tea.KeyMsg); ok && km.String() == "esc" {
			m.form = nil
			m.showWords()
			return nil
		}
		return m.updateForm(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q":
			if m.state == moderationStateHome {
				m.Done = true
				return nil
			}
		case "esc":
			m.back()
			return nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() != "enter" {
			return cmd
		}
		it, ok := m.list.SelectedItem().(modItem)
		if !ok {
			return cmd
		}
		m.notice = ""
		switch it.kind {
		case "bans":
			m.showBans()
		case "words":
			m.showWords()
		case "ban":
			m.unban(it.id, it.title)
		case "add_word":
			m.startAddWord()
		case "word":
			m.removeWord(it.title)
		}
		return nil
	}

	return cmd
}

func (m *moderationModel) updateForm(msg tea.Msg) tea.Cmd {
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

	m.form = nil
	if m.addSave {
		ctx, cancel := m.app.Context()
		defer cancel()
		added, err := m.app.Moderation.AddBannedWord(ctx, m.addWord, app.OperatorID)
		if err != nil {
			m.err = err
			return nil
		}
		if added {
			m.notice = fmt.Sprintf("Added %q", strings.ToLower(strings.TrimSpace(m.addWord)))
		} else {
			m.notice = "Word already listed"
		}
	}
	m.showWords()
	return nil
}

func (m *moderationModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Moderation error: %v\n\nPress Enter/Esc to go back.", m.err)
	}
	note := ""
	if m.notice != "" {
		note = noticeStyle.Render(m.notice) + "\n"
	}

	switch m.state {
	case moderationStateHome:
		return m.list.View() + "\n(q to quit, enter to select)"
	case moderationStateBans:
		return note + m.list.View() + "\n(enter to lift a ban, esc back)"
	case moderationStateWords:
		return note + m.list.View() + "\n(enter to remove a word, esc back)"
	case moderationStateAddWord:
		return m.form.View() + "\n\n(esc to go back)"
	default:
		return "Moderation"
	}
}

func (m *moderationModel) showHome() {
	m.state = moderationStateHome
	m.setList("Moderation", []list.Item{
		modItem{title: "Bans", desc: "Active and expired-but-unchecked bans", kind: "bans"},
		modItem{title: "Banned words", desc: "Words rejected in free text", kind: "words"},
	}, false)
}

func (m *moderationModel) showBans() {
	ctx, cancel := m.app.Context()
	defer cancel()
	bans, err := m.app.Moderation.ListBans(ctx)
	if err != nil {
		m.err = err
		return
	}

	items := make([]list.Item, 0, len(bans))
	for _, b := range bans {
		name := fmt.Sprintf("user %d", b.UserID)
		if u, err := m.app.Accounts.Get(ctx, b.UserID); err == nil && u != nil {
			name = fmt.Sprintf("%s (%d)", u.DisplayName, u.ID)
		}
		until := "permanent"
		if b.ExpiresAt != nil {
			until = "until " + b.ExpiresAt.Format("2006-01-02 15:04")
		}
		items = append(items, modItem{id: b.UserID, title: name, desc: until + " • " + b.Reason, kind: "ban"})
	}
	m.state = moderationStateBans
	m.setList(fmt.Sprintf("Bans (%d)", len(bans)), items, true)
}

func (m *moderationModel) showWords() {
	ctx, cancel := m.app.Context()
	defer cancel()
	words, err := m.app.Moderation.BannedWords(ctx)
	if err != nil {
		m.err = err
		return
	}

	items := make([]list.Item, 0, len(words)+1)
	items = append(items, modItem{title: "+ Add word", desc: "Matched case-insensitively as a substring", kind: "add_word"})
	for _, w := range words {
		items = append(items, modItem{title: w, desc: "enter to remove", kind: "word"})
	}
	m.state = moderationStateWords
	m.setList(fmt.Sprintf("Banned words (%d)", len(words)), items, true)
}

func (m *moderationModel) setList(title string, items []list.Item, filter bool) {
	m.list = list.New(items, list.NewDefaultDelegate(), m.width, m.height-2)
	m.list.Title = title
	m.list.SetShowStatusBar(false)
	m.list.SetFilteringEnabled(filter)
	m.list.SetShowHelp(true)
}

func (m *moderationModel) startAddWord() {
	m.state = moderationStateAddWord
	m.addWord = ""
	m.addSave = true
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Word").Value(&m.addWord).Validate(nonEmpty("word")),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Add to the filter?").Value(&m.addSave),
		),
	)
}

func (m *moderationModel) unban(userID int64, name string) {
	ctx, cancel := m.app.Context()
	defer cancel()
	if err := m.app.Moderation.Unban(ctx, userID); err != nil {
		m.err = err
		return
	}
	m.showBans()
	m.notice = "Lifted ban on " + name
}

func (m *moderationModel) removeWord(word string) {
	ctx, cancel := m.app.Context()
	defer cancel()
	if _, err := m.app.Moderation.RemoveBannedWord(ctx, word); err != nil {
		m.err = err
		return
	}
	m.showWords()
	m.notice = fmt.Sprintf("Removed %q", word)
}

func (m *moderationModel) back() {
	m.notice = ""
	switch m.state {
	case moderationStateHome:
		m.Done = true
	default:
		m.showHome()
	}
}
