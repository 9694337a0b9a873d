package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tender/internal/tray"
)

type menuState struct {
	cursor  int
	snoozes bool // snooze submenu open
	sub     int
}

type menuItem struct {
	label   string
	info    bool
	enabled bool
	rule    bool // separator below
	action  func(m *Model) tea.Cmd
}

// menuItems builds the menu from the latest labels.
func (m Model) menuItems() []menuItem {
	items := []menuItem{
		{label: "Open Sync Folder", enabled: true, action: func(m *Model) tea.Cmd {
			m.leaveMenu()
			return m.svc.openSyncFolder()
		}},
		{label: "Launch Website", enabled: m.website != "", rule: true, action: func(m *Model) tea.Cmd {
			return m.svc.openCmd(m.website)
		}},
	}
	for _, line := range []string{m.labels.Email, m.labels.Usage, m.labels.Status} {
		if line != "" {
			items = append(items, menuItem{label: line, info: true})
		}
	}
	return append(items,
		menuItem{label: m.labels.Pause, enabled: m.labels.PauseEnabled, action: (*Model).togglePause},
		menuItem{label: "Recent Changes...", enabled: true, action: (*Model).openActivity},
		menuItem{label: m.snooze.Label, enabled: true, action: func(m *Model) tea.Cmd {
			m.menu.snoozes, m.menu.sub = true, 0
			return nil
		}},
		menuItem{label: m.labels.SyncIssues, enabled: true, action: (*Model).openIssues},
		menuItem{label: "Rebuild Index...", enabled: true, action: (*Model).confirmRebuild},
		menuItem{label: "Check for Updates...", enabled: true, action: func(m *Model) tea.Cmd {
			return m.svc.checkUpdates()
		}},
		menuItem{label: "Theme: " + m.theme.Name, enabled: true, action: (*Model).cycleTheme},
		menuItem{label: "Help Center", enabled: m.helpURL != "", action: func(m *Model) tea.Cmd {
			return m.svc.openCmd(m.helpURL)
		}},
		menuItem{label: m.quitLabel(), enabled: true, action: func(m *Model) tea.Cmd {
			return emit(quitMsg{})
		}},
	)
}

func (m Model) quitLabel() string {
	if m.started {
		return "Quit Tender"
	}
	return "Quit Tender UI"
}

func (m *Model) openMenu() {
	m.view = ViewMenu
	m.menu = menuState{}
	if items := m.menuItems(); len(items) > 0 {
		m.menu.cursor = m.nextSelectable(items, -1, 1)
	}
	if m.menuState != nil {
		m.menuState.SetMenuOpen(true)
	}
}

func (m *Model) closeMenu() {
	m.menu = menuState{}
	if m.menuState != nil {
		m.menuState.SetMenuOpen(false)
	}
}

// leaveMenu closes the menu before running an item that switches views.
func (m *Model) leaveMenu() {
	m.closeMenu()
	m.view = ViewHome
}

// nextSelectable walks from index in dir and returns the first item that is
// not an info line, or index when there is none.
func (m Model) nextSelectable(items []menuItem, index, dir int) int {
	for i := index + dir; i >= 0 && i < len(items); i += dir {
		if !items[i].info {
			return i
		}
	}
	if index < 0 {
		return 0
	}
	return index
}

func (m Model) handleMenuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.menu.snoozes {
		return m.handleSnoozeKey(msg)
	}
	items := m.menuItems()
	if m.menu.cursor >= len(items) {
		m.menu.cursor = len(items) - 1
	}
	switch {
	case key.Matches(msg, m.keys.Up):
		m.menu.cursor = m.nextSelectable(items, m.menu.cursor, -1)
	case key.Matches(msg, m.keys.Down):
		m.menu.cursor = m.nextSelectable(items, m.menu.cursor, 1)
	case key.Matches(msg, m.keys.Top):
		m.menu.cursor = m.nextSelectable(items, -1, 1)
	case key.Matches(msg, m.keys.Bottom):
		m.menu.cursor = m.nextSelectable(items, len(items), -1)
	case key.Matches(msg, m.keys.Menu):
		m.leaveMenu()
	case key.Matches(msg, m.keys.Confirm):
		item := items[m.menu.cursor]
		if item.info || !item.enabled || item.action == nil {
			return m, nil
		}
		cmd := item.action(&m)
		return m, cmd
	}
	return m, nil
}

func (m Model) handleSnoozeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	choices := tray.SnoozeChoices(m.snooze.Snoozed)
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.menu.sub > 0 {
			m.menu.sub--
		}
	case key.Matches(msg, m.keys.Down):
		if m.menu.sub < len(choices)-1 {
			m.menu.sub++
		}
	case msg.String() == "backspace", msg.String() == "h":
		m.menu.snoozes = false
	case key.Matches(msg, m.keys.Confirm):
		choice := choices[m.menu.sub]
		m.menu.snoozes = false
		proxy := m.svc.proxy
		return m, m.svc.do("snooze", func(ctx context.Context) error {
			return proxy.SetNotificationSnooze(ctx, choice.Minutes)
		})
	}
	return m, nil
}

func (m *Model) confirmRebuild() tea.Cmd {
	modal := newConfirm(
		"Rebuild the index?",
		"Rebuilding the index may take several minutes. Syncing resumes when it is done.",
		"Rebuild",
		m.svc.do("rebuild", m.svc.proxy.RebuildIndex),
	)
	return m.openModal(modal)
}

func (m Model) renderMenu() string {
	styles := m.theme.Styles()
	items := m.menuItems()
	var b strings.Builder
	b.WriteString("\n")
	for i, item := range items {
		line := "  " + item.label
		switch {
		case item.info:
			b.WriteString(styles.MutedText.Render(line))
		case i == m.menu.cursor && !m.menu.snoozes:
			b.WriteString(styles.Selected.Render(padRight(line, 36)))
		case !item.enabled:
			b.WriteString(styles.Disabled.Render(line))
		default:
			b.WriteString(styles.Text.Render(line))
		}
		b.WriteString("\n")
		if item.label == m.snooze.Label && m.menu.snoozes {
			b.WriteString(m.renderSnoozeChoices())
		}
		if item.rule || item.info && (i+1 == len(items) || !items[i+1].info) {
			b.WriteString(styles.FaintText.Render("  " + strings.Repeat("─", 34)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) renderSnoozeChoices() string {
	styles := m.theme.Styles()
	var b strings.Builder
	for i, choice := range tray.SnoozeChoices(m.snooze.Snoozed) {
		line := "      " + choice.Label
		if i == m.menu.sub {
			b.WriteString(styles.Selected.Render(padRight(line, 36)))
		} else {
			b.WriteString(styles.Text.Render(line))
		}
		b.WriteString("\n")
	}
	return b.String()
}
