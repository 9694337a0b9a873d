package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tender/internal/daemon"
)

type issuesState struct {
	items  []daemon.SyncIssue
	cursor int
	err    error
}

func (s *issuesState) clamp() {
	if s.cursor >= len(s.items) {
		s.cursor = len(s.items) - 1
	}
	if s.cursor < 0 {
		s.cursor = 0
	}
}

// openIssues shows the sync issues view and starts polling it.
func (m *Model) openIssues() tea.Cmd {
	if m.view == ViewMenu {
		m.closeMenu()
	}
	if m.view == ViewIssues {
		return nil
	}
	m.view = ViewIssues
	m.issues.err = nil
	return tea.Batch(m.svc.fetchIssues(), issuesTickCmd())
}

func (m Model) handleIssuesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := &m.issues
	switch {
	case key.Matches(msg, m.keys.Up):
		if s.cursor > 0 {
			s.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if s.cursor < len(s.items)-1 {
			s.cursor++
		}
	case key.Matches(msg, m.keys.Top):
		s.cursor = 0
	case key.Matches(msg, m.keys.Bottom):
		s.cursor = len(s.items) - 1
		s.clamp()
	case key.Matches(msg, m.keys.Confirm):
		if s.cursor < len(s.items) {
			return m, m.svc.openCmd(s.items[s.cursor].LocalPath)
		}
	case key.Matches(msg, m.keys.Issues):
		m.goHome()
	}
	return m, nil
}

func (m Model) renderIssues() string {
	styles := m.theme.Styles()
	s := m.issues

	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render(fmt.Sprintf(" Sync Issues (%d)", len(s.items))))
	b.WriteString("\n")
	if s.err != nil {
		b.WriteString(styles.DangerText.Render(" " + s.err.Error()))
		b.WriteString("\n")
	}
	if len(s.items) == 0 {
		b.WriteString(styles.SuccessText.Render(" No sync issues."))
		return b.String()
	}

	width := m.width
	if width <= 0 {
		width = 80
	}
	for i, issue := range s.items {
		title := " " + truncate(issue.Title, width-2)
		if i == s.cursor {
			b.WriteString(styles.Selected.Render(padRight(title, width)))
		} else {
			b.WriteString(styles.WarningText.Render(title))
		}
		b.WriteString("\n")
		if issue.LocalPath != "" {
			b.WriteString(styles.MutedText.Render("   " + truncateMiddle(issue.LocalPath, width-4)))
			b.WriteString("\n")
		}
		if issue.Message != "" {
			b.WriteString(styles.FaintText.Render("   " + truncate(issue.Message, width-4)))
			b.WriteString("\n")
		}
	}
	return b.String()
}
