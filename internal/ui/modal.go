package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Modal is the interface for modal dialogs.
// The Update method returns the updated modal, a command, and a bool indicating if the modal should close.
type Modal interface {
	Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool)
	View(theme Theme, width, height int) string
}

// Messages modals send back to the model.
type (
	quitMsg      struct{}
	recoveredMsg struct{}
	openModalMsg struct{ modal Modal }
)

func emit(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// placeModal centers a bordered dialog.
func placeModal(theme Theme, width, height, modalWidth int, body string) string {
	if modalWidth > width-4 && width > 8 {
		modalWidth = width - 4
	}
	box := theme.Styles().Modal.Width(modalWidth).Render(body)
	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		box,
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(theme.Background)),
	)
}

func renderButtons(styles Styles, labels []string, focus int) string {
	parts := make([]string, len(labels))
	for i, label := range labels {
		text := "[ " + label + " ]"
		if i == focus {
			parts[i] = styles.Selected.Bold(true).Render(text)
		} else {
			parts[i] = styles.MutedText.Render(text)
		}
	}
	return strings.Join(parts, "  ")
}

func cycleFocus(msg tea.KeyMsg, focus, n int) int {
	if n == 0 {
		return 0
	}
	switch msg.String() {
	case "left", "shift+tab":
		return (focus + n - 1) % n
	default:
		return (focus + 1) % n
	}
}

// alertModal shows a title and message.
type alertModal struct {
	title   string
	message string
	danger  bool
}

func newAlert(title, message string, danger bool) *alertModal {
	return &alertModal{title: title, message: message, danger: danger}
}

func (a *alertModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	if k, ok := msg.(tea.KeyMsg); ok {
		if key.Matches(k, keys.Confirm) || key.Matches(k, keys.Escape) {
			return a, nil, true
		}
	}
	return a, nil, false
}

func (a *alertModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	title := styles.Text.Bold(true)
	if a.danger {
		title = styles.DangerText
	}
	var b strings.Builder
	b.WriteString(title.Render(a.title))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render(a.message))
	b.WriteString("\n\n")
	b.WriteString(renderButtons(styles, []string{"OK"}, 0))
	return placeModal(theme, width, height, 56, b.String())
}

// confirmModal asks before running onConfirm.
type confirmModal struct {
	title     string
	message   string
	buttons   []string
	focus     int
	onConfirm tea.Cmd
}

func newConfirm(title, message, confirmLabel string, onConfirm tea.Cmd) *confirmModal {
	return &confirmModal{
		title:     title,
		message:   message,
		buttons:   []string{confirmLabel, "Cancel"},
		onConfirm: onConfirm,
	}
}

func (c *confirmModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil, false
	}
	switch {
	case key.Matches(k, keys.NextButton):
		c.focus = cycleFocus(k, c.focus, len(c.buttons))
	case key.Matches(k, keys.Escape):
		return c, nil, true
	case key.Matches(k, keys.Confirm):
		if c.focus == 0 {
			return c, c.onConfirm, true
		}
		return c, nil, true
	}
	return c, nil, false
}

func (c *confirmModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render(c.title))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render(c.message))
	b.WriteString("\n\n")
	b.WriteString(renderButtons(styles, c.buttons, c.focus))
	return placeModal(theme, width, height, 60, b.String())
}

// updateModal announces a new release with its notes.
type updateModal struct {
	version string
	notes   viewport.Model
}

func newUpdateModal(version, notes string) *updateModal {
	vp := viewport.New(56, 10)
	vp.SetContent(strings.TrimSpace(notes))
	return &updateModal{version: version, notes: vp}
}

func (u *updateModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return u, nil, false
	}
	switch {
	case key.Matches(k, keys.Confirm), key.Matches(k, keys.Escape):
		return u, nil, true
	case key.Matches(k, keys.Up):
		u.notes.ScrollUp(1)
	case key.Matches(k, keys.Down):
		u.notes.ScrollDown(1)
	}
	return u, nil, false
}

func (u *updateModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder
	b.WriteString(styles.SuccessText.Render("A new version is available"))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render("Version " + u.version + " is ready to install."))
	if strings.TrimSpace(u.notes.View()) != "" {
		b.WriteString("\n\n")
		b.WriteString(styles.MutedText.Render("Release notes"))
		b.WriteString("\n")
		b.WriteString(u.notes.View())
	}
	b.WriteString("\n\n")
	b.WriteString(renderButtons(styles, []string{"OK"}, 0))
	return placeModal(theme, width, height, 64, b.String())
}
