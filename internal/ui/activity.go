package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tender/internal/activity"
	"github.com/five82/tender/internal/rows"
)

// activityState mirrors the store of the running history session.
type activityState struct {
	gen     int
	cancel  context.CancelFunc
	running bool
	rows    []rows.Display
	cursor  int
	err     error
}

// openActivity starts a fresh history session. Each session owns a new store
// and reconciler; notifications from older sessions are dropped by gen.
func (m *Model) openActivity() tea.Cmd {
	if m.view == ViewMenu {
		m.closeMenu()
	}
	m.view = ViewActivity
	if m.activity.running {
		return nil
	}

	gen := m.activity.gen + 1
	ctx, cancel := context.WithCancel(m.ctx)
	m.activity = activityState{gen: gen, cancel: cancel, running: true}

	store := rows.NewStore(nil)
	store.Observe(m.bridge.observe(gen))
	rec := activity.New(m.svc.proxy, store, activity.Options{
		Interval: m.interval,
		Logger:   m.logger,
	})
	return func() tea.Msg {
		return activityStoppedMsg{gen: gen, err: rec.Run(ctx)}
	}
}

// closeActivity cancels the running session, if any.
func (m *Model) closeActivity() {
	if m.activity.cancel != nil {
		m.activity.cancel()
		m.activity.cancel = nil
	}
	m.activity.running = false
}

func (m *Model) activityStopped(msg activityStoppedMsg) {
	if msg.gen != m.activity.gen {
		return
	}
	m.activity.running = false
	if msg.err != nil && !errors.Is(msg.err, context.Canceled) {
		m.activity.err = msg.err
		m.logger.Warn("history loop stopped", "error", msg.err)
	}
}

// applyRow replays one store notification onto the mirrored rows. The
// selection stays on the same row unless it is at the top, where it follows
// the newest entry.
func (m *Model) applyRow(msg rowMsg) {
	a := &m.activity
	if msg.gen != a.gen {
		return
	}
	switch msg.kind {
	case rows.KindInsert:
		if msg.index < 0 || msg.index > len(a.rows) {
			return
		}
		a.rows = append(a.rows, rows.Display{})
		copy(a.rows[msg.index+1:], a.rows[msg.index:])
		a.rows[msg.index] = msg.display
		if a.cursor > 0 && msg.index <= a.cursor {
			a.cursor++
		}
	case rows.KindRemove:
		if msg.index < 0 || msg.index >= len(a.rows) {
			return
		}
		a.rows = append(a.rows[:msg.index], a.rows[msg.index+1:]...)
		if msg.index < a.cursor {
			a.cursor--
		}
	case rows.KindClear:
		a.rows = nil
		a.cursor = 0
	case rows.KindChange:
		if msg.index >= 0 && msg.index < len(a.rows) {
			a.rows[msg.index] = msg.display
		}
	}
	a.clamp()
}

func (a *activityState) clamp() {
	if a.cursor >= len(a.rows) {
		a.cursor = len(a.rows) - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
}

func (a activityState) selected() (rows.Display, bool) {
	if a.cursor < 0 || a.cursor >= len(a.rows) {
		return rows.Display{}, false
	}
	return a.rows[a.cursor], true
}

func (m Model) handleActivityKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	a := &m.activity
	switch {
	case key.Matches(msg, m.keys.Up):
		if a.cursor > 0 {
			a.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if a.cursor < len(a.rows)-1 {
			a.cursor++
		}
	case key.Matches(msg, m.keys.Top):
		a.cursor = 0
	case key.Matches(msg, m.keys.Bottom):
		a.cursor = len(a.rows) - 1
		a.clamp()
	case key.Matches(msg, m.keys.Confirm):
		if d, ok := a.selected(); ok {
			return m, m.svc.openCmd(d.Path)
		}
	case key.Matches(msg, m.keys.Reveal):
		if d, ok := a.selected(); ok && d.Reveal {
			return m, m.svc.openCmd(revealTarget(d))
		}
	case key.Matches(msg, m.keys.Activity):
		m.goHome()
	}
	return m, nil
}

func (m Model) renderActivity() string {
	styles := m.theme.Styles()
	a := m.activity
	height := m.contentHeight()

	var b strings.Builder
	title := fmt.Sprintf("Recent Changes (%d)", len(a.rows))
	b.WriteString(styles.AccentText.Bold(true).Render(" " + title))
	b.WriteString("\n")

	switch {
	case a.err != nil:
		b.WriteString(styles.DangerText.Render(" " + a.err.Error()))
		b.WriteString("\n")
		height--
	case len(a.rows) == 0:
		b.WriteString(styles.FaintText.Render(" No recent changes."))
		return b.String()
	}

	visible := height - 1
	if visible < 1 {
		visible = 1
	}
	offset := 0
	if a.cursor >= visible {
		offset = a.cursor - visible + 1
	}

	width := m.width
	if width <= 0 {
		width = 80
	}
	nameWidth := max(width/3, 12)
	whereWidth := max(width-nameWidth-22, 10)

	now := time.Now()
	end := min(offset+visible, len(a.rows))
	for i := offset; i < end; i++ {
		d := a.rows[i]
		line := fmt.Sprintf(" %s %s %s %s",
			d.Icon,
			padRight(truncate(d.Name, nameWidth), nameWidth),
			padRight(truncateMiddle(d.Where, whereWidth), whereWidth),
			rows.Age(d.When, now))
		switch {
		case i == a.cursor:
			b.WriteString(styles.Selected.Render(padRight(line, width)))
		case !d.Reveal:
			b.WriteString(styles.MutedText.Render(line))
		default:
			b.WriteString(styles.Text.Render(line))
		}
		b.WriteString("\n")
	}
	if d, ok := a.selected(); ok {
		detail := d.Change
		if d.User != "" {
			detail += " by " + d.User
		}
		if d.Time != "" {
			detail += " on " + d.Time
		}
		b.WriteString(styles.FaintText.Render(" " + detail))
	}
	return b.String()
}
