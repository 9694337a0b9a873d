package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tender/internal/daemon"
	"github.com/five82/tender/internal/dispatch"
	"github.com/five82/tender/internal/rows"
	"github.com/five82/tender/internal/tray"
)

// Messages delivered from background loops.
type (
	iconMsg     tray.Icon
	labelsMsg   tray.Labels
	snoozeMsg   tray.Snooze
	degradeMsg  tray.Labels
	dispatchMsg dispatch.Decision
	exitMsg     struct{ err error }
	updateMsg   struct {
		check  daemon.UpdateCheck
		manual bool
		err    error
	}

	// rowMsg mirrors one rows.Store notification. gen ties it to the activity
	// session that produced it.
	rowMsg struct {
		gen     int
		kind    rows.Kind
		index   int
		display rows.Display
	}
	activityStoppedMsg struct {
		gen int
		err error
	}
)

// Bridge carries messages from background goroutines into the program. It
// implements tray.Presenter. Sends block until the program reads them or the
// bridge is closed.
type Bridge struct {
	msgs chan tea.Msg
	done chan struct{}
	once sync.Once
}

var _ tray.Presenter = (*Bridge)(nil)

// NewBridge returns an open Bridge.
func NewBridge() *Bridge {
	return &Bridge{
		msgs: make(chan tea.Msg, 64),
		done: make(chan struct{}),
	}
}

// Close unblocks pending and future sends. It is safe to call more than once.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.done) })
}

func (b *Bridge) send(msg tea.Msg) {
	select {
	case b.msgs <- msg:
	case <-b.done:
	}
}

// wait is the command that delivers the next bridged message.
func (b *Bridge) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-b.msgs:
			return msg
		case <-b.done:
			return nil
		}
	}
}

func (b *Bridge) SetIcon(icon tray.Icon)       { b.send(iconMsg(icon)) }
func (b *Bridge) SetLabels(l tray.Labels)      { b.send(labelsMsg(l)) }
func (b *Bridge) SetSnooze(s tray.Snooze)      { b.send(snoozeMsg(s)) }
func (b *Bridge) Degrade(l tray.Labels)        { b.send(degradeMsg(l)) }
func (b *Bridge) Dispatch(d dispatch.Decision) { b.send(dispatchMsg(d)) }
func (b *Bridge) Exit(err error)               { b.send(exitMsg{err: err}) }

// UpdateAvailable announces a release found by the periodic update check.
func (b *Bridge) UpdateAvailable(check daemon.UpdateCheck) {
	b.send(updateMsg{check: check})
}

// observe forwards store notifications for activity session gen as display
// copies, so rows never cross goroutines.
func (b *Bridge) observe(gen int) rows.Listener {
	return func(n rows.Notification) {
		msg := rowMsg{gen: gen, kind: n.Kind, index: n.Index}
		if n.Row != nil {
			msg.display = n.Row.Display()
		}
		b.send(msg)
	}
}
