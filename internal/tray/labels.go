package tray

import (
	"fmt"
	"time"

	"github.com/five82/tender/internal/daemon"
)

// Menu wording.
const (
	PauseText  = "Pause Syncing"
	ResumeText = "Resume Syncing"
	StartText  = "Start Syncing"

	snoozeText = "Snooze Notifications"
)

// Labels are the menu texts refreshed while the menu is visible.
type Labels struct {
	Status       string
	Pause        string
	PauseEnabled bool
	SyncIssues   string
	IssueCount   int
	Email        string
	Usage        string
}

// LabelsFor builds the labels for one poll.
func LabelsFor(s Snapshot, email, usage string) Labels {
	l := Labels{
		Status:       string(s.Status),
		Pause:        PauseText,
		PauseEnabled: true,
		SyncIssues:   SyncIssuesLabel(s.SyncErrors),
		IssueCount:   s.SyncErrors,
		Email:        email,
		Usage:        usage,
	}
	switch {
	case s.Paused:
		l.Pause = ResumeText
	case !s.Running:
		l.Pause = StartText
	}
	return l
}

// Degraded returns l with the pause item locked on resume. It stays that way
// until a recovery dialog succeeds.
func (l Labels) Degraded() Labels {
	l.Pause = ResumeText
	l.PauseEnabled = false
	return l
}

// DegradedLabels are shown after a fatal error stopped syncing. Account
// lines and the issue count carry over from prev.
func DegradedLabels(prev Labels, status daemon.Status) Labels {
	return Labels{
		Status:     string(status),
		SyncIssues: SyncIssuesLabel(prev.IssueCount),
		IssueCount: prev.IssueCount,
		Email:      prev.Email,
		Usage:      prev.Usage,
	}.Degraded()
}

// SyncIssuesLabel is the sync issues menu item text.
func SyncIssuesLabel(n int) string {
	if n > 0 {
		return fmt.Sprintf("Show Sync Issues (%d)...", n)
	}
	return "Show Sync Issues..."
}

// Snooze describes the notification snooze state.
type Snooze struct {
	Label   string
	Snoozed bool
	Until   time.Time
}

// SnoozeFor builds the snooze menu label for minutes remaining at now.
func SnoozeFor(minutes float64, now time.Time) Snooze {
	if minutes <= 0 {
		return Snooze{Label: snoozeText}
	}
	eta := now.Add(time.Duration(minutes * float64(time.Minute)))
	return Snooze{
		Label:   "Notifications snoozed until " + eta.Format("15:04"),
		Snoozed: true,
		Until:   eta,
	}
}

// SnoozeChoice is an entry in the snooze submenu.
type SnoozeChoice struct {
	Label   string
	Minutes float64
}

// SnoozeChoices returns the submenu entries; "Turn on notifications" is
// offered only while snoozed.
func SnoozeChoices(snoozed bool) []SnoozeChoice {
	choices := []SnoozeChoice{
		{"For the next 30 minutes", 30},
		{"For the next hour", 60},
		{"For the next 8 hours", 480},
	}
	if snoozed {
		choices = append([]SnoozeChoice{{"Turn on notifications", 0}}, choices...)
	}
	return choices
}
