// Package dispatch decides how a fatal daemon error is presented to the
// user.
package dispatch

import (
	"github.com/five82/tender/internal/daemon"
)

// Action is the recovery path for a fatal error.
type Action int

const (
	// ActionCrash shows the traceback and offers to send a report.
	ActionCrash Action = iota
	// ActionSelectFolder re-runs sync folder selection.
	ActionSelectFolder
	// ActionRelinkRevoked asks for a new token after access was revoked.
	ActionRelinkRevoked
	// ActionRelinkExpired asks for a new token after access expired.
	ActionRelinkExpired
	// ActionAlert shows title and message only.
	ActionAlert
)

func (a Action) String() string {
	switch a {
	case ActionSelectFolder:
		return "select-folder"
	case ActionRelinkRevoked:
		return "relink-revoked"
	case ActionRelinkExpired:
		return "relink-expired"
	case ActionAlert:
		return "alert"
	default:
		return "crash"
	}
}

// Decision pairs an Action with the record it was derived from.
type Decision struct {
	Action Action
	Record daemon.ErrorRecord
}

// Classify maps a fatal error to its recovery action. The error type is
// checked before the classification tags.
func Classify(rec daemon.ErrorRecord) Action {
	switch rec.Type {
	case daemon.ErrTypeNoSyncDir:
		return ActionSelectFolder
	case daemon.ErrTypeTokenRevoked:
		return ActionRelinkRevoked
	case daemon.ErrTypeTokenExpired:
		return ActionRelinkExpired
	}
	if rec.Inherit(daemon.ClassAPIError) || rec.Inherit(daemon.ClassSyncError) {
		return ActionAlert
	}
	return ActionCrash
}

// Decide classifies rec.
func Decide(rec daemon.ErrorRecord) Decision {
	return Decision{Action: Classify(rec), Record: rec}
}

// Crash texts.
const (
	CrashTitle       = "An unexpected error occurred"
	crashSentMessage = "A report has been sent to the developers. " +
		"Please restart to continue syncing."
	crashAskMessage = "You can send a report to the developers or open an issue. " +
		"Please restart to continue syncing."
	AlwaysSendLabel = "Always send error reports"
	SendLabel       = "Send to Developers"
	DontSendLabel   = "Don't send"
)

// CrashPrompt describes the crash dialog for the current preference.
type CrashPrompt struct {
	Title   string
	Message string
	// AutoSend is set when the user already opted in; the report is sent
	// without asking and the dialog is informational.
	AutoSend bool
	// Buttons and Checkbox are empty when AutoSend is set.
	Buttons  []string
	Checkbox string
}

// Crash builds the crash prompt given the persisted "always send error
// reports" preference.
func Crash(alwaysSend bool) CrashPrompt {
	if alwaysSend {
		return CrashPrompt{Title: CrashTitle, Message: crashSentMessage, AutoSend: true}
	}
	return CrashPrompt{
		Title:    CrashTitle,
		Message:  crashAskMessage,
		Buttons:  []string{SendLabel, DontSendLabel},
		Checkbox: AlwaysSendLabel,
	}
}

// ConsentResult is the user's answer to a crash prompt.
type ConsentResult struct {
	Send       bool
	AlwaysSend bool
}

// Resolve returns whether to send the report and the preference to persist.
// The preference only ever turns on from the dialog.
func (p CrashPrompt) Resolve(pressed string, checkbox bool, current bool) ConsentResult {
	if p.AutoSend {
		return ConsentResult{Send: true, AlwaysSend: true}
	}
	return ConsentResult{
		Send:       pressed == SendLabel,
		AlwaysSend: current || checkbox,
	}
}
