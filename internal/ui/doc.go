// Package ui renders the client as a Bubble Tea program.
//
// The status line at the top always shows the tray icon and status text. The
// menu (m), recent changes (a) and sync issues (s) views replace the content
// area below it, and dialogs such as relinking or crash reports are shown as
// modals on top.
//
// Background loops never touch the model. The status loop talks to a Bridge,
// which implements tray.Presenter and feeds messages to Update through a
// command that is re-armed after every delivery. History notifications reach
// the model the same way, as display copies tagged with the session that
// produced them.
package ui
