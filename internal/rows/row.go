package rows

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/five82/tender/internal/daemon"
)

// TimeLayout formats the change time column.
const TimeLayout = "02 Jan 2006 15:04"

// Row is the view-model for one SyncEvent. Display fields are derived on
// first access and cached; RevealEnabled is refreshed explicitly.
type Row struct {
	Event daemon.SyncEvent

	exists  func(string) bool
	derived *derived

	revealKnown bool
	reveal      bool
}

type derived struct {
	icon     string
	dir      string
	base     string
	location string
	change   string
	time     string
}

func newRow(ev daemon.SyncEvent, exists func(string) bool) *Row {
	return &Row{Event: ev, exists: exists}
}

func (r *Row) fields() *derived {
	if r.derived != nil {
		return r.derived
	}
	dir, base := filepath.Split(r.Event.LocalPath)
	dir = filepath.Clean(dir)
	d := &derived{
		icon:     IconFor(r.Event),
		dir:      dir,
		base:     base,
		location: filepath.Base(dir),
		change:   capitalize(string(r.Event.ChangeType)),
	}
	if t := r.Event.Time(); !t.IsZero() {
		d.time = t.Format(TimeLayout)
	}
	r.derived = d
	return d
}

// ID returns the identifier of the underlying event.
func (r *Row) ID() daemon.EventID { return r.Event.ID }

// Filename returns the icon glyph and base name.
func (r *Row) Filename() (icon, name string) {
	d := r.fields()
	return d.icon, d.base
}

// Dir is the parent directory of the item.
func (r *Row) Dir() string { return r.fields().dir }

// Location is the name of the parent directory.
func (r *Row) Location() string { return r.fields().location }

// Change is the capitalized change type.
func (r *Row) Change() string { return r.fields().change }

// Time is the formatted change time, empty when unknown.
func (r *Row) Time() string { return r.fields().time }

// User is the display name of the account that made the change.
func (r *Row) User() string { return r.Event.ChangeUserName }

// Age is the change time relative to now ("3 minutes ago").
func (r *Row) Age(now time.Time) string {
	return Age(r.Event.Time(), now)
}

// Age formats t relative to now, empty when t is unknown.
func Age(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// RevealEnabled reports whether the item existed on disk when last checked.
func (r *Row) RevealEnabled() bool {
	if !r.revealKnown {
		r.reveal = r.exists(r.Event.LocalPath)
		r.revealKnown = true
	}
	return r.reveal
}

// Refresh re-checks whether the item exists and reports whether the reveal
// state changed.
func (r *Row) Refresh() bool {
	prev, known := r.reveal, r.revealKnown
	r.reveal = r.exists(r.Event.LocalPath)
	r.revealKnown = true
	return known && prev != r.reveal
}

// Display is an immutable copy of a row's display values, safe to hand to
// another goroutine.
type Display struct {
	ID     daemon.EventID
	Path   string
	Icon   string
	Name   string
	Dir    string
	Where  string
	Change string
	Time   string
	// When is the raw change time; Age is relative to the moment of the
	// snapshot.
	When   time.Time
	Age    string
	User   string
	Folder bool
	Reveal bool
}

// Display snapshots the row.
func (r *Row) Display() Display {
	when := r.Event.Time()
	d := r.fields()
	return Display{
		ID:     r.Event.ID,
		Path:   r.Event.LocalPath,
		Icon:   d.icon,
		Name:   d.base,
		Dir:    d.dir,
		Where:  d.location,
		Change: d.change,
		Time:   d.time,
		When:   when,
		Age:    Age(when, time.Now()),
		User:   r.Event.ChangeUserName,
		Folder: r.Event.IsFolder(),
		Reveal: r.RevealEnabled(),
	}
}

// IconFor resolves a glyph for an event from its item type and extension.
func IconFor(ev daemon.SyncEvent) string {
	if ev.IsFolder() {
		return "▸"
	}
	switch strings.ToLower(filepath.Ext(ev.LocalPath)) {
	case ".jpg", ".jpeg", ".png", ".gif", ".heic", ".webp", ".svg":
		return "◩"
	case ".zip", ".tar", ".gz", ".tgz", ".7z", ".rar":
		return "▣"
	case ".mp3", ".flac", ".wav", ".m4a", ".mp4", ".mov", ".mkv":
		return "♪"
	case ".pdf", ".doc", ".docx", ".odt", ".txt", ".md", ".rtf":
		return "≡"
	default:
		return "·"
	}
}

func pathExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Lstat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}
