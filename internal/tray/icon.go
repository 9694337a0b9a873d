// Package tray keeps the status line and menu in step with the daemon.
package tray

import "github.com/five82/tender/internal/daemon"

// Icon is the status indicator shown in the tray line.
type Icon int

const (
	IconDisconnected Icon = iota
	IconIdle
	IconSyncing
	IconPaused
	IconSyncError
	IconError
)

func (i Icon) String() string {
	switch i {
	case IconIdle:
		return "idle"
	case IconSyncing:
		return "syncing"
	case IconPaused:
		return "paused"
	case IconSyncError:
		return "sync-error"
	case IconError:
		return "error"
	default:
		return "disconnected"
	}
}

// Glyph is the single-cell symbol rendered for the icon.
func (i Icon) Glyph() string {
	switch i {
	case IconIdle:
		return "✓"
	case IconSyncing:
		return "↻"
	case IconPaused:
		return "‖"
	case IconSyncError:
		return "ℹ"
	case IconError:
		return "✗"
	default:
		return "○"
	}
}

// IconForStatus maps a raw daemon status. Stopped shares the error icon;
// statuses the client does not know are shown as syncing.
func IconForStatus(s daemon.Status) Icon {
	switch s {
	case daemon.StatusIdle:
		return IconIdle
	case daemon.StatusSyncing:
		return IconSyncing
	case daemon.StatusPaused:
		return IconPaused
	case daemon.StatusStopped, daemon.StatusError:
		return IconError
	case daemon.StatusDisconnected:
		return IconDisconnected
	case daemon.StatusSyncError:
		return IconSyncError
	default:
		return IconSyncing
	}
}

// Snapshot is the per-poll view of the daemon used to pick the icon.
type Snapshot struct {
	Status     daemon.Status
	Paused     bool
	Running    bool
	SyncErrors int
}

// IconFor picks the icon with priority paused > stopped > sync errors while
// otherwise idle > raw status. A stopped daemon is never shown as idle.
func IconFor(s Snapshot) Icon {
	switch {
	case s.Paused:
		return IconPaused
	case !s.Running:
		return IconError
	case s.SyncErrors > 0 && s.Status == daemon.StatusIdle:
		return IconSyncError
	default:
		return IconForStatus(s.Status)
	}
}
