package tray

import (
	"errors"
	"fmt"
)

// Phase is the client's view of where the daemon is in its lifecycle.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseLinking
	PhaseSyncing
	PhasePaused
	PhaseDegraded
)

func (p Phase) String() string {
	switch p {
	case PhaseLinking:
		return "linking"
	case PhaseSyncing:
		return "syncing"
	case PhasePaused:
		return "paused"
	case PhaseDegraded:
		return "degraded"
	default:
		return "disconnected"
	}
}

// Event drives a Machine.
type Event int

const (
	// EventLinkRequired: the daemon has no account linked yet.
	EventLinkRequired Event = iota
	// EventSyncing: sync was started or resumed.
	EventSyncing
	EventPaused
	// EventFatal: a fatal error stopped syncing.
	EventFatal
	// EventRecovered: a recovery dialog completed successfully.
	EventRecovered
)

func (e Event) String() string {
	switch e {
	case EventLinkRequired:
		return "link-required"
	case EventSyncing:
		return "syncing"
	case EventPaused:
		return "paused"
	case EventFatal:
		return "fatal"
	case EventRecovered:
		return "recovered"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// ErrInvalidTransition is returned when an event does not apply to the
// current phase.
var ErrInvalidTransition = errors.New("invalid phase transition")

// Machine tracks the Phase. The zero value starts disconnected.
type Machine struct {
	phase     Phase
	recovered bool
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	return m.phase
}

// Recovered reports whether a degraded machine may resume.
func (m *Machine) Recovered() bool {
	return m.phase == PhaseDegraded && m.recovered
}

// Fire applies ev. A degraded machine only returns to syncing after
// EventRecovered.
func (m *Machine) Fire(ev Event) error {
	next, ok := m.next(ev)
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, m.phase)
	}
	switch ev {
	case EventFatal:
		m.recovered = false
	case EventRecovered:
		m.recovered = true
	default:
		if next != PhaseDegraded {
			m.recovered = false
		}
	}
	m.phase = next
	return nil
}

func (m *Machine) next(ev Event) (Phase, bool) {
	if ev == EventFatal {
		return PhaseDegraded, true
	}
	switch m.phase {
	case PhaseDisconnected:
		switch ev {
		case EventLinkRequired:
			return PhaseLinking, true
		case EventSyncing:
			return PhaseSyncing, true
		case EventPaused:
			return PhasePaused, true
		}
	case PhaseLinking:
		if ev == EventSyncing {
			return PhaseSyncing, true
		}
	case PhaseSyncing:
		switch ev {
		case EventSyncing:
			return PhaseSyncing, true
		case EventPaused:
			return PhasePaused, true
		}
	case PhasePaused:
		switch ev {
		case EventSyncing:
			return PhaseSyncing, true
		case EventPaused:
			return PhasePaused, true
		}
	case PhaseDegraded:
		switch ev {
		case EventRecovered:
			return PhaseDegraded, true
		case EventSyncing:
			return PhaseSyncing, m.recovered
		}
	}
	return m.phase, false
}
