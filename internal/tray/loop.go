package tray

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/five82/tender/internal/daemon"
	"github.com/five82/tender/internal/dispatch"
)

// Polling intervals.
const (
	OpenInterval   = 500 * time.Millisecond
	ClosedInterval = 2 * time.Second
)

// Source is the part of the daemon proxy the status loop reads and
// commands.
type Source interface {
	Status(ctx context.Context) (daemon.Status, error)
	Paused(ctx context.Context) (bool, error)
	Running(ctx context.Context) (bool, error)
	SyncErrors(ctx context.Context) ([]daemon.SyncIssue, error)
	FatalErrors(ctx context.Context) ([]daemon.ErrorRecord, error)
	ClearFatalErrors(ctx context.Context) error
	StopSync(ctx context.Context) error
	State(ctx context.Context, namespace, key string) (string, error)
	NotificationSnooze(ctx context.Context) (float64, error)
}

// Presenter receives the loop's output. Calls are made from the loop's
// goroutine; implementations forward them to whatever owns the screen.
type Presenter interface {
	SetIcon(Icon)
	SetLabels(Labels)
	SetSnooze(Snooze)
	// Degrade is called when a fatal error stopped syncing.
	Degrade(Labels)
	Dispatch(dispatch.Decision)
	// Exit is called once when the daemon can no longer be reached.
	Exit(error)
}

// Loop polls daemon health and pushes icon, label and error updates to a
// Presenter.
type Loop struct {
	presenter Presenter
	src       Source
	logger    *slog.Logger
	now       func() time.Time
	open      time.Duration
	closed    time.Duration
	menuOpen  atomic.Bool
	snoozeDue atomic.Bool
	degraded  atomic.Bool
	wake      chan struct{}
	exitOnce  sync.Once

	// Touched only by the loop goroutine.
	icon    Icon
	iconSet bool
	last    Labels
}

// Options tune a Loop. Zero values select the defaults.
type Options struct {
	OpenInterval   time.Duration
	ClosedInterval time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
}

// NewLoop builds a status loop reading from src and presenting to p.
func NewLoop(src Source, p Presenter, opts Options) *Loop {
	l := &Loop{
		presenter: p,
		src:       src,
		logger:    opts.Logger,
		now:       opts.Now,
		open:      opts.OpenInterval,
		closed:    opts.ClosedInterval,
		wake:      make(chan struct{}, 1),
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.open <= 0 {
		l.open = OpenInterval
	}
	if l.closed <= 0 {
		l.closed = ClosedInterval
	}
	l.snoozeDue.Store(true)
	return l
}

// SetMenuOpen records menu visibility. Opening the menu wakes the loop so
// labels are fresh immediately and re-reads the snooze state.
func (l *Loop) SetMenuOpen(open bool) {
	was := l.menuOpen.Swap(open)
	if open && !was {
		l.snoozeDue.Store(true)
		l.Wake()
	}
}

// MenuOpen reports the last value passed to SetMenuOpen.
func (l *Loop) MenuOpen() bool {
	return l.menuOpen.Load()
}

// RefreshSnooze schedules a snooze label refresh on the next cycle and wakes
// the loop.
func (l *Loop) RefreshSnooze() {
	l.snoozeDue.Store(true)
	l.Wake()
}

// Recovered lifts the degraded state entered after a fatal error so the
// pause item follows the daemon again.
func (l *Loop) Recovered() {
	if l.degraded.CompareAndSwap(true, false) {
		l.Wake()
	}
}

// Degraded reports whether a fatal error stopped syncing and no recovery
// has been reported since.
func (l *Loop) Degraded() bool {
	return l.degraded.Load()
}

// Wake cuts the current sleep short. It never blocks.
func (l *Loop) Wake() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Interval is the current sleep between cycles.
func (l *Loop) Interval() time.Duration {
	if l.menuOpen.Load() {
		return l.open
	}
	return l.closed
}

// Cycle runs one poll: icon, labels when the menu is visible, snooze when
// due, then the fatal error check.
func (l *Loop) Cycle(ctx context.Context) error {
	snap, err := l.snapshot(ctx)
	if err != nil {
		return err
	}
	l.setIcon(IconFor(snap))

	if l.menuOpen.Load() {
		labels, err := l.labels(ctx, snap)
		if err != nil {
			return err
		}
		if l.degraded.Load() {
			labels = labels.Degraded()
		}
		l.last = labels
		l.presenter.SetLabels(labels)
	}

	if l.snoozeDue.CompareAndSwap(true, false) {
		minutes, err := l.src.NotificationSnooze(ctx)
		if err != nil {
			l.snoozeDue.Store(true)
			return fmt.Errorf("read snooze: %w", err)
		}
		l.presenter.SetSnooze(SnoozeFor(minutes, l.now()))
	}

	return l.checkFatal(ctx)
}

// Run polls until ctx is done or the daemon becomes unreachable. On a
// communication failure Exit is called and polling stops. Other errors are
// logged and the loop carries on.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := l.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, daemon.ErrCommunication) {
				l.exit(err)
				return err
			}
			l.logger.Warn("status poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		case <-time.After(l.Interval()):
		}
	}
}

func (l *Loop) exit(err error) {
	l.exitOnce.Do(func() {
		l.logger.Error("daemon unreachable, exiting", "error", err)
		l.presenter.Exit(err)
	})
}

func (l *Loop) snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	issues, err := l.src.SyncErrors(ctx)
	if err != nil {
		return snap, fmt.Errorf("read sync errors: %w", err)
	}
	snap.SyncErrors = len(issues)
	if snap.Status, err = l.src.Status(ctx); err != nil {
		return snap, fmt.Errorf("read status: %w", err)
	}
	if snap.Paused, err = l.src.Paused(ctx); err != nil {
		return snap, fmt.Errorf("read paused: %w", err)
	}
	if snap.Running, err = l.src.Running(ctx); err != nil {
		return snap, fmt.Errorf("read running: %w", err)
	}
	return snap, nil
}

func (l *Loop) labels(ctx context.Context, snap Snapshot) (Labels, error) {
	email, usage, err := l.account(ctx)
	if err != nil {
		return Labels{}, err
	}
	return LabelsFor(snap, email, usage), nil
}

func (l *Loop) account(ctx context.Context) (email, usage string, err error) {
	if usage, err = l.src.State(ctx, "account", "usage"); err != nil {
		return "", "", fmt.Errorf("read usage: %w", err)
	}
	if email, err = l.src.State(ctx, "account", "email"); err != nil {
		return "", "", fmt.Errorf("read email: %w", err)
	}
	return email, usage, nil
}

func (l *Loop) setIcon(icon Icon) {
	if l.iconSet && l.icon == icon {
		return
	}
	l.icon, l.iconSet = icon, true
	l.presenter.SetIcon(icon)
}

func (l *Loop) checkFatal(ctx context.Context) error {
	errs, err := l.src.FatalErrors(ctx)
	if err != nil {
		return fmt.Errorf("read fatal errors: %w", err)
	}
	if len(errs) == 0 {
		return nil
	}
	if err := l.src.ClearFatalErrors(ctx); err != nil {
		return fmt.Errorf("clear fatal errors: %w", err)
	}

	l.degraded.Store(true)
	l.setIcon(IconError)
	status, err := l.src.Status(ctx)
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	prev := l.last
	if email, usage, err := l.account(ctx); err != nil {
		l.logger.Debug("keeping cached account labels", "error", err)
	} else {
		prev.Email, prev.Usage = email, usage
	}
	l.presenter.Degrade(DegradedLabels(prev, status))

	if err := l.src.StopSync(ctx); err != nil {
		return fmt.Errorf("stop sync: %w", err)
	}

	last := errs[len(errs)-1]
	decision := dispatch.Decide(last)
	l.logger.Info("fatal daemon error",
		"type", last.Type,
		"title", last.Title,
		"action", decision.Action.String(),
		"pending", len(errs))
	l.presenter.Dispatch(decision)
	return nil
}
