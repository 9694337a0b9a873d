// Package activity keeps a rows.Store in step with the daemon's sync
// history.
package activity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/time/rate"

	"github.com/five82/tender/internal/daemon"
	"github.com/five82/tender/internal/rows"
)

const (
	DefaultInterval    = time.Second
	DefaultInsertPause = 2 * time.Millisecond
)

// HistorySource is the part of the daemon proxy the reconciler reads.
type HistorySource interface {
	History(ctx context.Context) ([]daemon.SyncEvent, error)
}

// Options tune a Reconciler. Zero values use the defaults; a negative
// InsertPause disables pacing.
type Options struct {
	Interval    time.Duration
	InsertPause time.Duration
	Logger      *slog.Logger
}

// Reconciler diffs fetched history against the identifiers it has already
// inserted and adds only new events to its store, newest on top.
//
// The store and the seen set are owned by whichever goroutine calls Cycle or
// Run; a Reconciler must not be driven from two goroutines at once.
type Reconciler struct {
	source   HistorySource
	store    *rows.Store
	seen     mapset.Set[daemon.EventID]
	limit    rate.Limit
	interval time.Duration
	logger   *slog.Logger
}

// New returns a Reconciler feeding store from source.
func New(source HistorySource, store *rows.Store, opts Options) *Reconciler {
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	pause := opts.InsertPause
	if pause == 0 {
		pause = DefaultInsertPause
	}
	limit := rate.Inf
	if pause > 0 {
		limit = rate.Every(pause)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	seen := mapset.NewThreadUnsafeSet[daemon.EventID]()
	for _, r := range store.Rows() {
		seen.Add(r.ID())
	}

	return &Reconciler{
		source:   source,
		store:    store,
		seen:     seen,
		limit:    limit,
		interval: interval,
		logger:   logger.With("component", "activity"),
	}
}

// Store returns the store the reconciler writes to.
func (r *Reconciler) Store() *rows.Store { return r.store }

// Seen reports whether id has been inserted.
func (r *Reconciler) Seen(id daemon.EventID) bool { return r.seen.Contains(id) }

// SeenCount returns the number of inserted identifiers.
func (r *Reconciler) SeenCount() int { return r.seen.Cardinality() }

// Cycle runs one reconciliation pass and returns the number of rows
// inserted.
//
// Events are walked in the order the daemon returns them (oldest first) and
// each unseen one is inserted at index 0, so the newest event ends on top.
// An identifier is marked seen only after its row is in the store. Each
// insertion is followed by a pause that limits how fast rows reach
// observers. When anything was inserted, every row's reveal state is
// refreshed since older files may have appeared or disappeared meanwhile.
func (r *Reconciler) Cycle(ctx context.Context) (int, error) {
	events, err := r.source.History(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch history: %w", err)
	}

	// Every insertion is followed by a full pause; the token is spent up
	// front so idle time between passes never banks one.
	pacer := rate.NewLimiter(r.limit, 1)
	pacer.Allow()

	inserted := 0
	for _, ev := range events {
		if r.seen.Contains(ev.ID) {
			continue
		}
		if _, err := r.store.Insert(0, ev); err != nil {
			return inserted, fmt.Errorf("insert event %s: %w", ev.ID, err)
		}
		r.seen.Add(ev.ID)
		inserted++

		if err := pacer.Wait(ctx); err != nil {
			return inserted, err
		}
	}

	if inserted > 0 {
		changed := r.store.RefreshAll()
		r.logger.Debug("history reconciled", "inserted", inserted, "reveal_changed", changed, "rows", r.store.Len())
	}
	return inserted, nil
}

// Run calls Cycle, sleeps for the interval and repeats until ctx is done.
// It returns ctx.Err() on cancellation and the wrapped error when the daemon
// becomes unreachable; other fetch failures are logged and retried.
func (r *Reconciler) Run(ctx context.Context) error {
	for {
		if _, err := r.Cycle(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, daemon.ErrCommunication) {
				return err
			}
			r.logger.Warn("history refresh failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.interval):
		}
	}
}
