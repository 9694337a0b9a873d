// Package rows holds the observable list of history rows shown by the
// activity view.
package rows

import (
	"errors"
	"fmt"

	"github.com/five82/tender/internal/daemon"
)

// ErrOutOfRange is returned for row indexes outside the store.
var ErrOutOfRange = errors.New("row index out of range")

// Kind identifies a structural change to a Store.
type Kind int

const (
	KindInsert Kind = iota
	KindPreRemove
	KindRemove
	KindClear
	KindChange
)

func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindPreRemove:
		return "pre_remove"
	case KindRemove:
		return "remove"
	case KindClear:
		return "clear"
	case KindChange:
		return "change"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Notification describes one mutation. Row is nil for KindClear.
type Notification struct {
	Kind  Kind
	Index int
	Row   *Row
}

// Listener receives notifications synchronously, before the mutating call
// returns.
type Listener func(Notification)

// Store is an ordered, observable list of history rows. Insertion order is
// display order.
//
// A Store is not safe for concurrent use. It belongs to the goroutine that
// mutates it; listeners that need to hand rows elsewhere should pass
// Row.Display copies.
type Store struct {
	rows      []*Row
	listeners []Listener
	exists    func(string) bool
}

// Option configures a Store.
type Option func(*Store)

// WithExists overrides the filesystem check used for the reveal state.
func WithExists(fn func(string) bool) Option {
	return func(s *Store) { s.exists = fn }
}

// NewStore returns a store seeded with events, in order, without emitting
// notifications.
func NewStore(events []daemon.SyncEvent, opts ...Option) *Store {
	s := &Store{exists: pathExists}
	for _, opt := range opts {
		opt(s)
	}
	s.rows = make([]*Row, 0, len(events))
	for _, ev := range events {
		s.rows = append(s.rows, newRow(ev, s.exists))
	}
	return s
}

// Observe registers fn. Listeners run in registration order.
func (s *Store) Observe(fn Listener) {
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify(n Notification) {
	for _, fn := range s.listeners {
		fn(n)
	}
}

// Len returns the number of rows.
func (s *Store) Len() int {
	return len(s.rows)
}

// Get returns the row at index.
func (s *Store) Get(index int) (*Row, error) {
	if index < 0 || index >= len(s.rows) {
		return nil, fmt.Errorf("get %d of %d: %w", index, len(s.rows), ErrOutOfRange)
	}
	return s.rows[index], nil
}

// Rows returns the rows in display order. The slice is a copy; the rows are
// shared.
func (s *Store) Rows() []*Row {
	out := make([]*Row, len(s.rows))
	copy(out, s.rows)
	return out
}

// Contains reports whether a row for id is present.
func (s *Store) Contains(id daemon.EventID) bool {
	for _, r := range s.rows {
		if r.Event.ID == id {
			return true
		}
	}
	return false
}

// Append adds a row for ev at the end.
func (s *Store) Append(ev daemon.SyncEvent) *Row {
	row := newRow(ev, s.exists)
	s.rows = append(s.rows, row)
	s.notify(Notification{Kind: KindInsert, Index: len(s.rows) - 1, Row: row})
	return row
}

// Insert adds a row for ev at index; index may equal Len.
func (s *Store) Insert(index int, ev daemon.SyncEvent) (*Row, error) {
	if index < 0 || index > len(s.rows) {
		return nil, fmt.Errorf("insert at %d of %d: %w", index, len(s.rows), ErrOutOfRange)
	}
	row := newRow(ev, s.exists)
	s.rows = append(s.rows, nil)
	copy(s.rows[index+1:], s.rows[index:])
	s.rows[index] = row
	s.notify(Notification{Kind: KindInsert, Index: index, Row: row})
	return row, nil
}

// Remove deletes the row at index. Listeners see KindPreRemove while the row
// is still present and KindRemove after it is gone.
func (s *Store) Remove(index int) error {
	if index < 0 || index >= len(s.rows) {
		return fmt.Errorf("remove %d of %d: %w", index, len(s.rows), ErrOutOfRange)
	}
	row := s.rows[index]
	s.notify(Notification{Kind: KindPreRemove, Index: index, Row: row})
	s.rows = append(s.rows[:index], s.rows[index+1:]...)
	s.notify(Notification{Kind: KindRemove, Index: index, Row: row})
	return nil
}

// Clear drops every row and emits a single KindClear.
func (s *Store) Clear() {
	clear(s.rows)
	s.rows = s.rows[:0]
	s.notify(Notification{Kind: KindClear, Index: -1})
}

// RefreshAll re-checks the reveal state of every row and emits KindChange
// for the rows whose state flipped. It returns the number of changed rows.
func (s *Store) RefreshAll() int {
	changed := 0
	for i, r := range s.rows {
		if r.Refresh() {
			changed++
			s.notify(Notification{Kind: KindChange, Index: i, Row: r})
		}
	}
	return changed
}
