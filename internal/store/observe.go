package store

import (
	"sort"

	"github.com/roach88/lapor/internal/report"
)

// ChangeKind distinguishes inserts from updates.
type ChangeKind int

const (
	// ChangeInserted reports a record written for the first time.
	ChangeInserted ChangeKind = iota + 1
	// ChangeUpdated reports a modification of an existing record.
	ChangeUpdated
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeInserted:
		return "inserted"
	case ChangeUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// Change describes one committed write.
type Change struct {
	Kind ChangeKind
	ID   string

	// Status is the record's status after the write.
	Status report.Status

	// PrevStatus is the status before the write; empty for inserts.
	PrevStatus report.Status
}

// Observe registers fn to be called after every committed write that changed
// the stored state. Writes that leave the state untouched (an identical Put,
// an UpdateStatus to the current status) are not reported.
//
// fn runs synchronously on the writing goroutine while the write lock is held,
// so calls arrive in commit order and never overlap. fn may read from the
// store but must not write to it.
//
// The returned function removes the observer; it is safe to call more than once.
func (s *Store) Observe(fn func(Change)) (cancel func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

// notify delivers c to all observers in registration order.
// Callers hold writeMu.
func (s *Store) notify(c Change) {
	s.obsMu.Lock()
	keys := make([]int, 0, len(s.observers))
	for k := range s.observers {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	fns := make([]func(Change), 0, len(keys))
	for _, k := range keys {
		fns = append(fns, s.observers[k])
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}
