package connectivity

import (
	"sort"
	"sync"
)

// Monitor reports the current connectivity.
type Monitor interface {
	Online() bool
}

// Notifier delivers connectivity-restored events.
type Notifier interface {
	// OnRestored registers fn for every offline->online transition.
	// The returned function removes it and is safe to call more than once.
	OnRestored(fn func()) (cancel func())
}

// listeners is the restore-listener registry shared by Switch and Prober.
type listeners struct {
	mu   sync.Mutex
	fns  map[int]func()
	next int
}

func (l *listeners) add(fn func()) func() {
	l.mu.Lock()
	if l.fns == nil {
		l.fns = make(map[int]func())
	}
	id := l.next
	l.next++
	l.fns[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.fns, id)
		l.mu.Unlock()
	}
}

// fire calls every listener in registration order, outside the lock.
func (l *listeners) fire() {
	l.mu.Lock()
	keys := make([]int, 0, len(l.fns))
	for k := range l.fns {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	fns := make([]func(), 0, len(keys))
	for _, k := range keys {
		fns = append(fns, l.fns[k])
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Switch is a connectivity flag flipped by hand.
type Switch struct {
	mu     sync.Mutex
	online bool
	ls     listeners
}

// NewSwitch creates a switch in the given state.
func NewSwitch(online bool) *Switch {
	return &Switch{online: online}
}

// Online implements Monitor.
func (s *Switch) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// SetOnline changes the state. Restore listeners run synchronously on the
// caller's goroutine when the state moves from offline to online.
func (s *Switch) SetOnline(online bool) {
	s.mu.Lock()
	restored := online && !s.online
	s.online = online
	s.mu.Unlock()

	if restored {
		s.ls.fire()
	}
}

// OnRestored implements Notifier.
func (s *Switch) OnRestored(fn func()) func() {
	return s.ls.add(fn)
}
