package livequery

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/lapor/internal/report"
	"github.com/roach88/lapor/internal/store"
)

// Source is a store that can be queried and observed.
// Implemented by *store.Store.
type Source interface {
	Reader
	Observe(fn func(store.Change)) (cancel func())
}

// Hub fans store changes out to live subscriptions.
//
// Thread-safety model:
//   - Subscribe / Unsubscribe / Close: safe from any goroutine
//   - Deliveries run on the goroutine that wrote to the store
type Hub struct {
	src         Source
	stopObserve func()

	mu     sync.Mutex
	subs   map[uint64]*Subscription
	nextID uint64
	closed bool
}

// NewHub creates a hub observing src. Call Close to detach it.
func NewHub(src Source) *Hub {
	h := &Hub{
		src:  src,
		subs: make(map[uint64]*Subscription),
	}
	h.stopObserve = src.Observe(h.onChange)
	return h
}

// Subscribe runs q once, delivers the result to onNext, and keeps delivering
// fresh results after every store change q is affected by.
//
// The subscription is released when Unsubscribe is called or ctx is done,
// whichever happens first. If q fails, onError receives a *SubscriptionFault
// and the subscription is released; onError may be nil, in which case the
// fault is logged.
//
// Returns an error only for misuse (nil query or callback), a context that is
// already done, or a closed hub.
func (h *Hub) Subscribe(
	ctx context.Context,
	q Query,
	onNext func([]report.Report),
	onError func(error),
) (*Subscription, error) {
	if q == nil {
		return nil, errors.New("livequery: nil query")
	}
	if onNext == nil {
		return nil, errors.New("livequery: nil onNext callback")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &Subscription{
		hub:     h,
		ctx:     ctx,
		query:   q,
		onNext:  onNext,
		onError: onError,
	}

	// Hold the subscription lock across registration and the initial run:
	// a concurrent write will wait and then refresh, so nothing is missed.
	s.mu.Lock()
	defer s.mu.Unlock()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	h.nextID++
	s.id = h.nextID
	h.subs[s.id] = s
	h.mu.Unlock()

	s.stopAfter = context.AfterFunc(ctx, s.Unsubscribe)

	slog.Debug("live query subscribed", "query", q.Name(), "subscription", s.id)
	s.deliverLocked()

	return s, nil
}

// Len returns the number of live subscriptions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close detaches the hub from the store and releases every subscription.
// No callback is made after Close returns.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.snapshotLocked()
	h.mu.Unlock()

	h.stopObserve()
	for _, s := range subs {
		s.Unsubscribe()
	}
}

// onChange is the store observer. It runs under the store's write lock.
func (h *Hub) onChange(c store.Change) {
	h.mu.Lock()
	subs := h.snapshotLocked()
	h.mu.Unlock()

	for _, s := range subs {
		if s.query.Affects(c) {
			s.refresh()
		}
	}
}

// snapshotLocked returns live subscriptions in subscription order.
func (h *Hub) snapshotLocked() []*Subscription {
	subs := make([]*Subscription, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })
	return subs
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Subscription is a live query registration.
type Subscription struct {
	hub     *Hub
	id      uint64
	ctx     context.Context
	query   Query
	onNext  func([]report.Report)
	onError func(error)

	// mu serializes deliveries with release.
	mu         sync.Mutex
	closed     bool
	deliveries int
	stopAfter  func() bool
}

// Unsubscribe releases the subscription. Once it returns no further onNext or
// onError call is made. Safe to call more than once and from any goroutine
// except from inside this subscription's own callbacks.
func (s *Subscription) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked()
}

// Active reports whether the subscription still receives results.
func (s *Subscription) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Deliveries returns how many results onNext has received.
func (s *Subscription) Deliveries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deliveries
}

func (s *Subscription) refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deliverLocked()
}

// deliverLocked runs the query and hands the result to the subscriber.
func (s *Subscription) deliverLocked() {
	if s.closed {
		return
	}

	result, err := s.query.Run(s.ctx, s.hub.src)
	if err != nil {
		if s.ctx.Err() != nil {
			// Torn down while running; the release path owns this now.
			s.releaseLocked()
			return
		}
		s.releaseLocked()
		fault := &SubscriptionFault{Query: s.query.Name(), Err: err}
		if s.onError == nil {
			slog.Error("live query failed", "query", s.query.Name(), "subscription", s.id, "error", err)
			return
		}
		s.onError(fault)
		return
	}

	s.deliveries++
	s.onNext(result)
}

func (s *Subscription) releaseLocked() {
	if s.closed {
		return
	}
	s.closed = true
	if s.stopAfter != nil {
		s.stopAfter()
	}
	s.hub.remove(s.id)
	slog.Debug("live query released", "query", s.query.Name(), "subscription", s.id)
}
