package application

import (
	"context"
	"fmt"
	"sync"

	"lifecert/pkg/domain"
	"lifecert/pkg/platform/sentinel"
)

// InMemoryStore keeps applications in a map. It backs development mode and
// tests, and holds its mutex across the check-and-mutate of ApplyTransition
// so racing transitions resolve to exactly one winner.
type InMemoryStore struct {
	mu        sync.RWMutex
	records   map[domain.ApplicationID]*Application
	subs      map[int]*memorySub
	nextSubID int
}

type memorySub struct {
	filter Filter
	sub    *Subscription
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[domain.ApplicationID]*Application),
		subs:    make(map[int]*memorySub),
	}
}

func (s *InMemoryStore) GetByID(_ context.Context, id domain.ApplicationID) (*Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("application %s: %w", id, sentinel.ErrNotFound)
	}
	return app.Clone(), nil
}

func (s *InMemoryStore) List(_ context.Context, f Filter) ([]*Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(f), nil
}

func (s *InMemoryStore) Create(_ context.Context, app *Application) error {
	s.mu.Lock()
	if _, exists := s.records[app.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("application %s: %w", app.ID, sentinel.ErrConflict)
	}
	s.records[app.ID] = app.Clone()
	subs := s.pendingNotifiesLocked()
	s.mu.Unlock()

	deliver(subs)
	return nil
}

func (s *InMemoryStore) ApplyTransition(_ context.Context, id domain.ApplicationID, expected Status, mutate func(*Application) error) (*Application, error) {
	s.mu.Lock()
	current, ok := s.records[id]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("application %s: %w", id, sentinel.ErrNotFound)
	}
	if current.Status != expected {
		s.mu.Unlock()
		return nil, fmt.Errorf("application %s is %s, expected %s: %w",
			id, current.Status, expected, sentinel.ErrInvalidState)
	}

	next := current.Clone()
	if err := mutate(next); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.records[id] = next
	result := next.Clone()
	subs := s.pendingNotifiesLocked()
	s.mu.Unlock()

	deliver(subs)
	return result, nil
}

func (s *InMemoryStore) Subscribe(_ context.Context, f Filter) (*Subscription, error) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++

	sub := newSubscription(func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	})
	s.subs[id] = &memorySub{filter: f, sub: sub}
	initial := s.snapshotLocked(f)
	s.mu.Unlock()

	sub.push(initial)
	return sub, nil
}

// snapshotLocked builds a sorted copy of all records matching the filter.
func (s *InMemoryStore) snapshotLocked(f Filter) []*Application {
	out := make([]*Application, 0)
	for _, app := range s.records {
		if f.Matches(app) {
			out = append(out, app.Clone())
		}
	}
	SortByRelevantDate(out)
	return out
}

type pendingNotify struct {
	sub  *Subscription
	apps []*Application
}

// pendingNotifiesLocked computes per-subscriber snapshots while the lock is
// held; delivery happens after release so a slow consumer cannot stall
// writers.
func (s *InMemoryStore) pendingNotifiesLocked() []pendingNotify {
	out := make([]pendingNotify, 0, len(s.subs))
	for _, ms := range s.subs {
		out = append(out, pendingNotify{sub: ms.sub, apps: s.snapshotLocked(ms.filter)})
	}
	return out
}

func deliver(notifies []pendingNotify) {
	for _, n := range notifies {
		n.sub.push(n.apps)
	}
}
