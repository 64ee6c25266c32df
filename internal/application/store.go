package application

import (
	"context"
	"sync"

	"lifecert/pkg/domain"
)

// Filter selects applications by field equality and status membership. Zero
// fields match everything, so filters compose from whichever predicates a
// view needs.
type Filter struct {
	RequesterID string
	NotaryID    string
	Statuses    []Status
}

// Matches reports whether an application satisfies every set predicate.
func (f Filter) Matches(app *Application) bool {
	if f.RequesterID != "" && app.RequesterID != f.RequesterID {
		return false
	}
	if f.NotaryID != "" && app.NotaryID != f.NotaryID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if app.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Store is the record store the lifecycle engine runs on. Implementations
// must make ApplyTransition atomic: either the mutation and its status check
// both take effect or neither does, and concurrent transitions against the
// same record resolve to exactly one winner.
type Store interface {
	// GetByID returns a copy of the record or sentinel.ErrNotFound.
	GetByID(ctx context.Context, id domain.ApplicationID) (*Application, error)

	// List returns a point-in-time snapshot of records matching the filter.
	List(ctx context.Context, f Filter) ([]*Application, error)

	// Create persists a new record; sentinel.ErrConflict on duplicate id.
	Create(ctx context.Context, app *Application) error

	// ApplyTransition loads the record, verifies its status equals expected,
	// runs mutate on a private copy, and persists the result. A status
	// mismatch yields sentinel.ErrInvalidState and no change; an error from
	// mutate aborts with no change and passes through unwrapped.
	ApplyTransition(ctx context.Context, id domain.ApplicationID, expected Status, mutate func(*Application) error) (*Application, error)

	// Subscribe pushes full-result-set snapshots for the filter: one
	// immediately, then one after every matching change. Closing the
	// subscription is idempotent and stops all further sends.
	Subscribe(ctx context.Context, f Filter) (*Subscription, error)
}

// Subscription yields snapshots on C until Close is called or the
// subscribing context ends. Snapshots coalesce: a slow consumer sees the
// newest state, not every intermediate one.
type Subscription struct {
	C <-chan []*Application

	ch   chan []*Application
	done chan struct{}
	stop func()
	once sync.Once
}

func newSubscription(stop func()) *Subscription {
	ch := make(chan []*Application, 1)
	return &Subscription{C: ch, ch: ch, done: make(chan struct{}), stop: stop}
}

// push delivers a snapshot without blocking, replacing any undelivered one.
// Sends after Close are discarded.
func (s *Subscription) push(apps []*Application) {
	for {
		select {
		case <-s.done:
			return
		default:
		}
		select {
		case s.ch <- apps:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Done is closed when the subscription has been closed.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Close terminates the subscription. Safe to call multiple times; no
// snapshots are delivered after it returns.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		s.stop()
	})
}

// FilterSubscription derives a subscription that keeps only applications the
// predicate accepts. Needed when a view's membership rule mixes fields the
// store cannot express as one server-side query (the notary queue: globally
// pending items plus the caller's own completed work). Closing either side
// tears both down.
func FilterSubscription(src *Subscription, keep func(*Application) bool) *Subscription {
	out := newSubscription(src.Close)
	go func() {
		for {
			select {
			case <-src.Done():
				return
			case <-out.done:
				return
			case snapshot := <-src.C:
				kept := make([]*Application, 0, len(snapshot))
				for _, app := range snapshot {
					if keep(app) {
						kept = append(kept, app)
					}
				}
				out.push(kept)
			}
		}
	}()
	return out
}
