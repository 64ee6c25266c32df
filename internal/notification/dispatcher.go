// Package notification is the process-local pub/sub layer that keeps the UI
// informed of status changes. It is a best-effort convenience: nothing is
// persisted, and a restart clears the list. The record of truth for what
// happened to an application is its history log, never this.
package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Notification is one entry of the in-memory feed, newest first.
type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

// Listener receives the full current list on every change.
type Listener func([]Notification)

// Raiser is the optional platform-level notification surface (desktop or
// push). Failures are logged and otherwise ignored.
type Raiser interface {
	RequestPermission(ctx context.Context) (bool, error)
	Raise(title, body string) error
}

// Dispatcher is an injectable singleton with an explicit lifecycle:
// constructed once per process, torn down with the process. Methods are safe
// for concurrent use.
type Dispatcher struct {
	mu            sync.Mutex
	notifications []Notification
	listeners     map[int]Listener
	nextID        int
	raiser        Raiser
	granted       bool
	logger        *slog.Logger
	clock         func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRaiser attaches a platform notification surface.
func WithRaiser(r Raiser) Option {
	return func(d *Dispatcher) { d.raiser = r }
}

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(d *Dispatcher) {
		if clock != nil {
			d.clock = clock
		}
	}
}

func NewDispatcher(logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		listeners: make(map[int]Listener),
		logger:    logger,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RequestPermission asks the platform surface for permission to raise
// notifications. Without a raiser it reports false.
func (d *Dispatcher) RequestPermission(ctx context.Context) bool {
	d.mu.Lock()
	raiser := d.raiser
	d.mu.Unlock()
	if raiser == nil {
		return false
	}

	granted, err := raiser.RequestPermission(ctx)
	if err != nil {
		d.logger.Warn("notification permission request failed", "error", err)
		return false
	}

	d.mu.Lock()
	d.granted = granted
	d.mu.Unlock()
	return granted
}

// Publish prepends a new entry and synchronously replays the full list to
// every listener. When permission was granted it also raises a platform
// notification; that failure never propagates.
func (d *Dispatcher) Publish(title, body string) {
	d.mu.Lock()
	entry := Notification{
		ID:        uuid.NewString(),
		Title:     title,
		Body:      body,
		Timestamp: d.clock(),
	}
	d.notifications = append([]Notification{entry}, d.notifications...)
	snapshot := d.snapshotLocked()
	listeners := d.listenersLocked()
	raiser := d.raiser
	granted := d.granted
	d.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}

	if raiser != nil && granted {
		if err := raiser.Raise(title, body); err != nil {
			d.logger.Warn("platform notification failed", "title", title, "error", err)
		}
	}
}

// Subscribe replays the current list to the listener, then registers it for
// future changes. The returned cancel function is idempotent; after it
// returns the listener is never invoked again.
func (d *Dispatcher) Subscribe(listener Listener) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = listener
	snapshot := d.snapshotLocked()
	d.mu.Unlock()

	listener(snapshot)

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.listeners, id)
			d.mu.Unlock()
		})
	}
}

// MarkAllRead flips every entry's read flag and republishes.
func (d *Dispatcher) MarkAllRead() {
	d.mu.Lock()
	for i := range d.notifications {
		d.notifications[i].Read = true
	}
	snapshot := d.snapshotLocked()
	listeners := d.listenersLocked()
	d.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}

// List returns a copy of the current feed, newest first.
func (d *Dispatcher) List() []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *Dispatcher) snapshotLocked() []Notification {
	return append([]Notification(nil), d.notifications...)
}

func (d *Dispatcher) listenersLocked() []Listener {
	out := make([]Listener, 0, len(d.listeners))
	for _, l := range d.listeners {
		out = append(out, l)
	}
	return out
}
