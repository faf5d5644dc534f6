// Package notify delivers desktop notifications.
package notify

import (
	"strings"
	"sync"
	"time"

	"patchwatch/internal/debug"
)

// Notification is a single (title, message) pair shown to the user.
type Notification struct {
	Title   string
	Message string
}

// Notifier sends notifications.
type Notifier interface {
	Send(n Notification) error
	Name() string
}

// NewDesktopNotifier returns a platform-specific desktop notification sender.
func NewDesktopNotifier() Notifier {
	return newPlatformNotifier()
}

// Multi sends notifications to several notifiers in order.
type Multi struct {
	notifiers []Notifier
}

// NewMulti creates a Multi from the given notifiers.
func NewMulti(ns ...Notifier) *Multi {
	return &Multi{notifiers: ns}
}

// Send dispatches the notification to all registered notifiers.
// Returns the first error encountered, but attempts all notifiers.
func (m *Multi) Send(n Notification) error {
	var firstErr error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(n); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Name returns the name of this notifier.
func (m *Multi) Name() string {
	names := make([]string, len(m.notifiers))
	for i, n := range m.notifiers {
		names[i] = n.Name()
	}
	return "multi(" + strings.Join(names, ",") + ")"
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Send(Notification) error { return nil }
func (Nop) Name() string            { return "nop" }

// Log writes every notification to the debug log.
type Log struct{}

func (Log) Send(n Notification) error {
	debug.Logf("notify: %s: %s", n.Title, n.Message)
	return nil
}
func (Log) Name() string { return "log" }

// Dedupe drops a notification identical to the previous one when it
// arrives within the window.
type Dedupe struct {
	next   Notifier
	window time.Duration
	now    func() time.Time

	mu     sync.Mutex
	last   Notification
	lastAt time.Time
}

// NewDedupe wraps next. A non-positive window disables suppression.
func NewDedupe(next Notifier, window time.Duration) *Dedupe {
	return &Dedupe{next: next, window: window, now: time.Now}
}

// Send forwards n unless it repeats the previous notification too soon.
func (d *Dedupe) Send(n Notification) error {
	d.mu.Lock()
	now := d.now()
	if d.window > 0 && !d.lastAt.IsZero() && n == d.last && now.Sub(d.lastAt) < d.window {
		d.mu.Unlock()
		return nil
	}
	d.last = n
	d.lastAt = now
	d.mu.Unlock()

	return d.next.Send(n)
}

// Name returns the name of the wrapped notifier.
func (d *Dedupe) Name() string { return "dedupe(" + d.next.Name() + ")" }
