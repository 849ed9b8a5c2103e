// Package notify is the outbound notification port.
package notify

import (
	"sync"
	"time"

	"github.com/settleloop/settleloop/internal/id"
	"github.com/settleloop/settleloop/internal/model"
)

// Notifier accepts notifications for delivery.
type Notifier interface {
	Notify(n model.Notification) (model.Notification, error)
}

// Outbox keeps notifications in memory until they are drained. It is safe
// for concurrent use.
type Outbox struct {
	mu    sync.Mutex
	items []model.Notification
	gen   id.Generator
	now   func() time.Time
}

// NewOutbox creates an Outbox. A nil gen or now falls back to id.New and
// time.Now.
func NewOutbox(gen id.Generator, now func() time.Time) *Outbox {
	if gen == nil {
		gen = id.New
	}
	if now == nil {
		now = time.Now
	}
	return &Outbox{gen: gen, now: now}
}

// Notify stores n, filling in its id and creation time.
func (o *Outbox) Notify(n model.Notification) (model.Notification, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if n.ID == "" {
		n.ID = o.gen(id.Notification)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = o.now()
	}
	o.items = append(o.items, n)
	return n, nil
}

// Pending returns a copy of the undelivered notifications.
func (o *Outbox) Pending() []model.Notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]model.Notification(nil), o.items...)
}

// Drain returns the notifications and empties the outbox.
func (o *Outbox) Drain() []model.Notification {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.items
	o.items = nil
	return out
}
