package bridge

import (
	"encoding/json"
	"time"
)

// Kind classifies an outward notification.
type Kind string

const (
	KindError         Kind = "error"
	KindSentMessage   Kind = "sent_message"
	KindReceivedReply Kind = "received_reply"
	KindMarathonEvent Kind = "marathon_event"
	KindSubscribed    Kind = "subscribed"
	KindUnsubscribed  Kind = "unsubscribed"
)

// Notification is an event the bridge emits for external observers. It is
// created synchronously inside a handler, published immediately and not
// retained.
type Notification struct {
	// Timestamp is the capture time in epoch milliseconds.
	Timestamp int64 `json:"timestamp"`
	Kind      Kind  `json:"kind"`

	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// tap is a named subscriber receiving copies of published notifications.
type tap struct {
	name string
	ch   chan Notification
}

const tapBuffer = 64

// Notifications creates a named subscriber that receives copies of every
// outward notification. The returned channel is buffered; slow consumers
// drop. All taps are closed when the bridge stops.
func (b *Bridge) Notifications(name string) <-chan Notification {
	b.tapsMu.Lock()
	defer b.tapsMu.Unlock()
	t := &tap{name: name, ch: make(chan Notification, tapBuffer)}
	b.taps = append(b.taps, t)
	return t.ch
}

// publish fans a notification out to all taps without blocking.
func (b *Bridge) publish(kind Kind, message string, data json.RawMessage) {
	n := Notification{
		Timestamp: time.Now().UnixMilli(),
		Kind:      kind,
		Message:   message,
		Data:      data,
	}
	b.tapsMu.RLock()
	defer b.tapsMu.RUnlock()
	if b.tapsClosed {
		return
	}
	for _, t := range b.taps {
		select {
		case t.ch <- n:
		default: // drop if subscriber is slow
		}
	}
}

// closeTaps closes all subscriber channels. Idempotent via Stop's once.
func (b *Bridge) closeTaps() {
	b.tapsMu.Lock()
	defer b.tapsMu.Unlock()
	b.tapsClosed = true
	for _, t := range b.taps {
		close(t.ch)
	}
	b.taps = nil
}
