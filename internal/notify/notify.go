// Package notify carries user-facing notifications from the client layers to the
// presentation layer. Sending a notification never fails and never blocks on the caller.
package notify

import (
	"sync"
	"time"
)

// Kind is the severity of a notification.
type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
	Warning Kind = "warning"
	Info    Kind = "info"
)

// DefaultDuration is how long a notification stays visible in sinks that auto-dismiss.
const DefaultDuration = 5 * time.Second

// Notification is a single message for the user.
type Notification struct {
	Kind     Kind
	Title    string
	Message  string
	Duration time.Duration
}

// Sink receives notifications.
type Sink interface {
	Notify(n Notification)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(n Notification)

// Notify implements Sink.
func (f SinkFunc) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Sink = SinkFunc(func(Notification) {})

// Send builds a notification with the default duration and delivers it to s.
// A nil sink is treated as Discard.
func Send(s Sink, kind Kind, message string, title ...string) {
	if s == nil {
		return
	}
	n := Notification{Kind: kind, Message: message, Duration: DefaultDuration}
	if len(title) > 0 {
		n.Title = title[0]
	}
	s.Notify(n)
}

// Recorder keeps every notification it receives. Safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

// Notify implements Sink.
func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.sent))
	copy(out, r.sent)
	return out
}

// OfKind returns the messages recorded with the given kind.
func (r *Recorder) OfKind(kind Kind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.sent {
		if n.Kind == kind {
			out = append(out, n.Message)
		}
	}
	return out
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
