package session

import "taskctl/internal/model"

// EventKind identifies a session state change.
type EventKind int

const (
	LoggedIn EventKind = iota + 1
	LoggedOut
	// Invalidated means the backend rejected the current token.
	Invalidated
)

func (k EventKind) String() string {
	switch k {
	case LoggedIn:
		return "logged_in"
	case LoggedOut:
		return "logged_out"
	case Invalidated:
		return "invalidated"
	}
	return "unknown"
}

// Event is delivered to subscribers after the state change is visible.
type Event struct {
	Kind EventKind
	// User is the newly logged-in user for LoggedIn.
	User *model.User
	// Previous is the user that was logged in before LoggedOut or Invalidated.
	Previous *model.User
}

// Subscribe registers fn for every subsequent event. Handlers run synchronously
// on the goroutine that changed the state and must not call back into Logout.
func (s *Session) Subscribe(fn func(Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Session) emit(e Event) {
	s.mu.RLock()
	subs := make([]func(Event), len(s.subs))
	copy(subs, s.subs)
	s.mu.RUnlock()
	for _, fn := range subs {
		fn(e)
	}
}
