// Package session tracks the authenticated principal sync runs as and
// tells interested components when it is established or cleared.
package session

import (
	"sync"

	"github.com/gzn7264/ai-travel-planner/internal/syncconfig"
)

// Principal is the identity remote calls are made with.
type Principal struct {
	UserID    string
	APIKey    string
	ServerURL string
}

// Provider exposes the current principal, if any.
type Provider interface {
	CurrentPrincipal() (Principal, bool)
}

// Listener is called after the principal changes. active is false on logout.
type Listener func(p Principal, active bool)

// Session holds the principal of one client session.
type Session struct {
	mu        sync.Mutex
	principal *Principal
	listeners map[int]Listener
	nextID    int
}

// New returns a session with no principal.
func New() *Session {
	return &Session{listeners: make(map[int]Listener)}
}

// Restore returns a session holding the stored credentials, if any.
func Restore() (*Session, error) {
	s := New()
	creds, err := syncconfig.LoadAuth()
	if err != nil {
		return nil, err
	}
	key := syncconfig.GetAPIKey()
	if key == "" {
		return s, nil
	}
	p := Principal{APIKey: key, ServerURL: syncconfig.GetServerURL()}
	if creds != nil {
		p.UserID = creds.UserID
	}
	s.principal = &p
	return s, nil
}

// CurrentPrincipal returns the active principal.
func (s *Session) CurrentPrincipal() (Principal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.principal == nil {
		return Principal{}, false
	}
	return *s.principal, true
}

// Login establishes p and notifies listeners.
func (s *Session) Login(p Principal) {
	s.mu.Lock()
	s.principal = &p
	listeners := s.snapshot()
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(p, true)
	}
}

// Logout clears the principal and notifies listeners.
func (s *Session) Logout() {
	s.mu.Lock()
	if s.principal == nil {
		s.mu.Unlock()
		return
	}
	s.principal = nil
	listeners := s.snapshot()
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(Principal{}, false)
	}
}

// Subscribe registers fn and returns a function that removes it.
func (s *Session) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

func (s *Session) snapshot() []Listener {
	out := make([]Listener, 0, len(s.listeners))
	for i := 0; i < s.nextID; i++ {
		if fn, ok := s.listeners[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}
