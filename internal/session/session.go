// Package session carries the signed-in identity every REST call and socket
// handshake reads its bearer token from. The token is re-read on each use so a
// mid-session token refresh reaches open sockets without tearing them down.
package session

import "sync"

type Session interface {
	Token() string
	UserID() string
	Anonymous() bool
}

// Static is a fixed-credential session, mostly useful in tests.
type Static struct {
	BearerToken string
	User        string
}

func (s Static) Token() string   { return s.BearerToken }
func (s Static) UserID() string  { return s.User }
func (s Static) Anonymous() bool { return s.User == "" }

// Refreshable holds credentials that may be replaced mid-session.
type Refreshable struct {
	mu     sync.RWMutex
	token  string
	userID string
}

func NewRefreshable(token, userID string) *Refreshable {
	return &Refreshable{token: token, userID: userID}
}

func (s *Refreshable) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Refreshable) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Refreshable) Anonymous() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID == ""
}

// SetToken swaps the bearer token. Open sockets and in-flight pollers pick the
// new value up on their next read.
func (s *Refreshable) SetToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}
