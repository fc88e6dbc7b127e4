package sessions

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserIDRequired = errors.New("user id is required")
	ErrTokenInvalid   = errors.New("session token is invalid or expired")
)

// Session ties a bearer token to a user for a limited time. Handlers resolve
// the token into a session object and pass the user id down explicitly.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service issues and resolves in-memory bearer sessions. Sessions do not
// survive a restart; clients simply log in again.
type Service struct {
	mu       sync.RWMutex
	ttl      time.Duration
	sessions map[string]Session
}

func NewService(ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &Service{
		ttl:      ttl,
		sessions: make(map[string]Session),
	}
}

// Create issues a fresh session for the user.
func (s *Service) Create(userID string) (Session, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Session{}, ErrUserIDRequired
	}

	now := time.Now().UTC()
	session := Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	s.mu.Lock()
	s.sessions[session.Token] = session
	s.mu.Unlock()

	return session, nil
}

// Resolve returns the session for a token. Expired sessions are evicted on
// first sight.
func (s *Service) Resolve(token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrTokenInvalid
	}

	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()

	if !ok {
		return Session{}, ErrTokenInvalid
	}
	if time.Now().After(session.ExpiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return Session{}, ErrTokenInvalid
	}

	return session, nil
}

// Destroy invalidates a token. Destroying an unknown token is a no-op.
func (s *Service) Destroy(token string) {
	s.mu.Lock()
	delete(s.sessions, strings.TrimSpace(token))
	s.mu.Unlock()
}

// DestroyAllForUser invalidates every session belonging to the user.
func (s *Service) DestroyAllForUser(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, session := range s.sessions {
		if session.UserID == userID {
			delete(s.sessions, token)
		}
	}
}
