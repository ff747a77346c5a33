package identity

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrNoSubject    = errors.New("token has no subject")
)

// Session holds the signed-in user's id. The zero value is signed out.
type Session struct {
	mu     sync.RWMutex
	userID string
}

func NewSession(userID string) *Session {
	return &Session{userID: userID}
}

// FromToken starts a session for the subject of a backend-issued JWT.
func FromToken(token string) (*Session, error) {
	sub, err := SubjectFromToken(token, time.Now())
	if err != nil {
		return nil, err
	}
	return NewSession(sub), nil
}

func (s *Session) CurrentUserID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID, s.userID != ""
}

func (s *Session) Set(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = userID
}

func (s *Session) Clear() {
	s.Set("")
}

// SubjectFromToken reads the sub claim without checking the signature; the
// client never holds the signing secret, the backend verifies every request.
func SubjectFromToken(tokenStr string, now time.Time) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return "", fmt.Errorf("parsing token: %w", err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return "", fmt.Errorf("reading token expiry: %w", err)
	}
	if exp != nil && !now.Before(exp.Time) {
		return "", ErrTokenExpired
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return "", fmt.Errorf("reading token subject: %w", err)
	}
	if sub == "" {
		return "", ErrNoSubject
	}
	return sub, nil
}
