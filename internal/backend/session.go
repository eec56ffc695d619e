package backend

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session is what the client knows after a successful login.
type Session struct {
	Username  string    `json:"username"`
	Message   string    `json:"message,omitempty"`
	Token     string    `json:"token,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the token expiry has passed. Sessions without an
// expiry never expire client-side.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// decodeToken reads claims without verifying the signature; the client has no key
// and only uses the claims for display.
func (s *Session) decodeToken(token string) error {
	s.Token = token

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	s.Subject = claims.Subject
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return nil
}

// EncodeSession serializes s for keyed storage.
func EncodeSession(s *Session) (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeSession parses a value written by EncodeSession.
func DecodeSession(raw string) (*Session, error) {
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &s, nil
}
