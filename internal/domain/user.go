package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long a session stays valid after creation.
const DefaultSessionTTL = 30 * 24 * time.Hour

// User is an account that can own calls.
type User struct {
	ID           string    `json:"userId"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

func NewUser(username string, passwordHash string) *User {
	return &User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
}

// Session binds an opaque token to a user. Validity is checked lazily.
type Session struct {
	ID        string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Session) ExpiredAt(now time.Time, ttl time.Duration) bool {
	if s == nil || s.CreatedAt.IsZero() {
		return true
	}
	return now.Sub(s.CreatedAt) > ttl
}
