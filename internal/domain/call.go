package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Call is a shareable session pairing a video reference with host/guest
// signaling. Only the fields below are persisted; live membership is kept
// apart in Presence.
type Call struct {
	ID              string     `json:"callId"`
	Title           *string    `json:"title"`
	VideoURL        string     `json:"videoUrl"`
	CallerName      *string    `json:"callerName"`
	CallerAvatarURL *string    `json:"callerAvatarUrl"`
	ExpiresAt       *time.Time `json:"expiresAt"`
	ExpectedAmount  *float64   `json:"expectedAmount"`
	OwnerUserID     *string    `json:"ownerUserId"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// NewCall constructs a call created at now. A positive lifetime sets the
// expiry; zero leaves the call open until changed.
func NewCall(videoURL string, now time.Time, lifetime time.Duration) *Call {
	call := &Call{
		ID:        uuid.New().String(),
		VideoURL:  videoURL,
		CreatedAt: now,
	}

	if lifetime > 0 {
		expiresAt := now.Add(lifetime)
		call.ExpiresAt = &expiresAt
	}

	return call
}

func (c *Call) ExpiredAt(now time.Time) bool {
	if c == nil {
		return true
	}
	if c.ExpiresAt == nil {
		return false
	}
	return now.After(*c.ExpiresAt)
}

// ManageableBy reports whether userID may see or change the call. Unowned
// calls are open to everyone.
func (c *Call) ManageableBy(userID string) bool {
	if c.OwnerUserID == nil || *c.OwnerUserID == "" {
		return true
	}
	return *c.OwnerUserID == userID
}

func (c *Call) Clone() *Call {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Title = cloneString(c.Title)
	cp.CallerName = cloneString(c.CallerName)
	cp.CallerAvatarURL = cloneString(c.CallerAvatarURL)
	cp.OwnerUserID = cloneString(c.OwnerUserID)
	if c.ExpiresAt != nil {
		t := *c.ExpiresAt
		cp.ExpiresAt = &t
	}
	if c.ExpectedAmount != nil {
		a := *c.ExpectedAmount
		cp.ExpectedAmount = &a
	}
	return &cp
}

// Presence is the transient host/guest membership of a call.
type Presence struct {
	HostID string
	Guests map[string]struct{}
}

func NewPresence() *Presence {
	return &Presence{Guests: make(map[string]struct{})}
}

func (p *Presence) HasGuest(clientID string) bool {
	if p == nil {
		return false
	}
	_, ok := p.Guests[clientID]
	return ok
}

func (p *Presence) Clone() Presence {
	if p == nil {
		return Presence{Guests: map[string]struct{}{}}
	}
	guests := make(map[string]struct{}, len(p.Guests))
	for id := range p.Guests {
		guests[id] = struct{}{}
	}
	return Presence{HostID: p.HostID, Guests: guests}
}

// OptionalString trims s and returns nil when nothing is left.
func OptionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
