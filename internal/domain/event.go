package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventCallCreated EventType = "call_created"
	EventRingOpen    EventType = "ring_open"
	EventCallAnswer  EventType = "call_answer"
	EventVideoOpen   EventType = "video_open"
	EventCallEnd     EventType = "call_end"
	EventSaleMarked  EventType = "sale_marked"
	EventCallDeleted EventType = "call_deleted"
)

// Trackable reports whether the event may be reported by an anonymous lead.
func (t EventType) Trackable() bool {
	switch t {
	case EventCallAnswer, EventVideoOpen, EventCallEnd:
		return true
	default:
		return false
	}
}

// Event is an append-only access/audit record tied to a call.
type Event struct {
	ID     string    `json:"id"`
	Type   EventType `json:"type"`
	CallID string    `json:"callId"`
	At     time.Time `json:"at"`
	UserID *string   `json:"userId,omitempty"`
	Amount *float64  `json:"amount,omitempty"`
}

func NewEvent(eventType EventType, callID string, userID *string) *Event {
	return &Event{
		ID:     uuid.New().String(),
		Type:   eventType,
		CallID: callID,
		At:     time.Now().UTC(),
		UserID: userID,
	}
}

// Sale is a recorded payment tied to a call.
type Sale struct {
	ID     string    `json:"id"`
	CallID string    `json:"callId"`
	Amount float64   `json:"amount"`
	Note   *string   `json:"note"`
	At     time.Time `json:"at"`
	UserID *string   `json:"userId"`
}

func NewSale(callID string, amount float64, note *string, userID *string) *Sale {
	return &Sale{
		ID:     uuid.New().String(),
		CallID: callID,
		Amount: amount,
		Note:   note,
		At:     time.Now().UTC(),
		UserID: userID,
	}
}
