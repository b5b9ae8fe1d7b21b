package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pion/webrtc/v3"
)

type MessageType string

// Client to server.
const (
	MessageJoin         MessageType = "join"
	MessageOffer        MessageType = "offer"
	MessageAnswer       MessageType = "answer"
	MessageICECandidate MessageType = "ice-candidate"
	MessageReady        MessageType = "ready"
	MessagePlay         MessageType = "play"
)

// Server to client. offer, answer and ice-candidate are reused when forwarded.
const (
	MessageJoined      MessageType = "joined"
	MessageHostJoined  MessageType = "host-joined"
	MessageGuestJoined MessageType = "guest-joined"
	MessageGuestReady  MessageType = "guest-ready"
	MessageHostLeft    MessageType = "host-left"
	MessageGuestLeft   MessageType = "guest-left"
	MessageError       MessageType = "error"
)

var ErrUnsupportedMessage = errors.New("unsupported message type")

// ClientMessage is a frame received from a signaling client.
type ClientMessage struct {
	Type          MessageType                `json:"type"`
	CallID        string                     `json:"callId,omitempty"`
	Role          Role                       `json:"role,omitempty"`
	ClientID      string                     `json:"clientId,omitempty"`
	TargetGuestID string                     `json:"targetGuestId,omitempty"`
	Offer         *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer        *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate     *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
}

// ParseClientMessage decodes a frame and rejects tags outside the client set.
func ParseClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid message: %w", err)
	}

	switch msg.Type {
	case MessageJoin, MessageOffer, MessageAnswer, MessageICECandidate, MessageReady, MessagePlay:
		return &msg, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMessage, msg.Type)
	}
}

// ServerMessage is a frame sent to a signaling client.
type ServerMessage struct {
	Type      MessageType                `json:"type"`
	ClientID  string                     `json:"clientId,omitempty"`
	CallID    string                     `json:"callId,omitempty"`
	VideoURL  string                     `json:"videoUrl,omitempty"`
	GuestID   string                     `json:"guestId,omitempty"`
	HostID    string                     `json:"hostId,omitempty"`
	Offer     *webrtc.SessionDescription `json:"offer,omitempty"`
	Answer    *webrtc.SessionDescription `json:"answer,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	Timestamp int64                      `json:"timestamp,omitempty"`
	Message   string                     `json:"message,omitempty"`
}

func JoinedMessage(clientID, callID, videoURL string) ServerMessage {
	return ServerMessage{Type: MessageJoined, ClientID: clientID, CallID: callID, VideoURL: videoURL}
}

func HostJoinedMessage() ServerMessage {
	return ServerMessage{Type: MessageHostJoined}
}

func GuestJoinedMessage(guestID string) ServerMessage {
	return ServerMessage{Type: MessageGuestJoined, GuestID: guestID}
}

func GuestReadyMessage(guestID string) ServerMessage {
	return ServerMessage{Type: MessageGuestReady, GuestID: guestID}
}

func HostLeftMessage() ServerMessage {
	return ServerMessage{Type: MessageHostLeft}
}

func GuestLeftMessage(guestID string) ServerMessage {
	return ServerMessage{Type: MessageGuestLeft, GuestID: guestID}
}

func OfferMessage(offer *webrtc.SessionDescription, hostID string) ServerMessage {
	return ServerMessage{Type: MessageOffer, Offer: offer, HostID: hostID}
}

func AnswerMessage(answer *webrtc.SessionDescription, guestID string) ServerMessage {
	return ServerMessage{Type: MessageAnswer, Answer: answer, GuestID: guestID}
}

func ICECandidateMessage(candidate *webrtc.ICECandidateInit, guestID string) ServerMessage {
	return ServerMessage{Type: MessageICECandidate, Candidate: candidate, GuestID: guestID}
}

func PlayMessage(at time.Time) ServerMessage {
	return ServerMessage{Type: MessagePlay, Timestamp: at.UnixMilli()}
}

func ErrorMessage(message string) ServerMessage {
	return ServerMessage{Type: MessageError, Message: message}
}
