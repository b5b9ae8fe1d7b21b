package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/immxrtalbeast/ringcall/internal/domain"
	"github.com/immxrtalbeast/ringcall/internal/metrics"
)

// PresenceRegistry is the part of the call registry the relay mutates.
type PresenceRegistry interface {
	BindHost(callID, clientID string) (*domain.Call, error)
	AddGuest(callID, clientID string) (*domain.Call, error)
	ClearHost(callID, clientID string) bool
	RemoveGuest(callID, clientID string) bool
	Presence(callID string) (domain.Presence, bool)
}

// RelayService routes signaling frames between the connections of a call.
type RelayService struct {
	registry PresenceRegistry
	log      *slog.Logger
	now      func() time.Time

	mu    sync.RWMutex
	rooms map[string]map[*domain.Connection]struct{}
}

func NewRelayService(registry PresenceRegistry, log *slog.Logger) *RelayService {
	if log == nil {
		log = slog.Default()
	}
	return &RelayService{
		registry: registry,
		log:      log,
		now:      time.Now,
		rooms:    make(map[string]map[*domain.Connection]struct{}),
	}
}

func (s *RelayService) Connect() *domain.Connection {
	conn := domain.NewConnection()
	metrics.SignalConnections.Inc()
	s.log.Debug("signal connection opened", slog.String("conn_id", conn.ID))
	return conn
}

// HandleMessage processes one inbound frame. Protocol errors are reported
// to the sender and never close the connection.
func (s *RelayService) HandleMessage(ctx context.Context, conn *domain.Connection, data []byte) {
	const op = "service.relay.handle"

	msg, err := domain.ParseClientMessage(data)
	if err != nil {
		metrics.SignalMessagesTotal.WithLabelValues("invalid").Inc()
		s.log.Debug("rejected frame", slog.String("op", op), slog.String("conn_id", conn.ID), slog.String("reason", err.Error()))
		s.send(conn, domain.ErrorMessage(err.Error()))
		return
	}
	metrics.SignalMessagesTotal.WithLabelValues(string(msg.Type)).Inc()

	if msg.Type == domain.MessageJoin {
		s.join(ctx, conn, msg)
		return
	}

	clientID, callID, role, ok := conn.Binding()
	if !ok {
		return
	}

	switch msg.Type {
	case domain.MessageOffer:
		if role == domain.RoleHost {
			s.sendToGuest(callID, msg.TargetGuestID, domain.OfferMessage(msg.Offer, clientID))
		}
	case domain.MessageAnswer:
		if role == domain.RoleGuest {
			s.sendToHost(callID, domain.AnswerMessage(msg.Answer, clientID))
		}
	case domain.MessageICECandidate:
		switch role {
		case domain.RoleHost:
			s.sendToGuest(callID, msg.TargetGuestID, domain.ICECandidateMessage(msg.Candidate, ""))
		case domain.RoleGuest:
			s.sendToHost(callID, domain.ICECandidateMessage(msg.Candidate, clientID))
		}
	case domain.MessageReady:
		if role == domain.RoleGuest {
			s.sendToHost(callID, domain.GuestReadyMessage(clientID))
		}
	case domain.MessagePlay:
		if role == domain.RoleHost {
			s.sendToGuests(callID, domain.PlayMessage(s.now()))
		}
	}
}

// Disconnect closes the connection and runs the leave notifications of
// its binding.
func (s *RelayService) Disconnect(ctx context.Context, conn *domain.Connection) {
	clientID, callID, role, wasBound := conn.Close()
	if wasBound {
		s.removeFromRoom(callID, conn)
		s.leave(callID, clientID, role)
	}
	metrics.SignalConnections.Dec()
	s.log.Debug("signal connection closed", slog.String("conn_id", conn.ID), slog.Bool("was_bound", wasBound))
}

func (s *RelayService) join(ctx context.Context, conn *domain.Connection, msg *domain.ClientMessage) {
	const op = "service.relay.join"
	log := s.log.With(slog.String("op", op), slog.String("call_id", msg.CallID))

	if !msg.Role.Valid() {
		s.send(conn, domain.ErrorMessage("invalid role"))
		return
	}
	if _, ok := s.registry.Presence(msg.CallID); !ok {
		s.send(conn, domain.ErrorMessage("call not found"))
		return
	}

	if prevClient, prevCall, prevRole, bound := conn.Binding(); bound {
		conn.Unbind()
		s.removeFromRoom(prevCall, conn)
		s.leave(prevCall, prevClient, prevRole)
	}

	clientID := msg.ClientID
	if clientID == "" {
		clientID = uuid.New().String()
	}

	var (
		call *domain.Call
		err  error
	)
	switch msg.Role {
	case domain.RoleHost:
		call, err = s.registry.BindHost(msg.CallID, clientID)
	case domain.RoleGuest:
		call, err = s.registry.AddGuest(msg.CallID, clientID)
	}
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			log.Warn("join failed", slog.String("error", err.Error()))
		}
		s.send(conn, domain.ErrorMessage("call not found"))
		return
	}

	conn.Bind(clientID, msg.CallID, msg.Role)
	s.addToRoom(msg.CallID, conn)

	switch msg.Role {
	case domain.RoleHost:
		s.sendToGuests(msg.CallID, domain.HostJoinedMessage())
	case domain.RoleGuest:
		s.sendToHost(msg.CallID, domain.GuestJoinedMessage(clientID))
	}

	s.send(conn, domain.JoinedMessage(clientID, msg.CallID, call.VideoURL))
	log.Info("client joined", slog.String("client_id", clientID), slog.String("role", string(msg.Role)))
}

func (s *RelayService) leave(callID, clientID string, role domain.Role) {
	switch role {
	case domain.RoleHost:
		// A host already replaced by a newer join no longer holds the slot and leaves silently.
		if s.registry.ClearHost(callID, clientID) {
			s.sendToGuests(callID, domain.HostLeftMessage())
		}
	case domain.RoleGuest:
		if s.registry.RemoveGuest(callID, clientID) {
			s.sendToHost(callID, domain.GuestLeftMessage(clientID))
		}
	}
}

func (s *RelayService) sendToHost(callID string, msg domain.ServerMessage) {
	presence, ok := s.registry.Presence(callID)
	if !ok || presence.HostID == "" {
		return
	}
	for _, conn := range s.roomMembers(callID, func(clientID string, role domain.Role) bool {
		return role == domain.RoleHost && clientID == presence.HostID
	}) {
		s.send(conn, msg)
	}
}

func (s *RelayService) sendToGuests(callID string, msg domain.ServerMessage) {
	presence, ok := s.registry.Presence(callID)
	if !ok {
		return
	}
	for _, conn := range s.roomMembers(callID, func(clientID string, role domain.Role) bool {
		return role == domain.RoleGuest && presence.HasGuest(clientID)
	}) {
		s.send(conn, msg)
	}
}

func (s *RelayService) sendToGuest(callID, guestID string, msg domain.ServerMessage) {
	if guestID == "" {
		return
	}
	presence, ok := s.registry.Presence(callID)
	if !ok || !presence.HasGuest(guestID) {
		return
	}
	for _, conn := range s.roomMembers(callID, func(clientID string, role domain.Role) bool {
		return role == domain.RoleGuest && clientID == guestID
	}) {
		s.send(conn, msg)
	}
}

func (s *RelayService) roomMembers(callID string, match func(clientID string, role domain.Role) bool) []*domain.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Connection
	for conn := range s.rooms[callID] {
		clientID, boundCall, role, ok := conn.Binding()
		if !ok || boundCall != callID {
			continue
		}
		if match(clientID, role) {
			out = append(out, conn)
		}
	}
	return out
}

func (s *RelayService) addToRoom(callID string, conn *domain.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[callID]
	if !ok {
		room = make(map[*domain.Connection]struct{})
		s.rooms[callID] = room
	}
	room[conn] = struct{}{}
}

func (s *RelayService) removeFromRoom(callID string, conn *domain.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[callID]
	if !ok {
		return
	}
	delete(room, conn)
	if len(room) == 0 {
		delete(s.rooms, callID)
	}
}

func (s *RelayService) send(conn *domain.Connection, msg domain.ServerMessage) {
	if conn.EnqueueEvent(msg) {
		return
	}
	metrics.SignalDroppedTotal.Inc()
	s.log.Debug("dropping signal message",
		slog.String("conn_id", conn.ID),
		slog.String("type", string(msg.Type)),
	)
}
