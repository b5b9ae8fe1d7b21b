package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/immxrtalbeast/ringcall/internal/currency"
	"github.com/immxrtalbeast/ringcall/internal/domain"
	"github.com/immxrtalbeast/ringcall/internal/metrics"
	"github.com/immxrtalbeast/ringcall/internal/repository"
	"github.com/immxrtalbeast/ringcall/lib/logger/sl"
)

const autoSaleNote = "recorded at link creation"

type CreateCallInput struct {
	VideoURL        string
	Title           string
	CallerName      string
	CallerAvatarURL string
	// ExpiresInMinutes and ExpectedAmount keep the raw request value; nil
	// or "" mean absent.
	ExpiresInMinutes any
	ExpectedAmount   any
	OwnerUserID      string
}

type UpdateCallInput struct {
	// Title nil leaves the title untouched, a blank title clears it.
	Title            *string
	ExpireNow        bool
	ClearExpiry      bool
	ExpiresInMinutes any
}

// CallView is a call together with the state derived at read time.
type CallView struct {
	Call        *domain.Call
	Expired     bool
	HasHost     bool
	GuestsCount int
}

// CallService is the call registry. It owns the authoritative call table
// and the transient presence of every call.
type CallService struct {
	calls    repository.CallRepository
	activity *recorder
	log      *slog.Logger
	now      func() time.Time

	mu       sync.RWMutex
	table    map[string]*domain.Call
	presence map[string]*domain.Presence
}

func NewCallService(
	calls repository.CallRepository,
	events repository.EventRepository,
	sales repository.SaleRepository,
	log *slog.Logger,
) *CallService {
	if log == nil {
		log = slog.Default()
	}
	return &CallService{
		calls:    calls,
		activity: newRecorder(events, sales),
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		table:    make(map[string]*domain.Call),
		presence: make(map[string]*domain.Presence),
	}
}

// Load replaces the registry content with the persisted calls. Records
// without an id or a video reference are skipped.
func (s *CallService) Load(ctx context.Context) (int, error) {
	const op = "service.call.load"
	log := s.log.With(slog.String("op", op))

	stored, err := s.calls.LoadAll(ctx)
	if err != nil {
		log.Error("failed to load calls", sl.Err(err))
		return 0, fmt.Errorf("%w: load calls", domain.ErrInternal)
	}

	table := make(map[string]*domain.Call, len(stored))
	for _, call := range stored {
		if call == nil || call.ID == "" || call.VideoURL == "" {
			continue
		}
		table[call.ID] = call.Clone()
	}

	s.mu.Lock()
	s.table = table
	s.presence = make(map[string]*domain.Presence)
	s.mu.Unlock()

	metrics.CallsActive.Set(float64(len(table)))
	log.Info("calls restored", slog.Int("count", len(table)), slog.Int("skipped", len(stored)-len(table)))
	return len(table), nil
}

func (s *CallService) Create(ctx context.Context, input CreateCallInput) (*domain.Call, *domain.Sale, error) {
	const op = "service.call.create"
	log := s.log.With(slog.String("op", op))

	videoURL := strings.TrimSpace(input.VideoURL)
	if videoURL == "" {
		return nil, nil, fmt.Errorf("%w: videoUrl is required", domain.ErrValidation)
	}

	var amount *float64
	if isPresent(input.ExpectedAmount) {
		n, err := currency.Parse(input.ExpectedAmount)
		if err != nil || n <= 0 {
			return nil, nil, fmt.Errorf("%w: expectedAmount must be a number > 0", domain.ErrValidation)
		}
		rounded := currency.Round2(n)
		amount = &rounded
	}

	minutes, hasExpiry, err := parseMinutes(input.ExpiresInMinutes)
	if err != nil {
		return nil, nil, err
	}

	var lifetime time.Duration
	if hasExpiry {
		lifetime = minutesToDuration(minutes)
	}
	call := domain.NewCall(videoURL, s.now(), lifetime)
	call.Title = domain.OptionalString(input.Title)
	call.CallerName = domain.OptionalString(input.CallerName)
	call.CallerAvatarURL = domain.OptionalString(input.CallerAvatarURL)
	call.ExpectedAmount = amount
	call.OwnerUserID = domain.OptionalString(input.OwnerUserID)

	s.mu.Lock()
	s.table[call.ID] = call
	if err := s.persistLocked(ctx); err != nil {
		delete(s.table, call.ID)
		s.mu.Unlock()
		log.Error("failed to persist calls", sl.Err(err))
		return nil, nil, fmt.Errorf("%w: persist call", domain.ErrInternal)
	}
	count := len(s.table)
	s.mu.Unlock()

	metrics.CallsActive.Set(float64(count))
	log.Info("call created", slog.String("call_id", call.ID))

	if err := s.activity.event(ctx, domain.NewEvent(domain.EventCallCreated, call.ID, call.OwnerUserID)); err != nil {
		log.Error("failed to record call_created", sl.Err(err))
		s.rollbackCreate(ctx, call.ID)
		return nil, nil, fmt.Errorf("%w: record call_created", domain.ErrInternal)
	}

	var sale *domain.Sale
	if amount != nil && *amount > 0 {
		note := autoSaleNote
		sale = domain.NewSale(call.ID, *amount, &note, call.OwnerUserID)
		if err := s.activity.sale(ctx, sale); err != nil {
			log.Error("failed to record sale at creation", sl.Err(err))
			s.rollbackCreate(ctx, call.ID)
			return nil, nil, fmt.Errorf("%w: record sale", domain.ErrInternal)
		}
	}

	return call.Clone(), sale, nil
}

// rollbackCreate undoes a Create whose activity records could not be
// written, so the caller never sees a call without them.
func (s *CallService) rollbackCreate(ctx context.Context, id string) {
	const op = "service.call.rollback_create"
	log := s.log.With(slog.String("op", op), slog.String("call_id", id))

	s.mu.Lock()
	removed, ok := s.table[id]
	delete(s.table, id)
	if err := s.persistLocked(ctx); err != nil {
		log.Error("failed to persist rollback", sl.Err(err))
		if ok {
			s.table[id] = removed
		}
	}
	count := len(s.table)
	s.mu.Unlock()
	metrics.CallsActive.Set(float64(count))

	if _, _, err := s.activity.purge(ctx, id); err != nil {
		log.Warn("failed to purge partial activity", sl.Err(err))
	}
}

func (s *CallService) Get(ctx context.Context, id string) (*domain.Call, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	call, ok := s.table[id]
	if !ok {
		return nil, fmt.Errorf("%w: call %s", domain.ErrNotFound, id)
	}
	return call.Clone(), nil
}

// GetPublic is the read used by the ringing side. Expired calls are Gone.
// Reads without a session are recorded as ring_open.
func (s *CallService) GetPublic(ctx context.Context, id string, authenticated bool) (*CallView, error) {
	const op = "service.call.get_public"

	s.mu.RLock()
	call, ok := s.table[id]
	if !ok {
		s.mu.RUnlock()
		return nil, fmt.Errorf("%w: call %s", domain.ErrNotFound, id)
	}
	if call.ExpiredAt(s.now()) {
		s.mu.RUnlock()
		return nil, domain.ErrGone
	}
	view := s.viewLocked(call)
	s.mu.RUnlock()

	if !authenticated {
		if err := s.activity.event(ctx, domain.NewEvent(domain.EventRingOpen, id, nil)); err != nil {
			s.log.Warn("failed to record ring_open", slog.String("op", op), sl.Err(err))
		}
	}
	return &view, nil
}

func (s *CallService) Update(ctx context.Context, id string, requester string, input UpdateCallInput) (*domain.Call, error) {
	const op = "service.call.update"
	log := s.log.With(slog.String("op", op), slog.String("call_id", id))

	minutes, hasExpiry, minutesErr := parseMinutes(input.ExpiresInMinutes)

	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.table[id]
	if !ok {
		return nil, fmt.Errorf("%w: call %s", domain.ErrNotFound, id)
	}
	if !call.ManageableBy(requester) {
		return nil, domain.ErrForbidden
	}
	if minutesErr != nil && !input.ExpireNow && !input.ClearExpiry {
		return nil, minutesErr
	}

	previous := call.Clone()
	updated := call.Clone()

	// An absent title keeps the current one; only an explicit blank clears it.
	if input.Title != nil {
		updated.Title = domain.OptionalString(*input.Title)
	}

	switch {
	case input.ExpireNow:
		expiresAt := s.now().Add(-time.Second)
		updated.ExpiresAt = &expiresAt
	case input.ClearExpiry:
		updated.ExpiresAt = nil
	case hasExpiry:
		expiresAt := s.now().Add(minutesToDuration(minutes))
		updated.ExpiresAt = &expiresAt
	}

	s.table[id] = updated
	if err := s.persistLocked(ctx); err != nil {
		s.table[id] = previous
		log.Error("failed to persist calls", sl.Err(err))
		return nil, fmt.Errorf("%w: persist call", domain.ErrInternal)
	}

	log.Info("call updated")
	return updated.Clone(), nil
}

// Delete removes the call and cascades to its sales and events. A final
// call_deleted event is appended afterwards as the audit trail.
func (s *CallService) Delete(ctx context.Context, id string, requester string) error {
	const op = "service.call.delete"
	log := s.log.With(slog.String("op", op), slog.String("call_id", id))

	s.mu.Lock()
	call, ok := s.table[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: call %s", domain.ErrNotFound, id)
	}
	if !call.ManageableBy(requester) {
		s.mu.Unlock()
		return domain.ErrForbidden
	}

	presence := s.presence[id]
	delete(s.table, id)
	delete(s.presence, id)
	if err := s.persistLocked(ctx); err != nil {
		s.table[id] = call
		if presence != nil {
			s.presence[id] = presence
		}
		s.mu.Unlock()
		log.Error("failed to persist calls", sl.Err(err))
		return fmt.Errorf("%w: persist call", domain.ErrInternal)
	}
	count := len(s.table)
	s.mu.Unlock()

	metrics.CallsActive.Set(float64(count))

	sales, events, err := s.activity.purge(ctx, id)
	if err != nil {
		log.Error("failed to cascade delete", sl.Err(err))
		return fmt.Errorf("%w: cascade delete", domain.ErrInternal)
	}

	if err := s.activity.event(ctx, domain.NewEvent(domain.EventCallDeleted, id, domain.OptionalString(requester))); err != nil {
		log.Warn("failed to record call_deleted", sl.Err(err))
	}

	log.Info("call deleted", slog.Int("sales_removed", sales), slog.Int("events_removed", events))
	return nil
}

// List returns the calls visible to requester, newest first.
func (s *CallService) List(ctx context.Context, requester string) ([]CallView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]CallView, 0, len(s.table))
	for _, call := range s.sortedLocked() {
		if !call.ManageableBy(requester) {
			continue
		}
		views = append(views, s.viewLocked(call))
	}
	return views, nil
}

// Visible reports whether records of callID may be shown to requester.
// Calls no longer in the registry count as unowned.
func (s *CallService) Visible(callID string, requester string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	call, ok := s.table[callID]
	if !ok {
		return true
	}
	return call.ManageableBy(requester)
}

func (s *CallService) Exists(callID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.table[callID]
	return ok
}

// BindHost makes clientID the host of the call, replacing any former host.
func (s *CallService) BindHost(callID, clientID string) (*domain.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.table[callID]
	if !ok {
		return nil, fmt.Errorf("%w: call %s", domain.ErrNotFound, callID)
	}
	s.presenceLocked(callID).HostID = clientID
	return call.Clone(), nil
}

func (s *CallService) AddGuest(callID, clientID string) (*domain.Call, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	call, ok := s.table[callID]
	if !ok {
		return nil, fmt.Errorf("%w: call %s", domain.ErrNotFound, callID)
	}
	s.presenceLocked(callID).Guests[clientID] = struct{}{}
	return call.Clone(), nil
}

// ClearHost drops the host only while clientID is still the current one.
func (s *CallService) ClearHost(callID, clientID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.presence[callID]
	if !ok || p.HostID == "" || p.HostID != clientID {
		return false
	}
	p.HostID = ""
	return true
}

func (s *CallService) RemoveGuest(callID, clientID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.presence[callID]
	if !ok || !p.HasGuest(clientID) {
		return false
	}
	delete(p.Guests, clientID)
	return true
}

func (s *CallService) Presence(callID string) (domain.Presence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.table[callID]; !ok {
		return domain.Presence{}, false
	}
	return s.presence[callID].Clone(), true
}

func (s *CallService) presenceLocked(callID string) *domain.Presence {
	p, ok := s.presence[callID]
	if !ok {
		p = domain.NewPresence()
		s.presence[callID] = p
	}
	return p
}

func (s *CallService) viewLocked(call *domain.Call) CallView {
	view := CallView{
		Call:    call.Clone(),
		Expired: call.ExpiredAt(s.now()),
	}
	if p, ok := s.presence[call.ID]; ok {
		view.HasHost = p.HostID != ""
		view.GuestsCount = len(p.Guests)
	}
	return view
}

func (s *CallService) sortedLocked() []*domain.Call {
	out := make([]*domain.Call, 0, len(s.table))
	for _, call := range s.table {
		out = append(out, call)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// persistLocked writes the whole table. The caller holds s.mu.
func (s *CallService) persistLocked(ctx context.Context) error {
	sorted := s.sortedLocked()
	snapshot := make([]*domain.Call, 0, len(sorted))
	for _, call := range sorted {
		snapshot = append(snapshot, call.Clone())
	}
	return s.calls.SaveAll(ctx, snapshot)
}

func isPresent(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok && s == "" {
		return false
	}
	return true
}

// parseMinutes reads an optional positive number of minutes.
func parseMinutes(v any) (float64, bool, error) {
	if !isPresent(v) {
		return 0, false, nil
	}

	invalid := fmt.Errorf("%w: expiresInMinutes must be a number > 0", domain.ErrValidation)

	var mins float64
	switch n := v.(type) {
	case float64:
		mins = n
	case float32:
		mins = float64(n)
	case int:
		mins = float64(n)
	case int64:
		mins = float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false, invalid
		}
		mins = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false, invalid
		}
		mins = f
	default:
		return 0, false, invalid
	}

	if math.IsNaN(mins) || math.IsInf(mins, 0) || mins <= 0 {
		return 0, false, invalid
	}
	return mins, true, nil
}

// maxMinutes is the largest lifetime a time.Duration can hold.
var maxMinutes = float64(math.MaxInt64) / float64(time.Minute)

// minutesToDuration saturates at the largest duration instead of wrapping
// into the past.
func minutesToDuration(mins float64) time.Duration {
	if mins >= maxMinutes {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(mins * float64(time.Minute))
}
