package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/immxrtalbeast/ringcall/internal/domain"
	"github.com/immxrtalbeast/ringcall/internal/ledger"
	"github.com/immxrtalbeast/ringcall/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	ledger   *ledger.Ledger
	callRepo repository.CallRepository
	users    repository.UserRepository
	sessions repository.SessionRepository
	events   repository.EventRepository
	sales    repository.SaleRepository

	calls    *CallService
	activity *ActivityService
	auth     *AuthService
	relay    *RelayService
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := discardLogger()
	l := ledger.New(ledger.NewMemoryStore(), log)
	f := &fixture{
		ledger:   l,
		callRepo: repository.NewLedgerCallRepository(l),
		users:    repository.NewLedgerUserRepository(l),
		sessions: repository.NewLedgerSessionRepository(l),
		events:   repository.NewLedgerEventRepository(l),
		sales:    repository.NewLedgerSaleRepository(l),
	}
	f.calls = NewCallService(f.callRepo, f.events, f.sales, log)
	f.activity = NewActivityService(f.calls, f.events, f.sales, log)
	f.auth = NewAuthService(f.users, f.sessions, AuthOptions{
		CacheTTL:   domain.DefaultSessionTTL,
		BcryptCost: bcrypt.MinCost,
	}, log)
	f.relay = NewRelayService(f.calls, log)
	return f
}

func (f *fixture) allEvents(t *testing.T) []*domain.Event {
	t.Helper()
	events, err := f.events.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	return events
}

func (f *fixture) allSales(t *testing.T) []*domain.Sale {
	t.Helper()
	sales, err := f.sales.List(context.Background())
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	return sales
}

func eventsOfType(events []*domain.Event, eventType domain.EventType) []*domain.Event {
	var out []*domain.Event
	for _, e := range events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type failingCallRepo struct {
	calls []*domain.Call
}

func (r *failingCallRepo) LoadAll(ctx context.Context) ([]*domain.Call, error) {
	return r.calls, nil
}

func (r *failingCallRepo) SaveAll(ctx context.Context, calls []*domain.Call) error {
	return errors.New("disk full")
}

type unavailableCallRepo struct{}

func (unavailableCallRepo) LoadAll(ctx context.Context) ([]*domain.Call, error) {
	return nil, ledger.ErrUnavailable
}

func (unavailableCallRepo) SaveAll(ctx context.Context, calls []*domain.Call) error {
	return ledger.ErrUnavailable
}

type failingSaleRepo struct {
	repository.SaleRepository
}

func (failingSaleRepo) Append(ctx context.Context, sale *domain.Sale) error {
	return errors.New("connection reset")
}

type failingEventRepo struct {
	repository.EventRepository
}

func (failingEventRepo) Append(ctx context.Context, event *domain.Event) error {
	return errors.New("connection reset")
}
