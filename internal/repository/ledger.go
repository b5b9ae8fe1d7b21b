package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/immxrtalbeast/ringcall/internal/domain"
	"github.com/immxrtalbeast/ringcall/internal/ledger"
)

type LedgerCallRepository struct {
	ledger *ledger.Ledger
}

func NewLedgerCallRepository(l *ledger.Ledger) *LedgerCallRepository {
	return &LedgerCallRepository{ledger: l}
}

func (r *LedgerCallRepository) LoadAll(ctx context.Context) ([]*domain.Call, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ledger.Load[*domain.Call](ctx, r.ledger, ledger.Calls)
}

func (r *LedgerCallRepository) SaveAll(ctx context.Context, calls []*domain.Call) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ledger.Write(ctx, r.ledger, ledger.Calls, calls)
}

type LedgerUserRepository struct {
	ledger *ledger.Ledger
}

func NewLedgerUserRepository(l *ledger.Ledger) *LedgerUserRepository {
	return &LedgerUserRepository{ledger: l}
}

func (r *LedgerUserRepository) Create(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil {
		return errors.New("user is nil")
	}

	return ledger.Modify(ctx, r.ledger, ledger.Users, func(users []*domain.User) ([]*domain.User, error) {
		for _, u := range users {
			if u != nil && strings.EqualFold(u.Username, user.Username) {
				return nil, ErrUsernameTaken
			}
		}
		return append(users, user), nil
	})
}

func (r *LedgerUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, u := range ledger.Read[*domain.User](ctx, r.ledger, ledger.Users) {
		if u != nil && u.ID == id {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *LedgerUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, u := range ledger.Read[*domain.User](ctx, r.ledger, ledger.Users) {
		if u != nil && strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return nil, ErrUserNotFound
}

type LedgerSessionRepository struct {
	ledger *ledger.Ledger
}

func NewLedgerSessionRepository(l *ledger.Ledger) *LedgerSessionRepository {
	return &LedgerSessionRepository{ledger: l}
}

func (r *LedgerSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if session == nil {
		return errors.New("session is nil")
	}
	return ledger.Append(ctx, r.ledger, ledger.Sessions, session)
}

func (r *LedgerSessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, s := range ledger.Read[*domain.Session](ctx, r.ledger, ledger.Sessions) {
		if s != nil && s.ID == id {
			return s, nil
		}
	}
	return nil, ErrSessionNotFound
}

func (r *LedgerSessionRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return ledger.Modify(ctx, r.ledger, ledger.Sessions, func(sessions []*domain.Session) ([]*domain.Session, error) {
		kept := sessions[:0]
		for _, s := range sessions {
			if s != nil && s.ID != id {
				kept = append(kept, s)
			}
		}
		return kept, nil
	})
}

func (r *LedgerSessionRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	removed := 0
	err := ledger.Modify(ctx, r.ledger, ledger.Sessions, func(sessions []*domain.Session) ([]*domain.Session, error) {
		kept := sessions[:0]
		for _, s := range sessions {
			if s == nil || s.CreatedAt.Before(cutoff) {
				removed++
				continue
			}
			kept = append(kept, s)
		}
		return kept, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

type LedgerEventRepository struct {
	ledger *ledger.Ledger
}

func NewLedgerEventRepository(l *ledger.Ledger) *LedgerEventRepository {
	return &LedgerEventRepository{ledger: l}
}

func (r *LedgerEventRepository) Append(ctx context.Context, event *domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event == nil {
		return errors.New("event is nil")
	}
	return ledger.Append(ctx, r.ledger, ledger.Events, event)
}

// List returns the last limit events in insertion order. A non-positive
// limit returns everything.
func (r *LedgerEventRepository) List(ctx context.Context, limit int) ([]*domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	events := ledger.Read[*domain.Event](ctx, r.ledger, ledger.Events)
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

func (r *LedgerEventRepository) DeleteByCall(ctx context.Context, callID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	removed := 0
	err := ledger.Modify(ctx, r.ledger, ledger.Events, func(events []*domain.Event) ([]*domain.Event, error) {
		kept := events[:0]
		for _, e := range events {
			if e == nil || e.CallID == callID {
				removed++
				continue
			}
			kept = append(kept, e)
		}
		return kept, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

type LedgerSaleRepository struct {
	ledger *ledger.Ledger
}

func NewLedgerSaleRepository(l *ledger.Ledger) *LedgerSaleRepository {
	return &LedgerSaleRepository{ledger: l}
}

func (r *LedgerSaleRepository) Append(ctx context.Context, sale *domain.Sale) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if sale == nil {
		return errors.New("sale is nil")
	}
	return ledger.Append(ctx, r.ledger, ledger.Sales, sale)
}

func (r *LedgerSaleRepository) List(ctx context.Context) ([]*domain.Sale, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ledger.Read[*domain.Sale](ctx, r.ledger, ledger.Sales), nil
}

func (r *LedgerSaleRepository) DeleteByCall(ctx context.Context, callID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	removed := 0
	err := ledger.Modify(ctx, r.ledger, ledger.Sales, func(sales []*domain.Sale) ([]*domain.Sale, error) {
		kept := sales[:0]
		for _, s := range sales {
			if s == nil || s.CallID == callID {
				removed++
				continue
			}
			kept = append(kept, s)
		}
		return kept, nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
