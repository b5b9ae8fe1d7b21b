package repository

import (
	"context"
	"errors"
	"time"

	"github.com/immxrtalbeast/ringcall/internal/domain"
)

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrUsernameTaken   = errors.New("username already taken")
	ErrSessionNotFound = errors.New("session not found")
)

// CallRepository persists the full call set in one piece.
type CallRepository interface {
	LoadAll(ctx context.Context) ([]*domain.Call, error)
	SaveAll(ctx context.Context, calls []*domain.Call) error
}

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int, error)
}

type EventRepository interface {
	Append(ctx context.Context, event *domain.Event) error
	List(ctx context.Context, limit int) ([]*domain.Event, error)
	DeleteByCall(ctx context.Context, callID string) (int, error)
}

type SaleRepository interface {
	Append(ctx context.Context, sale *domain.Sale) error
	List(ctx context.Context) ([]*domain.Sale, error)
	DeleteByCall(ctx context.Context, callID string) (int, error)
}
