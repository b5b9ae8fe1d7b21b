package service

import (
	"context"

	"github.com/immxrtalbeast/ringcall/internal/domain"
)

type CallInteractor interface {
	Create(ctx context.Context, input CreateCallInput) (*domain.Call, *domain.Sale, error)
	Get(ctx context.Context, id string) (*domain.Call, error)
	GetPublic(ctx context.Context, id string, authenticated bool) (*CallView, error)
	Update(ctx context.Context, id string, requester string, input UpdateCallInput) (*domain.Call, error)
	Delete(ctx context.Context, id string, requester string) error
	List(ctx context.Context, requester string) ([]CallView, error)
}

type AuthInteractor interface {
	Register(ctx context.Context, username, password string) (*domain.User, *domain.Session, error)
	Login(ctx context.Context, username, password string) (*domain.User, *domain.Session, error)
	Logout(ctx context.Context, sessionID string) error
	Authenticate(ctx context.Context, sessionID string) (*domain.User, error)
}

type ActivityInteractor interface {
	ListEvents(ctx context.Context, requester string, limit int) ([]*domain.Event, error)
	AddSale(ctx context.Context, requester string, callID string, amount any, note *string) (*domain.Sale, error)
	ListSales(ctx context.Context, requester string) ([]*domain.Sale, error)
	Track(ctx context.Context, callID string, eventType domain.EventType) error
}

type RelayInteractor interface {
	Connect() *domain.Connection
	HandleMessage(ctx context.Context, conn *domain.Connection, data []byte)
	Disconnect(ctx context.Context, conn *domain.Connection)
}
