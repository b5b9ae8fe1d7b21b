package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/immxrtalbeast/ringcall/internal/currency"
	"github.com/immxrtalbeast/ringcall/internal/domain"
	"github.com/immxrtalbeast/ringcall/internal/metrics"
	"github.com/immxrtalbeast/ringcall/internal/repository"
	"github.com/immxrtalbeast/ringcall/lib/logger/sl"
)

const (
	DefaultEventLimit = 5000
	HistoryEventLimit = 8000
)

// CallDirectory answers the ownership questions activity needs from the
// registry.
type CallDirectory interface {
	Exists(callID string) bool
	Visible(callID string, requester string) bool
}

type ActivityService struct {
	calls    CallDirectory
	activity *recorder
	log      *slog.Logger
}

func NewActivityService(
	calls CallDirectory,
	events repository.EventRepository,
	sales repository.SaleRepository,
	log *slog.Logger,
) *ActivityService {
	if log == nil {
		log = slog.Default()
	}
	return &ActivityService{
		calls:    calls,
		activity: newRecorder(events, sales),
		log:      log,
	}
}

func (s *ActivityService) AppendEvent(ctx context.Context, event *domain.Event) error {
	const op = "service.activity.append_event"

	if err := s.activity.event(ctx, event); err != nil {
		s.log.Error("failed to append event", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%w: append event", domain.ErrInternal)
	}
	return nil
}

// ListEvents returns the last limit events visible to requester, oldest
// first.
func (s *ActivityService) ListEvents(ctx context.Context, requester string, limit int) ([]*domain.Event, error) {
	const op = "service.activity.list_events"

	if limit <= 0 {
		limit = DefaultEventLimit
	}

	events, err := s.activity.events.List(ctx, limit)
	if err != nil {
		s.log.Error("failed to list events", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%w: list events", domain.ErrInternal)
	}

	visible := make([]*domain.Event, 0, len(events))
	for _, e := range events {
		if e != nil && s.calls.Visible(e.CallID, requester) {
			visible = append(visible, e)
		}
	}
	return visible, nil
}

func (s *ActivityService) AddSale(ctx context.Context, requester string, callID string, amount any, note *string) (*domain.Sale, error) {
	const op = "service.activity.add_sale"
	log := s.log.With(slog.String("op", op), slog.String("call_id", callID))

	if callID == "" || !s.calls.Exists(callID) {
		return nil, fmt.Errorf("%w: invalid callId", domain.ErrValidation)
	}
	if !s.calls.Visible(callID, requester) {
		return nil, domain.ErrForbidden
	}

	n, err := currency.Parse(amount)
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("%w: amount must be a number > 0", domain.ErrValidation)
	}

	sale := domain.NewSale(callID, currency.Round2(n), note, domain.OptionalString(requester))
	if err := s.activity.sale(ctx, sale); err != nil {
		log.Error("failed to record sale", sl.Err(err))
		return nil, fmt.Errorf("%w: record sale", domain.ErrInternal)
	}

	log.Info("sale recorded", slog.Float64("amount", sale.Amount))
	return sale, nil
}

func (s *ActivityService) ListSales(ctx context.Context, requester string) ([]*domain.Sale, error) {
	const op = "service.activity.list_sales"

	sales, err := s.activity.sales.List(ctx)
	if err != nil {
		s.log.Error("failed to list sales", slog.String("op", op), sl.Err(err))
		return nil, fmt.Errorf("%w: list sales", domain.ErrInternal)
	}

	visible := make([]*domain.Sale, 0, len(sales))
	for _, sale := range sales {
		if sale != nil && s.calls.Visible(sale.CallID, requester) {
			visible = append(visible, sale)
		}
	}
	return visible, nil
}

// Track records a lead-side event. Only call_answer, video_open and
// call_end are accepted.
func (s *ActivityService) Track(ctx context.Context, callID string, eventType domain.EventType) error {
	if callID == "" || !s.calls.Exists(callID) {
		return fmt.Errorf("%w: invalid callId", domain.ErrValidation)
	}
	if !eventType.Trackable() {
		return fmt.Errorf("%w: invalid type", domain.ErrValidation)
	}
	return s.AppendEvent(ctx, domain.NewEvent(eventType, callID, nil))
}

// recorder appends events and sales and keeps the counters in step.
type recorder struct {
	events repository.EventRepository
	sales  repository.SaleRepository
}

func newRecorder(events repository.EventRepository, sales repository.SaleRepository) *recorder {
	return &recorder{events: events, sales: sales}
}

func (r *recorder) event(ctx context.Context, event *domain.Event) error {
	if err := r.events.Append(ctx, event); err != nil {
		return err
	}
	metrics.EventsTotal.WithLabelValues(string(event.Type)).Inc()
	return nil
}

// sale appends the sale and its sale_marked event.
func (r *recorder) sale(ctx context.Context, sale *domain.Sale) error {
	if err := r.sales.Append(ctx, sale); err != nil {
		return err
	}
	metrics.SalesTotal.Inc()

	marked := domain.NewEvent(domain.EventSaleMarked, sale.CallID, sale.UserID)
	marked.At = sale.At
	amount := sale.Amount
	marked.Amount = &amount
	return r.event(ctx, marked)
}

func (r *recorder) purge(ctx context.Context, callID string) (sales int, events int, err error) {
	sales, err = r.sales.DeleteByCall(ctx, callID)
	if err != nil {
		return 0, 0, err
	}
	events, err = r.events.DeleteByCall(ctx, callID)
	if err != nil {
		return sales, 0, err
	}
	return sales, events, nil
}
