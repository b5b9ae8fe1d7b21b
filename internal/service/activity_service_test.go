package service

import (
	"context"
	"testing"

	"github.com/immxrtalbeast/ringcall/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSaleRejectsInvalidAmounts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	call, _, err := f.calls.Create(ctx, CreateCallInput{VideoURL: "v", OwnerUserID: "owner"})
	require.NoError(t, err)

	for _, amount := range []any{0, -3.5, "abc", "", nil, "0,00"} {
		_, err := f.activity.AddSale(ctx, "owner", call.ID, amount, nil)
		assert.ErrorIs(t, err, domain.ErrValidation, "amount %v", amount)
	}

	assert.Empty(t, f.allSales(t))
	assert.Empty(t, eventsOfType(f.allEvents(t), domain.EventSaleMarked))
}

func TestAddSaleChecksCallAndOwner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	call, _, err := f.calls.Create(ctx, CreateCallInput{VideoURL: "v", OwnerUserID: "owner"})
	require.NoError(t, err)

	_, err = f.activity.AddSale(ctx, "owner", "missing", 10, nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.activity.AddSale(ctx, "intruder", call.ID, 10, nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	note := "upsell"
	sale, err := f.activity.AddSale(ctx, "owner", call.ID, "1.234,5", &note)
	require.NoError(t, err)
	assert.Equal(t, 1234.5, sale.Amount)
	require.NotNil(t, sale.UserID)
	assert.Equal(t, "owner", *sale.UserID)

	marked := eventsOfType(f.allEvents(t), domain.EventSaleMarked)
	require.Len(t, marked, 1)
	assert.Equal(t, sale.At, marked[0].At)
	assert.Equal(t, 1234.5, *marked[0].Amount)
	assert.Equal(t, "owner", *marked[0].UserID)
}

func TestListVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	mine, _, err := f.calls.Create(ctx, CreateCallInput{VideoURL: "v", OwnerUserID: "me", ExpectedAmount: 5})
	require.NoError(t, err)
	theirs, _, err := f.calls.Create(ctx, CreateCallInput{VideoURL: "v", OwnerUserID: "them", ExpectedAmount: 7})
	require.NoError(t, err)
	require.NoError(t, f.activity.AppendEvent(ctx, domain.NewEvent(domain.EventRingOpen, "gone-call", nil)))

	events, err := f.activity.ListEvents(ctx, "me", HistoryEventLimit)
	require.NoError(t, err)
	for _, e := range events {
		assert.NotEqual(t, theirs.ID, e.CallID)
	}
	assert.NotEmpty(t, eventsOfType(events, domain.EventRingOpen))

	sales, err := f.activity.ListSales(ctx, "me")
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, mine.ID, sales[0].CallID)
}

func TestListEventsLimitKeepsMostRecent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	call, _, err := f.calls.Create(ctx, CreateCallInput{VideoURL: "v"})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.activity.Track(ctx, call.ID, domain.EventVideoOpen))
	}

	events, err := f.activity.ListEvents(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventVideoOpen, events[0].Type)
	assert.Equal(t, domain.EventVideoOpen, events[1].Type)

	events, err = f.activity.ListEvents(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, events, 4)
	assert.Equal(t, domain.EventCallCreated, events[0].Type)
}

func TestTrack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	call, _, err := f.calls.Create(ctx, CreateCallInput{VideoURL: "v"})
	require.NoError(t, err)

	for _, eventType := range []domain.EventType{domain.EventCallAnswer, domain.EventVideoOpen, domain.EventCallEnd} {
		assert.NoError(t, f.activity.Track(ctx, call.ID, eventType))
	}

	assert.ErrorIs(t, f.activity.Track(ctx, call.ID, domain.EventSaleMarked), domain.ErrValidation)
	assert.ErrorIs(t, f.activity.Track(ctx, call.ID, "bogus"), domain.ErrValidation)
	assert.ErrorIs(t, f.activity.Track(ctx, "missing", domain.EventCallAnswer), domain.ErrValidation)

	assert.Len(t, f.allEvents(t), 4)
}
