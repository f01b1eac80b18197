package outbox

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"glowbook/internal/models"
)

type mockEventStore struct {
	mock.Mock
}

func (m *mockEventStore) ListPendingEvents(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	args := m.Called(ctx, limit, maxAttempts)
	return args.Get(0).([]models.OutboxEvent), args.Error(1)
}

func (m *mockEventStore) MarkEventDelivered(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockEventStore) MarkEventFailed(ctx context.Context, id int64, deliveryErr error) error {
	return m.Called(ctx, id, deliveryErr).Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, evt models.OutboxEvent) error {
	return m.Called(ctx, evt).Error(0)
}

func newTestDispatcher(store EventStore, notifiers ...Notifier) *Dispatcher {
	logger := zerolog.New(io.Discard)
	return NewDispatcher(store, notifiers, DefaultConfig(), &logger)
}

func TestDeliverPending(t *testing.T) {
	ctx := context.Background()
	events := []models.OutboxEvent{
		{ID: 1, EventID: "a", Type: models.EventReservationCreated},
		{ID: 2, EventID: "b", Type: models.EventReservationStatusChanged},
	}

	store := new(mockEventStore)
	notifier := new(mockNotifier)
	d := newTestDispatcher(store, notifier)

	store.On("ListPendingEvents", ctx, 50, 5).Return(events, nil)
	notifier.On("Notify", ctx, events[0]).Return(nil)
	notifier.On("Notify", ctx, events[1]).Return(nil)
	store.On("MarkEventDelivered", ctx, int64(1)).Return(nil)
	store.On("MarkEventDelivered", ctx, int64(2)).Return(nil)

	assert.NoError(t, d.DeliverPending(ctx))
	store.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestDeliverMarksFailuresAndContinues(t *testing.T) {
	ctx := context.Background()
	events := []models.OutboxEvent{
		{ID: 1, EventID: "a", Type: models.EventReservationCreated},
		{ID: 2, EventID: "b", Type: models.EventReservationCreated},
	}

	store := new(mockEventStore)
	notifier := new(mockNotifier)
	d := newTestDispatcher(store, notifier)

	store.On("ListPendingEvents", ctx, 50, 5).Return(events, nil)
	notifier.On("Notify", ctx, events[0]).Return(assert.AnError)
	store.On("MarkEventFailed", ctx, int64(1), assert.AnError).Return(nil)
	// The failure of the first event does not stop the second.
	notifier.On("Notify", ctx, events[1]).Return(nil)
	store.On("MarkEventDelivered", ctx, int64(2)).Return(nil)

	assert.NoError(t, d.DeliverPending(ctx))
	store.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestDeliverRequiresAllNotifiers(t *testing.T) {
	ctx := context.Background()
	events := []models.OutboxEvent{{ID: 1, EventID: "a", Type: models.EventReservationCreated}}

	store := new(mockEventStore)
	ok := new(mockNotifier)
	failing := new(mockNotifier)
	d := newTestDispatcher(store, ok, failing)

	store.On("ListPendingEvents", ctx, 50, 5).Return(events, nil)
	ok.On("Notify", ctx, events[0]).Return(nil)
	failing.On("Notify", ctx, events[0]).Return(assert.AnError)
	store.On("MarkEventFailed", ctx, int64(1), assert.AnError).Return(nil)

	assert.NoError(t, d.DeliverPending(ctx))
	store.AssertNotCalled(t, "MarkEventDelivered", mock.Anything, mock.Anything)
}

func TestStartStop(t *testing.T) {
	store := new(mockEventStore)
	store.On("ListPendingEvents", mock.Anything, 50, 5).Return([]models.OutboxEvent{}, nil).Maybe()

	d := newTestDispatcher(store)
	d.Start()
	d.Start() // second start is a no-op
	d.Stop()
	d.Stop() // second stop is a no-op
}
