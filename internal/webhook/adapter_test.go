package webhook

import (
	"context"
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"glowbook/internal/booking"
	"glowbook/internal/models"
)

type mockLifecycle struct {
	mock.Mock
}

func (m *mockLifecycle) Get(ctx context.Context, actor booking.Actor, reservationID int64) (*models.Reservation, error) {
	args := m.Called(ctx, actor, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *mockLifecycle) Transition(ctx context.Context, actor booking.Actor, reservationID int64, to models.ReservationStatus, note string) (*models.Reservation, error) {
	args := m.Called(ctx, actor, reservationID, to, note)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *mockLifecycle) RecordPayment(ctx context.Context, reservationID int64, status models.PaymentStatus) error {
	return m.Called(ctx, reservationID, status).Error(0)
}

func newTestAdapter(svc Lifecycle) *Adapter {
	logger := zerolog.New(io.Discard)
	return NewAdapter(svc, &logger)
}

var adapterActor = booking.Actor{Role: booking.RoleAdapter}

func TestPaymentSucceededConfirms(t *testing.T) {
	ctx := context.Background()
	svc := new(mockLifecycle)
	a := newTestAdapter(svc)

	svc.On("RecordPayment", ctx, int64(9), models.PaymentPaid).Return(nil)
	svc.On("Transition", ctx, adapterActor, int64(9), models.StatusConfirmed, "payment received").
		Return(&models.Reservation{ID: 9, Status: models.StatusConfirmed}, nil)

	err := a.Handle(ctx, PaymentEvent{Provider: "stripe", EventID: "pe_1", ReservationID: 9, Status: PaymentSucceeded})
	assert.NoError(t, err)
	svc.AssertExpectations(t)
}

func TestPaymentSucceededIsIdempotent(t *testing.T) {
	ctx := context.Background()
	svc := new(mockLifecycle)
	a := newTestAdapter(svc)

	// Redelivered event: the reservation is already confirmed.
	svc.On("RecordPayment", ctx, int64(9), models.PaymentPaid).Return(nil)
	svc.On("Transition", ctx, adapterActor, int64(9), models.StatusConfirmed, "payment received").
		Return(nil, booking.ErrInvalidTransition)
	svc.On("Get", ctx, adapterActor, int64(9)).
		Return(&models.Reservation{ID: 9, Status: models.StatusConfirmed}, nil)

	err := a.Handle(ctx, PaymentEvent{Provider: "stripe", EventID: "pe_1", ReservationID: 9, Status: PaymentSucceeded})
	assert.NoError(t, err)
}

func TestPaymentSucceededOnCompletedReservationErrors(t *testing.T) {
	ctx := context.Background()
	svc := new(mockLifecycle)
	a := newTestAdapter(svc)

	svc.On("RecordPayment", ctx, int64(9), models.PaymentPaid).Return(nil)
	svc.On("Transition", ctx, adapterActor, int64(9), models.StatusConfirmed, "payment received").
		Return(nil, booking.ErrInvalidTransition)
	svc.On("Get", ctx, adapterActor, int64(9)).
		Return(&models.Reservation{ID: 9, Status: models.StatusCompleted}, nil)

	err := a.Handle(ctx, PaymentEvent{Provider: "stripe", EventID: "pe_1", ReservationID: 9, Status: PaymentSucceeded})
	assert.ErrorIs(t, err, booking.ErrInvalidTransition)
}

func TestPaymentFailedOnlyRecordsPayment(t *testing.T) {
	ctx := context.Background()
	svc := new(mockLifecycle)
	a := newTestAdapter(svc)

	svc.On("RecordPayment", ctx, int64(9), models.PaymentFailed).Return(nil)

	err := a.Handle(ctx, PaymentEvent{Provider: "stripe", EventID: "pe_2", ReservationID: 9, Status: PaymentFailed})
	assert.NoError(t, err)
	svc.AssertNotCalled(t, "Transition", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPaymentRefundedCancels(t *testing.T) {
	ctx := context.Background()
	svc := new(mockLifecycle)
	a := newTestAdapter(svc)

	svc.On("RecordPayment", ctx, int64(9), models.PaymentRefunded).Return(nil)
	svc.On("Transition", ctx, adapterActor, int64(9), models.StatusCancelledByVenue, "payment refunded").
		Return(&models.Reservation{ID: 9, Status: models.StatusCancelledByVenue}, nil)

	err := a.Handle(ctx, PaymentEvent{Provider: "stripe", EventID: "pe_3", ReservationID: 9, Status: PaymentRefunded})
	assert.NoError(t, err)
}

func TestUnknownStatusRejected(t *testing.T) {
	a := newTestAdapter(new(mockLifecycle))
	err := a.Handle(context.Background(), PaymentEvent{EventID: "pe_4", ReservationID: 9, Status: "chargeback"})
	assert.Error(t, err)
}

func TestMissingReservationID(t *testing.T) {
	a := newTestAdapter(new(mockLifecycle))
	err := a.Handle(context.Background(), PaymentEvent{EventID: "pe_5", Status: PaymentSucceeded})
	assert.Error(t, err)
}
