package booking

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"glowbook/internal/metrics"
	"glowbook/internal/models"
)

var (
	errTestConflict = errors.New("slot taken")
	errTestStale    = errors.New("stale status")
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetVenue(ctx context.Context, id int64) (*models.Venue, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Venue), args.Error(1)
}

func (m *mockStore) GetPractitioner(ctx context.Context, id int64) (*models.Practitioner, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Practitioner), args.Error(1)
}

func (m *mockStore) GetService(ctx context.Context, id int64) (*models.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Service), args.Error(1)
}

func (m *mockStore) IsPractitionerEligible(ctx context.Context, practitionerID, serviceID int64) (bool, error) {
	args := m.Called(ctx, practitionerID, serviceID)
	return args.Bool(0), args.Error(1)
}

func (m *mockStore) CreateReservationIfFree(ctx context.Context, r *models.Reservation, evt *models.OutboxEvent) error {
	return m.Called(ctx, r, evt).Error(0)
}

func (m *mockStore) GetReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Reservation), args.Error(1)
}

func (m *mockStore) TransitionReservation(ctx context.Context, id int64, from, to models.ReservationStatus, rec models.StatusRecord, evt *models.OutboxEvent) error {
	return m.Called(ctx, id, from, to, rec, evt).Error(0)
}

func (m *mockStore) SetPaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) error {
	return m.Called(ctx, id, status).Error(0)
}

func (m *mockStore) ListReservationsByClient(ctx context.Context, clientID int64, limit, offset int) ([]models.Reservation, error) {
	args := m.Called(ctx, clientID, limit, offset)
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *mockStore) ListReservationsByPractitioner(ctx context.Context, practitionerID int64, from, to time.Time) ([]models.Reservation, error) {
	args := m.Called(ctx, practitionerID, from, to)
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *mockStore) ListOverdueConfirmed(ctx context.Context, cutoff time.Time) ([]models.Reservation, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).([]models.Reservation), args.Error(1)
}

func (m *mockStore) ListStatusLog(ctx context.Context, reservationID int64) ([]models.StatusRecord, error) {
	args := m.Called(ctx, reservationID)
	return args.Get(0).([]models.StatusRecord), args.Error(1)
}

func newTestService(store *mockStore) *Service {
	metrics.Register()
	logger := zerolog.New(io.Discard)
	svc := NewService(store, DefaultRules(), errTestConflict, errTestStale, &logger)
	return svc
}

func fixedClock(svc *Service, at time.Time) {
	svc.now = func() time.Time { return at }
}

func TestCreatePreconditions(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	activeService := &models.Service{ID: 5, VenueID: 1, Title: "Manicure", DurationMinutes: 60, Price: 50, IsActive: true}
	activePractitioner := &models.Practitioner{ID: 7, VenueID: 1, Name: "Dana", IsActive: true}

	t.Run("service not found", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store)
		fixedClock(svc, now)

		store.On("GetService", ctx, int64(5)).Return(nil, sql.ErrNoRows)

		_, err := svc.Create(ctx, CreateRequest{ClientID: 2, PractitionerID: 7, ServiceID: 5, StartAt: now.Add(time.Hour)})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("inactive service", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store)
		fixedClock(svc, now)

		inactive := *activeService
		inactive.IsActive = false
		store.On("GetService", ctx, int64(5)).Return(&inactive, nil)

		_, err := svc.Create(ctx, CreateRequest{ClientID: 2, PractitionerID: 7, ServiceID: 5, StartAt: now.Add(time.Hour)})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("practitioner not found", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store)
		fixedClock(svc, now)

		store.On("GetService", ctx, int64(5)).Return(activeService, nil)
		store.On("GetPractitioner", ctx, int64(7)).Return(nil, sql.ErrNoRows)

		_, err := svc.Create(ctx, CreateRequest{ClientID: 2, PractitionerID: 7, ServiceID: 5, StartAt: now.Add(time.Hour)})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("not eligible", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store)
		fixedClock(svc, now)

		store.On("GetService", ctx, int64(5)).Return(activeService, nil)
		store.On("GetPractitioner", ctx, int64(7)).Return(activePractitioner, nil)
		store.On("IsPractitionerEligible", ctx, int64(7), int64(5)).Return(false, nil)

		_, err := svc.Create(ctx, CreateRequest{ClientID: 2, PractitionerID: 7, ServiceID: 5, StartAt: now.Add(time.Hour)})
		assert.ErrorIs(t, err, ErrIneligible)
	})

	t.Run("start in the past", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store)
		fixedClock(svc, now)

		store.On("GetService", ctx, int64(5)).Return(activeService, nil)
		store.On("GetPractitioner", ctx, int64(7)).Return(activePractitioner, nil)
		store.On("IsPractitionerEligible", ctx, int64(7), int64(5)).Return(true, nil)

		_, err := svc.Create(ctx, CreateRequest{ClientID: 2, PractitionerID: 7, ServiceID: 5, StartAt: now.Add(-time.Minute)})
		assert.ErrorIs(t, err, ErrPastTime)
		store.AssertNotCalled(t, "CreateReservationIfFree", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("slot conflict", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store)
		fixedClock(svc, now)

		store.On("GetService", ctx, int64(5)).Return(activeService, nil)
		store.On("GetPractitioner", ctx, int64(7)).Return(activePractitioner, nil)
		store.On("IsPractitionerEligible", ctx, int64(7), int64(5)).Return(true, nil)
		store.On("CreateReservationIfFree", ctx, mock.Anything, mock.Anything).Return(errTestConflict)

		_, err := svc.Create(ctx, CreateRequest{ClientID: 2, PractitionerID: 7, ServiceID: 5, StartAt: now.Add(time.Hour)})
		assert.ErrorIs(t, err, ErrSlotConflict)
	})
}

func TestCreateSnapshotsPriceAndEnd(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	start := now.Add(2 * time.Hour)

	store := new(mockStore)
	svc := newTestService(store)
	fixedClock(svc, now)

	store.On("GetService", ctx, int64(5)).Return(&models.Service{
		ID: 5, VenueID: 1, Title: "Massage", DurationMinutes: 45, Price: 80, IsActive: true,
	}, nil)
	store.On("GetPractitioner", ctx, int64(7)).Return(&models.Practitioner{ID: 7, VenueID: 1, IsActive: true}, nil)
	store.On("IsPractitionerEligible", ctx, int64(7), int64(5)).Return(true, nil)
	store.On("CreateReservationIfFree", ctx, mock.Anything, mock.Anything).Return(nil)

	r, err := svc.Create(ctx, CreateRequest{ClientID: 2, PractitionerID: 7, ServiceID: 5, StartAt: start, ClientNote: "first visit"})
	assert.NoError(t, err)
	assert.Equal(t, models.StatusPending, r.Status)
	assert.Equal(t, models.PaymentPending, r.PaymentStatus)
	assert.Equal(t, start.Add(45*time.Minute), r.EndAt)
	assert.Equal(t, 80.0, r.Price)
	assert.Equal(t, int64(1), r.VenueID)

	// The outbox event goes into the same call as the reservation.
	call := store.Calls[len(store.Calls)-1]
	evt := call.Arguments.Get(2).(*models.OutboxEvent)
	assert.Equal(t, models.EventReservationCreated, evt.Type)
	assert.NotEmpty(t, evt.EventID)
}

func TestTransitionAuthorizationBeforeState(t *testing.T) {
	ctx := context.Background()
	completed := &models.Reservation{ID: 9, ClientID: 2, VenueID: 1, Status: models.StatusCompleted}

	store := new(mockStore)
	svc := newTestService(store)
	store.On("GetReservation", ctx, int64(9)).Return(completed, nil)

	// A foreign client on a terminal reservation must see Forbidden,
	// not InvalidTransition.
	_, err := svc.Transition(ctx, Actor{Role: RoleClient, ID: 999}, 9, models.StatusCancelledByClient, "")
	assert.ErrorIs(t, err, ErrForbidden)

	// The owner of the reservation gets the state error.
	_, err = svc.Transition(ctx, Actor{Role: RoleClient, ID: 2}, 9, models.StatusCancelledByClient, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionOwnership(t *testing.T) {
	ctx := context.Background()
	pending := &models.Reservation{ID: 9, ClientID: 2, VenueID: 1, Status: models.StatusPending}

	t.Run("operator of another venue", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store)
		store.On("GetReservation", ctx, int64(9)).Return(pending, nil)
		store.On("GetVenue", ctx, int64(1)).Return(&models.Venue{ID: 1, OwnerID: 50}, nil)

		_, err := svc.Transition(ctx, Actor{Role: RoleOperator, ID: 51}, 9, models.StatusConfirmed, "")
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("owning operator confirms", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store)
		store.On("GetReservation", ctx, int64(9)).Return(pending, nil)
		store.On("GetVenue", ctx, int64(1)).Return(&models.Venue{ID: 1, OwnerID: 50}, nil)
		store.On("TransitionReservation", ctx, int64(9), models.StatusPending, models.StatusConfirmed, mock.Anything, mock.Anything).Return(nil)

		r, err := svc.Transition(ctx, Actor{Role: RoleOperator, ID: 50}, 9, models.StatusConfirmed, "see you then")
		assert.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, r.Status)
		assert.Equal(t, "see you then", r.OperatorNote)
	})

	t.Run("client cannot confirm", func(t *testing.T) {
		store := new(mockStore)
		svc := newTestService(store)
		store.On("GetReservation", ctx, int64(9)).Return(pending, nil)

		_, err := svc.Transition(ctx, Actor{Role: RoleClient, ID: 2}, 9, models.StatusConfirmed, "")
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestTransitionRetriesOnStaleStatus(t *testing.T) {
	ctx := context.Background()

	// Venue confirms while the client's cancel is in flight. The cancel loses
	// the conditional update, re-reads the fresh status and still succeeds,
	// because pending and confirmed both allow cancelled_by_client.
	store := new(mockStore)
	svc := newTestService(store)

	pending := &models.Reservation{ID: 9, ClientID: 2, VenueID: 1, Status: models.StatusPending}
	confirmed := &models.Reservation{ID: 9, ClientID: 2, VenueID: 1, Status: models.StatusConfirmed}

	store.On("GetReservation", ctx, int64(9)).Return(pending, nil).Once()
	store.On("TransitionReservation", ctx, int64(9), models.StatusPending, models.StatusCancelledByClient, mock.Anything, mock.Anything).
		Return(errTestStale).Once()
	store.On("GetReservation", ctx, int64(9)).Return(confirmed, nil).Once()
	store.On("TransitionReservation", ctx, int64(9), models.StatusConfirmed, models.StatusCancelledByClient, mock.Anything, mock.Anything).
		Return(nil).Once()

	r, err := svc.Transition(ctx, Actor{Role: RoleClient, ID: 2}, 9, models.StatusCancelledByClient, "")
	assert.NoError(t, err)
	assert.Equal(t, models.StatusCancelledByClient, r.Status)
	store.AssertExpectations(t)
}

func TestTransitionRetryStopsAtTerminal(t *testing.T) {
	ctx := context.Background()

	// The concurrent actor completed the reservation, so after the re-read
	// the cancel is no longer valid.
	store := new(mockStore)
	svc := newTestService(store)

	confirmed := &models.Reservation{ID: 9, ClientID: 2, VenueID: 1, Status: models.StatusConfirmed}
	done := &models.Reservation{ID: 9, ClientID: 2, VenueID: 1, Status: models.StatusCompleted}

	store.On("GetReservation", ctx, int64(9)).Return(confirmed, nil).Once()
	store.On("TransitionReservation", ctx, int64(9), models.StatusConfirmed, models.StatusCancelledByClient, mock.Anything, mock.Anything).
		Return(errTestStale).Once()
	store.On("GetReservation", ctx, int64(9)).Return(done, nil).Once()

	_, err := svc.Transition(ctx, Actor{Role: RoleClient, ID: 2}, 9, models.StatusCancelledByClient, "")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	store.AssertExpectations(t)
}

func TestSweepNoShows(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 18, 30, 0, 0, time.UTC)

	store := new(mockStore)
	svc := newTestService(store)
	fixedClock(svc, now)

	overdue := []models.Reservation{
		{ID: 1, ClientID: 2, VenueID: 1, Status: models.StatusConfirmed},
		{ID: 2, ClientID: 3, VenueID: 1, Status: models.StatusConfirmed},
	}
	store.On("ListOverdueConfirmed", ctx, now.Add(-time.Hour)).Return(overdue, nil)
	store.On("GetReservation", ctx, int64(1)).Return(&overdue[0], nil)
	store.On("GetReservation", ctx, int64(2)).Return(&overdue[1], nil)
	store.On("TransitionReservation", ctx, int64(1), models.StatusConfirmed, models.StatusNoShow, mock.Anything, mock.Anything).Return(nil)
	store.On("TransitionReservation", ctx, int64(2), models.StatusConfirmed, models.StatusNoShow, mock.Anything, mock.Anything).Return(nil)

	swept, err := svc.SweepNoShows(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, swept)
}

func TestSweepSkipsConcurrentlyChangedRows(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 18, 30, 0, 0, time.UTC)

	store := new(mockStore)
	svc := newTestService(store)
	fixedClock(svc, now)

	confirmed := models.Reservation{ID: 1, ClientID: 2, VenueID: 1, Status: models.StatusConfirmed}
	completed := models.Reservation{ID: 1, ClientID: 2, VenueID: 1, Status: models.StatusCompleted}

	store.On("ListOverdueConfirmed", ctx, now.Add(-time.Hour)).Return([]models.Reservation{confirmed}, nil)
	// An operator completed it between the list and the sweep's read.
	store.On("GetReservation", ctx, int64(1)).Return(&completed, nil)

	swept, err := svc.SweepNoShows(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 0, swept)
	store.AssertNotCalled(t, "TransitionReservation", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
