package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"glowbook/internal/metrics"
	"glowbook/internal/models"
)

// Store is the persistence surface the lifecycle manager needs.
// *database.DB satisfies it.
type Store interface {
	GetVenue(ctx context.Context, id int64) (*models.Venue, error)
	GetPractitioner(ctx context.Context, id int64) (*models.Practitioner, error)
	GetService(ctx context.Context, id int64) (*models.Service, error)
	IsPractitionerEligible(ctx context.Context, practitionerID, serviceID int64) (bool, error)

	CreateReservationIfFree(ctx context.Context, r *models.Reservation, evt *models.OutboxEvent) error
	GetReservation(ctx context.Context, id int64) (*models.Reservation, error)
	TransitionReservation(ctx context.Context, id int64, from, to models.ReservationStatus, rec models.StatusRecord, evt *models.OutboxEvent) error
	SetPaymentStatus(ctx context.Context, id int64, status models.PaymentStatus) error
	ListReservationsByClient(ctx context.Context, clientID int64, limit, offset int) ([]models.Reservation, error)
	ListReservationsByPractitioner(ctx context.Context, practitionerID int64, from, to time.Time) ([]models.Reservation, error)
	ListOverdueConfirmed(ctx context.Context, cutoff time.Time) ([]models.Reservation, error)
	ListStatusLog(ctx context.Context, reservationID int64) ([]models.StatusRecord, error)
}

// Rules are the product policies applied by the lifecycle manager.
type Rules struct {
	// MinAdvance rejects creates starting earlier than now+MinAdvance.
	// Zero means "not in the past".
	MinAdvance time.Duration
	// NoShowGrace is the delay after a confirmed reservation's end before
	// the sweep marks it no_show. Default 1 hour.
	NoShowGrace time.Duration
}

// DefaultRules returns the documented defaults.
func DefaultRules() Rules {
	return Rules{MinAdvance: 0, NoShowGrace: time.Hour}
}

// Service drives reservations through their lifecycle. All writes funnel
// through the store's transactional primitives; side effects only ever leave
// through the outbox.
type Service struct {
	store  Store
	fsm    *FSM
	rules  Rules
	logger *zerolog.Logger
	now    func() time.Time

	// matched against store errors; set by NewService
	conflictErr error
	staleErr    error
}

// NewService creates a lifecycle manager. conflictErr and staleErr are the
// store's sentinel errors for an overlapping insert and a lost conditional
// update (database.ErrConflict, database.ErrStaleStatus).
func NewService(store Store, rules Rules, conflictErr, staleErr error, logger *zerolog.Logger) *Service {
	if rules.NoShowGrace <= 0 {
		rules.NoShowGrace = time.Hour
	}
	return &Service{
		store:       store,
		fsm:         NewFSM(),
		rules:       rules,
		logger:      logger,
		now:         time.Now,
		conflictErr: conflictErr,
		staleErr:    staleErr,
	}
}

// CreateRequest carries a client's reservation request.
type CreateRequest struct {
	ClientID       int64
	PractitionerID int64
	ServiceID      int64
	StartAt        time.Time
	ClientNote     string
}

// Create validates the request and persists a pending reservation. The
// preconditions run in order, each with its own failure mode; the conflict
// check and insert are atomic in the store, so of N racing requests for an
// overlapping window exactly one succeeds.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.Reservation, error) {
	svc, err := s.store.GetService(ctx, req.ServiceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newError(CodeNotFound, "service %d not found", req.ServiceID)
		}
		return nil, err
	}
	if !svc.IsActive {
		return nil, newError(CodeNotFound, "service %d is no longer offered", req.ServiceID)
	}

	practitioner, err := s.store.GetPractitioner(ctx, req.PractitionerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newError(CodeNotFound, "practitioner %d not found", req.PractitionerID)
		}
		return nil, err
	}
	if !practitioner.IsActive {
		return nil, newError(CodeNotFound, "practitioner %d is not currently available", req.PractitionerID)
	}

	eligible, err := s.store.IsPractitionerEligible(ctx, req.PractitionerID, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if !eligible {
		return nil, newError(CodeIneligible, "practitioner %d does not offer service %d", req.PractitionerID, req.ServiceID)
	}

	if req.StartAt.Before(s.now().Add(s.rules.MinAdvance)) {
		return nil, newError(CodePastTime, "requested start %s is in the past", req.StartAt.Format(time.RFC3339))
	}

	// End and price are creation-time snapshots, never recomputed.
	reservation := &models.Reservation{
		ClientID:       req.ClientID,
		VenueID:        svc.VenueID,
		PractitionerID: req.PractitionerID,
		ServiceID:      req.ServiceID,
		StartAt:        req.StartAt,
		EndAt:          req.StartAt.Add(time.Duration(svc.DurationMinutes) * time.Minute),
		Status:         models.StatusPending,
		Price:          svc.Price,
		PaymentStatus:  models.PaymentPending,
		ClientNote:     req.ClientNote,
	}

	evt := s.buildEvent(models.EventReservationCreated, reservation, "", models.StatusPending, RoleClient)

	if err := s.store.CreateReservationIfFree(ctx, reservation, evt); err != nil {
		if errors.Is(err, s.conflictErr) {
			metrics.IncSlotConflict()
			return nil, newError(CodeSlotConflict, "slot %s is unavailable", req.StartAt.Format("2006-01-02 15:04"))
		}
		return nil, err
	}

	metrics.IncReservationCreated(string(reservation.Status))
	s.logger.Info().
		Int64("reservation_id", reservation.ID).
		Int64("practitioner_id", reservation.PractitionerID).
		Time("start_at", reservation.StartAt).
		Msg("reservation created")

	return reservation, nil
}

// transitionAttempts bounds the optimistic re-validation loop when a
// concurrent actor changes the status between our read and write.
const transitionAttempts = 3

// Transition moves a reservation to a new status on behalf of an actor.
// Authorization is checked before transition validity, so an unauthorized
// actor always sees Forbidden rather than InvalidTransition.
func (s *Service) Transition(ctx context.Context, actor Actor, reservationID int64, to models.ReservationStatus, note string) (*models.Reservation, error) {
	if !to.Valid() || to == models.StatusPending {
		return nil, newError(CodeInvalidTransition, "cannot transition to %q", to)
	}

	reservation, err := s.getReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	if err := s.authorize(ctx, actor, reservation, to); err != nil {
		return nil, err
	}

	for attempt := 0; attempt < transitionAttempts; attempt++ {
		from := reservation.Status
		if !s.fsm.CanTransition(from, to) {
			return nil, newError(CodeInvalidTransition, "cannot transition from %q to %q", from, to)
		}

		rec := models.StatusRecord{
			ReservationID: reservationID,
			FromStatus:    from,
			ToStatus:      to,
			Actor:         string(actor.Role),
			ActorID:       actor.ID,
			Note:          note,
		}
		evt := s.buildEvent(models.EventReservationStatusChanged, reservation, from, to, actor.Role)

		err = s.store.TransitionReservation(ctx, reservationID, from, to, rec, evt)
		if err == nil {
			reservation.Status = to
			if note != "" {
				reservation.OperatorNote = note
			}
			metrics.IncReservationTransition(string(to))
			s.logger.Info().
				Int64("reservation_id", reservationID).
				Str("from", string(from)).
				Str("to", string(to)).
				Str("actor", string(actor.Role)).
				Msg("reservation transitioned")
			return reservation, nil
		}
		if !errors.Is(err, s.staleErr) {
			return nil, err
		}

		// Lost the race; re-read and re-validate against the fresh status.
		reservation, err = s.getReservation(ctx, reservationID)
		if err != nil {
			return nil, err
		}
	}

	return nil, newError(CodeInvalidTransition, "reservation %d kept changing concurrently", reservationID)
}

// Get returns a reservation if the actor may see it: its client, the owning
// venue's operator, or an admin.
func (s *Service) Get(ctx context.Context, actor Actor, reservationID int64) (*models.Reservation, error) {
	reservation, err := s.getReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeRead(ctx, actor, reservation); err != nil {
		return nil, err
	}
	return reservation, nil
}

// Details composes the reservation with its catalog summaries, built once.
func (s *Service) Details(ctx context.Context, actor Actor, reservationID int64) (*models.ReservationDetails, error) {
	reservation, err := s.Get(ctx, actor, reservationID)
	if err != nil {
		return nil, err
	}

	svc, err := s.store.GetService(ctx, reservation.ServiceID)
	if err != nil {
		return nil, err
	}
	practitioner, err := s.store.GetPractitioner(ctx, reservation.PractitionerID)
	if err != nil {
		return nil, err
	}
	venue, err := s.store.GetVenue(ctx, reservation.VenueID)
	if err != nil {
		return nil, err
	}

	return &models.ReservationDetails{
		Reservation:  *reservation,
		Service:      svc.Summary(),
		Practitioner: practitioner.Summary(),
		Venue:        venue.Summary(),
	}, nil
}

// History returns the append-only status log for a reservation the actor may see.
func (s *Service) History(ctx context.Context, actor Actor, reservationID int64) ([]models.StatusRecord, error) {
	if _, err := s.Get(ctx, actor, reservationID); err != nil {
		return nil, err
	}
	return s.store.ListStatusLog(ctx, reservationID)
}

// ListForClient returns the client's own reservations.
func (s *Service) ListForClient(ctx context.Context, clientID int64, limit, offset int) ([]models.Reservation, error) {
	return s.store.ListReservationsByClient(ctx, clientID, limit, offset)
}

// ListForPractitioner returns a practitioner's reservations in [from, to),
// for operators owning the venue and admins.
func (s *Service) ListForPractitioner(ctx context.Context, actor Actor, practitionerID int64, from, to time.Time) ([]models.Reservation, error) {
	switch actor.Role {
	case RoleAdmin:
	case RoleOperator:
		practitioner, err := s.store.GetPractitioner(ctx, practitionerID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, newError(CodeNotFound, "practitioner %d not found", practitionerID)
			}
			return nil, err
		}
		venue, err := s.store.GetVenue(ctx, practitioner.VenueID)
		if err != nil {
			return nil, err
		}
		if venue.OwnerID != actor.ID {
			return nil, newError(CodeForbidden, "practitioner belongs to another venue")
		}
	default:
		return nil, newError(CodeForbidden, "%s may not list a practitioner's reservations", actor.Role)
	}
	return s.store.ListReservationsByPractitioner(ctx, practitionerID, from, to)
}

// RecordPayment updates the reservation's payment status. Lifecycle
// consequences (confirm on success, cancel on refund) go through Transition.
func (s *Service) RecordPayment(ctx context.Context, reservationID int64, status models.PaymentStatus) error {
	if err := s.store.SetPaymentStatus(ctx, reservationID, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return newError(CodeNotFound, "reservation %d not found", reservationID)
		}
		return err
	}
	return nil
}

func (s *Service) getReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	reservation, err := s.store.GetReservation(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, newError(CodeNotFound, "reservation %d not found", id)
		}
		return nil, err
	}
	return reservation, nil
}

// authorize enforces both role capability for the target status and
// ownership of the reservation.
func (s *Service) authorize(ctx context.Context, actor Actor, r *models.Reservation, to models.ReservationStatus) error {
	if !s.fsm.Authorized(actor.Role, to) {
		return newError(CodeForbidden, "%s may not request status %q", actor.Role, to)
	}
	switch actor.Role {
	case RoleClient:
		if actor.ID != r.ClientID {
			return newError(CodeForbidden, "reservation belongs to another client")
		}
	case RoleOperator:
		venue, err := s.store.GetVenue(ctx, r.VenueID)
		if err != nil {
			return err
		}
		if venue.OwnerID != actor.ID {
			return newError(CodeForbidden, "reservation belongs to another venue")
		}
	}
	return nil
}

func (s *Service) authorizeRead(ctx context.Context, actor Actor, r *models.Reservation) error {
	switch actor.Role {
	case RoleAdmin, RoleSystem, RoleAdapter:
		return nil
	case RoleClient:
		if actor.ID == r.ClientID {
			return nil
		}
	case RoleOperator:
		venue, err := s.store.GetVenue(ctx, r.VenueID)
		if err != nil {
			return err
		}
		if venue.OwnerID == actor.ID {
			return nil
		}
	}
	return newError(CodeForbidden, "access denied")
}

func (s *Service) buildEvent(eventType string, r *models.Reservation, from, to models.ReservationStatus, role Role) *models.OutboxEvent {
	payload := models.ReservationEventPayload{
		ReservationID:  r.ID,
		ClientID:       r.ClientID,
		VenueID:        r.VenueID,
		PractitionerID: r.PractitionerID,
		StartAt:        r.StartAt,
		EndAt:          r.EndAt,
		FromStatus:     from,
		ToStatus:       to,
		Actor:          string(role),
	}
	return &models.OutboxEvent{
		EventID: uuid.NewString(),
		Type:    eventType,
		Payload: payload.Encode(),
	}
}
