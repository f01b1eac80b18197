// Package webhook translates external payment-provider callbacks into
// reservation lifecycle actions. The adapter holds exactly two lifecycle
// capabilities, confirm and venue-cancel, and no others.
package webhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"glowbook/internal/booking"
	"glowbook/internal/models"
)

// PaymentEvent is the provider-agnostic shape of a payment callback.
type PaymentEvent struct {
	Provider      string `json:"provider"`
	EventID       string `json:"event_id"`
	ReservationID int64  `json:"reservation_id"`
	Status        string `json:"status"` // succeeded, failed, refunded
}

// Payment callback statuses.
const (
	PaymentSucceeded = "succeeded"
	PaymentFailed    = "failed"
	PaymentRefunded  = "refunded"
)

// Lifecycle is the slice of the reservation service the adapter uses.
type Lifecycle interface {
	Get(ctx context.Context, actor booking.Actor, reservationID int64) (*models.Reservation, error)
	Transition(ctx context.Context, actor booking.Actor, reservationID int64, to models.ReservationStatus, note string) (*models.Reservation, error)
	RecordPayment(ctx context.Context, reservationID int64, status models.PaymentStatus) error
}

// Adapter applies payment events to reservations.
type Adapter struct {
	svc    Lifecycle
	actor  booking.Actor
	logger *zerolog.Logger
}

// NewAdapter creates a payment-event adapter.
func NewAdapter(svc Lifecycle, logger *zerolog.Logger) *Adapter {
	return &Adapter{
		svc:    svc,
		actor:  booking.Actor{Role: booking.RoleAdapter},
		logger: logger,
	}
}

// Handle applies one payment event. Redelivered events are tolerated: a
// confirm or cancel that already happened resolves without error, so the
// provider can retry freely.
func (a *Adapter) Handle(ctx context.Context, evt PaymentEvent) error {
	if evt.ReservationID == 0 {
		return fmt.Errorf("%w: payment event %s missing reservation id", booking.ErrValidation, evt.EventID)
	}

	log := a.logger.With().
		Str("provider", evt.Provider).
		Str("payment_event", evt.EventID).
		Int64("reservation_id", evt.ReservationID).
		Logger()

	switch evt.Status {
	case PaymentSucceeded:
		if err := a.svc.RecordPayment(ctx, evt.ReservationID, models.PaymentPaid); err != nil {
			return err
		}
		if err := a.transitionIdempotent(ctx, evt.ReservationID, models.StatusConfirmed, "payment received"); err != nil {
			return err
		}
		log.Info().Msg("reservation confirmed by payment")
		return nil

	case PaymentFailed:
		if err := a.svc.RecordPayment(ctx, evt.ReservationID, models.PaymentFailed); err != nil {
			return err
		}
		log.Info().Msg("payment failed recorded")
		return nil

	case PaymentRefunded:
		if err := a.svc.RecordPayment(ctx, evt.ReservationID, models.PaymentRefunded); err != nil {
			return err
		}
		if err := a.transitionIdempotent(ctx, evt.ReservationID, models.StatusCancelledByVenue, "payment refunded"); err != nil {
			return err
		}
		log.Info().Msg("reservation cancelled after refund")
		return nil

	default:
		return fmt.Errorf("%w: unknown payment status %q", booking.ErrValidation, evt.Status)
	}
}

// transitionIdempotent applies the transition, treating "already there" as
// success so redelivered provider events do not error.
func (a *Adapter) transitionIdempotent(ctx context.Context, reservationID int64, to models.ReservationStatus, note string) error {
	_, err := a.svc.Transition(ctx, a.actor, reservationID, to, note)
	if err == nil {
		return nil
	}
	if errors.Is(err, booking.ErrInvalidTransition) {
		current, getErr := a.svc.Get(ctx, a.actor, reservationID)
		if getErr != nil {
			return getErr
		}
		if current.Status == to {
			return nil
		}
	}
	return err
}
