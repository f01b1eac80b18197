// Package notify routes delivered reservation events to interested parties:
// in-process subscribers (long-poll/stream handlers) and the optional
// Telegram channel.
package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"glowbook/internal/models"
)

// VenueSource resolves a venue's owner so venue-side events reach the operator.
type VenueSource interface {
	GetVenue(ctx context.Context, id int64) (*models.Venue, error)
}

// Subscription is one live listener for a user's events. Events are dropped
// rather than blocking when the subscriber is slow.
type Subscription struct {
	UserID int64
	C      chan models.OutboxEvent

	registry *Registry
	once     sync.Once
}

// Close detaches the subscription. Safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.registry.remove(s)
		close(s.C)
	})
}

// Registry is an in-memory map of user id to live subscriptions. It
// implements the outbox Notifier, routing each reservation event to the
// client and to the owning venue's operator.
type Registry struct {
	mu     sync.RWMutex
	subs   map[int64]map[*Subscription]struct{}
	venues VenueSource
	logger *zerolog.Logger
	buffer int
}

// NewRegistry creates a subscriber registry.
func NewRegistry(venues VenueSource, logger *zerolog.Logger) *Registry {
	return &Registry{
		subs:   make(map[int64]map[*Subscription]struct{}),
		venues: venues,
		logger: logger,
		buffer: 16,
	}
}

// Subscribe registers a listener for a user's events.
func (r *Registry) Subscribe(userID int64) *Subscription {
	sub := &Subscription{
		UserID:   userID,
		C:        make(chan models.OutboxEvent, r.buffer),
		registry: r,
	}

	r.mu.Lock()
	if r.subs[userID] == nil {
		r.subs[userID] = make(map[*Subscription]struct{})
	}
	r.subs[userID][sub] = struct{}{}
	r.mu.Unlock()

	return sub
}

func (r *Registry) remove(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.subs[sub.UserID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(r.subs, sub.UserID)
		}
	}
}

// Subscribers returns the number of live subscriptions for a user.
func (r *Registry) Subscribers(userID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[userID])
}

// Notify routes a reservation event to the client and the venue owner.
// Subscribers that are not connected simply miss the event; the durable
// record is the reservation and its status log, not this channel.
func (r *Registry) Notify(ctx context.Context, evt models.OutboxEvent) error {
	payload, err := models.DecodeReservationEvent(evt.Payload)
	if err != nil {
		r.logger.Warn().Err(err).Int64("event_id", evt.ID).Msg("undecodable event payload")
		return nil
	}

	r.push(payload.ClientID, evt)

	ownerID := payload.VenueOwnerID
	if ownerID == 0 && payload.VenueID != 0 {
		venue, err := r.venues.GetVenue(ctx, payload.VenueID)
		if err != nil {
			return err
		}
		ownerID = venue.OwnerID
	}
	if ownerID != 0 && ownerID != payload.ClientID {
		r.push(ownerID, evt)
	}
	return nil
}

func (r *Registry) push(userID int64, evt models.OutboxEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for sub := range r.subs[userID] {
		select {
		case sub.C <- evt:
		default:
			r.logger.Warn().Int64("user_id", userID).Msg("subscriber buffer full, event dropped")
		}
	}
}
