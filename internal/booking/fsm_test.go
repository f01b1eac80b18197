package booking

import (
	"testing"

	"glowbook/internal/models"
)

func TestFSMTransitions(t *testing.T) {
	fsm := NewFSM()

	tests := []struct {
		name        string
		from        models.ReservationStatus
		to          models.ReservationStatus
		shouldAllow bool
	}{
		{"pending to confirmed", models.StatusPending, models.StatusConfirmed, true},
		{"pending to cancelled by client", models.StatusPending, models.StatusCancelledByClient, true},
		{"pending to cancelled by venue", models.StatusPending, models.StatusCancelledByVenue, true},
		{"confirmed to completed", models.StatusConfirmed, models.StatusCompleted, true},
		{"confirmed to no show", models.StatusConfirmed, models.StatusNoShow, true},
		{"confirmed to cancelled by client", models.StatusConfirmed, models.StatusCancelledByClient, true},
		{"confirmed to cancelled by venue", models.StatusConfirmed, models.StatusCancelledByVenue, true},
		// No skipping pending.
		{"pending to completed", models.StatusPending, models.StatusCompleted, false},
		{"pending to no show", models.StatusPending, models.StatusNoShow, false},
		// Terminal states have no way out.
		{"completed to confirmed", models.StatusCompleted, models.StatusConfirmed, false},
		{"no show to confirmed", models.StatusNoShow, models.StatusConfirmed, false},
		{"cancelled by client to pending", models.StatusCancelledByClient, models.StatusPending, false},
		{"cancelled by venue to confirmed", models.StatusCancelledByVenue, models.StatusConfirmed, false},
		// No self loops or reverse edges.
		{"confirmed to confirmed", models.StatusConfirmed, models.StatusConfirmed, false},
		{"confirmed to pending", models.StatusConfirmed, models.StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed := fsm.CanTransition(tt.from, tt.to)
			if allowed != tt.shouldAllow {
				t.Errorf("transition %s -> %s: expected allowed=%v, got %v",
					tt.from, tt.to, tt.shouldAllow, allowed)
			}
		})
	}
}

func TestFSMAuthorization(t *testing.T) {
	fsm := NewFSM()

	tests := []struct {
		name    string
		role    Role
		to      models.ReservationStatus
		allowed bool
	}{
		{"client cancels own side", RoleClient, models.StatusCancelledByClient, true},
		{"client cannot confirm", RoleClient, models.StatusConfirmed, false},
		{"client cannot complete", RoleClient, models.StatusCompleted, false},
		{"client cannot cancel for venue", RoleClient, models.StatusCancelledByVenue, false},
		{"operator confirms", RoleOperator, models.StatusConfirmed, true},
		{"operator completes", RoleOperator, models.StatusCompleted, true},
		{"operator marks no show", RoleOperator, models.StatusNoShow, true},
		{"operator cannot cancel for client", RoleOperator, models.StatusCancelledByClient, false},
		{"admin confirms", RoleAdmin, models.StatusConfirmed, true},
		{"system only marks no show", RoleSystem, models.StatusNoShow, true},
		{"system cannot confirm", RoleSystem, models.StatusConfirmed, false},
		{"adapter confirms", RoleAdapter, models.StatusConfirmed, true},
		{"adapter cancels for venue", RoleAdapter, models.StatusCancelledByVenue, true},
		{"adapter cannot complete", RoleAdapter, models.StatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fsm.Authorized(tt.role, tt.to); got != tt.allowed {
				t.Errorf("role %s -> %s: expected %v, got %v", tt.role, tt.to, tt.allowed, got)
			}
		})
	}
}
