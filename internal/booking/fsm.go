package booking

import (
	"glowbook/internal/models"
)

// Role identifies the kind of actor requesting a transition.
type Role string

const (
	RoleClient   Role = "client"   // the reservation's own client
	RoleOperator Role = "operator" // owner of the venue employing the practitioner
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"  // automated sweep
	RoleAdapter  Role = "adapter" // external event adapter (payment callbacks)
)

// Actor is the identity attempting a lifecycle operation.
type Actor struct {
	Role Role
	ID   int64 // user id; zero for system/adapter
}

func (a Actor) String() string {
	return string(a.Role)
}

// FSM holds the allowed reservation status transitions and the roles
// authorized to request each of them.
type FSM struct {
	transitions map[models.ReservationStatus]map[models.ReservationStatus][]Role
}

// NewFSM builds the lifecycle table:
//
//	pending   -> confirmed            operator, admin, adapter
//	pending   -> cancelled_by_client  client
//	pending   -> cancelled_by_venue   operator, admin, adapter
//	confirmed -> completed            operator, admin
//	confirmed -> no_show              operator, admin, system
//	confirmed -> cancelled_by_client  client
//	confirmed -> cancelled_by_venue   operator, admin, adapter
//
// Terminal states have no outgoing transitions.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[models.ReservationStatus]map[models.ReservationStatus][]Role{
			models.StatusPending: {
				models.StatusConfirmed:         {RoleOperator, RoleAdmin, RoleAdapter},
				models.StatusCancelledByClient: {RoleClient},
				models.StatusCancelledByVenue:  {RoleOperator, RoleAdmin, RoleAdapter},
			},
			models.StatusConfirmed: {
				models.StatusCompleted:         {RoleOperator, RoleAdmin},
				models.StatusNoShow:            {RoleOperator, RoleAdmin, RoleSystem},
				models.StatusCancelledByClient: {RoleClient},
				models.StatusCancelledByVenue:  {RoleOperator, RoleAdmin, RoleAdapter},
			},
		},
	}
}

// CanTransition reports whether from -> to exists in the table, ignoring authorization.
func (f *FSM) CanTransition(from, to models.ReservationStatus) bool {
	_, ok := f.transitions[from][to]
	return ok
}

// Authorized reports whether the role may request to from any source state.
// Authorization is evaluated before the state check, so a forbidden actor
// gets Forbidden even when the transition itself would be invalid.
func (f *FSM) Authorized(role Role, to models.ReservationStatus) bool {
	for _, targets := range f.transitions {
		for _, r := range targets[to] {
			if r == role {
				return true
			}
		}
	}
	return false
}
