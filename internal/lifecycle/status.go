// Package lifecycle holds the booking state machine.  Every status change
// in the system goes through Transition so that no state is ever coerced.
package lifecycle

import (
	"fmt"

	"github.com/iliyamo/citizen-booking/internal/apperr"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	OnHold            Status = "OnHold"
	PendingApprovalSA Status = "PendingApprovalSA"
	PendingApproval   Status = "PendingApproval"
	Accepted          Status = "Accepted"
	Rejected          Status = "Rejected"
	Cancelled         Status = "Cancelled"
)

// All lists every status in lifecycle order.
var All = []Status{OnHold, PendingApprovalSA, PendingApproval, Accepted, Rejected, Cancelled}

var transitions = map[Status][]Status{
	OnHold:            {PendingApprovalSA, PendingApproval, Accepted},
	PendingApprovalSA: {Accepted, PendingApproval, Rejected},
	PendingApproval:   {Accepted, Rejected},
	Accepted:          {Cancelled},
}

// Parse converts a raw value into a Status.
func Parse(s string) (Status, error) {
	for _, st := range All {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown booking status %q", s)
}

// IsTerminal reports whether no transition leaves s.
func (s Status) IsTerminal() bool { return s == Rejected || s == Cancelled }

// IsPending reports whether s awaits an approval decision.
func (s Status) IsPending() bool { return s == PendingApproval || s == PendingApprovalSA }

// ConsumesCapacity reports whether a booking in state s occupies its slot.
// On-hold rows consume capacity until their hold expires; callers filter
// expiry separately.
func (s Status) ConsumesCapacity() bool { return !s.IsTerminal() }

// Reschedulable reports whether a booking in state s may be moved to a new
// window through a shadow booking.
func (s Status) Reschedulable() bool {
	return s == Accepted || s == PendingApproval || s == PendingApprovalSA
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// Transition validates from -> to and returns the target status, or an
// InvalidStateTransition business validation.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, apperr.Validation(apperr.CodeInvalidStateTransition,
			fmt.Sprintf("Booking in status %s cannot move to %s", from, to))
	}
	return to, nil
}
