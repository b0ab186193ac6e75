package authscope

import (
	"slices"

	"github.com/iliyamo/citizen-booking/internal/model"
)

// Operation is a point action on one booking.
type Operation int

const (
	OpRead Operation = iota
	OpUpdate
	OpCancel
	OpApprove
)

func (o Operation) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpUpdate:
		return "update"
	case OpCancel:
		return "cancel"
	case OpApprove:
		return "approve"
	}
	return "unknown"
}

// Predicate is the union of per-group visibility terms.  A zero Predicate
// matches nothing; All matches every booking.
type Predicate struct {
	All                bool
	ServiceProviderIDs []int64
	ServiceIDs         []int64
	OrganisationIDs    []int64
}

// Empty reports whether the predicate matches no booking.
func (p Predicate) Empty() bool {
	return !p.All && len(p.ServiceProviderIDs) == 0 && len(p.ServiceIDs) == 0 && len(p.OrganisationIDs) == 0
}

// Matches evaluates the predicate against a loaded booking.
func (p Predicate) Matches(b *model.Booking) bool {
	if p.All {
		return true
	}
	if b.ServiceProviderID != nil && slices.Contains(p.ServiceProviderIDs, *b.ServiceProviderID) {
		return true
	}
	return slices.Contains(p.ServiceIDs, b.ServiceID) || slices.Contains(p.OrganisationIDs, b.OrganisationID)
}

// VisibilityPredicate unions the terms contributed by every group.
// Anonymous and citizen groups contribute none.
func VisibilityPredicate(groups ...Group) Predicate {
	var p Predicate
	for _, g := range groups {
		switch g.Kind {
		case KindAgency:
			return Predicate{All: true}
		case KindServiceProvider:
			p.ServiceProviderIDs = appendUnique(p.ServiceProviderIDs, g.ServiceProviderID)
		case KindServiceAdmin:
			p.ServiceIDs = appendUnique(p.ServiceIDs, g.ServiceIDs...)
		case KindOrganisationAdmin:
			p.OrganisationIDs = appendUnique(p.OrganisationIDs, g.OrganisationIDs...)
		}
	}
	return p
}

func appendUnique(dst []int64, ids ...int64) []int64 {
	for _, id := range ids {
		if !slices.Contains(dst, id) {
			dst = append(dst, id)
		}
	}
	return dst
}

// HasPermission reports whether group g may perform op on b.
func HasPermission(g Group, b *model.Booking, op Operation) bool {
	switch g.Kind {
	case KindAnonymous:
		if op == OpApprove || b.CreatorType != model.CreatorAnonymous || b.CreatorRef != g.SessionID {
			return false
		}
		if op == OpCancel {
			return b.WorkflowType == model.WorkflowOnHold
		}
		return true
	case KindCitizen:
		if op == OpApprove {
			return false
		}
		if b.CreatorType == model.CreatorCitizen && b.CreatorRef == g.UserRef {
			return true
		}
		return g.UinFin != "" && b.CitizenUinFin == g.UinFin
	case KindServiceProvider:
		return b.ServiceProviderID != nil && *b.ServiceProviderID == g.ServiceProviderID
	case KindServiceAdmin:
		return slices.Contains(g.ServiceIDs, b.ServiceID)
	case KindOrganisationAdmin:
		return slices.Contains(g.OrganisationIDs, b.OrganisationID)
	case KindAgency:
		return true
	}
	return false
}

// HasAnyPermission grants op if any held group grants it.
func HasAnyPermission(groups []Group, b *model.Booking, op Operation) bool {
	for _, g := range groups {
		if HasPermission(g, b, op) {
			return true
		}
	}
	return false
}
