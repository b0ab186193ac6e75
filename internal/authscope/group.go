// Package authscope restricts which bookings a caller may see or act on.
//
// A caller holds one or more Groups.  VisibilityPredicate turns the held
// groups into a Predicate the repository renders as SQL, and
// HasPermission / HasAnyPermission answer point checks for a single
// booking.  Both are pure functions over the Group tag.
package authscope

import (
	"fmt"

	"github.com/iliyamo/citizen-booking/internal/model"
)

// Kind tags a Group.
type Kind string

const (
	KindAnonymous         Kind = "anonymous"
	KindCitizen           Kind = "citizen"
	KindServiceProvider   Kind = "service_provider"
	KindServiceAdmin      Kind = "service_admin"
	KindOrganisationAdmin Kind = "organisation_admin"
	KindAgency            Kind = "agency"
)

// Group is one authorization group a caller holds.  Only the fields that
// belong to its Kind are meaningful.
type Group struct {
	Kind Kind `json:"kind"`

	// Anonymous
	SessionID   string `json:"sessionId,omitempty"`
	OTPVerified bool   `json:"otpVerified,omitempty"`

	// Citizen
	UserRef string `json:"userRef,omitempty"`
	UinFin  string `json:"uinFin,omitempty"`

	// ServiceProvider
	ServiceProviderID int64 `json:"serviceProviderId,omitempty"`

	// ServiceAdmin
	ServiceIDs []int64 `json:"serviceIds,omitempty"`

	// OrganisationAdmin
	OrganisationIDs []int64 `json:"organisationIds,omitempty"`
}

func Anonymous(sessionID string, otpVerified bool) Group {
	return Group{Kind: KindAnonymous, SessionID: sessionID, OTPVerified: otpVerified}
}

func Citizen(userRef, uinFin string) Group {
	return Group{Kind: KindCitizen, UserRef: userRef, UinFin: uinFin}
}

func ServiceProvider(id int64) Group { return Group{Kind: KindServiceProvider, ServiceProviderID: id} }

func ServiceAdmin(serviceIDs ...int64) Group {
	return Group{Kind: KindServiceAdmin, ServiceIDs: serviceIDs}
}

func OrganisationAdmin(orgIDs ...int64) Group {
	return Group{Kind: KindOrganisationAdmin, OrganisationIDs: orgIDs}
}

func Agency() Group { return Group{Kind: KindAgency} }

// Validate checks that the group carries the data its kind needs.
func (g Group) Validate() error {
	switch g.Kind {
	case KindAnonymous:
		if g.SessionID == "" {
			return fmt.Errorf("anonymous group without session id")
		}
	case KindCitizen:
		if g.UserRef == "" {
			return fmt.Errorf("citizen group without user ref")
		}
	case KindServiceProvider:
		if g.ServiceProviderID <= 0 {
			return fmt.Errorf("service provider group without provider id")
		}
	case KindServiceAdmin, KindOrganisationAdmin, KindAgency:
	default:
		return fmt.Errorf("unknown group kind %q", g.Kind)
	}
	return nil
}

// Caller is the resolved identity behind a request.
type Caller struct {
	Ref    string
	Groups []Group
}

// Anonymous returns the caller's anonymous group, if any.
func (c Caller) Anonymous() (Group, bool) { return c.find(KindAnonymous) }

// Citizen returns the caller's citizen group, if any.
func (c Caller) Citizen() (Group, bool) { return c.find(KindCitizen) }

func (c Caller) find(k Kind) (Group, bool) {
	for _, g := range c.Groups {
		if g.Kind == k {
			return g, true
		}
	}
	return Group{}, false
}

// IsPrivileged reports whether the caller holds any staff or system group.
func (c Caller) IsPrivileged() bool {
	for _, g := range c.Groups {
		switch g.Kind {
		case KindServiceProvider, KindServiceAdmin, KindOrganisationAdmin, KindAgency:
			return true
		}
	}
	return false
}

var actorPrecedence = []Kind{
	KindAgency, KindOrganisationAdmin, KindServiceAdmin, KindServiceProvider, KindCitizen, KindAnonymous,
}

// Actor describes the caller for change logs and notifications, using the
// most privileged group held.
func (c Caller) Actor() model.Actor {
	for _, k := range actorPrecedence {
		if g, ok := c.find(k); ok {
			ref := c.Ref
			if k == KindAnonymous && ref == "" {
				ref = g.SessionID
			}
			return model.Actor{Ref: ref, Type: string(k)}
		}
	}
	return model.Actor{Ref: c.Ref, Type: "unknown"}
}

// CreatorRef returns the identity recorded as a booking's creator and its
// type.
func (c Caller) CreatorRef() (string, model.CreatorType) {
	if g, ok := c.Anonymous(); ok && !c.IsPrivileged() {
		return g.SessionID, model.CreatorAnonymous
	}
	if g, ok := c.Citizen(); ok && !c.IsPrivileged() {
		return g.UserRef, model.CreatorCitizen
	}
	if _, ok := c.find(KindAgency); ok {
		return c.Ref, model.CreatorAgency
	}
	return c.Ref, model.CreatorAdmin
}
