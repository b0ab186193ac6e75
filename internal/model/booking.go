package model

import (
	"time"

	"github.com/iliyamo/citizen-booking/internal/lifecycle"
)

// WorkflowType records which workflow a booking was created through.  It is
// fixed at creation and later used to gate anonymous actions.
type WorkflowType string

const (
	WorkflowDefault WorkflowType = "default"
	WorkflowOnHold  WorkflowType = "on-hold"
)

// CreatorType identifies the kind of caller that created a booking.
type CreatorType string

const (
	CreatorAnonymous CreatorType = "anonymous"
	CreatorCitizen   CreatorType = "citizen"
	CreatorAdmin     CreatorType = "admin"
	CreatorAgency    CreatorType = "agency"
)

// BookedSlot is one capacity-tracked window consumed by a booking.
type BookedSlot struct {
	StartDateTime     time.Time `json:"startDateTime"`
	EndDateTime       time.Time `json:"endDateTime"`
	ServiceProviderID *int64    `json:"serviceProviderId,omitempty"`
}

// Booking is a citizen's reservation with a service (and usually a
// service provider).  A booking row with OriginalBookingID set is a
// reschedule shadow: it holds the new window until it is validated and
// is never returned by list queries.
//
// Fields:
//
//	ID                – bookings.id, stable across reschedules.
//	UUID              – public identifier for anonymous flows.
//	Status            – lifecycle state.
//	ServiceID         – owning service (required).
//	OrganisationID    – organisation of the service (read-only, joined).
//	ServiceProviderID – assigned provider, nil while unassigned.
//	EventID           – group event, if any.
//	OutOfSlot         – admin booking not bound to a timesheet slot.
//	OnHoldUntil       – expiry of an on-hold reservation.
type Booking struct {
	ID                 int64            `json:"id"`
	UUID               string           `json:"uuid"`
	Status             lifecycle.Status `json:"status"`
	StartDateTime      time.Time        `json:"startDateTime"`
	EndDateTime        time.Time        `json:"endDateTime"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
	ServiceID          int64            `json:"serviceId"`
	OrganisationID     int64            `json:"organisationId"`
	ServiceProviderID  *int64           `json:"serviceProviderId,omitempty"`
	EventID            *int64           `json:"eventId,omitempty"`
	CitizenUinFin      string           `json:"citizenUinFin,omitempty"`
	CitizenName        string           `json:"citizenName,omitempty"`
	CitizenEmail       string           `json:"citizenEmail,omitempty"`
	CitizenPhone       string           `json:"citizenPhone,omitempty"`
	CitizenSalutation  string           `json:"citizenSalutation,omitempty"`
	DynamicValues      map[string]any   `json:"dynamicValues,omitempty"`
	RefID              string           `json:"refId,omitempty"`
	Location           string           `json:"location,omitempty"`
	Description        string           `json:"description,omitempty"`
	VideoConferenceURL string           `json:"videoConferenceUrl,omitempty"`
	WorkflowType       WorkflowType     `json:"workflowType"`
	OutOfSlot          bool             `json:"outOfSlot"`
	CreatorRef         string           `json:"-"`
	CreatorType        CreatorType      `json:"-"`
	OriginalBookingID  *int64           `json:"originalBookingId,omitempty"`
	OnHoldUntil        *time.Time       `json:"onHoldUntil,omitempty"`
	BookedSlots        []BookedSlot     `json:"bookedSlots"`
}

// IsShadow reports whether b is a pending reschedule of another booking.
func (b *Booking) IsShadow() bool { return b.OriginalBookingID != nil }

// OnHoldExpired reports whether an on-hold booking has passed its hold
// window at the given instant.
func (b *Booking) OnHoldExpired(now time.Time) bool {
	if b.Status != lifecycle.OnHold || b.OnHoldUntil == nil {
		return false
	}
	return !now.Before(*b.OnHoldUntil)
}

// CitizenDetails carries the identity and contact fields a citizen supplies
// either at creation or later through on-hold validation.
type CitizenDetails struct {
	CitizenUinFin      string         `json:"citizenUinFin"`
	CitizenName        string         `json:"citizenName"`
	CitizenEmail       string         `json:"citizenEmail"`
	CitizenPhone       string         `json:"citizenPhone"`
	CitizenSalutation  string         `json:"salutation"`
	DynamicValues      map[string]any `json:"dynamicValues,omitempty"`
	RefID              string         `json:"refId"`
	Location           string         `json:"location"`
	Description        string         `json:"description"`
	VideoConferenceURL string         `json:"videoConferenceUrl"`
}

// ApplyDetails copies non-empty citizen fields onto the booking.
func (b *Booking) ApplyDetails(d CitizenDetails) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&b.CitizenUinFin, d.CitizenUinFin)
	set(&b.CitizenName, d.CitizenName)
	set(&b.CitizenEmail, d.CitizenEmail)
	set(&b.CitizenPhone, d.CitizenPhone)
	set(&b.CitizenSalutation, d.CitizenSalutation)
	set(&b.RefID, d.RefID)
	set(&b.Location, d.Location)
	set(&b.Description, d.Description)
	set(&b.VideoConferenceURL, d.VideoConferenceURL)
	if len(d.DynamicValues) > 0 {
		b.DynamicValues = d.DynamicValues
	}
}
