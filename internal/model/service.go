package model

import "time"

// Organisation groups services administered by an agency.
type Organisation struct {
	ID   int64  // organisations.id
	Name string // organisations.name
}

// Service is a bookable service and carries the workflow knobs that decide
// how new bookings enter the lifecycle.
//
// Fields:
//
//	IsOnHold                  – new bookings always start on hold.
//	IsStandAlone              – details are captured later via validation.
//	IsSpAutoAssigned          – the engine picks a provider when none is given.
//	IsTwoStepApprovalRequired – agency approval precedes provider approval.
//	MinDaysInAdvance          – earliest bookable day offset (nil = no bound).
//	MaxDaysInAdvance          – latest bookable day offset (nil = no bound).
//	ExternalAgency            – agency code bookings are synced to, if any.
type Service struct {
	ID                        int64  `json:"id"`
	OrganisationID            int64  `json:"organisationId"`
	Name                      string `json:"name"`
	IsOnHold                  bool   `json:"isOnHold"`
	IsStandAlone              bool   `json:"isStandAlone"`
	IsSpAutoAssigned          bool   `json:"isSpAutoAssigned"`
	IsTwoStepApprovalRequired bool   `json:"isTwoStepApprovalRequired"`
	MinDaysInAdvance          *int   `json:"minDaysInAdvance,omitempty"`
	MaxDaysInAdvance          *int   `json:"maxDaysInAdvance,omitempty"`
	RequireSalutation         bool   `json:"requireSalutation"`
	AllowAnonymousBookings    bool   `json:"allowAnonymousBookings"`
	SendCitizenEmail          bool   `json:"sendCitizenEmail"`
	SendProviderEmail         bool   `json:"sendProviderEmail"`
	SendSMS                   bool   `json:"sendSms"`
	ExternalAgency            string `json:"externalAgency,omitempty"`
}

// ServiceProvider is a person or resource that serves bookings for a service.
type ServiceProvider struct {
	ID                 int64  `json:"id"`
	ServiceID          int64  `json:"serviceId"`
	Name               string `json:"name"`
	Email              string `json:"email,omitempty"`
	Phone              string `json:"phone,omitempty"`
	AutoAcceptBookings bool   `json:"autoAcceptBookings"`
}

// Timeslot is a concrete window in a provider's timesheet with a number of
// bookings it can hold at the same instant.
type Timeslot struct {
	ID                int64     // timeslots.id
	ServiceProviderID int64     // timeslots.service_provider_id
	StartDateTime     time.Time // timeslots.start_at
	EndDateTime       time.Time // timeslots.end_at
	Capacity          int       // timeslots.capacity
}

// Contains reports whether [start, end) lies fully inside the timeslot.
func (t Timeslot) Contains(start, end time.Time) bool {
	return !start.Before(t.StartDateTime) && !end.After(t.EndDateTime)
}

// Event is a group session with its own capacity shared by many bookings.
type Event struct {
	ID            int64     // events.id
	ServiceID     int64     // events.service_id
	Title         string    // events.title
	StartDateTime time.Time // events.start_at
	EndDateTime   time.Time // events.end_at
	Capacity      int       // events.capacity
}
