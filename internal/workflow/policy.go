// Package workflow decides how a booking moves through the lifecycle for a
// given service configuration: the creation window, the initial status, and
// the status reached after validation or approval.
package workflow

import (
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/iliyamo/citizen-booking/internal/apperr"
	"github.com/iliyamo/citizen-booking/internal/lifecycle"
	"github.com/iliyamo/citizen-booking/internal/model"
)

const noProvidersMessage = "No available service providers in the selected time range"

var phonePattern = regexp.MustCompile(`^\+?[0-9]{8,15}$`)

// CheckAdvanceWindow verifies that start falls within
// [today+MinDaysInAdvance, today+MaxDaysInAdvance], counted in whole UTC
// days.  An unset bound does not restrict.
func CheckAdvanceWindow(svc *model.Service, start, now time.Time) error {
	if svc.MinDaysInAdvance == nil && svc.MaxDaysInAdvance == nil {
		return nil
	}
	days := DaysBetween(now, start)
	if svc.MinDaysInAdvance != nil && days < *svc.MinDaysInAdvance {
		return apperr.Validation(apperr.CodeNoAvailableServiceProviders, noProvidersMessage)
	}
	if svc.MaxDaysInAdvance != nil && days > *svc.MaxDaysInAdvance {
		return apperr.Validation(apperr.CodeNoAvailableServiceProviders, noProvidersMessage)
	}
	return nil
}

// DaysBetween returns the number of UTC calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	da := truncateDay(a)
	db := truncateDay(b)
	return int(db.Sub(da).Hours() / 24)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// RequiresDetails reports whether citizen details must be present when the
// booking is created.  On-hold and stand-alone services collect them later.
func RequiresDetails(svc *model.Service) bool {
	return !svc.IsOnHold && !svc.IsStandAlone
}

// Type returns the workflow a new booking for svc is created through.
func Type(svc *model.Service) model.WorkflowType {
	if svc.IsOnHold || svc.IsStandAlone {
		return model.WorkflowOnHold
	}
	return model.WorkflowDefault
}

func autoAccept(p *model.ServiceProvider) bool { return p != nil && p.AutoAcceptBookings }

// InitialStatus selects the status of a new booking.  The first applicable
// gate wins: on-hold, then two-step approval, then provider auto-accept.
// Unassigned bookings always wait for approval.
func InitialStatus(svc *model.Service, provider *model.ServiceProvider) lifecycle.Status {
	switch {
	case svc.IsOnHold || svc.IsStandAlone:
		return lifecycle.OnHold
	case svc.IsTwoStepApprovalRequired:
		return lifecycle.PendingApprovalSA
	case autoAccept(provider):
		return lifecycle.Accepted
	default:
		return lifecycle.PendingApproval
	}
}

// AfterOnHold returns the status an on-hold booking moves to once it is
// validated.
func AfterOnHold(svc *model.Service, provider *model.ServiceProvider) lifecycle.Status {
	switch {
	case svc.IsTwoStepApprovalRequired:
		return lifecycle.PendingApprovalSA
	case autoAccept(provider):
		return lifecycle.Accepted
	default:
		return lifecycle.PendingApproval
	}
}

// AfterReschedule returns the status of a booking whose reschedule has been
// validated.  The booking advances to the on-hold outcome for its new
// provider only when that is a legal transition from its current status;
// otherwise it keeps the status it already had, so an accepted booking is
// never sent back for approval.
func AfterReschedule(current lifecycle.Status, svc *model.Service, provider *model.ServiceProvider) lifecycle.Status {
	if target := AfterOnHold(svc, provider); lifecycle.CanTransition(current, target) {
		return target
	}
	return current
}

// AfterAccept returns the status reached by an accept action from the
// given status.  The agency gate hands over to the provider unless the
// provider auto-accepts.
func AfterAccept(from lifecycle.Status, provider *model.ServiceProvider) lifecycle.Status {
	if from == lifecycle.PendingApprovalSA && !autoAccept(provider) {
		return lifecycle.PendingApproval
	}
	return lifecycle.Accepted
}

// ValidateDetails checks the citizen fields required by svc and returns
// every violation found.
func ValidateDetails(svc *model.Service, d model.CitizenDetails) error {
	var c apperr.Collector
	if strings.TrimSpace(d.CitizenName) == "" {
		c.Add(apperr.CodeCitizenNameMissing, "Citizen name is required")
	}
	if _, err := mail.ParseAddress(strings.TrimSpace(d.CitizenEmail)); err != nil {
		c.Add(apperr.CodeCitizenEmailInvalid, "Citizen email is invalid")
	}
	if d.CitizenPhone != "" && !phonePattern.MatchString(strings.ReplaceAll(d.CitizenPhone, " ", "")) {
		c.Add(apperr.CodeCitizenPhoneInvalid, "Citizen phone number is invalid")
	}
	if svc.RequireSalutation && strings.TrimSpace(d.CitizenSalutation) == "" {
		c.Add(apperr.CodeSalutationRequired, "Salutation is required")
	}
	return c.Err()
}

// DetailsOf extracts the citizen details already stored on a booking.
func DetailsOf(b *model.Booking) model.CitizenDetails {
	return model.CitizenDetails{
		CitizenUinFin:      b.CitizenUinFin,
		CitizenName:        b.CitizenName,
		CitizenEmail:       b.CitizenEmail,
		CitizenPhone:       b.CitizenPhone,
		CitizenSalutation:  b.CitizenSalutation,
		DynamicValues:      b.DynamicValues,
		RefID:              b.RefID,
		Location:           b.Location,
		Description:        b.Description,
		VideoConferenceURL: b.VideoConferenceURL,
	}
}
