package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/citizen-booking/internal/lifecycle"
	"github.com/iliyamo/citizen-booking/internal/queue"
)

// silent reports whether ev must not reach any channel.
func silent(ev Event) bool { return ev.Booking.Status == lifecycle.OnHold }

// CitizenEmail mails the citizen when the service enables it.
type CitizenEmail struct{ Mailer Mailer }

func (CitizenEmail) Name() string { return "citizen-email" }

func (o CitizenEmail) Notify(ctx context.Context, ev Event) error {
	if silent(ev) || !ev.Service.SendCitizenEmail || ev.Booking.CitizenEmail == "" {
		return nil
	}
	return o.Mailer.Send(ctx, citizenMessage(ev))
}

// ProviderEmail mails the assigned provider when the service enables it.
type ProviderEmail struct{ Mailer Mailer }

func (ProviderEmail) Name() string { return "provider-email" }

func (o ProviderEmail) Notify(ctx context.Context, ev Event) error {
	if silent(ev) || !ev.Service.SendProviderEmail || ev.Provider == nil || ev.Provider.Email == "" {
		return nil
	}
	return o.Mailer.Send(ctx, providerMessage(ev))
}

// SMS texts the citizen when the service enables it and a phone is known.
type SMS struct{ Sender SMSSender }

func (SMS) Name() string { return "sms" }

func (o SMS) Notify(ctx context.Context, ev Event) error {
	if silent(ev) || !ev.Service.SendSMS || ev.Booking.CitizenPhone == "" {
		return nil
	}
	return o.Sender.Send(ctx, ev.Booking.CitizenPhone, smsText(ev))
}

// AgencyPublisher is the broker side of agency sync.
type AgencyPublisher interface {
	PublishAgencySync(ctx context.Context, msg queue.AgencySyncMessage) error
}

// AgencySync forwards final decisions to the service's external agency.
type AgencySync struct{ Publisher AgencyPublisher }

func (AgencySync) Name() string { return "agency-sync" }

func (o AgencySync) Notify(ctx context.Context, ev Event) error {
	if ev.Service.ExternalAgency == "" {
		return nil
	}
	switch ev.Booking.Status {
	case lifecycle.Accepted, lifecycle.Cancelled, lifecycle.Rejected:
	default:
		return nil
	}
	b := ev.Booking
	msg := queue.AgencySyncMessage{
		Agency:            ev.Service.ExternalAgency,
		BookingID:         b.ID,
		BookingUUID:       b.UUID,
		ServiceID:         ev.Service.ID,
		ServiceName:       ev.Service.Name,
		ServiceProviderID: b.ServiceProviderID,
		Status:            string(b.Status),
		Action:            string(ev.Action),
		StartsAt:          b.StartDateTime.UTC().Format(time.RFC3339),
		EndsAt:            b.EndDateTime.UTC().Format(time.RFC3339),
		CitizenUinFin:     b.CitizenUinFin,
		CitizenName:       b.CitizenName,
		RefID:             b.RefID,
		OccurredAt:        ev.OccurredAt.UTC().Format(time.RFC3339),
	}
	if err := o.Publisher.PublishAgencySync(ctx, msg); err != nil {
		return fmt.Errorf("agency %s: %w", ev.Service.ExternalAgency, err)
	}
	return nil
}

// Channels returns the standard observer set in delivery order.  A nil
// transport leaves its channels out.
func Channels(m Mailer, s SMSSender, p AgencyPublisher) []Observer {
	var out []Observer
	if m != nil {
		out = append(out, CitizenEmail{Mailer: m}, ProviderEmail{Mailer: m})
	}
	if s != nil {
		out = append(out, SMS{Sender: s})
	}
	if p != nil {
		out = append(out, AgencySync{Publisher: p})
	}
	return out
}
