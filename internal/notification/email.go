package notification

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, m Message) error
}

// SMTPMailer sends through an SMTP relay with optional PLAIN auth.
type SMTPMailer struct {
	Addr     string
	From     string
	Username string
	Password string
}

func (s *SMTPMailer) Send(ctx context.Context, m Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if s.Username != "" {
		host := s.Addr
		if i := strings.LastIndex(host, ":"); i > 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", s.Username, s.Password, host)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.From)
	fmt.Fprintf(&b, "To: %s\r\n", m.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", m.Subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(m.Body)
	if err := smtp.SendMail(s.Addr, auth, s.From, []string{m.To}, []byte(b.String())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", m.To, err)
	}
	return nil
}

var actionVerbs = map[string]string{
	"create":     "has been received",
	"accept":     "has been accepted",
	"reject":     "has been rejected",
	"cancel":     "has been cancelled",
	"update":     "has been confirmed",
	"reschedule": "has been rescheduled",
}

func verb(ev Event) string {
	if v, ok := actionVerbs[string(ev.Action)]; ok {
		return v
	}
	return "has been updated"
}

func when(ev Event) string {
	return ev.Booking.StartDateTime.UTC().Format("Mon 02 Jan 2006 15:04") + " - " +
		ev.Booking.EndDateTime.UTC().Format(time.Kitchen) + " UTC"
}

func citizenMessage(ev Event) Message {
	name := strings.TrimSpace(ev.Booking.CitizenSalutation + " " + ev.Booking.CitizenName)
	if name == "" {
		name = "citizen"
	}
	body := fmt.Sprintf("Dear %s,\n\nYour booking for %s %s.\nStatus: %s\nWhen: %s\n",
		name, ev.Service.Name, verb(ev), ev.Booking.Status, when(ev))
	if ev.Booking.Location != "" {
		body += "Where: " + ev.Booking.Location + "\n"
	}
	if ev.Booking.VideoConferenceURL != "" {
		body += "Video link: " + ev.Booking.VideoConferenceURL + "\n"
	}
	return Message{
		To:      ev.Booking.CitizenEmail,
		Subject: fmt.Sprintf("%s booking %s", ev.Service.Name, verb(ev)),
		Body:    body,
	}
}

func providerMessage(ev Event) Message {
	citizen := ev.Booking.CitizenName
	if citizen == "" {
		citizen = "a citizen"
	}
	return Message{
		To:      ev.Provider.Email,
		Subject: fmt.Sprintf("Booking #%d %s", ev.Booking.ID, verb(ev)),
		Body: fmt.Sprintf("Hello %s,\n\nA booking with %s for %s %s.\nStatus: %s\nWhen: %s\n",
			ev.Provider.Name, citizen, ev.Service.Name, verb(ev), ev.Booking.Status, when(ev)),
	}
}
