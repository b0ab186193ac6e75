// Package queue defines the agency-sync message exchanged over RabbitMQ and
// the publisher/consumer pair that moves it.
package queue

// AgencySyncQueue is the durable queue carrying agency-sync messages.
const AgencySyncQueue = "booking.agency-sync"

// AgencySyncMessage is published when a booking registered with an external
// agency reaches Accepted, Cancelled or Rejected.  It carries enough data
// for the consumer to call the agency without querying the primary
// database.
type AgencySyncMessage struct {
	Agency            string `json:"agency"`
	BookingID         int64  `json:"booking_id"`
	BookingUUID       string `json:"booking_uuid"`
	ServiceID         int64  `json:"service_id"`
	ServiceName       string `json:"service_name"`
	ServiceProviderID *int64 `json:"service_provider_id,omitempty"`
	Status            string `json:"status"`
	Action            string `json:"action"`
	StartsAt          string `json:"starts_at"`
	EndsAt            string `json:"ends_at"`
	CitizenUinFin     string `json:"citizen_uinfin,omitempty"`
	CitizenName       string `json:"citizen_name,omitempty"`
	RefID             string `json:"ref_id,omitempty"`
	OccurredAt        string `json:"occurred_at"`
}
