package model

import "time"

// ChangeLogAction tags the kind of mutation a change log entry records.
type ChangeLogAction string

const (
	ActionCreate     ChangeLogAction = "create"
	ActionAccept     ChangeLogAction = "accept"
	ActionReject     ChangeLogAction = "reject"
	ActionCancel     ChangeLogAction = "cancel"
	ActionUpdate     ChangeLogAction = "update"
	ActionReschedule ChangeLogAction = "reschedule"
)

// Actor describes who performed a mutation.
type Actor struct {
	Ref  string `json:"ref"`
	Type string `json:"type"`
}

// ChangeLogEntry is an immutable audit record of one booking mutation.
// PreviousState and NewState hold only the projected fields that changed.
type ChangeLogEntry struct {
	ID            int64           `json:"id"`
	BookingID     int64           `json:"bookingId"`
	ServiceID     int64           `json:"serviceId"`
	Timestamp     time.Time       `json:"timestamp"`
	Actor         Actor           `json:"actor"`
	Action        ChangeLogAction `json:"action"`
	PreviousState map[string]any  `json:"previousState"`
	NewState      map[string]any  `json:"newState"`
}
