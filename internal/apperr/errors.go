// Package apperr defines the two error families surfaced to callers.
//
// Business validations are expected, caller-recoverable failures carrying a
// numeric code in the 10001-10099 range.  They are collected into a
// Validations list so a single request can report several at once.
//
// System errors (*Error) are raised as soon as they are detected and carry a
// Kind from which the HTTP layer derives a status code.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a business validation code.
type Code int

const (
	CodeServiceProviderNotAvailable Code = 10001
	CodeNoAvailableServiceProviders Code = 10002
	CodeOverlapsAcceptedBooking     Code = 10003
	CodeOverlapsOnHoldBooking       Code = 10004
	CodeEndTimeBeforeStartTime      Code = 10005
	CodeEventCapacityUnavailable    Code = 10006
	CodeCitizenNameMissing          Code = 10007
	CodeCitizenEmailInvalid         Code = 10008
	CodeCitizenPhoneInvalid         Code = 10009
	CodeSalutationRequired          Code = 10010
	CodeServiceProviderRequired     Code = 10011
	CodeInvalidStateTransition      Code = 10012
	CodeOnHoldExpired               Code = 10013
	CodeInvalidBookedSlots          Code = 10014
)

// Violation is one failed business rule.
type Violation struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

// Validations is a non-empty list of business rule violations.
type Validations []Violation

func (v Validations) Error() string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = fmt.Sprintf("%d: %s", x.Code, x.Message)
	}
	return "business validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether the list contains code.
func (v Validations) Has(code Code) bool {
	for _, x := range v {
		if x.Code == code {
			return true
		}
	}
	return false
}

// Validation returns a single-entry Validations error.
func Validation(code Code, message string) error {
	return Validations{{Code: code, Message: message}}
}

// Collector accumulates violations across independent checks.
type Collector struct {
	list Validations
}

// Add records a violation.
func (c *Collector) Add(code Code, message string) { c.list = append(c.list, Violation{code, message}) }

// Merge appends the violations carried by err, if any.  Errors that are not
// business validations are returned unchanged so callers can abort.
func (c *Collector) Merge(err error) error {
	if err == nil {
		return nil
	}
	var v Validations
	if errors.As(err, &v) {
		c.list = append(c.list, v...)
		return nil
	}
	return err
}

// Err returns the collected violations or nil.
func (c *Collector) Err() error {
	if len(c.list) == 0 {
		return nil
	}
	return c.list
}

// CodesOf extracts the validation codes carried by err.
func CodesOf(err error) []Code {
	var v Validations
	if !errors.As(err, &v) {
		return nil
	}
	out := make([]Code, len(v))
	for i, x := range v {
		out[i] = x.Code
	}
	return out
}

// Kind classifies a system error.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindBadRequest
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindBadRequest:
		return "bad_request"
	default:
		return "internal"
	}
}

// Error is a system error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error of the same kind so sentinels below work with
// errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrNotFound     = &Error{Kind: KindNotFound}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrForbidden    = &Error{Kind: KindForbidden}
	ErrBadRequest   = &Error{Kind: KindBadRequest}
)

func NotFound(msg string) error     { return &Error{Kind: KindNotFound, Message: msg} }
func Unauthorized(msg string) error { return &Error{Kind: KindUnauthorized, Message: msg} }
func Forbidden(msg string) error    { return &Error{Kind: KindForbidden, Message: msg} }
func BadRequest(msg string) error   { return &Error{Kind: KindBadRequest, Message: msg} }

// Internal wraps an unexpected failure.
func Internal(msg string, err error) error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}

// BookingNotFound is returned when a booking is missing or not visible to
// the caller.
func BookingNotFound() error { return NotFound("booking not found") }

// ServiceNotConfiguredForAnonymous is returned when an anonymous session
// without OTP verification acts on a service that disallows it.
func ServiceNotConfiguredForAnonymous() error {
	return Forbidden("service is not configured for anonymous bookings")
}

// KindOf returns the kind of a system error, KindInternal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
