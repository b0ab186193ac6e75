// Package repository is the SQL data access layer for bookings and the
// scheduling entities they reference.  Queries use `?` placeholders and
// portable SQL so the same code runs on MySQL and SQLite.
package repository

import "errors"

// ErrNotFound is returned when a looked-up row does not exist.  Higher
// layers translate it into the matching not-found system error.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write cannot proceed because of the
// current row state, such as deleting a booking that is not a shadow.
var ErrConflict = errors.New("conflict")
