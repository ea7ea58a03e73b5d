package repository

import "errors"

// ErrNotFound is returned when a queried row does not exist.
var ErrNotFound = errors.New("not found")

// ErrOpenSessionConflict is returned when the sessions table holds more
// than one open session. That state violates a write-time invariant and
// is never repaired automatically.
var ErrOpenSessionConflict = errors.New("sessions table has more than one open session")
