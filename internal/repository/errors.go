package repository

import "errors"

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrCapacityExceeded is returned when a write would push an access level
// past its configured capacity. The whole transaction is rolled back.
var ErrCapacityExceeded = errors.New("access level is sold out")

// ErrPaymentCodeCollision is returned when the payment code unique
// constraint rejects a freshly drawn code. Transient; the caller retries
// with a new draw.
var ErrPaymentCodeCollision = errors.New("payment code already in use")

// ErrPaymentCodeExhausted is returned when repeated draws keep colliding.
// Practically unreachable with a 10^15 space, but it must be a reported
// failure rather than an unbounded loop.
var ErrPaymentCodeExhausted = errors.New("payment code space exhausted")

// ErrDuplicateStudentNumber is returned when a student number is already
// registered for the same event.
var ErrDuplicateStudentNumber = errors.New("student number already registered for this event")

// ErrTierInUse is returned when deleting an access level that still has
// registrations.
var ErrTierInUse = errors.New("access level has registrations")
