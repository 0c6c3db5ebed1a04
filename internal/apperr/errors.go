package apperr

import "errors"

// ErrInvalid is returned when the input fails domain validation.
var ErrInvalid = errors.New("invalid input")

// ErrConflict indicates a uniqueness or state conflict (HTTP 409).
var ErrConflict = errors.New("conflict")

// ErrNotFound indicates that the requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrRejected marks a request that was understood but blocked by a delivery rule.
var ErrRejected = errors.New("rejected")

// ErrForbidden is returned when the caller lacks the role for an operation.
var ErrForbidden = errors.New("forbidden")

// ErrConfirmationRequired is returned when an accept/decline arrives without explicit confirmation.
var ErrConfirmationRequired = errors.New("confirmation required")
