package domain

import "errors"

var (
	// ErrValidation marks input that fails domain validation rules.
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a missing record. Absence of a session or an open
	// batch is never reported through this error; those paths create on
	// demand or signal via zero values.
	ErrNotFound = errors.New("not found")

	// ErrBackendUnavailable marks a session backend that is unreachable or
	// erroring. Callers of the session store never see it; the store
	// degrades to cache-only operation and logs instead.
	ErrBackendUnavailable = errors.New("session backend unavailable")
)
