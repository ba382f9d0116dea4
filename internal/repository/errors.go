package repository

import "errors"

// ErrForbidden is returned when a row exists but belongs to another
// tenant or actor than the caller.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a uniqueness constraint would be violated.
var ErrConflict = errors.New("conflict")

// ErrVersionConflict is returned when an optimistic-lock update matches
// zero rows because the version column moved underneath the caller.
var ErrVersionConflict = errors.New("version conflict")
