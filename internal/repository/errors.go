package repository

import "github.com/maheshrc27/persona-scheduler/internal/apperr"

// ErrNotFound is returned by updates that matched no row.
var ErrNotFound = apperr.NotFound("record not found")

// ErrDuplicate is returned when a unique key already exists.
var ErrDuplicate = apperr.StateConflict("record already exists")

const uniqueViolation = "23505"
