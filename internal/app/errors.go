package app

import (
	"errors"
	"fmt"
)

// ErrNotFound and ErrStateConflict are the base error kinds surfaced by the
// engine alongside domain validation errors. State conflicts signal a race or
// a stale client view; they are never retried by the engine itself.
var (
	ErrNotFound      = errors.New("not found")
	ErrStateConflict = errors.New("workflow state conflict")
)

var (
	ErrDepartmentNotActive  = fmt.Errorf("%w: department is not active for this activity", ErrStateConflict)
	ErrNoPreviousDepartment = fmt.Errorf("%w: no previous department", ErrStateConflict)
	ErrActivityCompleted    = fmt.Errorf("%w: activity is already completed", ErrStateConflict)
	ErrPreviousNotCompleted = fmt.Errorf("%w: previous department is not completed", ErrStateConflict)
)
