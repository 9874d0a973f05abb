package domain

import (
	"errors"
	"fmt"
)

// ErrValidation is the base error for malformed or missing input. Concrete
// sentinels wrap it so callers can match the whole family with one errors.Is.
var ErrValidation = errors.New("validation failed")

var (
	ErrInvalidID           = fmt.Errorf("%w: invalid id", ErrValidation)
	ErrInvalidTitle        = fmt.Errorf("%w: invalid title", ErrValidation)
	ErrInvalidQuantity     = fmt.Errorf("%w: quantity must be positive", ErrValidation)
	ErrInvalidPriority     = fmt.Errorf("%w: invalid priority", ErrValidation)
	ErrInvalidName         = fmt.Errorf("%w: invalid name", ErrValidation)
	ErrInvalidRole         = fmt.Errorf("%w: invalid role", ErrValidation)
	ErrInvalidMessage      = fmt.Errorf("%w: notification message is required", ErrValidation)
	ErrEmptyActor          = fmt.Errorf("%w: actor attribution is required", ErrValidation)
	ErrEmptySequence       = fmt.Errorf("%w: department sequence is empty", ErrValidation)
	ErrDuplicateDepartment = fmt.Errorf("%w: duplicate department in sequence", ErrValidation)
	ErrUnknownDepartment   = fmt.Errorf("%w: unknown department", ErrValidation)
)
