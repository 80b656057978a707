package domain

import "errors"

var (
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrMissingNote       = errors.New("note required")
	ErrConflict          = errors.New("concurrent modification")
	ErrNotFound          = errors.New("not found")
	ErrEmptyTarget       = errors.New("no recipients resolved")
	ErrPoolExhausted     = errors.New("no mail account available")
)
