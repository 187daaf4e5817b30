package domain

import "errors"

// Sentinel errors shared by services and mapped to HTTP codes by controllers.
var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateEmail     = errors.New("email already in use")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDeadlinePassed     = errors.New("response deadline has passed")
	ErrActivityClosed     = errors.New("activity is no longer collecting responses")
)
