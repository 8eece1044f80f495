package services

import "errors"

var (
	// ErrNotFound is mapped to 404 by handlers.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput is mapped to 400 by handlers.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict is mapped to 409 by handlers.
	ErrConflict = errors.New("conflict")
)
