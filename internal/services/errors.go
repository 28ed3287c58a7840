package services

import "errors"

// Error kinds the transport maps to status codes with errors.Is.
var (
	ErrValidation = errors.New("validation error")
	ErrAuth       = errors.New("unauthorized")
	ErrConflict   = errors.New("already exists")
	ErrNotFound   = errors.New("not found")
	ErrProvider   = errors.New("provider error")
	ErrTimeout    = errors.New("provider timeout")
)
