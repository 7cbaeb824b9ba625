package store

import "errors"

// Business-rule failures are returned as these sentinels; callers map them with errors.Is.
// ErrPersistence wraps every storage failure and is the only one that indicates a broken store.
var (
	ErrValidation         = errors.New("validation failed")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrDuplicateEmail     = errors.New("email already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountDeactivated = errors.New("account is deactivated")
	ErrNotFound           = errors.New("not found")
	ErrUnauthorized       = errors.New("invalid or expired session")
	ErrPersistence        = errors.New("user store persistence failed")
)
