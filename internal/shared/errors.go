package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation such as a duplicate role name.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates malformed or unknown input.
	ErrValidation = errors.New("validation failed")
	// ErrForbidden indicates a policy violation or a missing permission.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthorized indicates a request without a valid identity.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)
