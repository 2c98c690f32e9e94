package service

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthorizationFailure is the only error Login returns for bad
	// credentials, whatever the underlying reason.
	ErrAuthorizationFailure = errors.New("Invalid username/password supplied!")
	ErrObjectNotFound       = errors.New("object_not_found")
	ErrInvalidToken         = errors.New("invalid_token")
	ErrPrincipalInactive    = errors.New("principal_inactive")
	ErrDataIntegrity        = errors.New("data_integrity_violation")
)

// NotFoundError names the principal that could not be found. It matches
// ErrObjectNotFound with errors.Is.
type NotFoundError struct {
	Username string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Object Not Found! Username: %s Type Principal", e.Username)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrObjectNotFound }
