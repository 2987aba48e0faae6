package model

import (
	"errors"
	"fmt"
)

// ErrSecretNotFound is wrapped by SecretRetrievalError when the backend reports
// that the named secret does not exist.
var ErrSecretNotFound = errors.New("secret not found")

// ValidationError reports caller-supplied input that can never succeed.
// It is raised before any connection is opened and must not be retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageUnavailableError reports a failure to reach or use the relational store:
// dial or ping failure, rejected credentials, or a statement that could not be executed.
// Store and fetch are idempotent, so callers may retry these with backoff.
type StorageUnavailableError struct {
	Op   string
	Kind EntityKind
	Err  error
}

func (e *StorageUnavailableError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("storage unavailable: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage unavailable: %s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *StorageUnavailableError) Unwrap() error { return e.Err }

// SecretRetrievalError reports that the secrets backend could not be reached,
// denied access, or has no secret under Name.
type SecretRetrievalError struct {
	Backend string
	Name    string
	Err     error
}

func (e *SecretRetrievalError) Error() string {
	return fmt.Sprintf("retrieve secret %q from %s: %v", e.Name, e.Backend, e.Err)
}

func (e *SecretRetrievalError) Unwrap() error { return e.Err }

// SecretFormatError reports a credential payload that is not valid JSON or lacks
// a required field. Field is empty when the payload as a whole is malformed.
type SecretFormatError struct {
	Name  string
	Field string
	Err   error
}

func (e *SecretFormatError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed secret %q: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("malformed secret %q: field %q: %v", e.Name, e.Field, e.Err)
}

func (e *SecretFormatError) Unwrap() error { return e.Err }
