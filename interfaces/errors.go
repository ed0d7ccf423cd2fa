package interfaces

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks payloads rejected by schema rules before reaching the backend.
	ErrValidation = errors.New("validation error")

	// ErrNotFound is returned when a key, dependent lookup or key material does not exist.
	ErrNotFound = errors.New("not found")

	// ErrImmutable is returned on attempts to change a write-once field that is already set.
	ErrImmutable = errors.New("immutable attribute")

	// ErrDuplicate is returned when a write-once resource such as a certificate already exists.
	ErrDuplicate = errors.New("duplicate resource")

	// ErrDependencyCheck is returned when an external existence check blocks an operation.
	ErrDependencyCheck = errors.New("dependency check failed")

	// ErrBackend wraps any failure surfaced by the directory backend.
	ErrBackend = errors.New("backend error")

	// ErrAlreadyExists is returned by the directory backend when creating an existing entry.
	ErrAlreadyExists = errors.New("entry already exists")
)

// ValidationError reports the first schema violation of a payload.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid '%s': %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports a missing entry or missing key material.
type NotFoundError struct {
	Key    string
	Reason string
}

func (e *NotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("%s: not found", e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ImmutabilityError reports an attempt to overwrite an already-set write-once field.
type ImmutabilityError struct {
	Field   string
	Key     string
	Current string
}

func (e *ImmutabilityError) Error() string {
	return fmt.Sprintf("%s: '%s' already set to %q, it is unchangeable", e.Key, e.Field, e.Current)
}

func (e *ImmutabilityError) Unwrap() error { return ErrImmutable }

// DuplicateError reports an attempt to replace an existing certificate.
type DuplicateError struct {
	Field        string
	Key          string
	SerialNumber string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s: entry already has a %s, serial number: %s", e.Key, e.Field, e.SerialNumber)
}

func (e *DuplicateError) Unwrap() error { return ErrDuplicate }

// DependencyError reports a failed naming-system check.
type DependencyError struct {
	Key    string
	Reason string
	Err    error
}

func (e *DependencyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Key, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Key, e.Reason)
}

func (e *DependencyError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDependencyCheck, e.Err}
	}
	return []error{ErrDependencyCheck}
}

// BackendError carries an unmodified directory backend failure.
type BackendError struct {
	Op  string
	Key string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Key, e.Err)
}

func (e *BackendError) Unwrap() []error { return []error{ErrBackend, e.Err} }

// CascadeError reports a dependent deletion failure. Principals in Deleted stay deleted.
type CascadeError struct {
	Key     string
	Deleted []string
	Err     error
}

func (e *CascadeError) Error() string {
	return fmt.Sprintf("%s: cascade aborted after deleting [%s]: %v", e.Key, strings.Join(e.Deleted, ", "), e.Err)
}

func (e *CascadeError) Unwrap() error { return e.Err }
