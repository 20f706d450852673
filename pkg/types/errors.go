package types

import (
	"errors"
	"fmt"
)

// Integrity errors. Every operation that fails for a domain reason returns an
// error matching one of these with errors.Is.
var (
	ErrDuplicateVariant    = errors.New("variant already registered")
	ErrUnknownVariant      = errors.New("unknown variant")
	ErrSchemaMismatch      = errors.New("fields do not match variant schema")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrSequenceConflict    = errors.New("sequence conflict")
	ErrReadOnlyViolation   = errors.New("record is a read-only projection")
	ErrOwnerGone           = errors.New("owner is gone")
	ErrNotFound            = errors.New("entity not found")
	ErrIntegrityAmbiguous  = errors.New("multiple rows matched a unique view")
)

// Lifecycle and input errors.
var (
	// ErrTransient marks store-level conflicts (busy database, serialization
	// failure) that the caller may retry with a fresh unit of work.
	ErrTransient              = errors.New("transient store conflict")
	ErrDiscriminatorImmutable = errors.New("discriminator is immutable")
	ErrUnitOfWorkDone         = errors.New("unit of work already finished")
	ErrInvalidInput           = errors.New("invalid input")
	ErrBackendDetached        = errors.New("backend is detached")
	ErrAlreadyAttached        = errors.New("backend is already attached")
)

// ViolationKind names the check that rejected a candidate write.
type ViolationKind string

// Constraint checks, in the order the checker runs them.
const (
	ViolationNaturalKey ViolationKind = "natural_key"
	ViolationComposite  ViolationKind = "composite"
	ViolationForeignKey ViolationKind = "foreign_key"
)

// ConstraintViolation reports which uniqueness or reference constraint a
// write broke. It matches ErrConstraintViolation with errors.Is.
type ConstraintViolation struct {
	Kind ViolationKind
	Key  string // conflicting key, e.g. principals(email)=a@example.com
	Err  error  // driver error when the store itself rejected the write
}

func (e *ConstraintViolation) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("constraint violation (%s)", e.Kind)
	}
	return fmt.Sprintf("constraint violation (%s): %s", e.Kind, e.Key)
}

// Is reports whether target is ErrConstraintViolation.
func (e *ConstraintViolation) Is(target error) bool {
	return target == ErrConstraintViolation
}

func (e *ConstraintViolation) Unwrap() error {
	return e.Err
}

// SchemaMismatchError reports a variant payload that does not satisfy its
// schema. It matches ErrSchemaMismatch with errors.Is.
type SchemaMismatchError struct {
	Discriminator string
	Field         string
	Reason        string
}

func (e *SchemaMismatchError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema mismatch for %q: %s", e.Discriminator, e.Reason)
	}
	return fmt.Sprintf("schema mismatch for %q field %q: %s", e.Discriminator, e.Field, e.Reason)
}

// Is reports whether target is ErrSchemaMismatch.
func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// IsRetryable reports whether err is a transient store conflict. Constraint
// violations from a lost race are not retryable as-is; the caller must
// re-read and decide.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}
