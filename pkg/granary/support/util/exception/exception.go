// Package exception provides the error taxonomy for Granary's write path.
// It standardizes the conditions a coordinated multi-store write can end in,
// so callers can branch on the condition class with errors.As / errors.Is
// instead of string matching.
package exception

import (
	"errors"
	"fmt"
	"runtime"
)

// WriteError is the generic error type for failures inside the write path.
// It holds the module where the error occurred, a message, and the wrapped
// original error. Conditions with dedicated semantics (validation,
// unresolved parents, deletion conflicts, inconsistent state) have their
// own types below.
type WriteError struct {
	// Module indicates where the error occurred (e.g., "coordinator", "sql", "mirror").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// NewWriteError creates a new WriteError instance.
func NewWriteError(module, message string, originalErr error) *WriteError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &WriteError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		StackTrace:  string(buf[:n]),
	}
}

// NewWriteErrorf creates a new WriteError with a formatted message.
// If the last argument is an error it is extracted and wrapped.
func NewWriteErrorf(module, format string, a ...interface{}) *WriteError {
	var originalErr error
	args := a
	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}
	return NewWriteError(module, fmt.Sprintf(format, args...), originalErr)
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the wrapped original error.
func (e *WriteError) Unwrap() error {
	return e.OriginalErr
}

// ValidationError indicates a required input field is missing or malformed
// on a submitted record. It is surfaced to the immediate caller; no store
// is mutated.
type ValidationError struct {
	// Field is the name of the offending field (e.g., "granuleId", "collection").
	Field   string
	Message string
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s", e.Field, e.Message)
}

// UnresolvedParentError indicates a referenced parent record (collection,
// provider, execution, PDR) does not yet exist in the relational store.
// It is not a failure: the coordinator responds with referential gating
// and the event is expected to be redelivered.
type UnresolvedParentError struct {
	// ParentType names the missing parent kind (e.g., "collection", "execution").
	ParentType string
	// NaturalKey is the natural key that failed to resolve.
	NaturalKey string
}

// NewUnresolvedParentError creates a new UnresolvedParentError.
func NewUnresolvedParentError(parentType, naturalKey string) *UnresolvedParentError {
	return &UnresolvedParentError{ParentType: parentType, NaturalKey: naturalKey}
}

func (e *UnresolvedParentError) Error() string {
	return fmt.Sprintf("parent %s '%s' not found in the relational store", e.ParentType, e.NaturalKey)
}

// IsUnresolvedParent reports whether err is (or wraps) an UnresolvedParentError.
func IsUnresolvedParent(err error) bool {
	var target *UnresolvedParentError
	return errors.As(err, &target)
}

// DeletionConflictError indicates a delete was attempted on a published
// record. The operation is rejected and no store is mutated.
type DeletionConflictError struct {
	// RecordType names the record kind (e.g., "granule").
	RecordType string
	NaturalKey string
}

// NewDeletionConflictError creates a new DeletionConflictError.
func NewDeletionConflictError(recordType, naturalKey string) *DeletionConflictError {
	return &DeletionConflictError{RecordType: recordType, NaturalKey: naturalKey}
}

func (e *DeletionConflictError) Error() string {
	return fmt.Sprintf("cannot delete published %s '%s'", e.RecordType, e.NaturalKey)
}

// IsDeletionConflict reports whether err is (or wraps) a DeletionConflictError.
func IsDeletionConflict(err error) bool {
	var target *DeletionConflictError
	return errors.As(err, &target)
}

// ConflictError indicates a create was attempted on a record that already
// exists under the same natural key.
type ConflictError struct {
	RecordType string
	NaturalKey string
}

// NewConflictError creates a new ConflictError.
func NewConflictError(recordType, naturalKey string) *ConflictError {
	return &ConflictError{RecordType: recordType, NaturalKey: naturalKey}
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s '%s' already exists", e.RecordType, e.NaturalKey)
}

// NotFoundError indicates an update or lookup referenced a record that
// does not exist under the given natural key.
type NotFoundError struct {
	RecordType string
	NaturalKey string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(recordType, naturalKey string) *NotFoundError {
	return &NotFoundError{RecordType: recordType, NaturalKey: naturalKey}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s '%s' not found", e.RecordType, e.NaturalKey)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// InconsistentStateError indicates a compensation step itself failed: the
// document store (or index) could not be restored to match the aborted
// relational write. No automatic remedy exists at this layer; the
// condition is logged for external reconciliation.
type InconsistentStateError struct {
	// Store names the store left inconsistent (e.g., "document-store").
	Store      string
	NaturalKey string
	// RestoreErr is the error raised by the failed restore.
	RestoreErr error
}

// NewInconsistentStateError creates a new InconsistentStateError.
func NewInconsistentStateError(store, naturalKey string, restoreErr error) *InconsistentStateError {
	return &InconsistentStateError{Store: store, NaturalKey: naturalKey, RestoreErr: restoreErr}
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("store '%s' left inconsistent for '%s' after failed compensation: %v",
		e.Store, e.NaturalKey, e.RestoreErr)
}

func (e *InconsistentStateError) Unwrap() error {
	return e.RestoreErr
}
