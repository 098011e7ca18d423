package faceerr

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Kind classifies an error for retry and propagation decisions.
type Kind string

const (
	// Validation is bad caller input (undecodable image, no face in image).
	// Never retried.
	Validation Kind = "validation"
	// NotFound is an unknown collection, descriptor or record. Never retried.
	NotFound Kind = "not_found"
	// Conflict is a write-once violation (duplicate active collection,
	// re-put of an identity record).
	Conflict Kind = "conflict"
	// HasDependents rejects collection deletion while identity records still
	// reference descriptors inside it.
	HasDependents Kind = "has_dependents"
	// Transient is a timeout or rate limit from a collaborator. Safe to retry
	// with backoff for idempotent operations only.
	Transient Kind = "transient"
	// Integrity marks cross-store inconsistency (dangling descriptor,
	// orphaned match). Never swallowed.
	Integrity Kind = "integrity"
	// Notification is a failed dispatch. Reported in the outcome, never
	// escalated to fail the match.
	Notification Kind = "notification"
	// Internal is everything else.
	Internal Kind = "internal"
)

// Error is a classified error with an optional cause.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New returns a classified error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf returns the kind of err, walking the wrap chain. Unclassified errors
// report Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var d *DanglingDescriptor
	if errors.As(err, &d) {
		return Integrity
	}
	return Internal
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether err may be retried with backoff. Only transient
// collaborator failures qualify.
func Retryable(err error) bool {
	return IsKind(err, Transient)
}

// DanglingDescriptor reports an enrollment that created a descriptor in the
// recognizer but failed to link an identity record to it. The face ID is
// carried so an operator can retry the link or delete the descriptor.
type DanglingDescriptor struct {
	CollectionID string
	FaceID       uuid.UUID
	Cause        error
}

func (e *DanglingDescriptor) Error() string {
	return fmt.Sprintf("dangling descriptor %s in collection %q: link failed: %v",
		e.FaceID, e.CollectionID, e.Cause)
}

func (e *DanglingDescriptor) Unwrap() error { return e.Cause }
