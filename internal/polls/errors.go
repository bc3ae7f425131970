package polls

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated indicates the operation requires a signed-in actor.
	ErrUnauthenticated = errors.New("polls: authentication required")
	// ErrForbidden indicates the actor is known but lacks permission.
	ErrForbidden = errors.New("polls: operation not permitted")
	// ErrNotFound indicates the poll does not exist, or is not visible to the
	// actor. Update and delete deliberately collapse "not owned" into this
	// error so responses never reveal whether another user's poll exists.
	ErrNotFound = errors.New("polls: poll not found")
	// ErrAlreadyVoted indicates the authenticated actor already holds a vote
	// on the poll, whether detected by the pre-check or by the unique index.
	ErrAlreadyVoted = errors.New("polls: vote already recorded")
	// ErrRateLimited indicates the actor exhausted the window for the action.
	ErrRateLimited = errors.New("polls: rate limit exceeded")
	// ErrValidation is the base error wrapped by every FieldError.
	ErrValidation = errors.New("polls: validation failed")
)

// FieldError reports which field failed validation and why. It unwraps to
// ErrValidation so callers can branch on the kind without inspecting fields.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FieldError) Unwrap() error {
	return ErrValidation
}

func newFieldError(field, reason string) error {
	return &FieldError{Field: field, Reason: reason}
}

// ServiceError tags unexpected store or dependency failures with a dotted
// operation.reason code while keeping the cause reachable through Unwrap.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}
