package tasks

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors forming the coordinator's error taxonomy. Callers branch on
// these with errors.Is; the concrete types below carry the structured detail.
var (
	ErrAlreadyClaimed    = errors.New("already claimed")
	ErrForbidden         = errors.New("forbidden")
	ErrNotClaimed        = errors.New("not claimed")
	ErrValidation        = errors.New("validation error")
	ErrIllegalTransition = errors.New("illegal transition")
	ErrNotFound          = errors.New("task not found")
	ErrConflict          = errors.New("concurrent update conflict")
)

// AlreadyClaimedError reports a claim conflict including the current holder so
// the caller can see who owns the task.
type AlreadyClaimedError struct {
	TaskID    string
	Holder    string
	Role      Role
	ExpiresAt string
}

func (e *AlreadyClaimedError) Error() string {
	return fmt.Sprintf("task %s already claimed by %s (%s)", e.TaskID, e.Holder, e.Role)
}

func (e *AlreadyClaimedError) Unwrap() error { return ErrAlreadyClaimed }

// ValidationError enumerates exactly which fields block a requested transition.
type ValidationError struct {
	Target  Stage
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("transition to %s missing required fields: %s", e.Target, strings.Join(e.Missing, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// IllegalTransitionError reports an ordering violation on the non-admin path.
type IllegalTransitionError struct {
	From Stage
	To   Stage
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}

func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

// ForbiddenError reports an actor/role mismatch for the attempted operation.
type ForbiddenError struct {
	Actor  string
	Reason string
}

func (e *ForbiddenError) Error() string {
	if e.Actor == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Actor, e.Reason)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }
