package dsm

import (
	"errors"
	"fmt"
)

// ErrorCode represents specific error conditions in the state machine
type ErrorCode int

const (
	// No error occurred
	ErrCodeNone ErrorCode = iota
	// A state of the same kind is already part of the tree
	ErrCodeDuplicateState
	// Parent state was not found in the tree
	ErrCodeParentNotFound
	// Region already has an entry child
	ErrCodeSecondEntry
	// Transition source is not in the tree
	ErrCodeSourceNotFound
	// Transition destination is not in the tree
	ErrCodeDestinationNotFound
	// Transition host is not in the tree
	ErrCodeHostNotFound
	// Transition host is neither the source nor one of its ancestors
	ErrCodeHostNotAncestor
	// A transition for this source and event already exists
	ErrCodeDuplicateTransition
	// Source and destination are nested or live in orthogonal regions
	ErrCodeImpossibleTransition
	// History mode conflicts with deep history elsewhere on the path
	ErrCodeHistoryConflict
	// Region index does not exist on the state
	ErrCodeRegionNotFound
	// Operation is only allowed while the machine is stopped
	ErrCodeMachineStarted
	// Guard and action were bound to different host states
	ErrCodeHostMismatch
	// User hook returned an error or panicked
	ErrCodeHookFailed
)

var codeNames = map[ErrorCode]string{
	ErrCodeNone:                 "none",
	ErrCodeDuplicateState:       "duplicate state",
	ErrCodeParentNotFound:       "parent not found",
	ErrCodeSecondEntry:          "second entry",
	ErrCodeSourceNotFound:       "source not found",
	ErrCodeDestinationNotFound:  "destination not found",
	ErrCodeHostNotFound:         "host not found",
	ErrCodeHostNotAncestor:      "host not ancestor",
	ErrCodeDuplicateTransition:  "duplicate transition",
	ErrCodeImpossibleTransition: "impossible transition",
	ErrCodeHistoryConflict:      "history conflict",
	ErrCodeRegionNotFound:       "region not found",
	ErrCodeMachineStarted:       "machine started",
	ErrCodeHostMismatch:         "host mismatch",
	ErrCodeHookFailed:           "hook failed",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// ConstructionError reports an invalid tree edit: adding states, configuring
// history or registering transitions.
type ConstructionError struct {
	Code    ErrorCode
	State   string
	Message string
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("construction error [%s]: %s", e.State, e.Message)
}

// NewConstructionError creates a new construction error
func NewConstructionError(code ErrorCode, state string, message string) *ConstructionError {
	return &ConstructionError{
		Code:    code,
		State:   state,
		Message: message,
	}
}

// NewDuplicateStateError creates an error for a kind already present in the tree
func NewDuplicateStateError(state string) *ConstructionError {
	return NewConstructionError(ErrCodeDuplicateState, state, fmt.Sprintf("state '%s' already exists", state))
}

// NewParentNotFoundError creates an error for a missing parent state
func NewParentNotFoundError(state, parent string) *ConstructionError {
	return NewConstructionError(ErrCodeParentNotFound, state, fmt.Sprintf("parent '%s' not found", parent))
}

// NewMachineStartedError creates an error for edits attempted on a running machine
func NewMachineStartedError(state, operation string) *ConstructionError {
	return NewConstructionError(ErrCodeMachineStarted, state, fmt.Sprintf("cannot %s while the machine is started", operation))
}

// TransitionError represents an invalid transition registration
type TransitionError struct {
	Code        ErrorCode
	Source      string
	Event       string
	Destination string
	Reason      string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("transition error [%s->%s on %s]: %s", e.Source, e.Destination, e.Event, e.Reason)
}

// NewTransitionError creates a new transition error with custom values
func NewTransitionError(code ErrorCode, source, event, destination, reason string) *TransitionError {
	return &TransitionError{
		Code:        code,
		Source:      source,
		Event:       event,
		Destination: destination,
		Reason:      reason,
	}
}

// HookError wraps a failure raised by user code: entry, exit, guard or action.
type HookError struct {
	Hook        string
	State       string
	OriginalErr error
}

func (e *HookError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("%s of state '%s' failed: %v", e.Hook, e.State, e.OriginalErr)
	}
	return fmt.Sprintf("%s of state '%s' failed", e.Hook, e.State)
}

func (e *HookError) Unwrap() error {
	return e.OriginalErr
}

// NewHookError creates a new hook failure error
func NewHookError(hook, state string, err error) *HookError {
	return &HookError{
		Hook:        hook,
		State:       state,
		OriginalErr: err,
	}
}

// IsConstructionError checks if an error is a ConstructionError
func IsConstructionError(err error) bool {
	var target *ConstructionError
	return errors.As(err, &target)
}

// IsTransitionError checks if an error is a TransitionError
func IsTransitionError(err error) bool {
	var target *TransitionError
	return errors.As(err, &target)
}

// IsHookError checks if an error is a HookError
func IsHookError(err error) bool {
	var target *HookError
	return errors.As(err, &target)
}

// GetErrorCode returns the error code for known error types
func GetErrorCode(err error) ErrorCode {
	var (
		ce *ConstructionError
		te *TransitionError
		he *HookError
	)
	switch {
	case errors.As(err, &ce):
		return ce.Code
	case errors.As(err, &te):
		return te.Code
	case errors.As(err, &he):
		return ErrCodeHookFailed
	default:
		return ErrCodeNone
	}
}
