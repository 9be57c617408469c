// Package apperr defines the error kinds surfaced by the liquidation core.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure so callers can map it to a distinct message
type Kind string

const (
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation_error"
	KindUnauthorized Kind = "unauthorized"
	KindInvalidState Kind = "invalid_state"
	KindConflict     Kind = "conflict"
)

// Sentinels for errors.Is checks against a kind
var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
)

var kindSentinels = map[Kind]error{
	KindNotFound:     ErrNotFound,
	KindValidation:   ErrValidation,
	KindUnauthorized: ErrUnauthorized,
	KindInvalidState: ErrInvalidState,
	KindConflict:     ErrConflict,
}

// Error carries the kind plus enough context to render a message
type Error struct {
	Kind          Kind
	Message       string
	LiquidationID string
	Transition    string
	Status        string
	Field         string
	Err           error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	b.WriteString(": ")
	b.WriteString(e.Message)

	var ctx []string
	if e.LiquidationID != "" {
		ctx = append(ctx, "liquidation="+e.LiquidationID)
	}
	if e.Transition != "" {
		ctx = append(ctx, "transition="+e.Transition)
	}
	if e.Status != "" {
		ctx = append(ctx, "status="+e.Status)
	}
	if e.Field != "" {
		ctx = append(ctx, "field="+e.Field)
	}
	if len(ctx) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(ctx, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes the wrapped cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinel so errors.Is(err, ErrNotFound) works
func (e *Error) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// NotFound builds a NotFound error for the named entity
func NotFound(entity, key string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %q does not exist", entity, key)}
}

// Validation builds a ValidationError for a field
func Validation(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// Unauthorized builds an Unauthorized error for an actor missing a capability
func Unauthorized(actorID, capability string) *Error {
	return &Error{Kind: KindUnauthorized, Message: fmt.Sprintf("actor %q lacks capability %q", actorID, capability)}
}

// InvalidState builds an InvalidState error for an illegal transition
func InvalidState(liquidationID, transition, status string) *Error {
	return &Error{
		Kind:          KindInvalidState,
		Message:       fmt.Sprintf("%s is not allowed from %s", transition, status),
		LiquidationID: liquidationID,
		Transition:    transition,
		Status:        status,
	}
}

// Conflict builds a ConflictError wrapping the underlying cause
func Conflict(message string, err error) *Error {
	return &Error{Kind: KindConflict, Message: message, Err: err}
}

// WithLiquidation attaches liquidation context to an error in place
func (e *Error) WithLiquidation(id, transition, status string) *Error {
	e.LiquidationID = id
	e.Transition = transition
	e.Status = status
	return e
}

// KindOf returns the kind of err, or "" if it is not an *Error
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return ""
}
