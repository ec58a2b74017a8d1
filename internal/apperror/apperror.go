// Package apperror defines the error taxonomy shared by the HTTP surface,
// the session actor and the workflow orchestrator.
package apperror

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindNotFound           Kind = "NOT_FOUND"
	KindUnauthorized       Kind = "UNAUTHORIZED"
	KindPreconditionFailed Kind = "PRECONDITION_FAILED"
	KindUpstreamFailure    Kind = "UPSTREAM_FAILURE"
	KindPersistenceFailure Kind = "PERSISTENCE_FAILURE"
	KindInvalidRequest     Kind = "INVALID_REQUEST"
	KindInternal           Kind = "INTERNAL"
)

type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

func NotFound(what string) *AppError {
	return New(KindNotFound, what+" not found")
}

func Unauthorized(message string) *AppError {
	return New(KindUnauthorized, message)
}

func PreconditionFailed(message string) *AppError {
	return New(KindPreconditionFailed, message)
}

func UpstreamFailure(err error) *AppError {
	return Wrap(KindUpstreamFailure, "completion provider failure", err)
}

func PersistenceFailure(err error) *AppError {
	return Wrap(KindPersistenceFailure, "durable store failure", err)
}

// KindOf extracts the taxonomy kind from any error chain.
func KindOf(err error) Kind {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
