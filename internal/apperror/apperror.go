// Package apperror is the error taxonomy shared by the API server and the
// backoffice client. Every failure that reaches a user is collapsed into a Kind and
// a single human-readable message.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindConnectivity  Kind = "connectivity"
	KindAuthorization Kind = "authorization"
	KindServer        Kind = "server"
	KindValidation    Kind = "validation"
	KindAggregation   Kind = "aggregation"
	KindBackup        Kind = "backup"
	KindUnknown       Kind = "unknown"
)

const (
	MsgConnectivity   = "cannot reach the server, check your network connection"
	MsgAdminOnly      = "only an administrator may perform backups"
	MsgServer         = "the server failed to process the request"
	MsgBackupFailed   = "failed to back up database"
	MsgRestoreFailed  = "failed to restore database"
	MsgMissingBackup  = "select a backup file to restore"
	MsgReportFailed   = "failed to compute profit and loss"
	MsgAuthentication = "authentication required"
)

type Error struct {
	Kind    Kind
	Message string
	// Status is the HTTP status observed (client side) or to be returned (server side).
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithStatus records the HTTP status associated with the error.
func (e *Error) WithStatus(status int) *Error {
	e.Status = status
	return e
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the single user-facing message for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}

// HTTPStatus maps an error to the status a handler should answer with.
func HTTPStatus(err error) int {
	var appErr *Error
	if errors.As(err, &appErr) && appErr.Status != 0 {
		return appErr.Status
	}

	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindConnectivity:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
