// Package apierror defines the failure taxonomy shared by the Langflow client,
// the session layer and the MCP tool handlers.
package apierror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure so callers can decide whether to retry or adjust.
type Kind string

const (
	KindConfiguration      Kind = "configuration"
	KindAuthentication     Kind = "authentication"
	KindNotFound           Kind = "not_found"
	KindValidation         Kind = "validation"
	KindTransient          Kind = "transient"
	KindUnexpectedResponse Kind = "unexpected_response"
)

// Error is the structured failure returned by every layer of the adapter.
type Error struct {
	Kind     Kind
	Message  string
	Status   int
	Resource string
	ID       string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether repeating the same call may succeed.
func (e *Error) Retryable() bool { return e.Kind == KindTransient }

// WithResource returns a copy of e annotated with the resource type and identifier
// the failing call addressed. Not-found messages are rewritten to echo the id.
func (e *Error) WithResource(resource, id string) *Error {
	out := *e
	out.Resource = resource
	out.ID = id
	if out.Kind == KindNotFound && id != "" {
		out.Message = fmt.Sprintf("%s %q not found", resource, id)
	}
	return &out
}

// New builds an Error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	msg := fmt.Sprintf(format, args...)
	if cause != nil {
		msg = msg + ": " + cause.Error()
	}
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// FromStatus classifies a non-2xx HTTP status.
func FromStatus(status int, message string) *Error {
	return &Error{Kind: KindForStatus(status), Status: status, Message: message}
}

// KindForStatus maps an HTTP status code onto the taxonomy.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return KindAuthentication
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusRequestTimeout,
		status == http.StatusTooEarly,
		status == http.StatusTooManyRequests,
		status >= 500:
		return KindTransient
	case status >= 400:
		return KindValidation
	default:
		return KindUnexpectedResponse
	}
}

// As extracts an *Error from err. Errors outside the taxonomy are reported as
// unexpected responses so callers always get a classification.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &Error{Kind: KindUnexpectedResponse, Message: err.Error(), Err: err}
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}
