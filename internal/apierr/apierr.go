// Package apierr defines the ragsuite error taxonomy and its HTTP status mapping.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain error into one of the taxonomy buckets from the
// error handling design: Validation, ResourceNotFound, ExternalService,
// OperationCancelled, or the uncategorized Domain catch-all.
type Kind int

const (
	KindDomain Kind = iota
	KindValidation
	KindNotFound
	KindExternalService
	KindCancelled
)

func (k Kind) httpStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindExternalService:
		return http.StatusBadGateway
	case KindCancelled:
		return 499
	default:
		return http.StatusBadRequest
	}
}

// Error is the typed error carried across ragsuite service boundaries.
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

// Status returns the HTTP status code this error should surface as.
func (e *Error) Status() int { return e.Kind.httpStatus() }

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Cancelled(format string, args ...any) error {
	return &Error{Kind: KindCancelled, Message: fmt.Sprintf(format, args...)}
}

// ExternalService wraps an upstream failure with the diagnostic format used
// throughout the orchestrator and inference clients: class name, message,
// status, and a truncated body/request URL.
func ExternalService(class, url string, status int, body string, cause error) error {
	const maxBody = 240
	if len(body) > maxBody {
		body = body[:maxBody] + "...(truncated)"
	}
	msg := fmt.Sprintf("%s request to %s failed (status=%d): %s", class, url, status, body)
	return &Error{Kind: KindExternalService, Message: msg, Cause: cause}
}

// Status extracts the HTTP status for any error, defaulting uncategorized
// errors to 400 per the Domain catch-all rule.
func Status(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status()
	}
	return http.StatusBadRequest
}

// IsCancelled reports whether err represents cooperative cancellation.
func IsCancelled(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindCancelled
}
