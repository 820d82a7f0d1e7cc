// Package apierror defines the single error shape surfaced by executors and
// the platform API client.
package apierror

import (
	"errors"
	"fmt"
	"maps"
	"net/http"
)

// Defaults applied when a failure does not carry its own values.
const (
	DefaultStatus   = http.StatusInternalServerError
	FallbackMessage = "An error occurred"
)

// Error is the normalised failure: a message, an HTTP-like status and
// optional per-field details. It is never partially populated: Message is
// non-empty and Status is positive for every value built by this package.
type Error struct {
	Message string              `json:"message"`
	Status  int                 `json:"status"`
	Details map[string][]string `json:"details,omitempty"`

	cause error
}

// StatusCoder is implemented by failures that carry their own status code.
type StatusCoder interface {
	StatusCode() int
}

// Detailer is implemented by failures that carry per-field details,
// e.g. validation errors returned by the platform API.
type Detailer interface {
	ErrorDetails() map[string][]string
}

// New builds an Error with the given status and message.
func New(status int, message string) *Error {
	return fill(&Error{Message: message, Status: status})
}

// Wrap builds an Error with the given status and message that keeps cause
// reachable through errors.Is/As.
func Wrap(status int, message string, cause error) *Error {
	return fill(&Error{Message: message, Status: status, cause: cause})
}

// WithDetails returns a copy of e carrying details.
func (e *Error) WithDetails(details map[string][]string) *Error {
	c := *e
	c.Details = maps.Clone(details)
	return &c
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// Unwrap exposes the original failure.
func (e *Error) Unwrap() error { return e.cause }

// StatusCode implements StatusCoder.
func (e *Error) StatusCode() int { return e.Status }

// ErrorDetails implements Detailer.
func (e *Error) ErrorDetails() map[string][]string { return e.Details }

// Is matches another *Error by status, so callers can write
// errors.Is(err, apierror.New(http.StatusNotFound, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Status == e.Status
}

// Normalize converts any failure into an *Error.
//
// An *Error already in the chain is returned as a filled copy. Otherwise the
// message comes from err.Error() (FallbackMessage when empty), the status
// from StatusCoder (DefaultStatus when absent or non-positive) and the details
// from Detailer (nil when absent).
func Normalize(err error) *Error {
	if err == nil {
		return nil
	}

	var ae *Error
	if errors.As(err, &ae) {
		c := *ae
		c.Details = maps.Clone(ae.Details)
		return fill(&c)
	}

	out := &Error{Message: err.Error(), cause: err}

	var sc StatusCoder
	if errors.As(err, &sc) {
		out.Status = sc.StatusCode()
	}

	var d Detailer
	if errors.As(err, &d) {
		out.Details = maps.Clone(d.ErrorDetails())
	}

	return fill(out)
}

// StatusOf returns the status a failure would normalise to, or 0 for nil.
func StatusOf(err error) int {
	if err == nil {
		return 0
	}
	return Normalize(err).Status
}

func fill(e *Error) *Error {
	if e.Message == "" {
		e.Message = FallbackMessage
	}
	if e.Status <= 0 {
		e.Status = DefaultStatus
	}
	return e
}
