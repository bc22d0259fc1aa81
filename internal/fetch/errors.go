package fetch

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a Data Client failure
type Kind int

const (
	KindTransport Kind = iota + 1
	KindStatus
	KindDecode
	KindCanceled
	KindInterceptor
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindStatus:
		return "status"
	case KindDecode:
		return "decode"
	case KindCanceled:
		return "canceled"
	case KindInterceptor:
		return "interceptor"
	default:
		return "unknown"
	}
}

var (
	// ErrCanceled matches (via errors.Is) every failure caused by a timeout
	// or by the caller's context being cancelled.
	ErrCanceled = errors.New("request canceled")

	// ErrCircuitOpen is wrapped by failures rejected by an open circuit breaker
	ErrCircuitOpen = errors.New("circuit breaker open")
)

// Error is the single failure type returned by the Data Client.
// Error() returns a human-readable message suitable for display.
type Error struct {
	Kind    Kind
	Status  int // HTTP status for KindStatus
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrCanceled) true for cancellation failures
func (e *Error) Is(target error) bool {
	return target == ErrCanceled && e.Kind == KindCanceled
}

// IsCanceled reports whether err is an intentional cancellation or timeout.
// Callers typically render nothing for these.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// StatusCode returns the HTTP status carried by a KindStatus error, or 0
func StatusCode(err error) int {
	var fe *Error
	if errors.As(err, &fe) && fe.Kind == KindStatus {
		return fe.Status
	}
	return 0
}

func canceledError(ctx context.Context) *Error {
	msg := "request canceled"
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		msg = "request timed out"
	}
	return &Error{Kind: KindCanceled, Message: msg, Err: ctx.Err()}
}

func transportError(format string, err error) *Error {
	return &Error{Kind: KindTransport, Message: fmt.Sprintf(format, err), Err: err}
}

func interceptorError(format string, err error) *Error {
	return &Error{Kind: KindInterceptor, Message: fmt.Sprintf(format, err), Err: err}
}

func statusError(status int, body []byte) *Error {
	msg := string(body)
	if msg == "" {
		msg = fmt.Sprintf("Request failed: %d", status)
	}
	return &Error{Kind: KindStatus, Status: status, Message: msg}
}

func decodeError(err error) *Error {
	return &Error{Kind: KindDecode, Message: fmt.Sprintf("failed to decode response: %v", err), Err: err}
}
