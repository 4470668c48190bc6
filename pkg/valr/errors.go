package valr

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a failed call.
type Kind int

const (
	KindConfiguration Kind = iota + 1
	KindAuthentication
	KindRateLimited
	KindServer
	KindRequest
	KindTransport
	KindCancelled
)

// Sentinels for errors.Is matching against a *Error kind.
var (
	ErrConfiguration  = errors.New("valr: configuration error")
	ErrAuthentication = errors.New("valr: authentication failure")
	ErrRateLimited    = errors.New("valr: rate limited")
	ErrServer         = errors.New("valr: server error")
	ErrRequest        = errors.New("valr: request error")
	ErrTransport      = errors.New("valr: transport failure")
	ErrCancelled      = errors.New("valr: cancelled")
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindAuthentication:
		return "authentication"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	case KindRequest:
		return "request"
	case KindTransport:
		return "transport"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindConfiguration:
		return ErrConfiguration
	case KindAuthentication:
		return ErrAuthentication
	case KindRateLimited:
		return ErrRateLimited
	case KindServer:
		return ErrServer
	case KindRequest:
		return ErrRequest
	case KindTransport:
		return ErrTransport
	case KindCancelled:
		return ErrCancelled
	default:
		return nil
	}
}

// Retryable reports whether the dispatcher retries this kind on its own.
func (k Kind) Retryable() bool {
	return k == KindRateLimited || k == KindServer || k == KindTransport
}

// Error is the typed failure returned by every non-success call.
type Error struct {
	Kind Kind
	// Status is the HTTP status of the last exchange, zero when none completed.
	Status  int
	Code    int
	Message string
	// RetryAfter is the server's hint on 429 responses.
	RetryAfter time.Duration
	// ClockSkew is set when an authentication failure names the request timestamp.
	ClockSkew bool
	Attempts  int
	Err       error
}

// Error renders kind, status, and server message.
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString("valr ")
	sb.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&sb, " (status %d)", e.Status)
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	if e.Attempts > 1 {
		fmt.Fprintf(&sb, " after %d attempts", e.Attempts)
	}
	return sb.String()
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		out = append(out, s)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Retryable reports whether the error belongs to a retried class.
func (e *Error) Retryable() bool { return e != nil && e.Kind.Retryable() }

// KindOf returns the Kind of err, or zero when err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func configError(format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Message: fmt.Sprintf(format, args...)}
}
