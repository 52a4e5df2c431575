package checkin

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind classifies a check-in failure.
type Kind string

const (
	KindTransport           Kind = "transport"
	KindUpstreamApplication Kind = "upstream_application"
	KindMalformedToken      Kind = "malformed_token"
	KindMalformedResponse   Kind = "malformed_response"
	KindConfiguration       Kind = "configuration"
	KindInternal            Kind = "internal"
)

// Error carries the failure kind plus whatever the upstream told us.
type Error struct {
	Kind    Kind
	Op      string
	Code    int
	Message string
	// RetryAfter is the delay requested by the upstream, if any.
	RetryAfter time.Duration
	// Stale marks a session the upstream no longer accepts.
	Stale bool
	Cause error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Kind == KindUpstreamApplication {
		msg = fmt.Sprintf("%s (code %d)", msg, e.Code)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches on Kind so callers can test against the sentinels below.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == 0 || t.Code == e.Code)
}

var (
	ErrTransport           = &Error{Kind: KindTransport}
	ErrUpstreamApplication = &Error{Kind: KindUpstreamApplication}
	ErrMalformedToken      = &Error{Kind: KindMalformedToken}
	ErrMalformedResponse   = &Error{Kind: KindMalformedResponse}
	ErrConfiguration       = &Error{Kind: KindConfiguration}
)

func TransportError(op string, cause error) *Error {
	return &Error{Kind: KindTransport, Op: op, Message: "request failed", Cause: cause}
}

func ApplicationError(op string, code int, message string) *Error {
	return &Error{Kind: KindUpstreamApplication, Op: op, Code: code, Message: message}
}

func MalformedTokenError(op, message string) *Error {
	return &Error{Kind: KindMalformedToken, Op: op, Message: message}
}

func MalformedResponseError(op, message string, cause error) *Error {
	return &Error{Kind: KindMalformedResponse, Op: op, Message: message, Cause: cause}
}

func ConfigurationError(message string, cause error) *Error {
	return &Error{Kind: KindConfiguration, Message: message, Cause: cause}
}

// KindOf classifies any error. Deadline and cancellation errors are
// transport failures; anything unrecognized is internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return KindTransport
	}
	return KindInternal
}

// IsStaleCredential reports whether err means the stored token needs to be
// replaced by its owner.
func IsStaleCredential(err error) bool {
	var ce *Error
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Kind == KindMalformedToken || ce.Stale
}
