package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Failure classes of a remote call.
var (
	ErrTransport    = errors.New("transport failure")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRejected     = errors.New("request rejected")
	ErrServer       = errors.New("server failure")
)

// Kind classifies a failed call.
type Kind int

const (
	KindTransport    Kind = iota // no response received
	KindUnauthorized             // 401
	KindRejected                 // other 4xx: validation, conflict, not found, forbidden
	KindServer                   // 5xx
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindUnauthorized:
		return "unauthorized"
	case KindRejected:
		return "rejected"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindTransport:
		return ErrTransport
	case KindUnauthorized:
		return ErrUnauthorized
	case KindRejected:
		return ErrRejected
	default:
		return ErrServer
	}
}

// Error is returned by every Client method when the call fails.
type Error struct {
	Kind    Kind
	Method  string
	Path    string
	Status  int    // 0 for transport failures
	Payload string // raw response body, possibly truncated
	Message string // backend-provided message when the body carries one
	Err     error  // underlying transport error
}

func (e *Error) Error() string {
	if e.Kind == KindTransport {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the class sentinels so callers can use errors.Is(err, api.ErrUnauthorized).
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

func classify(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status >= 400 && status < 500:
		return KindRejected
	default:
		return KindServer
	}
}
