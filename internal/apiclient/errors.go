package apiclient

import (
	"errors"
	"fmt"
)

// User-facing messages for failures that the server does not describe itself.
const (
	MessageUnreachable    = "Cannot reach the server. Please try again shortly."
	MessageSessionExpired = "Your session has expired. Please log in again."
	MessageFallback       = "The request failed."
)

// Sentinel errors matched by errors.Is against an *Error.
var (
	ErrServiceUnreachable = errors.New("service unreachable")
	ErrSessionExpired     = errors.New("session expired")
	ErrRequestFailed      = errors.New("request failed")
)

// Kind classifies a pipeline failure.
type Kind int

const (
	// KindTransport means the service could not be reached at all.
	KindTransport Kind = iota + 1
	// KindBusiness means the service answered with success=false.
	KindBusiness
	// KindSessionExpired means authentication failed and renewal did not help.
	KindSessionExpired
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindBusiness:
		return "business"
	case KindSessionExpired:
		return "session_expired"
	default:
		return "unknown"
	}
}

// Error is returned by the request pipeline for every unsuccessful call.
type Error struct {
	Kind     Kind
	Endpoint string
	// Status is the HTTP status of the response, 0 for transport failures.
	Status int
	// Message is safe to show to the user.
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Kind, e.Endpoint, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Kind, e.Endpoint, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrServiceUnreachable:
		return e.Kind == KindTransport
	case ErrSessionExpired:
		return e.Kind == KindSessionExpired
	case ErrRequestFailed:
		return e.Kind == KindBusiness
	}
	return false
}

// UserMessage returns the text a UI should render for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

func transportError(endpoint string, err error) *Error {
	return &Error{Kind: KindTransport, Endpoint: endpoint, Message: MessageUnreachable, Err: err}
}

func sessionExpiredError(endpoint string) *Error {
	return &Error{Kind: KindSessionExpired, Endpoint: endpoint, Status: 401, Message: MessageSessionExpired}
}

func businessError(endpoint string, status int, message string) *Error {
	if message == "" {
		message = MessageFallback
	}
	return &Error{Kind: KindBusiness, Endpoint: endpoint, Status: status, Message: message}
}
