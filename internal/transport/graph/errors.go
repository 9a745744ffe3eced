package graph

import (
	"errors"
	"fmt"

	"github.com/shineum/graph-mailer/internal/transport"
)

var (
	// ErrAuthentication indicates the access token could not be acquired.
	ErrAuthentication = errors.New("graph: failed to acquire access token")

	// ErrTransportUnreachable indicates the HTTP round trip to the Graph API
	// failed before a complete response was read.
	ErrTransportUnreachable = errors.New("graph: could not reach Microsoft Graph API")

	// ErrRejectedBySender indicates the Graph API answered with a status
	// other than 202 Accepted.
	ErrRejectedBySender = errors.New("graph: unable to send e-mail using Graph API")

	// ErrInvalidEnvelope indicates the envelope cannot be routed.
	ErrInvalidEnvelope = errors.New("graph: invalid envelope")
)

// AuthError wraps a failure of the token endpoint. It matches
// ErrAuthentication with errors.Is.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %v", ErrAuthentication, e.Err)
}

func (e *AuthError) Unwrap() []error {
	return []error{ErrAuthentication, e.Err}
}

// SendError is returned by Transport.Send. Kind is ErrTransportUnreachable
// or ErrRejectedBySender. Response is set whenever a status line was received.
type SendError struct {
	Kind     error
	Response *transport.Response
	Err      error

	// detail is the Graph API error message, if the body carried one.
	detail string
}

func (e *SendError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Response != nil && e.detail != "":
		return fmt.Sprintf("%s (HTTP %d): %s", e.Kind, e.Response.StatusCode, e.detail)
	case e.Response != nil:
		return fmt.Sprintf("%s (HTTP %d)", e.Kind, e.Response.StatusCode)
	default:
		return e.Kind.Error()
	}
}

func (e *SendError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// StatusCode returns the HTTP status of the rejected response, or 0.
func (e *SendError) StatusCode() int {
	if e.Response == nil {
		return 0
	}
	return e.Response.StatusCode
}
