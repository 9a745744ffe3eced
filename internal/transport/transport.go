// Package transport defines the interface for email delivery backends.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/shineum/graph-mailer/internal/email"
)

// Transport is the interface that email delivery backends must implement.
// Send performs a single delivery attempt; implementations do not retry.
type Transport interface {
	// Send delivers msg using the routing in env.
	Send(ctx context.Context, msg *email.Email, env *email.Envelope) (*SentMessage, error)

	// String returns the display form of the transport. Secrets are redacted.
	String() string
}

// Response is the raw reply of an HTTP-based API, kept for diagnostics.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// SentMessage records a message the backend accepted.
type SentMessage struct {
	MessageID string
	Envelope  email.Envelope
	Original  *email.Email

	// Response is set by HTTP-based transports.
	Response *Response
}

// NewSentMessage builds a SentMessage, reusing the message's own Message-ID
// or generating one when it has none.
func NewSentMessage(msg *email.Email, env *email.Envelope) *SentMessage {
	id := msg.MessageID
	if id == "" {
		id = GenerateMessageID()
	}
	return &SentMessage{
		MessageID: id,
		Envelope:  *env,
		Original:  msg,
	}
}

// GenerateMessageID returns a random RFC 5322 msg-id.
func GenerateMessageID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), host)
}
