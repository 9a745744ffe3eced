// Package stdout implements a Transport that prints emails instead of
// delivering them. It backs the stdout:// and null:// DSNs.
package stdout

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shineum/graph-mailer/internal/email"
	"github.com/shineum/graph-mailer/internal/transport"
)

const (
	// Scheme prints messages to standard output.
	Scheme = "stdout"

	// NullScheme accepts and discards messages.
	NullScheme = "null"
)

const separator = "========================================\n"

// Transport writes email messages to an io.Writer in a human-readable format.
type Transport struct {
	writer io.Writer
	scheme string
}

var _ transport.Transport = (*Transport)(nil)

// New creates a Transport that writes to os.Stdout.
func New() *Transport {
	return &Transport{writer: os.Stdout, scheme: Scheme}
}

// NewWithWriter creates a Transport that writes to the given writer.
func NewWithWriter(w io.Writer) *Transport {
	return &Transport{writer: w, scheme: Scheme}
}

// NewNull creates a Transport that accepts every message and prints nothing.
func NewNull() *Transport {
	return &Transport{writer: io.Discard, scheme: NullScheme}
}

// String returns the DSN form of the transport.
func (t *Transport) String() string {
	return t.scheme + "://default"
}

// Send prints the email message. It fails only if the write fails.
func (t *Transport) Send(_ context.Context, msg *email.Email, env *email.Envelope) (*transport.SentMessage, error) {
	if env == nil {
		env = email.NewEnvelope(msg)
	}

	var b strings.Builder

	b.WriteString(separator)
	fmt.Fprintf(&b, "Envelope-From: %s\n", env.Sender.Address)
	fmt.Fprintf(&b, "Envelope-To: %s\n", joinAddresses(env.AllRecipients(msg)))
	fmt.Fprintf(&b, "From: %s\n", joinAddresses(msg.From))
	fmt.Fprintf(&b, "To: %s\n", joinAddresses(msg.To))

	if len(msg.Cc) > 0 {
		fmt.Fprintf(&b, "Cc: %s\n", joinAddresses(msg.Cc))
	}

	fmt.Fprintf(&b, "Subject: %s\n", msg.Subject)
	b.WriteString("Body:\n")

	body := msg.TextBody
	if body == "" {
		body = msg.HTMLBody
	}
	b.WriteString(body + "\n")

	if len(msg.Attachments) > 0 {
		attachments := make([]string, 0, len(msg.Attachments))
		for _, att := range msg.Attachments {
			attachments = append(attachments, fmt.Sprintf("%s (%s)", att.Filename, formatSize(len(att.Content))))
		}
		fmt.Fprintf(&b, "Attachments: %s\n", strings.Join(attachments, ", "))
	}

	b.WriteString(separator)

	if _, err := io.WriteString(t.writer, b.String()); err != nil {
		return nil, fmt.Errorf("stdout: failed to write message: %w", err)
	}

	return transport.NewSentMessage(msg, env), nil
}

func joinAddresses(addrs []email.Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}

// formatSize formats a byte count into a human-readable string.
func formatSize(bytes int) string {
	const (
		kb = 1024
		mb = kb * 1024
	)

	switch {
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
