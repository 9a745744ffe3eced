// Package email defines the message and envelope model handed to transports.
package email

import (
	"errors"
	"fmt"
	"mime"
	"net/mail"
	"net/textproto"
	"strings"
)

// ErrNoSender is returned when an envelope has no sender address.
var ErrNoSender = errors.New("envelope must have a sender address")

// Address is a mailbox with an optional display name.
type Address struct {
	Address string
	Name    string
}

// String renders the address in RFC 5322 form.
func (a Address) String() string {
	if a.Name == "" {
		return a.Address
	}
	return (&mail.Address{Name: a.Name, Address: a.Address}).String()
}

// Email represents a parsed email message with all its components.
// An empty TextBody or HTMLBody means that part is absent.
type Email struct {
	From        []Address
	Sender      *Address
	To          []Address
	Cc          []Address
	Bcc         []Address
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
	Headers     map[string][]string
	MessageID   string
}

// Header returns the first value of the named header. The canonical key is
// tried first, then any key equal under case folding. ok is false when the
// header is absent.
func (e *Email) Header(name string) (value string, ok bool) {
	if values := e.Headers[textproto.CanonicalMIMEHeaderKey(name)]; len(values) > 0 {
		return values[0], true
	}
	for key, values := range e.Headers {
		if len(values) > 0 && strings.EqualFold(key, name) {
			return values[0], true
		}
	}
	return "", false
}

// HasBody reports whether the message carries an HTML or text body.
func (e *Email) HasBody() bool {
	return e.HTMLBody != "" || e.TextBody != ""
}

// Attachment represents a file attached to an email message.
type Attachment struct {
	Filename    string
	ContentType string
	ContentID   string
	Inline      bool
	Content     []byte
}

// Header returns the MIME part headers the attachment would be written with.
func (a Attachment) Header() textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)

	contentType := a.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if a.Filename != "" {
		if mediaType, params, err := mime.ParseMediaType(contentType); err == nil {
			params["name"] = a.Filename
			contentType = mime.FormatMediaType(mediaType, params)
		}
	}
	h.Set("Content-Type", contentType)

	disposition := "attachment"
	if a.Inline {
		disposition = "inline"
	}
	if a.Filename != "" {
		disposition = mime.FormatMediaType(disposition, map[string]string{"filename": a.Filename})
	}
	h.Set("Content-Disposition", disposition)

	if a.ContentID != "" {
		h.Set("Content-ID", fmt.Sprintf("<%s>", strings.Trim(a.ContentID, "<>")))
	}

	return h
}

// Envelope carries SMTP-level routing. A non-empty Recipients list
// replaces the message's To, Cc and Bcc entirely.
type Envelope struct {
	Sender     Address
	Recipients []Address
}

// NewEnvelope derives an envelope from the message headers: the Sender
// header wins over the first From address. No recipient override is set.
func NewEnvelope(msg *Email) *Envelope {
	env := &Envelope{}
	switch {
	case msg.Sender != nil && msg.Sender.Address != "":
		env.Sender = *msg.Sender
	case len(msg.From) > 0:
		env.Sender = msg.From[0]
	}
	return env
}

// Validate checks the envelope can be routed.
func (e *Envelope) Validate() error {
	if e == nil || e.Sender.Address == "" {
		return ErrNoSender
	}
	return nil
}

// AllRecipients returns the override list when set, else every To, Cc and
// Bcc address of msg.
func (e *Envelope) AllRecipients(msg *Email) []Address {
	if len(e.Recipients) > 0 {
		return e.Recipients
	}
	all := make([]Address, 0, len(msg.To)+len(msg.Cc)+len(msg.Bcc))
	all = append(all, msg.To...)
	all = append(all, msg.Cc...)
	all = append(all, msg.Bcc...)
	return all
}
