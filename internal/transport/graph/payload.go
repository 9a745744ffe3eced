package graph

import (
	"encoding/base64"
	"mime"
	"strings"

	"github.com/shineum/graph-mailer/internal/email"
)

// saveToSentItemsHeader lets a message opt out of the sender's Sent Items.
const saveToSentItemsHeader = "X-Save-To-Sent-Items"

const fileAttachmentType = "#microsoft.graph.fileAttachment"

// sendMailRequest is the top-level request body for the Graph API sendMail endpoint.
type sendMailRequest struct {
	Message         sendMailMessage `json:"message"`
	SaveToSentItems bool            `json:"saveToSentItems"`
}

// sendMailMessage represents the message portion of a sendMail request.
// Recipient and attachment lists are always encoded as arrays.
type sendMailMessage struct {
	Subject       string           `json:"subject"`
	ToRecipients  []recipient      `json:"toRecipients"`
	CcRecipients  []recipient      `json:"ccRecipients"`
	BccRecipients []recipient      `json:"bccRecipients"`
	Body          messageBody      `json:"body"`
	Attachments   []fileAttachment `json:"attachments"`
}

// messageBody encodes as {} when the message has no body.
type messageBody struct {
	ContentType string `json:"contentType,omitempty"`
	Content     string `json:"content,omitempty"`
}

type recipient struct {
	EmailAddress emailAddress `json:"emailAddress"`
}

type emailAddress struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

type fileAttachment struct {
	ODataType    string `json:"@odata.type"`
	ContentType  string `json:"contentType"`
	ContentBytes string `json:"contentBytes"`
	Name         string `json:"name"`
}

// graphErrorResponse represents an error response from the Graph API.
type graphErrorResponse struct {
	Error graphError `json:"error"`
}

type graphError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// buildSendMailRequest converts a message and its envelope into a sendMail
// request body. A non-empty envelope recipient list replaces To and clears
// Cc and Bcc.
func buildSendMailRequest(msg *email.Email, env *email.Envelope) sendMailRequest {
	to, cc, bcc := msg.To, msg.Cc, msg.Bcc
	if len(env.Recipients) > 0 {
		to, cc, bcc = env.Recipients, nil, nil
	}

	return sendMailRequest{
		Message: sendMailMessage{
			Subject:       msg.Subject,
			ToRecipients:  buildRecipients(to),
			CcRecipients:  buildRecipients(cc),
			BccRecipients: buildRecipients(bcc),
			Body:          buildBody(msg),
			Attachments:   buildAttachments(msg.Attachments),
		},
		SaveToSentItems: saveToSentItems(msg),
	}
}

func buildRecipients(addrs []email.Address) []recipient {
	recipients := make([]recipient, 0, len(addrs))
	for _, addr := range addrs {
		recipients = append(recipients, recipient{
			EmailAddress: emailAddress{Address: addr.Address, Name: addr.Name},
		})
	}
	return recipients
}

// buildBody prefers the HTML body over the text body.
func buildBody(msg *email.Email) messageBody {
	switch {
	case msg.HTMLBody != "":
		return messageBody{ContentType: "html", Content: msg.HTMLBody}
	case msg.TextBody != "":
		return messageBody{ContentType: "text", Content: msg.TextBody}
	default:
		return messageBody{}
	}
}

func buildAttachments(atts []email.Attachment) []fileAttachment {
	result := make([]fileAttachment, 0, len(atts))
	for _, att := range atts {
		header := att.Header()

		contentType := header.Get("Content-Type")
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
			contentType = mediaType
		}

		var name string
		if _, params, err := mime.ParseMediaType(header.Get("Content-Disposition")); err == nil {
			name = params["filename"]
		}

		result = append(result, fileAttachment{
			ODataType:    fileAttachmentType,
			ContentType:  contentType,
			ContentBytes: base64.StdEncoding.EncodeToString(att.Content),
			Name:         name,
		})
	}
	return result
}

// saveToSentItems is true unless the opt-out header says "false".
func saveToSentItems(msg *email.Email) bool {
	v, ok := msg.Header(saveToSentItemsHeader)
	if !ok {
		return true
	}
	return !strings.EqualFold(v, "false")
}
