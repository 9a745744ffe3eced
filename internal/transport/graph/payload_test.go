package graph

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shineum/graph-mailer/internal/email"
)

var testEnvelope = &email.Envelope{Sender: email.Address{Address: "sender@example.com"}}

// toJSON marshals req and decodes it into a generic map so tests can check
// which keys are present on the wire.
func toJSON(t *testing.T, req sendMailRequest) map[string]any {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	return decoded
}

func TestBuildSendMailRequest_BasicEmail(t *testing.T) {
	t.Parallel()

	msg := &email.Email{
		To:       []email.Address{{Address: "alice@example.com"}, {Address: "bob@example.com"}},
		Subject:  "Test Subject",
		TextBody: "Hello, World!",
	}

	req := buildSendMailRequest(msg, testEnvelope)

	assert.Equal(t, "Test Subject", req.Message.Subject)
	assert.Equal(t, messageBody{ContentType: "text", Content: "Hello, World!"}, req.Message.Body)
	require.Len(t, req.Message.ToRecipients, 2)
	assert.Equal(t, "alice@example.com", req.Message.ToRecipients[0].EmailAddress.Address)
	assert.Equal(t, "bob@example.com", req.Message.ToRecipients[1].EmailAddress.Address)
	assert.Empty(t, req.Message.CcRecipients)
	assert.Empty(t, req.Message.BccRecipients)
	assert.Empty(t, req.Message.Attachments)
	assert.True(t, req.SaveToSentItems)
}

func TestBuildSendMailRequest_Body(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		html     string
		wantBody map[string]any
	}{
		{
			name:     "html preferred over text",
			text:     "Plain text",
			html:     "<p>HTML content</p>",
			wantBody: map[string]any{"contentType": "html", "content": "<p>HTML content</p>"},
		},
		{
			name:     "html only",
			html:     "<p>only</p>",
			wantBody: map[string]any{"contentType": "html", "content": "<p>only</p>"},
		},
		{
			name:     "text only",
			text:     "just text",
			wantBody: map[string]any{"contentType": "text", "content": "just text"},
		},
		{
			name:     "no body",
			wantBody: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			msg := &email.Email{Subject: "s", TextBody: tt.text, HTMLBody: tt.html}
			decoded := toJSON(t, buildSendMailRequest(msg, testEnvelope))

			message := decoded["message"].(map[string]any)
			assert.Equal(t, tt.wantBody, message["body"])
		})
	}
}

func TestBuildSendMailRequest_Recipients(t *testing.T) {
	t.Parallel()

	msg := &email.Email{
		To:  []email.Address{{Address: "to@example.com", Name: "To Person"}},
		Cc:  []email.Address{{Address: "carol@example.com"}, {Address: "dave@example.com"}},
		Bcc: []email.Address{{Address: "hidden@example.com"}},
	}

	req := buildSendMailRequest(msg, testEnvelope)

	assert.Equal(t, []recipient{{EmailAddress: emailAddress{Address: "to@example.com", Name: "To Person"}}}, req.Message.ToRecipients)
	assert.Equal(t, []recipient{
		{EmailAddress: emailAddress{Address: "carol@example.com"}},
		{EmailAddress: emailAddress{Address: "dave@example.com"}},
	}, req.Message.CcRecipients)
	assert.Equal(t, []recipient{{EmailAddress: emailAddress{Address: "hidden@example.com"}}}, req.Message.BccRecipients)
}

func TestBuildSendMailRequest_EnvelopeOverride(t *testing.T) {
	t.Parallel()

	msg := &email.Email{
		To:  []email.Address{{Address: "to@example.com"}},
		Cc:  []email.Address{{Address: "cc@example.com"}},
		Bcc: []email.Address{{Address: "bcc@example.com"}},
	}
	env := &email.Envelope{
		Sender:     email.Address{Address: "sender@example.com"},
		Recipients: []email.Address{{Address: "a@example.com"}, {Address: "b@example.com", Name: "B"}},
	}

	decoded := toJSON(t, buildSendMailRequest(msg, env))
	message := decoded["message"].(map[string]any)

	assert.Equal(t, []any{
		map[string]any{"emailAddress": map[string]any{"address": "a@example.com"}},
		map[string]any{"emailAddress": map[string]any{"address": "b@example.com", "name": "B"}},
	}, message["toRecipients"])
	assert.Equal(t, []any{}, message["ccRecipients"])
	assert.Equal(t, []any{}, message["bccRecipients"])
}

func TestBuildSendMailRequest_EmptyListsEncodeAsArrays(t *testing.T) {
	t.Parallel()

	decoded := toJSON(t, buildSendMailRequest(&email.Email{}, testEnvelope))
	message := decoded["message"].(map[string]any)

	for _, key := range []string{"toRecipients", "ccRecipients", "bccRecipients", "attachments"} {
		assert.Equal(t, []any{}, message[key], key)
	}
}

func TestBuildSendMailRequest_AddressName(t *testing.T) {
	t.Parallel()

	msg := &email.Email{
		To: []email.Address{
			{Address: "bare@example.com"},
			{Address: "named@example.com", Name: "Named Person"},
		},
	}

	decoded := toJSON(t, buildSendMailRequest(msg, testEnvelope))
	to := decoded["message"].(map[string]any)["toRecipients"].([]any)

	bare := to[0].(map[string]any)["emailAddress"].(map[string]any)
	_, hasName := bare["name"]
	assert.False(t, hasName, "empty name must be omitted")
	assert.Equal(t, "bare@example.com", bare["address"])

	named := to[1].(map[string]any)["emailAddress"].(map[string]any)
	assert.Equal(t, map[string]any{"address": "named@example.com", "name": "Named Person"}, named)
}

func TestBuildSendMailRequest_Attachments(t *testing.T) {
	t.Parallel()

	msg := &email.Email{
		Attachments: []email.Attachment{
			{Filename: "report.pdf", ContentType: "application/pdf", Content: []byte("pdf-content")},
			{Filename: "logo.png", ContentType: "image/png", Inline: true, ContentID: "logo", Content: []byte{0x89, 0x50}},
			{Filename: "notes.txt", ContentType: "text/plain; charset=utf-8", Content: []byte("hi")},
		},
	}

	req := buildSendMailRequest(msg, testEnvelope)

	require.Len(t, req.Message.Attachments, 3)
	assert.Equal(t, fileAttachment{
		ODataType:    "#microsoft.graph.fileAttachment",
		ContentType:  "application/pdf",
		ContentBytes: base64.StdEncoding.EncodeToString([]byte("pdf-content")),
		Name:         "report.pdf",
	}, req.Message.Attachments[0])
	assert.Equal(t, "logo.png", req.Message.Attachments[1].Name)
	assert.Equal(t, "image/png", req.Message.Attachments[1].ContentType)
	assert.Equal(t, "notes.txt", req.Message.Attachments[2].Name)
	assert.Equal(t, "text/plain", req.Message.Attachments[2].ContentType)

	decoded := toJSON(t, req)
	first := decoded["message"].(map[string]any)["attachments"].([]any)[0].(map[string]any)
	assert.Equal(t, "#microsoft.graph.fileAttachment", first["@odata.type"])
}

func TestBuildSendMailRequest_SaveToSentItems(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		headers map[string][]string
		want    bool
	}{
		{name: "no header", headers: nil, want: true},
		{name: "false", headers: map[string][]string{"X-Save-To-Sent-Items": {"false"}}, want: false},
		{name: "False", headers: map[string][]string{"X-Save-To-Sent-Items": {"False"}}, want: false},
		{name: "FALSE", headers: map[string][]string{"X-Save-To-Sent-Items": {"FALSE"}}, want: false},
		{name: "lower-case header name", headers: map[string][]string{"x-save-to-sent-items": {"false"}}, want: false},
		{name: "true", headers: map[string][]string{"X-Save-To-Sent-Items": {"true"}}, want: true},
		{name: "no", headers: map[string][]string{"X-Save-To-Sent-Items": {"no"}}, want: true},
		{name: "zero", headers: map[string][]string{"X-Save-To-Sent-Items": {"0"}}, want: true},
		{name: "empty", headers: map[string][]string{"X-Save-To-Sent-Items": {""}}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := buildSendMailRequest(&email.Email{Headers: tt.headers}, testEnvelope)
			assert.Equal(t, tt.want, req.SaveToSentItems)

			decoded := toJSON(t, req)
			assert.Equal(t, tt.want, decoded["saveToSentItems"])
		})
	}
}
