// Package parser reads RFC 5322 messages, including MIME multipart bodies,
// into the email model handed to transports.
package parser

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/shineum/graph-mailer/internal/email"
)

// ErrMissingBoundary is returned for a multipart message without a boundary.
var ErrMissingBoundary = errors.New("multipart message missing boundary")

var headerDecoder = new(mime.WordDecoder)

// Parse parses a raw RFC 5322 message.
func Parse(raw []byte) (*email.Email, error) {
	return ParseReader(bytes.NewReader(raw))
}

// ParseReader parses an RFC 5322 message read from r. Plain and multipart
// bodies are supported; parts it cannot classify are logged and skipped.
func ParseReader(r io.Reader) (*email.Email, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	result := &email.Email{
		Headers:   make(map[string][]string, len(msg.Header)),
		Subject:   decodeHeader(msg.Header.Get("Subject")),
		MessageID: msg.Header.Get("Message-Id"),
		From:      email.ParseAddressList(msg.Header.Get("From")),
		To:        email.ParseAddressList(msg.Header.Get("To")),
		Cc:        email.ParseAddressList(msg.Header.Get("Cc")),
		Bcc:       email.ParseAddressList(msg.Header.Get("Bcc")),
	}
	for key, values := range msg.Header {
		result.Headers[key] = values
	}
	if raw := msg.Header.Get("Sender"); raw != "" {
		if sender, err := email.ParseAddress(raw); err == nil {
			result.Sender = &sender
		} else {
			slog.Warn("ignoring unparseable sender header", "sender", raw, "error", err)
		}
	}

	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		slog.Warn("failed to parse content type, treating as plain text",
			"content_type", contentType,
			"error", err,
		)
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return nil, ErrMissingBoundary
		}
		if err := parseMultipart(msg.Body, boundary, result); err != nil {
			return nil, fmt.Errorf("failed to parse multipart message: %w", err)
		}
		return result, nil
	}

	body, err := decodeContent(msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}
	text := string(toUTF8(body, params["charset"]))
	switch mediaType {
	case "text/html":
		result.HTMLBody = text
	case "text/plain":
		result.TextBody = text
	default:
		slog.Warn("unrecognized top-level content type", "content_type", mediaType)
		result.TextBody = text
	}

	return result, nil
}

// parseMultipart walks a multipart body, descending into nested multiparts.
// The first text/plain and text/html parts become the bodies; anything with
// a disposition or a filename becomes an attachment.
func parseMultipart(body io.Reader, boundary string, result *email.Email) error {
	reader := multipart.NewReader(body, boundary)

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read next part: %w", err)
		}

		partType := part.Header.Get("Content-Type")
		if partType == "" {
			partType = "text/plain"
		}
		mediaType, params, err := mime.ParseMediaType(partType)
		if err != nil {
			slog.Warn("failed to parse part content type, skipping",
				"content_type", partType,
				"error", err,
			)
			continue
		}

		if strings.HasPrefix(mediaType, "multipart/") {
			nested := params["boundary"]
			if nested == "" {
				slog.Warn("nested multipart missing boundary, skipping")
				continue
			}
			if err := parseMultipart(part, nested, result); err != nil {
				slog.Warn("failed to parse nested multipart", "error", err)
			}
			continue
		}

		content, err := decodeContent(part.Header.Get("Content-Transfer-Encoding"), part)
		if err != nil {
			slog.Warn("failed to read part content",
				"content_type", mediaType,
				"error", err,
			)
			continue
		}

		disposition, _, _ := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
		contentID := strings.Trim(part.Header.Get("Content-Id"), "<> ")

		switch {
		case disposition == "attachment" || (disposition == "inline" && !isText(mediaType)):
			result.Attachments = append(result.Attachments, newAttachment(part, mediaType, params, disposition, contentID, content))
		case mediaType == "text/plain" && result.TextBody == "":
			result.TextBody = string(toUTF8(content, params["charset"]))
		case mediaType == "text/html" && result.HTMLBody == "":
			result.HTMLBody = string(toUTF8(content, params["charset"]))
		case part.FileName() != "" || params["name"] != "" || contentID != "":
			result.Attachments = append(result.Attachments, newAttachment(part, mediaType, params, disposition, contentID, content))
		default:
			slog.Warn("unrecognized MIME part, skipping",
				"content_type", mediaType,
				"disposition", disposition,
			)
		}
	}
}

func newAttachment(part *multipart.Part, mediaType string, params map[string]string, disposition, contentID string, content []byte) email.Attachment {
	return email.Attachment{
		Filename:    extractFilename(part, mediaType, params),
		ContentType: mediaType,
		ContentID:   contentID,
		Inline:      disposition == "inline" || (disposition == "" && contentID != ""),
		Content:     content,
	}
}

func isText(mediaType string) bool {
	return mediaType == "text/plain" || mediaType == "text/html"
}

// decodeContent reads r, undoing a base64 or quoted-printable transfer
// encoding. Parts handed out by the multipart reader have already had
// quoted-printable removed, along with the header; other encodings pass
// through.
func decodeContent(encoding string, r io.Reader) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		decoded, err := io.ReadAll(quotedprintable.NewReader(r))
		if err != nil {
			return nil, fmt.Errorf("failed to decode quoted-printable content: %w", err)
		}
		return decoded, nil
	case "base64":
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, err
		}
		return decodeBase64(raw)
	default:
		return io.ReadAll(r)
	}
}

func decodeBase64(raw []byte) ([]byte, error) {
	cleaned := strings.NewReplacer("\r", "", "\n", "", " ", "").Replace(string(raw))
	decoded, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		// unpadded input
		decoded, err = base64.RawStdEncoding.DecodeString(cleaned)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 content: %w", err)
		}
	}
	return decoded, nil
}

// toUTF8 converts a text body from its declared charset. Unknown or
// unsupported charsets leave the content untouched.
func toUTF8(content []byte, charset string) []byte {
	charset = strings.TrimSpace(charset)
	if charset == "" || strings.EqualFold(charset, "utf-8") || strings.EqualFold(charset, "us-ascii") {
		return content
	}

	enc, err := ianaindex.MIME.Encoding(charset)
	if err != nil || enc == nil {
		slog.Warn("unsupported charset, keeping raw bytes", "charset", charset)
		return content
	}

	decoded, err := enc.NewDecoder().Bytes(content)
	if err != nil {
		slog.Warn("failed to decode charset, keeping raw bytes", "charset", charset, "error", err)
		return content
	}
	return decoded
}

// extractFilename prefers the Content-Disposition filename, then the
// Content-Type name parameter, and otherwise derives one from the media
// type so every attachment carries a name.
func extractFilename(part *multipart.Part, mediaType string, params map[string]string) string {
	if fn := part.FileName(); fn != "" {
		return fn
	}
	if name := params["name"]; name != "" {
		return decodeHeader(name)
	}
	if _, subtype, ok := strings.Cut(mediaType, "/"); ok && subtype != "" {
		return "attachment." + subtype
	}
	return "attachment"
}

// decodeHeader expands RFC 2047 encoded words, returning s unchanged when
// it cannot be decoded.
func decodeHeader(s string) string {
	decoded, err := headerDecoder.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}
