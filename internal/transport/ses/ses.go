// Package ses implements a Transport that sends emails via AWS SES v2.
package ses

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/shineum/graph-mailer/internal/email"
	"github.com/shineum/graph-mailer/internal/transport"
)

// Scheme is the DSN scheme handled by this transport.
const Scheme = "ses"

// DefaultRegion selects the region from the SDK's default chain.
const DefaultRegion = "default"

// ErrSendFailed wraps any error returned by the SES API.
var ErrSendFailed = errors.New("ses: failed to send email")

// Config holds the configuration for creating a Transport.
// AccessKeyID and SecretAccessKey are optional; when either is empty the
// SDK's default credential chain is used.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
// Used for testing with mock implementations.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Transport sends emails via the AWS SES v2 API. Each Send is a single
// API call.
type Transport struct {
	cfg    Config
	client SendEmailAPI
	logger *slog.Logger
}

var _ transport.Transport = (*Transport)(nil)

// New creates a Transport, loading AWS configuration for cfg.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Transport, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" && cfg.Region != DefaultRegion {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithClient(cfg, sesv2.NewFromConfig(awsCfg), logger), nil
}

// NewWithClient creates a Transport with a custom client, used for testing.
func NewWithClient(cfg Config, client SendEmailAPI, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transport{
		cfg:    cfg,
		client: client,
		logger: logger,
	}
}

// String returns the DSN form of the transport with the secret redacted.
func (t *Transport) String() string {
	region := t.cfg.Region
	if region == "" {
		region = DefaultRegion
	}
	if t.cfg.AccessKeyID == "" {
		return fmt.Sprintf("%s://%s", Scheme, region)
	}
	return fmt.Sprintf("%s://%s:{SECRET}@%s", Scheme, t.cfg.AccessKeyID, region)
}

// Send delivers an email message via AWS SES v2.
// For emails with attachments, it builds a raw MIME message.
// For simple emails, it uses the SES simple email format.
func (t *Transport) Send(ctx context.Context, msg *email.Email, env *email.Envelope) (*transport.SentMessage, error) {
	if env == nil {
		env = email.NewEnvelope(msg)
	}
	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("ses: %w", err)
	}

	var input *sesv2.SendEmailInput

	if len(msg.Attachments) > 0 {
		raw, err := buildRawMessage(env, msg)
		if err != nil {
			return nil, fmt.Errorf("failed to build raw message: %w", err)
		}
		input = &sesv2.SendEmailInput{
			FromEmailAddress: aws.String(env.Sender.String()),
			Destination:      buildDestination(env, msg),
			Content: &types.EmailContent{
				Raw: &types.RawMessage{
					Data: raw,
				},
			},
		}
	} else {
		input = buildSimpleInput(env, msg)
	}

	out, err := t.client.SendEmail(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	sent := transport.NewSentMessage(msg, env)
	if out != nil && aws.ToString(out.MessageId) != "" {
		sent.MessageID = aws.ToString(out.MessageId)
	}

	t.logger.Info("message accepted by SES",
		"sender", env.Sender.Address,
		"message_id", sent.MessageID,
	)

	return sent, nil
}

// buildDestination applies the envelope override: a non-empty recipient
// list replaces To and leaves Cc and Bcc empty.
func buildDestination(env *email.Envelope, msg *email.Email) *types.Destination {
	if len(env.Recipients) > 0 {
		return &types.Destination{ToAddresses: addressStrings(env.Recipients)}
	}
	return &types.Destination{
		ToAddresses:  addressStrings(msg.To),
		CcAddresses:  addressStrings(msg.Cc),
		BccAddresses: addressStrings(msg.Bcc),
	}
}

// buildSimpleInput creates a SES SendEmailInput for emails without attachments.
func buildSimpleInput(env *email.Envelope, msg *email.Email) *sesv2.SendEmailInput {
	body := &types.Body{}

	if msg.HTMLBody != "" {
		body.Html = &types.Content{
			Data:    aws.String(msg.HTMLBody),
			Charset: aws.String("UTF-8"),
		}
	}
	if msg.TextBody != "" {
		body.Text = &types.Content{
			Data:    aws.String(msg.TextBody),
			Charset: aws.String("UTF-8"),
		}
	}

	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(env.Sender.String()),
		Destination:      buildDestination(env, msg),
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(msg.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: body,
			},
		},
	}
}

// buildRawMessage constructs a raw MIME message for emails with attachments.
// Bcc recipients only travel in the SES destination, never in the headers.
func buildRawMessage(env *email.Envelope, msg *email.Email) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "From: %s\r\n", joinAddresses(msg.From, env.Sender))
	if len(msg.To) > 0 {
		fmt.Fprintf(&buf, "To: %s\r\n", joinAddresses(msg.To))
	}
	if len(msg.Cc) > 0 {
		fmt.Fprintf(&buf, "Cc: %s\r\n", joinAddresses(msg.Cc))
	}
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", msg.Subject))
	if msg.MessageID != "" {
		fmt.Fprintf(&buf, "Message-ID: %s\r\n", msg.MessageID)
	}
	fmt.Fprintf(&buf, "MIME-Version: 1.0\r\n")

	writer := multipart.NewWriter(&buf)
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", writer.Boundary())

	bodyHeader := make(textproto.MIMEHeader)
	switch {
	case msg.HTMLBody != "":
		bodyHeader.Set("Content-Type", "text/html; charset=UTF-8")
		if err := writePart(writer, bodyHeader, []byte(msg.HTMLBody)); err != nil {
			return nil, fmt.Errorf("failed to create body part: %w", err)
		}
	case msg.TextBody != "":
		bodyHeader.Set("Content-Type", "text/plain; charset=UTF-8")
		if err := writePart(writer, bodyHeader, []byte(msg.TextBody)); err != nil {
			return nil, fmt.Errorf("failed to create body part: %w", err)
		}
	}

	for _, att := range msg.Attachments {
		attHeader := att.Header()
		attHeader.Set("Content-Transfer-Encoding", "base64")
		if err := writePart(writer, attHeader, []byte(encodeBase64WithLineBreaks(att.Content))); err != nil {
			return nil, fmt.Errorf("failed to create attachment part: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writePart(w *multipart.Writer, header textproto.MIMEHeader, content []byte) error {
	part, err := w.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = part.Write(content)
	return err
}

// joinAddresses renders addrs as a header value, or the fallback addresses
// when addrs is empty.
func joinAddresses(addrs []email.Address, fallback ...email.Address) string {
	if len(addrs) == 0 {
		addrs = fallback
	}
	return strings.Join(addressStrings(addrs), ", ")
}

func addressStrings(addrs []email.Address) []string {
	if len(addrs) == 0 {
		return nil
	}
	result := make([]string, 0, len(addrs))
	for _, a := range addrs {
		result = append(result, a.String())
	}
	return result
}

// encodeBase64WithLineBreaks encodes bytes to base64 with 76-character line breaks per RFC 2045.
func encodeBase64WithLineBreaks(data []byte) string {
	encoded := base64.StdEncoding.EncodeToString(data)
	var lines []string
	for i := 0; i < len(encoded); i += 76 {
		end := min(i+76, len(encoded))
		lines = append(lines, encoded[i:end])
	}
	return strings.Join(lines, "\r\n")
}
