// Package graph implements a Transport that sends emails via the Microsoft
// Graph API using OAuth2 client credentials authentication.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shineum/graph-mailer/internal/email"
	"github.com/shineum/graph-mailer/internal/transport"
)

// Scheme is the DSN scheme handled by this transport.
const Scheme = "microsoft-graph-api"

const (
	defaultGraphEndpoint = "https://graph.microsoft.com/v1.0"
	tokenURLFormat       = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
	defaultTimeout       = 30 * time.Second
)

// Option configures a Transport.
type Option func(*options)

type options struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	tokenURL   string
}

// WithHTTPClient sets the client used for both the token and sendMail
// requests. The client's own timeout is the only one applied.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithGraphEndpoint overrides the Graph API base URL (".../v1.0").
func WithGraphEndpoint(endpoint string) Option {
	return func(o *options) { o.endpoint = strings.TrimRight(endpoint, "/") }
}

// WithTokenURL overrides the token endpoint URL.
func WithTokenURL(tokenURL string) Option {
	return func(o *options) { o.tokenURL = tokenURL }
}

// Transport sends messages through the Graph sendMail endpoint of the
// envelope sender's mailbox.
type Transport struct {
	credentials Credentials
	endpoint    string
	httpClient  *http.Client
	tokens      *TokenProvider
	logger      *slog.Logger
}

var _ transport.Transport = (*Transport)(nil)

// New creates a Graph transport for the given application credentials.
func New(creds Credentials, opts ...Option) *Transport {
	o := options{
		endpoint: defaultGraphEndpoint,
		tokenURL: fmt.Sprintf(tokenURLFormat, url.PathEscape(creds.TenantID)),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	return &Transport{
		credentials: creds,
		endpoint:    o.endpoint,
		httpClient:  o.httpClient,
		tokens:      NewTokenProvider(creds, o.tokenURL, o.httpClient, o.logger),
		logger:      o.logger,
	}
}

// String returns microsoft-graph-api://{clientId}:{SECRET}@{tenantId}.
func (t *Transport) String() string {
	return t.credentials.String()
}

// Tokens exposes the token provider, e.g. to Reset it.
func (t *Transport) Tokens() *TokenProvider {
	return t.tokens
}

// Send delivers msg with a single sendMail request. A nil env is derived
// from the message headers. The token is fetched on the first call only;
// a token failure aborts before the sendMail endpoint is contacted.
// Any status other than 202 Accepted is returned as ErrRejectedBySender.
func (t *Transport) Send(ctx context.Context, msg *email.Email, env *email.Envelope) (*transport.SentMessage, error) {
	if env == nil {
		env = email.NewEnvelope(msg)
	}
	if err := env.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEnvelope, err)
	}

	token, err := t.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(buildSendMailRequest(msg, env))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	endpoint := t.sendMailURL(env.Sender.Address)
	t.logger.Debug("sending message via Graph API",
		"sender", env.Sender.Address,
		"attachments", len(msg.Attachments),
	)

	resp, err := t.post(ctx, endpoint, token, body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusAccepted {
		return nil, rejected(resp)
	}

	sent := transport.NewSentMessage(msg, env)
	sent.Response = resp

	t.logger.Info("message accepted by Graph API",
		"sender", env.Sender.Address,
		"message_id", sent.MessageID,
	)

	return sent, nil
}

// sendMailURL returns the sendMail endpoint of the sender's mailbox.
func (t *Transport) sendMailURL(sender string) string {
	return t.endpoint + "/users/" + url.PathEscape(sender) + "/sendMail"
}

// post performs the sendMail round trip and reads the whole response.
func (t *Transport) post(ctx context.Context, endpoint string, token AccessToken, body []byte) (*transport.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+string(token))

	httpResp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, &SendError{Kind: ErrTransportUnreachable, Err: err}
	}
	defer httpResp.Body.Close()

	resp := &transport.Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
	}

	resp.Body, err = io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &SendError{Kind: ErrTransportUnreachable, Response: resp, Err: err}
	}

	return resp, nil
}

// rejected builds the error for a non-202 response, lifting the Graph
// error message out of the body when there is one.
func rejected(resp *transport.Response) *SendError {
	err := &SendError{Kind: ErrRejectedBySender, Response: resp}

	var graphErrResp graphErrorResponse
	if jsonErr := json.Unmarshal(resp.Body, &graphErrResp); jsonErr == nil && graphErrResp.Error.Message != "" {
		err.detail = graphErrResp.Error.Message
		if graphErrResp.Error.Code != "" {
			err.detail = graphErrResp.Error.Code + ": " + err.detail
		}
	}

	return err
}
