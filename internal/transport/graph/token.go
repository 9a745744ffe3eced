package graph

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// graphScope is the only scope requested; it grants the application
// permissions configured for the app registration.
const graphScope = "https://graph.microsoft.com/.default"

// AccessToken is an opaque bearer credential.
type AccessToken string

// TokenProvider fetches a client-credentials access token once and keeps it
// for its own lifetime. The token is never refreshed on expiry; a fresh one
// is only requested after Reset.
type TokenProvider struct {
	mu         sync.Mutex
	token      *AccessToken
	config     clientcredentials.Config
	httpClient *http.Client
	logger     *slog.Logger
}

// NewTokenProvider creates a provider posting to tokenURL with the given
// credentials.
func NewTokenProvider(creds Credentials, tokenURL string, httpClient *http.Client, logger *slog.Logger) *TokenProvider {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenProvider{
		config: clientcredentials.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			TokenURL:     tokenURL,
			Scopes:       []string{graphScope},
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		httpClient: httpClient,
		logger:     logger,
	}
}

// Token returns the cached token, requesting one on first use.
// Concurrent callers share a single request.
func (p *TokenProvider) Token(ctx context.Context) (AccessToken, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != nil {
		return *p.token, nil
	}

	p.logger.Debug("requesting Graph API access token", "token_url", p.config.TokenURL)

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := p.config.Token(ctx)
	if err != nil {
		return "", &AuthError{Err: err}
	}

	token := AccessToken(tok.AccessToken)
	p.token = &token

	return token, nil
}

// Cached reports whether a token has been fetched.
func (p *TokenProvider) Cached() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token != nil
}

// Reset drops the cached token so the next Token call fetches a new one.
func (p *TokenProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = nil
}
