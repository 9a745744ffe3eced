package graph

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrMissingCredentials is returned when a tenant id, client id or client
// secret is empty.
var ErrMissingCredentials = errors.New("graph: tenant id, client id and client secret are required")

// Credentials identifies the Azure AD application that sends mail.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// String returns the DSN form of the credentials with the secret redacted.
func (c Credentials) String() string {
	return fmt.Sprintf("%s://%s:{SECRET}@%s", Scheme, c.ClientID, c.TenantID)
}

// GoString keeps the secret out of %#v output.
func (c Credentials) GoString() string {
	return c.String()
}

// LogValue keeps the secret out of structured logs.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("tenant_id", c.TenantID),
		slog.String("client_id", c.ClientID),
	)
}

// Validate reports whether all three fields are set.
func (c Credentials) Validate() error {
	if c.TenantID == "" || c.ClientID == "" || c.ClientSecret == "" {
		return ErrMissingCredentials
	}
	return nil
}
