// Package factory builds a Transport from a DSN.
package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/shineum/graph-mailer/internal/dsn"
	"github.com/shineum/graph-mailer/internal/transport"
	"github.com/shineum/graph-mailer/internal/transport/graph"
	"github.com/shineum/graph-mailer/internal/transport/ses"
	"github.com/shineum/graph-mailer/internal/transport/stdout"
)

var (
	// ErrUnsupportedScheme is returned for a DSN scheme no transport handles.
	ErrUnsupportedScheme = errors.New("unsupported transport scheme")

	// ErrIncompleteDSN is returned when a DSN lacks required credentials.
	ErrIncompleteDSN = errors.New("incomplete DSN")
)

// Options carries the collaborators injected into every transport.
type Options struct {
	HTTPClient *http.Client
	Logger     *slog.Logger

	// Stdout is the destination of the stdout transport. Defaults to os.Stdout.
	Stdout io.Writer
}

// SupportedSchemes lists the schemes New accepts.
func SupportedSchemes() []string {
	return []string{graph.Scheme, ses.Scheme, stdout.Scheme, stdout.NullScheme}
}

// New parses raw and builds the matching transport.
func New(ctx context.Context, raw string, opts Options) (transport.Transport, error) {
	d, err := dsn.Parse(raw)
	if err != nil {
		return nil, err
	}
	return FromDSN(ctx, d, opts)
}

// FromDSN builds the transport for an already parsed DSN.
func FromDSN(ctx context.Context, d *dsn.DSN, opts Options) (transport.Transport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch d.Scheme {
	case graph.Scheme:
		creds := graph.Credentials{
			TenantID:     d.Host,
			ClientID:     d.User,
			ClientSecret: d.Password,
		}
		if err := creds.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrIncompleteDSN, err)
		}

		graphOpts := []graph.Option{graph.WithLogger(logger)}
		if opts.HTTPClient != nil {
			graphOpts = append(graphOpts, graph.WithHTTPClient(opts.HTTPClient))
		}
		return graph.New(creds, graphOpts...), nil

	case ses.Scheme:
		t, err := ses.New(ctx, ses.Config{
			Region:          d.Host,
			AccessKeyID:     d.User,
			SecretAccessKey: d.Password,
		}, logger)
		if err != nil {
			return nil, err
		}
		return t, nil

	case stdout.Scheme:
		if opts.Stdout != nil {
			return stdout.NewWithWriter(opts.Stdout), nil
		}
		return stdout.New(), nil

	case stdout.NullScheme:
		return stdout.NewNull(), nil

	default:
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedScheme, d.Scheme, strings.Join(SupportedSchemes(), ", "))
	}
}
