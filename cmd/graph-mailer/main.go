// Package main is the entry point for the graph-mailer command, which sends
// one RFC 5322 message through the transport selected by the mailer DSN.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/shineum/graph-mailer/internal/config"
	"github.com/shineum/graph-mailer/internal/email"
	"github.com/shineum/graph-mailer/internal/parser"
	"github.com/shineum/graph-mailer/internal/transport/factory"
)

// addressList collects repeated -to flags.
type addressList []string

func (l *addressList) String() string { return strings.Join(*l, ", ") }

func (l *addressList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	from := flag.String("from", "", "envelope sender, overrides the message Sender/From headers")
	var to addressList
	flag.Var(&to, "to", "envelope recipient, replaces To/Cc/Bcc (repeatable)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] [message.eml]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg, *from, to, flag.Arg(0)); err != nil {
		slog.Error("send failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// run reads the message, builds the transport and sends once.
func run(ctx context.Context, cfg *config.Config, from string, to []string, path string) error {
	raw, err := readInput(path)
	if err != nil {
		return err
	}

	msg, err := parser.Parse(raw)
	if err != nil {
		return err
	}

	env, err := buildEnvelope(msg, from, to)
	if err != nil {
		return err
	}

	t, err := factory.New(ctx, cfg.ResolveDSN(), factory.Options{
		HTTPClient: &http.Client{Timeout: cfg.HTTP.Timeout},
		Logger:     slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}

	slog.Info("sending message",
		"transport", t.String(),
		"sender", env.Sender.Address,
		"recipients", len(env.AllRecipients(msg)),
		"attachments", len(msg.Attachments),
	)

	sent, err := t.Send(ctx, msg, env)
	if err != nil {
		return err
	}

	slog.Info("message sent", "transport", t.String(), "message_id", sent.MessageID)
	return nil
}

// readInput reads the message from path, or from stdin when path is empty
// or "-".
func readInput(path string) ([]byte, error) {
	if path == "" || path == "-" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read message from stdin: %w", err)
		}
		return raw, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read message file: %w", err)
	}
	return raw, nil
}

// buildEnvelope derives the envelope from msg and applies the command-line
// overrides.
func buildEnvelope(msg *email.Email, from string, to []string) (*email.Envelope, error) {
	env := email.NewEnvelope(msg)

	if from != "" {
		sender, err := email.ParseAddress(from)
		if err != nil {
			return nil, fmt.Errorf("invalid -from address %q: %w", from, err)
		}
		env.Sender = sender
	}

	for _, raw := range to {
		addr, err := email.ParseAddress(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid -to address %q: %w", raw, err)
		}
		env.Recipients = append(env.Recipients, addr)
	}

	return env, nil
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
