// Package bootstrap builds the pieces both binaries share from config.
package bootstrap

import (
	"io"
	"log/slog"

	"github.io/infrasutra/tempinbox/internal/config"
	"github.io/infrasutra/tempinbox/internal/provider"
	"github.io/infrasutra/tempinbox/internal/provider/mailtm"
	"github.io/infrasutra/tempinbox/internal/provider/onesecmail"
	"github.io/infrasutra/tempinbox/internal/session"
)

// Logger returns a text logger at the configured level.
func Logger(cfg config.Config, w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
}

// Registry registers both adapters. Mail.tm comes first so that it is the
// fallback target of 1secmail.
func Registry(cfg config.Config, logger *slog.Logger) *provider.Registry {
	registry := provider.NewRegistry()
	registry.Register(mailtm.New(mailtm.Config{
		BaseURL: cfg.MailTm.BaseURL,
		Timeout: cfg.MailTm.Timeout,
		Logger:  logger,
	}), "Mail.tm")
	registry.Register(onesecmail.New(onesecmail.Config{
		BaseURL: cfg.OneSecMail.BaseURL,
		Timeout: cfg.OneSecMail.Timeout,
		Retries: cfg.OneSecMail.Retries,
		Logger:  logger,
	}), "1secmail")
	return registry
}

// Manager wires a session manager over the configured providers.
func Manager(cfg config.Config, logger *slog.Logger) *session.Manager {
	return session.NewManager(session.Config{
		Registry:        Registry(cfg, logger),
		DefaultProvider: cfg.DefaultProvider,
		PollInterval:    cfg.PollInterval,
		Logger:          logger,
	})
}
