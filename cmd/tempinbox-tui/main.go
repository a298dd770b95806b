package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.io/infrasutra/tempinbox/internal/auth"
	"github.io/infrasutra/tempinbox/internal/bootstrap"
	"github.io/infrasutra/tempinbox/internal/config"
	"github.io/infrasutra/tempinbox/internal/tui"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// The terminal belongs to the UI; logs go to a file.
	logFile, err := os.OpenFile(cfg.TUI.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logger := bootstrap.Logger(cfg, logFile)
	logger.Info("tui starting", "provider", cfg.DefaultProvider, "auto_refresh", cfg.TUI.AutoRefresh)

	manager := bootstrap.Manager(cfg, logger)
	model := tui.New(tui.Config{
		Manager:        manager,
		Session:        manager.New(auth.NewSessionID()),
		AutoRefresh:    cfg.TUI.AutoRefresh,
		RequestTimeout: max(cfg.MailTm.Timeout, cfg.OneSecMail.Timeout) * 2,
		Logger:         logger,
	})

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		logger.Error("tui stopped", "error", err)
		fmt.Fprintf(os.Stderr, "tempinbox: %v\n", err)
		os.Exit(1)
	}
	logger.Info("tui stopped")
}
