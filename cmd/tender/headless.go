package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/five82/tender/internal/config"
	"github.com/five82/tender/internal/daemon"
	"github.com/five82/tender/internal/logging"
)

// headless prepares the commands that run without the TUI: they log to
// stderr as well as the log file.
func headless(cmd *cobra.Command) (*daemon.Client, *logging.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logging.Setup(logging.Options{
		Dir:     cfg.LogDir,
		Level:   logging.ParseLevel(cfg.LogLevel),
		Console: cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("set up logging: %w", err)
	}
	slog.SetDefault(log.Logger)

	client, err := daemon.NewClient(cfg.APIBind)
	if err != nil {
		_ = log.Close()
		return nil, nil, fmt.Errorf("init daemon client: %w", err)
	}
	return client, log, nil
}
