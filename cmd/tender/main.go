package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/five82/tender/internal/app"
	"github.com/five82/tender/internal/version"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "tender: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		prefsPath   string
		pollSeconds int
	)
	root := &cobra.Command{
		Use:           "tender",
		Short:         "Terminal companion for the maestral sync daemon",
		Version:       version.Detailed(),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			opts := app.Options{ConfigPath: configPath, PrefsPath: prefsPath}
			if pollSeconds > 0 {
				opts.PollEvery = pollSeconds
			}
			return app.Run(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringP("config", "c", "", "override config path (optional)")
	root.Flags().StringVar(&prefsPath, "prefs", "", "override preferences path (optional)")
	root.Flags().IntVar(&pollSeconds, "poll", 0, "status refresh interval in seconds while the menu is closed (optional, defaults to 2s)")

	root.AddCommand(newActivityCmd(), newStatusCmd(), newVersionCmd())
	return root
}
