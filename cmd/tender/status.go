package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/five82/tender/internal/daemon"
	"github.com/five82/tender/internal/tray"
)

type statusSource interface {
	Status(ctx context.Context) (daemon.Status, error)
	Paused(ctx context.Context) (bool, error)
	Running(ctx context.Context) (bool, error)
	SyncErrors(ctx context.Context) ([]daemon.SyncIssue, error)
	FatalErrors(ctx context.Context) ([]daemon.ErrorRecord, error)
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the daemon's sync status once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, log, err := headless(cmd)
			if err != nil {
				return err
			}
			defer log.Close()
			return printStatus(cmd.Context(), cmd.OutOrStdout(), client)
		},
	}
}

// printStatus reads the same values as the status loop and prints them. Fatal
// errors are reported but left for the UI to handle.
func printStatus(ctx context.Context, w io.Writer, src statusSource) error {
	var snap tray.Snapshot
	var err error
	if snap.Status, err = src.Status(ctx); err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	if snap.Paused, err = src.Paused(ctx); err != nil {
		return fmt.Errorf("read paused: %w", err)
	}
	if snap.Running, err = src.Running(ctx); err != nil {
		return fmt.Errorf("read running: %w", err)
	}
	issues, err := src.SyncErrors(ctx)
	if err != nil {
		return fmt.Errorf("read sync errors: %w", err)
	}
	snap.SyncErrors = len(issues)
	fatal, err := src.FatalErrors(ctx)
	if err != nil {
		return fmt.Errorf("read fatal errors: %w", err)
	}

	icon := tray.IconFor(snap)
	fmt.Fprintf(w, "%s %s  %s\n", icon.Glyph(), icon, snap.Status)
	fmt.Fprintf(w, "paused: %s  running: %s\n", yesNo(snap.Paused), yesNo(snap.Running))
	fmt.Fprintf(w, "sync issues: %d\n", len(issues))
	for _, issue := range issues {
		fmt.Fprintf(w, "  %s: %s\n", issue.Title, issue.LocalPath)
	}
	fmt.Fprintf(w, "fatal errors: %d\n", len(fatal))
	for _, rec := range fatal {
		fmt.Fprintf(w, "  %s: %s\n", rec.Type, rec.Title)
	}
	return nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
