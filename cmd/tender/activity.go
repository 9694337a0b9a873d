package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/tender/internal/activity"
	"github.com/five82/tender/internal/rows"
)

func newActivityCmd() *cobra.Command {
	var (
		interval time.Duration
		once     bool
	)
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "Print sync history as it arrives",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, log, err := headless(cmd)
			if err != nil {
				return err
			}
			defer log.Close()
			return watchActivity(cmd.Context(), cmd.OutOrStdout(), client, activity.Options{
				Interval: interval,
				Logger:   log.Logger,
			}, once)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", activity.DefaultInterval, "history poll interval")
	cmd.Flags().BoolVar(&once, "once", false, "print the current history and exit")
	return cmd
}

// watchActivity feeds a fresh store from src and prints every inserted row.
func watchActivity(ctx context.Context, w io.Writer, src activity.HistorySource, opts activity.Options, once bool) error {
	store := rows.NewStore(nil)
	store.Observe(printRows(w))
	rec := activity.New(src, store, opts)

	if once {
		_, err := rec.Cycle(ctx)
		return err
	}
	err := rec.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// printRows prints inserted rows; other notifications are ignored.
func printRows(w io.Writer) rows.Listener {
	return func(n rows.Notification) {
		if n.Kind != rows.KindInsert || n.Row == nil {
			return
		}
		icon, name := n.Row.Filename()
		line := fmt.Sprintf("%s  %-8s %s %s  %s", n.Row.Time(), n.Row.Change(), icon, name, n.Row.Location())
		if age := n.Row.Age(time.Now()); age != "" {
			line += "  (" + age + ")"
		}
		fmt.Fprintln(w, line)
	}
}
