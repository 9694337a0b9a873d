package app

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/five82/tender/internal/daemon"
)

const defaultUpdateInterval = 30 * time.Minute

// updateSource is the part of the proxy the update checker needs.
type updateSource interface {
	Conf(ctx context.Context, namespace, key string) (any, error)
	State(ctx context.Context, namespace, key string) (string, error)
	SetState(ctx context.Context, namespace, key string, value any) error
	CheckForUpdates(ctx context.Context) (daemon.UpdateCheck, error)
}

// UpdateNotifier is told about new releases.
type UpdateNotifier interface {
	UpdateAvailable(daemon.UpdateCheck)
}

// runUpdateChecker asks the daemon for new releases at a fixed cadence until
// ctx is done. The first check happens after one interval.
func runUpdateChecker(ctx context.Context, src updateSource, notify UpdateNotifier, interval time.Duration, logger *slog.Logger) error {
	if interval <= 0 {
		interval = defaultUpdateInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if _, err := checkForUpdate(ctx, src, notify, time.Now()); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("update check failed", "error", err)
		}
	}
}

// checkForUpdate runs one automatic check. It does nothing when automatic
// notifications are off (interval 0) or the last notification is more
// recent than the interval. The notification time is only recorded when an
// update was announced.
func checkForUpdate(ctx context.Context, src updateSource, notify UpdateNotifier, now time.Time) (bool, error) {
	raw, err := src.Conf(ctx, "app", "update_notification_interval")
	if err != nil {
		return false, fmt.Errorf("read update interval: %w", err)
	}
	interval := seconds(raw)
	if interval <= 0 {
		return false, nil
	}

	rawLast, err := src.State(ctx, "app", "update_notification_last")
	if err != nil {
		return false, fmt.Errorf("read last update notification: %w", err)
	}
	last := seconds(rawLast)
	if float64(now.Unix())-last < interval {
		return false, nil
	}

	check, err := src.CheckForUpdates(ctx)
	if err != nil {
		return false, fmt.Errorf("check for updates: %w", err)
	}
	if !check.UpdateAvailable {
		return false, nil
	}
	if err := src.SetState(ctx, "app", "update_notification_last", float64(now.Unix())); err != nil {
		return false, fmt.Errorf("record update notification: %w", err)
	}
	notify.UpdateAvailable(check)
	return true, nil
}

// seconds reads a number the daemon may send as JSON number or string.
func seconds(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
