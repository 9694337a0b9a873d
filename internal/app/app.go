package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/five82/tender/internal/config"
	"github.com/five82/tender/internal/daemon"
	"github.com/five82/tender/internal/logging"
	"github.com/five82/tender/internal/prefs"
	"github.com/five82/tender/internal/report"
	"github.com/five82/tender/internal/tray"
	"github.com/five82/tender/internal/ui"
)

// ErrAlreadyRunning is returned when another client holds the instance lock
// for the same config name.
var ErrAlreadyRunning = errors.New("another tender instance is running")

const stopTimeout = 10 * time.Second

// Options configure the Tender application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/tender/prefs.toml
	PollEvery  int    // seconds between status polls while the menu is closed; zero uses default
}

// Run boots the Tender TUI until the user quits, the context is cancelled
// or the daemon becomes unreachable.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logging.Setup(logging.Options{
		Dir:   cfg.LogDir,
		Level: logging.ParseLevel(cfg.LogLevel),
	})
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer log.Close()
	slog.SetDefault(log.Logger)
	logger := log.Logger

	lock, err := acquireLock(cfg.LockPath())
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	userPrefs, err := prefs.Load(opts.PrefsPath)
	if err != nil {
		logger.Warn("using default preferences", "error", err)
	}

	client, err := daemon.NewClient(cfg.APIBind)
	if err != nil {
		return fmt.Errorf("init daemon client: %w", err)
	}

	launcher := daemon.NewLauncher(client, cfg.DaemonCommand, cfg.StartupTimeout)
	res, err := launcher.StartOrAttach(ctx)
	if res == daemon.Failed {
		logger.Error("could not start or connect to the daemon", "error", err)
		stopDaemon(launcher, true, logger)
		return fmt.Errorf("could not start or connect to the sync daemon: %w", err)
	}
	logger.Info("daemon ready", "result", res.String(), "url", client.BaseURL())

	setup, err := client.Setup(ctx)
	if err != nil {
		stopDaemon(launcher, false, logger)
		return fmt.Errorf("read setup state: %w", err)
	}
	if !setup.PendingLink && !setup.PendingFolder {
		if err := client.StartSync(ctx); err != nil {
			logger.Warn("start sync", "error", err)
		}
	}

	runErr := runLoops(ctx, cfg, opts, client, launcher.Started(), setup, userPrefs, logger)

	// A user who backs out of setup leaves nothing worth keeping alive.
	force := false
	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if st, err := client.Setup(stopCtx); err == nil && (st.PendingLink || st.PendingFolder) {
		force = true
	}
	stopDaemon(launcher, force, logger)

	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

// runLoops runs the UI, the status loop and the update checker until the UI
// exits. The first failure cancels the others.
func runLoops(
	ctx context.Context,
	cfg config.Config,
	opts Options,
	client *daemon.Client,
	startedDaemon bool,
	setup daemon.SetupState,
	userPrefs prefs.Prefs,
	logger *slog.Logger,
) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bridge := ui.NewBridge()
	loop := tray.NewLoop(client, bridge, tray.Options{
		ClosedInterval: time.Duration(opts.PollEvery) * time.Second,
		Logger:         logger.With("component", "tray"),
	})
	reports := report.New(report.Options{
		URL:     cfg.ReportURL,
		LogPath: cfg.LogPath(),
		Logger:  logger,
	})

	// Polling starts once the account is linked and has a sync folder.
	ready := make(chan struct{})
	var readyOnce sync.Once
	markReady := func() { readyOnce.Do(func() { close(ready) }) }
	if !setup.PendingLink && !setup.PendingFolder {
		markReady()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return ui.Run(ui.Options{
			Context:       gctx,
			Proxy:         client,
			Bridge:        bridge,
			Menu:          loop,
			Reports:       reports,
			Logger:        logger,
			Prefs:         userPrefs,
			PrefsPath:     opts.PrefsPath,
			Setup:         setup,
			StartedDaemon: startedDaemon,
			WebsiteURL:    cfg.WebsiteURL,
			HelpURL:       cfg.HelpURL,
			SetupDone:     markReady,
		})
	})
	g.Go(func() error {
		if !waitReady(gctx, ready) {
			return nil
		}
		return ignoreCanceled(loop.Run(gctx))
	})
	g.Go(func() error {
		if !waitReady(gctx, ready) {
			return nil
		}
		return ignoreCanceled(runUpdateChecker(gctx, client, bridge, defaultUpdateInterval, logger.With("component", "updates")))
	})
	return g.Wait()
}

// waitReady blocks until ready is closed. It reports false when ctx ends
// first.
func waitReady(ctx context.Context, ready <-chan struct{}) bool {
	select {
	case <-ready:
		return true
	case <-ctx.Done():
		return false
	}
}

// acquireLock takes the single-instance lock for one config name.
func acquireLock(path string) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}
	return lock, nil
}

func stopDaemon(l *daemon.Launcher, force bool, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := l.Stop(ctx, force); err != nil {
		logger.Warn("stop daemon", "error", err)
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
