package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// StartResult is the outcome of Launcher.StartOrAttach.
type StartResult int

const (
	Started StartResult = iota
	AlreadyRunning
	Failed
)

func (r StartResult) String() string {
	switch r {
	case Started:
		return "started"
	case AlreadyRunning:
		return "already running"
	default:
		return "failed"
	}
}

// Controller is the part of the proxy the launcher needs.
type Controller interface {
	Ping(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

const (
	defaultStartupTimeout = 10 * time.Second
	startupPollInterval   = 250 * time.Millisecond
	terminateGrace        = 3 * time.Second
)

// Launcher starts the daemon process when nothing answers at the configured
// address, or attaches to the one that does.
type Launcher struct {
	ctl     Controller
	command []string
	timeout time.Duration

	mu     sync.Mutex
	proc   *process.Process
	exited chan struct{}
}

// NewLauncher returns a Launcher that spawns command when the daemon is not
// reachable through ctl. A zero timeout uses the default.
func NewLauncher(ctl Controller, command []string, timeout time.Duration) *Launcher {
	if timeout <= 0 {
		timeout = defaultStartupTimeout
	}
	return &Launcher{ctl: ctl, command: command, timeout: timeout}
}

// StartOrAttach connects to a running daemon or starts one.
func (l *Launcher) StartOrAttach(ctx context.Context) (StartResult, error) {
	if err := l.ctl.Ping(ctx); err == nil {
		slog.Info("attached to running daemon")
		return AlreadyRunning, nil
	} else if !errors.Is(err, ErrCommunication) {
		return Failed, fmt.Errorf("probe daemon: %w", err)
	}

	if len(l.command) == 0 {
		return Failed, errors.New("daemon not reachable and no daemon_command configured")
	}

	cmd := exec.Command(l.command[0], l.command[1:]...)
	if err := cmd.Start(); err != nil {
		return Failed, fmt.Errorf("spawn daemon: %w", err)
	}
	pid := cmd.Process.Pid
	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	proc, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		_ = cmd.Process.Kill()
		return Failed, fmt.Errorf("inspect daemon process %d: %w", pid, err)
	}
	slog.Info("spawned daemon", "pid", pid, "command", l.command[0])

	deadline := time.NewTimer(l.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(startupPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			terminate(proc, exited)
			return Failed, ctx.Err()
		case <-exited:
			return Failed, fmt.Errorf("daemon exited during startup")
		case <-deadline.C:
			terminate(proc, exited)
			return Failed, fmt.Errorf("daemon did not become reachable within %s", l.timeout)
		case <-ticker.C:
			if err := l.ctl.Ping(ctx); err != nil {
				continue
			}
			l.mu.Lock()
			l.proc = proc
			l.exited = exited
			l.mu.Unlock()
			return Started, nil
		}
	}
}

// Started reports whether this process owns the daemon it talks to.
func (l *Launcher) Started() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.proc != nil
}

// Stop terminates the daemon if this process started it. When force is set,
// an attached daemon is asked to shut down as well.
func (l *Launcher) Stop(ctx context.Context, force bool) error {
	l.mu.Lock()
	proc, exited := l.proc, l.exited
	l.proc, l.exited = nil, nil
	l.mu.Unlock()

	if proc != nil {
		slog.Info("stopping daemon", "pid", proc.Pid)
		terminate(proc, exited)
		return nil
	}
	if !force {
		return nil
	}
	if err := l.ctl.Shutdown(ctx); err != nil && !errors.Is(err, ErrCommunication) {
		return fmt.Errorf("shutdown daemon: %w", err)
	}
	return nil
}

// terminate sends SIGTERM, waits for the process to exit and falls back to
// SIGKILL.
func terminate(proc *process.Process, exited <-chan struct{}) {
	if err := proc.Terminate(); err != nil {
		slog.Debug("terminate daemon", "pid", proc.Pid, "error", err)
	}

	timeout := time.NewTimer(terminateGrace)
	defer timeout.Stop()
	select {
	case <-exited:
		return
	case <-timeout.C:
	}

	exists, err := process.PidExists(proc.Pid)
	if err != nil || !exists {
		return
	}
	slog.Warn("daemon ignored SIGTERM, killing", "pid", proc.Pid)
	if err := proc.Kill(); err != nil {
		slog.Warn("kill daemon", "pid", proc.Pid, "error", err)
	}
}
