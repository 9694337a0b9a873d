package ui

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tender/internal/daemon"
	"github.com/five82/tender/internal/prefs"
)

var errNoSyncFolder = errors.New("no sync folder is configured")

// actionDoneMsg reports the outcome of a one-shot daemon or desktop action.
type actionDoneMsg struct {
	op  string
	err error
}

type (
	setupMsg struct {
		state daemon.SetupState
		err   error
	}
	issuesMsg struct {
		issues []daemon.SyncIssue
		err    error
	}
	issuesTickMsg time.Time
	reportSentMsg struct {
		id  string
		err error
	}
	prefsSavedMsg struct{ err error }
)

// ReportSender delivers crash reports.
type ReportSender interface {
	Send(ctx context.Context, rec daemon.ErrorRecord) (string, error)
}

// services are the side-effecting dependencies shared by the model and its
// modals. Every call runs inside a tea.Cmd.
type services struct {
	ctx     context.Context
	proxy   daemon.Proxy
	reports ReportSender
	open    func(string) error
	copy    func(string) error
}

func (s *services) do(op string, fn func(context.Context) error) tea.Cmd {
	ctx := s.ctx
	return func() tea.Msg {
		return actionDoneMsg{op: op, err: fn(ctx)}
	}
}

func (s *services) openCmd(target string) tea.Cmd {
	if target == "" {
		return nil
	}
	open := s.open
	return func() tea.Msg {
		return actionDoneMsg{op: "open", err: open(target)}
	}
}

// openSyncFolder opens the daemon's configured sync folder.
func (s *services) openSyncFolder() tea.Cmd {
	ctx, proxy, open := s.ctx, s.proxy, s.open
	return func() tea.Msg {
		path := confString(ctx, proxy, "main", "path")
		if path == "" {
			return actionDoneMsg{op: "open", err: errNoSyncFolder}
		}
		return actionDoneMsg{op: "open", err: open(path)}
	}
}

func (s *services) copyCmd(text string) tea.Cmd {
	if text == "" {
		return nil
	}
	cp := s.copy
	return func() tea.Msg {
		return actionDoneMsg{op: "copy", err: cp(text)}
	}
}

func (s *services) unlinkAndQuit() tea.Cmd {
	svc := s
	return func() tea.Msg {
		_ = svc.proxy.Unlink(svc.ctx)
		return quitMsg{}
	}
}

func (s *services) checkSetup() tea.Cmd {
	svc := s
	return func() tea.Msg {
		state, err := svc.proxy.Setup(svc.ctx)
		return setupMsg{state: state, err: err}
	}
}

func (s *services) fetchIssues() tea.Cmd {
	svc := s
	return func() tea.Msg {
		issues, err := svc.proxy.SyncErrors(svc.ctx)
		return issuesMsg{issues: issues, err: err}
	}
}

func (s *services) checkUpdates() tea.Cmd {
	svc := s
	return func() tea.Msg {
		check, err := svc.proxy.CheckForUpdates(svc.ctx)
		return updateMsg{check: check, manual: true, err: err}
	}
}

func (s *services) sendReport(rec daemon.ErrorRecord) tea.Cmd {
	svc := s
	return func() tea.Msg {
		if svc.reports == nil {
			return reportSentMsg{err: fmt.Errorf("error reporting unavailable")}
		}
		id, err := svc.reports.Send(svc.ctx, rec)
		return reportSentMsg{id: id, err: err}
	}
}

func savePrefsCmd(path string, p prefs.Prefs) tea.Cmd {
	return func() tea.Msg {
		return prefsSavedMsg{err: prefs.Save(path, p)}
	}
}

func issuesTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return issuesTickMsg(t)
	})
}

// OpenPath opens a file, folder or URL with the desktop's default handler.
func OpenPath(target string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", target)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.Command("xdg-open", target)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open %s: %w", target, err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// CopyText places text on the system clipboard.
func CopyText(text string) error {
	return clipboard.WriteAll(text)
}
