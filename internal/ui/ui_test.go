package ui

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/tender/internal/daemon"
	"github.com/five82/tender/internal/dispatch"
	"github.com/five82/tender/internal/prefs"
	"github.com/five82/tender/internal/rows"
	"github.com/five82/tender/internal/tray"
)

type fakeProxy struct {
	mu     sync.Mutex
	calls  []string
	snooze float64
	setup  daemon.SetupState
	update daemon.UpdateCheck
	conf   map[string]any
	err    error
}

func (f *fakeProxy) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeProxy) called() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeProxy) Ping(context.Context) error     { return f.record("ping") }
func (f *fakeProxy) Shutdown(context.Context) error { return f.record("shutdown") }
func (f *fakeProxy) History(context.Context) ([]daemon.SyncEvent, error) {
	return nil, f.record("history")
}
func (f *fakeProxy) Status(context.Context) (daemon.Status, error) {
	return daemon.StatusIdle, f.record("status")
}
func (f *fakeProxy) Paused(context.Context) (bool, error)  { return false, f.record("paused") }
func (f *fakeProxy) Running(context.Context) (bool, error) { return true, f.record("running") }
func (f *fakeProxy) SyncErrors(context.Context) ([]daemon.SyncIssue, error) {
	return []daemon.SyncIssue{{Title: "Could not upload", LocalPath: "/sync/a.txt"}}, f.record("sync_errors")
}
func (f *fakeProxy) FatalErrors(context.Context) ([]daemon.ErrorRecord, error) {
	return nil, f.record("fatal_errors")
}
func (f *fakeProxy) ClearFatalErrors(context.Context) error { return f.record("clear_fatal") }
func (f *fakeProxy) PauseSync(context.Context) error        { return f.record("pause") }
func (f *fakeProxy) ResumeSync(context.Context) error       { return f.record("resume") }
func (f *fakeProxy) StartSync(context.Context) error        { return f.record("start") }
func (f *fakeProxy) StopSync(context.Context) error         { return f.record("stop") }
func (f *fakeProxy) RebuildIndex(context.Context) error     { return f.record("rebuild") }
func (f *fakeProxy) State(_ context.Context, ns, key string) (string, error) {
	return "", f.record("state " + ns + "/" + key)
}
func (f *fakeProxy) SetState(_ context.Context, ns, key string, _ any) error {
	return f.record("set_state " + ns + "/" + key)
}
func (f *fakeProxy) Conf(_ context.Context, ns, key string) (any, error) {
	return f.conf[ns+"/"+key], f.record("conf " + ns + "/" + key)
}
func (f *fakeProxy) NotificationSnooze(context.Context) (float64, error) {
	return f.snooze, f.record("snooze")
}
func (f *fakeProxy) SetNotificationSnooze(_ context.Context, minutes float64) error {
	f.mu.Lock()
	f.snooze = minutes
	f.mu.Unlock()
	return f.record("set_snooze")
}
func (f *fakeProxy) AuthURL(context.Context) (string, error) {
	return "https://example.com/auth", f.record("auth_url")
}
func (f *fakeProxy) Link(context.Context, string) (daemon.LinkResult, error) {
	return daemon.LinkOK, f.record("link")
}
func (f *fakeProxy) Unlink(context.Context) error { return f.record("unlink") }
func (f *fakeProxy) Setup(context.Context) (daemon.SetupState, error) {
	return f.setup, f.record("setup")
}
func (f *fakeProxy) CreateSyncFolder(context.Context, string) error { return f.record("create_folder") }
func (f *fakeProxy) CheckForUpdates(context.Context) (daemon.UpdateCheck, error) {
	return f.update, f.record("updates")
}

var _ daemon.Proxy = (*fakeProxy)(nil)

type fakeMenu struct {
	open      []bool
	refreshs  int
	recovered int
}

func (f *fakeMenu) SetMenuOpen(open bool) { f.open = append(f.open, open) }
func (f *fakeMenu) RefreshSnooze()        { f.refreshs++ }
func (f *fakeMenu) Recovered()            { f.recovered++ }

type fakeReports struct {
	sent []daemon.ErrorRecord
}

func (f *fakeReports) Send(_ context.Context, rec daemon.ErrorRecord) (string, error) {
	f.sent = append(f.sent, rec)
	return "report-1", nil
}

type harness struct {
	proxy   *fakeProxy
	menu    *fakeMenu
	reports *fakeReports
	opened  []string
	m       Model
}

// newHarness builds a model whose bridge is already closed, so bridge waits
// resolve to nil instead of blocking.
func newHarness(t *testing.T, p prefs.Prefs) *harness {
	t.Helper()
	h := &harness{proxy: &fakeProxy{}, menu: &fakeMenu{}, reports: &fakeReports{}}
	bridge := NewBridge()
	bridge.Close()
	h.m = New(Options{
		Context:   context.Background(),
		Proxy:     h.proxy,
		Bridge:    bridge,
		Menu:      h.menu,
		Reports:   h.reports,
		Prefs:     p,
		PrefsPath: filepath.Join(t.TempDir(), "prefs.toml"),
		Open: func(target string) error {
			h.opened = append(h.opened, target)
			return nil
		},
		Copy: func(string) error { return nil },
	})
	next, _ := h.m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	h.m = next.(Model)
	return h
}

func (h *harness) send(msg tea.Msg) tea.Cmd {
	next, cmd := h.m.Update(msg)
	h.m = next.(Model)
	return cmd
}

var uiPkg = reflect.TypeOf(Model{}).PkgPath()

// run executes cmd, feeding every resulting message of this package back into
// the model. Messages from bubbles components (cursor blinks) are dropped so
// the loop ends.
func (h *harness) run(cmd tea.Cmd) {
	for _, msg := range drain(cmd) {
		if reflect.TypeOf(msg).PkgPath() != uiPkg {
			continue
		}
		h.run(h.send(msg))
	}
}

func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
	space = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
)

func TestBridge_DeliversAndCloses(t *testing.T) {
	b := NewBridge()
	b.SetIcon(tray.IconSyncing)
	b.Dispatch(dispatch.Decision{Action: dispatch.ActionAlert})

	assert.Equal(t, iconMsg(tray.IconSyncing), b.wait()())
	assert.IsType(t, dispatchMsg{}, b.wait()())

	b.Close()
	b.Close()
	assert.Nil(t, b.wait()())

	done := make(chan struct{})
	go func() {
		b.Exit(errors.New("gone"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("send blocked on a closed bridge")
	}
}

func TestBridge_ObserveSendsDisplayCopies(t *testing.T) {
	b := NewBridge()
	defer b.Close()

	store := rows.NewStore(nil, rows.WithExists(func(string) bool { return true }))
	store.Observe(b.observe(3))
	go store.Append(daemon.SyncEvent{ID: "1", LocalPath: "/sync/a.txt", ChangeType: daemon.ChangeAdded})

	msg, ok := b.wait()().(rowMsg)
	require.True(t, ok)
	assert.Equal(t, 3, msg.gen)
	assert.Equal(t, rows.KindInsert, msg.kind)
	assert.Equal(t, "a.txt", msg.display.Name)
	assert.True(t, msg.display.Reveal)
}

func TestModel_IconDrivesPhase(t *testing.T) {
	h := newHarness(t, prefs.Default())

	h.send(iconMsg(tray.IconPaused))
	assert.Equal(t, tray.PhasePaused, h.m.phase.Phase())
	h.send(iconMsg(tray.IconIdle))
	assert.Equal(t, tray.PhaseSyncing, h.m.phase.Phase())
	assert.Equal(t, tray.IconIdle, h.m.icon)

	h.send(degradeMsg(tray.DegradedLabels(tray.Labels{}, daemon.StatusStopped)))
	assert.Equal(t, tray.PhaseDegraded, h.m.phase.Phase())
	assert.Equal(t, tray.IconError, h.m.icon)
	assert.False(t, h.m.labels.PauseEnabled)

	// Icons alone never lift a degraded phase.
	h.send(iconMsg(tray.IconSyncing))
	assert.Equal(t, tray.PhaseDegraded, h.m.phase.Phase())
}

func TestModel_RecoveryRestartsSync(t *testing.T) {
	h := newHarness(t, prefs.Default())
	h.send(degradeMsg(tray.DegradedLabels(tray.Labels{}, daemon.StatusStopped)))

	h.run(h.send(recoveredMsg{}))
	assert.Contains(t, h.proxy.called(), "start")
	assert.Equal(t, tray.PhaseSyncing, h.m.phase.Phase())
	assert.Equal(t, 1, h.menu.recovered)
}

func TestModel_DegradedLabelsSurviveRefresh(t *testing.T) {
	h := newHarness(t, prefs.Default())
	prev := tray.LabelsFor(tray.Snapshot{Status: daemon.StatusIdle, Running: true}, "me@example.com", "1 GB of 2 GB used")
	h.send(degradeMsg(tray.DegradedLabels(prev, daemon.StatusStopped)))
	assert.Equal(t, "me@example.com", h.m.labels.Email)

	// A refresh computed before the loop saw the fatal error.
	h.send(labelsMsg(prev))
	assert.Equal(t, tray.ResumeText, h.m.labels.Pause)
	assert.False(t, h.m.labels.PauseEnabled)
	assert.Equal(t, "1 GB of 2 GB used", h.m.labels.Usage)
	assert.Nil(t, h.send(runes("p")))
	assert.Empty(t, h.proxy.called())
}

func TestModel_DispatchOpensModal(t *testing.T) {
	tests := []struct {
		name   string
		action dispatch.Action
		want   any
	}{
		{"alert", dispatch.ActionAlert, &alertModal{}},
		{"revoked", dispatch.ActionRelinkRevoked, &relinkModal{}},
		{"expired", dispatch.ActionRelinkExpired, &relinkModal{}},
		{"crash", dispatch.ActionCrash, &crashModal{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, prefs.Default())
			h.send(dispatchMsg(dispatch.Decision{Action: tt.action, Record: daemon.ErrorRecord{Title: "t", Message: "m"}}))
			require.NotNil(t, h.m.modal)
			assert.IsType(t, tt.want, h.m.modal)
		})
	}
}

func TestModel_SelectFolderFetchesConfig(t *testing.T) {
	h := newHarness(t, prefs.Default())
	h.run(h.send(dispatchMsg(dispatch.Decision{Action: dispatch.ActionSelectFolder})))

	require.IsType(t, &folderModal{}, h.m.modal)
	assert.Contains(t, h.proxy.called(), "conf main/path")
	assert.Contains(t, h.proxy.called(), "conf main/default_dir_name")
}

func TestModel_CrashConsentPersistsAndSends(t *testing.T) {
	h := newHarness(t, prefs.Default())
	rec := daemon.ErrorRecord{Type: "KeyError", Title: "Unexpected error", Traceback: "Traceback..."}
	h.send(dispatchMsg(dispatch.Decide(rec)))
	require.IsType(t, &crashModal{}, h.m.modal)

	h.run(h.send(space))
	h.run(h.send(enter))

	assert.Nil(t, h.m.modal)
	assert.True(t, h.m.prefs.AlwaysSendReports)
	require.Len(t, h.reports.sent, 1)
	assert.Equal(t, "KeyError", h.reports.sent[0].Type)

	saved, err := prefs.Load(h.m.prefsPath)
	require.NoError(t, err)
	assert.True(t, saved.AlwaysSendReports)
}

func TestModel_CrashDeclined(t *testing.T) {
	h := newHarness(t, prefs.Default())
	h.send(dispatchMsg(dispatch.Decide(daemon.ErrorRecord{Type: "KeyError"})))

	h.run(h.send(esc))
	assert.Empty(t, h.reports.sent)
	assert.False(t, h.m.prefs.AlwaysSendReports)
}

func TestModel_CrashAutoSends(t *testing.T) {
	p := prefs.Default()
	p.AlwaysSendReports = true
	h := newHarness(t, p)

	h.run(h.send(dispatchMsg(dispatch.Decide(daemon.ErrorRecord{Type: "KeyError"}))))
	assert.Len(t, h.reports.sent, 1)
	require.IsType(t, &crashModal{}, h.m.modal)
	assert.True(t, h.m.modal.(*crashModal).prompt.AutoSend)
	assert.Contains(t, h.m.flash, "report-1")
}

func TestModel_ModalsQueue(t *testing.T) {
	h := newHarness(t, prefs.Default())
	h.send(openModalMsg{modal: newAlert("first", "", false)})
	h.send(openModalMsg{modal: newAlert("second", "", false)})

	require.IsType(t, &alertModal{}, h.m.modal)
	assert.Equal(t, "first", h.m.modal.(*alertModal).title)
	h.send(enter)
	assert.Equal(t, "second", h.m.modal.(*alertModal).title)
	h.send(enter)
	assert.Nil(t, h.m.modal)
}

func TestModel_ExitQuits(t *testing.T) {
	h := newHarness(t, prefs.Default())
	boom := &daemon.CommunicationError{Op: "GET /v1/status", Err: errors.New("refused")}

	cmd := h.send(exitMsg{err: boom})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.ErrorIs(t, h.m.exitErr, daemon.ErrCommunication)
}

func TestModel_MenuTracksVisibility(t *testing.T) {
	h := newHarness(t, prefs.Default())

	h.send(runes("m"))
	assert.Equal(t, ViewMenu, h.m.view)
	h.send(esc)
	assert.Equal(t, ViewHome, h.m.view)
	assert.Equal(t, []bool{true, false}, h.menu.open)
}

func TestModel_MenuOpensFolderAndLinks(t *testing.T) {
	h := newHarness(t, prefs.Default())
	h.proxy.conf = map[string]any{"main/path": "/home/me/Dropbox"}
	h.m.website = "https://www.example.com/"
	h.m.helpURL = "https://example.com/help"

	h.send(runes("m"))
	h.run(h.send(enter))
	assert.Equal(t, ViewHome, h.m.view)

	h.send(runes("m"))
	h.send(runes("j"))
	h.run(h.send(enter))

	h.send(runes("G"))
	h.send(runes("k"))
	h.run(h.send(enter))

	assert.Equal(t, []string{"/home/me/Dropbox", "https://www.example.com/", "https://example.com/help"}, h.opened)
}

func TestModel_OpenFolderWithoutPathAlerts(t *testing.T) {
	h := newHarness(t, prefs.Default())

	h.run(h.send(runes("o")))
	assert.Empty(t, h.opened)
	require.IsType(t, &alertModal{}, h.m.modal)
	assert.Equal(t, "Could not open", h.m.modal.(*alertModal).title)
}

func TestModel_SnoozeChoiceRefreshesLoop(t *testing.T) {
	h := newHarness(t, prefs.Default())
	h.send(runes("m"))
	h.m.menu.snoozes = true

	h.run(h.send(enter))
	assert.Equal(t, float64(30), h.proxy.snooze)
	assert.Equal(t, 1, h.menu.refreshs)
	assert.False(t, h.m.menu.snoozes)
}

func TestModel_TogglePause(t *testing.T) {
	h := newHarness(t, prefs.Default())
	h.send(labelsMsg(tray.LabelsFor(tray.Snapshot{Status: daemon.StatusIdle, Running: true}, "", "")))

	h.run(h.send(runes("p")))
	assert.Equal(t, tray.ResumeText, h.m.labels.Pause)
	h.run(h.send(runes("p")))
	assert.Equal(t, []string{"pause", "resume"}, h.proxy.called())

	// Stopped offers start.
	h.send(labelsMsg(tray.LabelsFor(tray.Snapshot{Status: daemon.StatusStopped}, "", "")))
	h.run(h.send(runes("p")))
	assert.Equal(t, []string{"pause", "resume", "start"}, h.proxy.called())

	// Disabled while degraded.
	h.send(degradeMsg(tray.DegradedLabels(tray.Labels{}, daemon.StatusStopped)))
	assert.Nil(t, h.send(runes("p")))
}

func TestModel_ManualUpdateCheck(t *testing.T) {
	h := newHarness(t, prefs.Default())
	h.proxy.update = daemon.UpdateCheck{LatestRelease: "1.9.0"}

	h.run(h.m.svc.checkUpdates())
	require.IsType(t, &alertModal{}, h.m.modal)
	assert.Equal(t, "You're up-to-date!", h.m.modal.(*alertModal).title)

	h.send(enter)
	h.proxy.update = daemon.UpdateCheck{UpdateAvailable: true, LatestRelease: "2.0.0"}
	h.run(h.m.svc.checkUpdates())
	assert.IsType(t, &updateModal{}, h.m.modal)
}

func TestModel_BackgroundUpdateCheckIsQuietWhenCurrent(t *testing.T) {
	h := newHarness(t, prefs.Default())
	h.send(updateMsg{check: daemon.UpdateCheck{LatestRelease: "1.9.0"}})
	assert.Nil(t, h.m.modal)
}

func TestModel_ApplyRow(t *testing.T) {
	h := newHarness(t, prefs.Default())
	h.m.activity.gen = 2
	row := func(name string) rows.Display { return rows.Display{Name: name, Path: "/sync/" + name} }

	h.send(rowMsg{gen: 2, kind: rows.KindInsert, index: 0, display: row("a")})
	h.send(rowMsg{gen: 2, kind: rows.KindInsert, index: 0, display: row("b")})
	h.send(rowMsg{gen: 1, kind: rows.KindInsert, index: 0, display: row("stale")})
	require.Len(t, h.m.activity.rows, 2)
	assert.Equal(t, "b", h.m.activity.rows[0].Name)

	// A selection below the top stays on its row.
	h.m.activity.cursor = 1
	h.send(rowMsg{gen: 2, kind: rows.KindInsert, index: 0, display: row("c")})
	assert.Equal(t, "a", h.m.activity.rows[h.m.activity.cursor].Name)

	changed := row("b")
	changed.Reveal = true
	h.send(rowMsg{gen: 2, kind: rows.KindChange, index: 1, display: changed})
	assert.True(t, h.m.activity.rows[1].Reveal)

	h.send(rowMsg{gen: 2, kind: rows.KindPreRemove, index: 0})
	h.send(rowMsg{gen: 2, kind: rows.KindRemove, index: 0})
	assert.Len(t, h.m.activity.rows, 2)

	h.send(rowMsg{gen: 2, kind: rows.KindClear, index: -1})
	assert.Empty(t, h.m.activity.rows)
	assert.Equal(t, 0, h.m.activity.cursor)
}

func TestModel_ActivityOpenAndReveal(t *testing.T) {
	h := newHarness(t, prefs.Default())
	h.m.view = ViewActivity
	h.m.activity.rows = []rows.Display{
		{Name: "gone.txt", Path: "/sync/old/gone.txt"},
		{Name: "here.txt", Path: "/sync/docs/here.txt", Reveal: true},
	}

	h.run(h.send(enter))
	h.run(h.send(runes("r")))
	h.send(runes("j"))
	h.run(h.send(runes("r")))

	assert.Equal(t, []string{"/sync/old/gone.txt", "/sync/docs"}, h.opened)
}

func TestModel_ActivityShowsAge(t *testing.T) {
	h := newHarness(t, prefs.Default())
	h.m.view = ViewActivity
	h.m.activity.rows = []rows.Display{{
		Name:   "report.pdf",
		Path:   "/sync/docs/report.pdf",
		Change: "Added",
		User:   "Ada",
		Time:   "05 Mar 2024 14:07",
		When:   time.Now().Add(-3 * time.Hour),
	}}

	view := h.m.View()
	assert.Contains(t, view, "3 hours ago")
	assert.Contains(t, view, "Added by Ada on 05 Mar 2024 14:07")
}

func TestModel_ActivitySessionStops(t *testing.T) {
	h := newHarness(t, prefs.Default())
	ctx, cancel := context.WithCancel(context.Background())
	h.m.view = ViewActivity
	h.m.activity = activityState{gen: 4, cancel: cancel, running: true}

	h.send(esc)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	h.m.activity.running = true
	h.send(activityStoppedMsg{gen: 3, err: errors.New("old")})
	assert.True(t, h.m.activity.running)
	h.send(activityStoppedMsg{gen: 4, err: context.Canceled})
	assert.False(t, h.m.activity.running)
	assert.NoError(t, h.m.activity.err)
}

func TestModel_IssuesView(t *testing.T) {
	h := newHarness(t, prefs.Default())
	h.m.view = ViewIssues
	h.run(h.m.svc.fetchIssues())

	require.Len(t, h.m.issues.items, 1)
	assert.Contains(t, h.m.View(), "Could not upload")

	h.run(h.send(enter))
	assert.Equal(t, []string{"/sync/a.txt"}, h.opened)
}

func TestModel_SetupLinksThenStarts(t *testing.T) {
	h := newHarness(t, prefs.Default())
	h.m.setup = daemon.SetupState{PendingLink: true}
	done := 0
	h.m.setupDone = func() { done++ }
	h.run(h.m.Init())

	assert.Equal(t, tray.PhaseLinking, h.m.phase.Phase())
	require.IsType(t, &relinkModal{}, h.m.modal)
	assert.Equal(t, "https://example.com/auth", h.m.modal.(*relinkModal).url)

	h.run(h.send(runes("abcdefghijklmnop")))
	h.run(h.send(enter))

	assert.Nil(t, h.m.modal)
	assert.Equal(t, []string{"auth_url", "link", "setup", "start"}, h.proxy.called())
	assert.Equal(t, tray.PhaseSyncing, h.m.phase.Phase())
	assert.Equal(t, 1, done)
}

func TestModel_CycleThemeSavesPrefs(t *testing.T) {
	h := newHarness(t, prefs.Default())
	before := h.m.theme.Name

	h.run(h.send(runes("T")))
	assert.NotEqual(t, before, h.m.theme.Name)

	saved, err := prefs.Load(h.m.prefsPath)
	require.NoError(t, err)
	assert.Equal(t, h.m.theme.Name, saved.Theme)
}

func TestModel_ViewShowsStatus(t *testing.T) {
	h := newHarness(t, prefs.Default())
	h.send(labelsMsg(tray.LabelsFor(tray.Snapshot{Status: daemon.StatusIdle, Running: true}, "me@example.com", "1 GB of 2 GB used")))

	view := h.m.View()
	assert.Contains(t, view, string(daemon.StatusIdle))
	assert.Contains(t, view, "me@example.com")
}
