package ui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/tender/internal/daemon"
	"github.com/five82/tender/internal/dispatch"
	"github.com/five82/tender/internal/prefs"
	"github.com/five82/tender/internal/report"
	"github.com/five82/tender/internal/rows"
	"github.com/five82/tender/internal/tray"
)

// View represents the current active view.
type View int

const (
	ViewHome View = iota
	ViewMenu
	ViewActivity
	ViewIssues
)

// MenuState is the status loop's view of menu visibility.
type MenuState interface {
	SetMenuOpen(open bool)
	RefreshSnooze()
	// Recovered is called when a recovery dialog cleared a fatal error.
	Recovered()
}

// Options configures the UI.
type Options struct {
	Context context.Context
	Proxy   daemon.Proxy
	Bridge  *Bridge
	Menu    MenuState
	Reports ReportSender
	Logger  *slog.Logger

	Prefs     prefs.Prefs
	PrefsPath string

	// Setup is the onboarding state read at startup.
	Setup         daemon.SetupState
	// StartedDaemon is set when quitting also stops the daemon.
	StartedDaemon bool
	// SetupDone is called each time linking or folder selection completes
	// and syncing is about to start.
	SetupDone     func()

	ActivityInterval time.Duration

	// WebsiteURL and HelpURL back the website and help center menu items.
	WebsiteURL string
	HelpURL    string

	// Open and Copy default to OpenPath and CopyText.
	Open func(string) error
	Copy func(string) error
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx       context.Context
	svc       *services
	bridge    *Bridge
	menuState MenuState
	logger    *slog.Logger
	prefs     prefs.Prefs
	prefsPath string
	setup     daemon.SetupState
	started   bool
	interval  time.Duration
	website   string
	helpURL   string
	setupDone func()

	// UI state
	keys     keyMap
	help     help.Model
	theme    Theme
	view     View
	width    int
	height   int
	ready    bool
	showHelp bool
	flash    string

	// Modals
	modal   Modal
	pending []Modal

	// Tray state
	icon   tray.Icon
	labels tray.Labels
	snooze tray.Snooze
	phase  *tray.Machine

	menu     menuState
	activity activityState
	issues   issuesState

	exitErr error
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bridge := opts.Bridge
	if bridge == nil {
		bridge = NewBridge()
	}
	open := opts.Open
	if open == nil {
		open = OpenPath
	}
	cp := opts.Copy
	if cp == nil {
		cp = CopyText
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	return Model{
		ctx: ctx,
		svc: &services{
			ctx:     ctx,
			proxy:   opts.Proxy,
			reports: opts.Reports,
			open:    open,
			copy:    cp,
		},
		bridge:    bridge,
		menuState: opts.Menu,
		logger:    logger.With("component", "ui"),
		prefs:     opts.Prefs,
		prefsPath: prefsPath,
		setup:     opts.Setup,
		started:   opts.StartedDaemon,
		interval:  opts.ActivityInterval,
		website:   opts.WebsiteURL,
		helpURL:   opts.HelpURL,
		setupDone: opts.SetupDone,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		theme:     GetTheme(opts.Prefs.Theme),
		view:      ViewHome,
		icon:      tray.IconDisconnected,
		labels:    tray.LabelsFor(tray.Snapshot{Status: daemon.StatusDisconnected}, "", ""),
		snooze:    tray.SnoozeFor(0, time.Now()),
		phase:     &tray.Machine{},
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.bridge.wait()}
	switch {
	case m.setup.PendingLink:
		_ = m.phase.Fire(tray.EventLinkRequired)
		modal, cmd := newRelinkModal(m.svc, relinkSetup)
		cmds = append(cmds, emit(openModalMsg{modal: modal}), cmd)
	case m.setup.PendingFolder:
		cmds = append(cmds, openFolderModal(m.svc))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		m.flash = ""
		return m.handleKey(msg)

	// Status loop
	case iconMsg:
		m.setIcon(tray.Icon(msg))
		return m, m.bridge.wait()
	case labelsMsg:
		m.labels = tray.Labels(msg)
		if m.phase.Phase() == tray.PhaseDegraded {
			m.labels = m.labels.Degraded()
		}
		return m, m.bridge.wait()
	case snoozeMsg:
		m.snooze = tray.Snooze(msg)
		return m, m.bridge.wait()
	case degradeMsg:
		m.labels = tray.Labels(msg)
		m.icon = tray.IconError
		_ = m.phase.Fire(tray.EventFatal)
		return m, m.bridge.wait()
	case dispatchMsg:
		cmd := tea.Batch(m.bridge.wait(), m.handleDispatch(dispatch.Decision(msg)))
		return m, cmd
	case exitMsg:
		m.exitErr = msg.err
		m.closeActivity()
		return m, tea.Quit
	case updateMsg:
		cmd := m.handleUpdate(msg)
		if !msg.manual {
			cmd = tea.Batch(m.bridge.wait(), cmd)
		}
		return m, cmd

	// History loop
	case rowMsg:
		m.applyRow(msg)
		return m, m.bridge.wait()
	case activityStoppedMsg:
		m.activityStopped(msg)
		return m, nil

	// Sync issues
	case issuesMsg:
		m.issues.items, m.issues.err = msg.issues, msg.err
		m.issues.clamp()
		return m, nil
	case issuesTickMsg:
		if m.view != ViewIssues {
			return m, nil
		}
		return m, tea.Batch(m.svc.fetchIssues(), issuesTickCmd())

	// Modal plumbing
	case openModalMsg:
		cmd := m.openModal(msg.modal)
		return m, cmd
	case quitMsg:
		m.closeActivity()
		return m, tea.Quit
	case linkedMsg:
		return m, m.svc.checkSetup()
	case setupMsg:
		cmd := m.handleSetup(msg)
		return m, cmd
	case recoveredMsg:
		if m.phase.Phase() == tray.PhaseDegraded {
			_ = m.phase.Fire(tray.EventRecovered)
		}
		if m.menuState != nil {
			m.menuState.Recovered()
		}
		if m.setupDone != nil {
			m.setupDone()
		}
		return m, m.svc.do("start", m.svc.proxy.StartSync)
	case consentMsg:
		cmd := m.handleConsent(msg)
		return m, cmd

	// Results
	case actionDoneMsg:
		cmd := m.handleAction(msg)
		return m, cmd
	case reportSentMsg:
		switch {
		case errors.Is(msg.err, report.ErrDisabled):
			m.flash = "Error reporting is not configured"
		case msg.err != nil:
			m.flash = "Could not send report: " + msg.err.Error()
		default:
			m.flash = "Report " + msg.id + " sent"
		}
		return m, nil
	case prefsSavedMsg:
		if msg.err != nil {
			m.logger.Warn("save preferences", "error", msg.err)
			m.flash = "Could not save preferences"
		}
		return m, nil
	}

	if m.modal != nil {
		return m.updateModal(msg)
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderTrayLine())
	b.WriteString("\n")
	b.WriteString(m.renderContent())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.modal != nil {
		if msg.String() == "ctrl+c" {
			m.closeActivity()
			return m, tea.Quit
		}
		return m.updateModal(msg)
	}

	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.closeActivity()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		cmd := m.cycleTheme()
		return m, cmd
	case key.Matches(msg, m.keys.Escape):
		m.goHome()
		return m, nil
	}

	switch m.view {
	case ViewMenu:
		return m.handleMenuKey(msg)
	case ViewActivity:
		return m.handleActivityKey(msg)
	case ViewIssues:
		return m.handleIssuesKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Menu):
		m.openMenu()
	case key.Matches(msg, m.keys.Activity):
		cmd := m.openActivity()
		return m, cmd
	case key.Matches(msg, m.keys.Issues):
		cmd := m.openIssues()
		return m, cmd
	case key.Matches(msg, m.keys.TogglePause):
		cmd := m.togglePause()
		return m, cmd
	case key.Matches(msg, m.keys.OpenFolder):
		return m, m.svc.openSyncFolder()
	}
	return m, nil
}

func (m Model) updateModal(msg tea.Msg) (tea.Model, tea.Cmd) {
	modal, cmd, done := m.modal.Update(msg, m.keys)
	m.modal = modal
	if done {
		m.modal = nil
		if len(m.pending) > 0 {
			m.modal, m.pending = m.pending[0], m.pending[1:]
		}
	}
	return m, cmd
}

func (m *Model) openModal(modal Modal) tea.Cmd {
	if modal == nil {
		return nil
	}
	if m.modal != nil {
		m.pending = append(m.pending, modal)
		return nil
	}
	m.modal = modal
	return nil
}

func (m *Model) goHome() {
	switch m.view {
	case ViewMenu:
		m.closeMenu()
	case ViewActivity:
		m.closeActivity()
	}
	m.view = ViewHome
}

func (m *Model) setIcon(icon tray.Icon) {
	m.icon = icon
	switch m.phase.Phase() {
	case tray.PhaseLinking, tray.PhaseDegraded:
		return
	}
	switch icon {
	case tray.IconPaused:
		_ = m.phase.Fire(tray.EventPaused)
	case tray.IconIdle, tray.IconSyncing, tray.IconSyncError:
		_ = m.phase.Fire(tray.EventSyncing)
	}
}

func (m *Model) handleDispatch(d dispatch.Decision) tea.Cmd {
	m.logger.Info("handling fatal error", "action", d.Action.String(), "type", d.Record.Type)
	switch d.Action {
	case dispatch.ActionSelectFolder:
		return openFolderModal(m.svc)
	case dispatch.ActionRelinkRevoked, dispatch.ActionRelinkExpired:
		mode := relinkRevoked
		if d.Action == dispatch.ActionRelinkExpired {
			mode = relinkExpired
		}
		modal, cmd := newRelinkModal(m.svc, mode)
		return tea.Batch(m.openModal(modal), cmd)
	case dispatch.ActionAlert:
		return m.openModal(newAlert(d.Record.Title, d.Record.Message, true))
	default:
		prompt := dispatch.Crash(m.prefs.AlwaysSendReports)
		cmd := m.openModal(newCrashModal(m.svc, prompt, d.Record))
		if prompt.AutoSend {
			cmd = tea.Batch(cmd, m.svc.sendReport(d.Record))
		}
		return cmd
	}
}

func (m *Model) handleConsent(msg consentMsg) tea.Cmd {
	res := msg.prompt.Resolve(msg.pressed, msg.checkbox, m.prefs.AlwaysSendReports)
	var cmds []tea.Cmd
	if res.AlwaysSend != m.prefs.AlwaysSendReports {
		m.prefs.AlwaysSendReports = res.AlwaysSend
		cmds = append(cmds, savePrefsCmd(m.prefsPath, m.prefs))
	}
	if res.Send {
		cmds = append(cmds, m.svc.sendReport(msg.record))
	}
	return tea.Batch(cmds...)
}

func (m *Model) handleSetup(msg setupMsg) tea.Cmd {
	if msg.err != nil {
		return m.openModal(newAlert("Setup failed", msg.err.Error(), true))
	}
	switch {
	case msg.state.PendingLink:
		modal, cmd := newRelinkModal(m.svc, relinkSetup)
		return tea.Batch(m.openModal(modal), cmd)
	case msg.state.PendingFolder:
		return openFolderModal(m.svc)
	default:
		return emit(recoveredMsg{})
	}
}

func (m *Model) handleUpdate(msg updateMsg) tea.Cmd {
	switch {
	case msg.err != nil || msg.check.Error != "":
		if !msg.manual {
			return nil
		}
		text := msg.check.Error
		if msg.err != nil {
			text = msg.err.Error()
		}
		return m.openModal(newAlert("Could not check for updates", text, true))
	case msg.check.UpdateAvailable:
		return m.openModal(newUpdateModal(msg.check.LatestRelease, msg.check.ReleaseNotes))
	case msg.manual:
		text := "You are running the newest version available."
		if msg.check.LatestRelease != "" {
			text = fmt.Sprintf("Version %s is the newest version available.", msg.check.LatestRelease)
		}
		return m.openModal(newAlert("You're up-to-date!", text, false))
	}
	return nil
}

func (m *Model) handleAction(msg actionDoneMsg) tea.Cmd {
	if msg.err != nil {
		m.logger.Warn("action failed", "op", msg.op, "error", msg.err)
		if errors.Is(msg.err, daemon.ErrCommunication) {
			return nil
		}
		return m.openModal(newAlert("Could not "+msg.op, msg.err.Error(), true))
	}
	switch msg.op {
	case "pause":
		_ = m.phase.Fire(tray.EventPaused)
	case "resume", "start":
		if err := m.phase.Fire(tray.EventSyncing); err != nil {
			m.logger.Debug("phase unchanged", "op", msg.op, "error", err)
		}
	case "snooze":
		if m.menuState != nil {
			m.menuState.RefreshSnooze()
		}
	case "rebuild":
		m.flash = "Rebuilding index"
	case "copy":
		m.flash = "Copied to clipboard"
	}
	return nil
}

func (m *Model) togglePause() tea.Cmd {
	if !m.labels.PauseEnabled {
		return nil
	}
	switch m.labels.Pause {
	case tray.PauseText:
		m.labels.Pause = tray.ResumeText
		return m.svc.do("pause", m.svc.proxy.PauseSync)
	case tray.ResumeText:
		m.labels.Pause = tray.PauseText
		return m.svc.do("resume", m.svc.proxy.ResumeSync)
	case tray.StartText:
		m.labels.Pause = tray.PauseText
		return m.svc.do("start", m.svc.proxy.StartSync)
	}
	return nil
}

func (m *Model) cycleTheme() tea.Cmd {
	m.theme = GetTheme(NextTheme(m.theme.Name))
	m.prefs.Theme = m.theme.Name
	return savePrefsCmd(m.prefsPath, m.prefs)
}

func (m Model) renderTrayLine() string {
	styles := m.theme.Styles()
	left := styles.IconStyle(m.icon).Render(m.icon.Glyph()) + " " + styles.Text.Render(m.labels.Status)
	if m.snooze.Snoozed {
		left += styles.FaintText.Render("  (notifications snoozed)")
	}
	right := styles.MutedText.Render(m.phase.Phase().String())
	gap := m.width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return styles.Header.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderContent() string {
	switch m.view {
	case ViewMenu:
		return m.renderMenu()
	case ViewActivity:
		return m.renderActivity()
	case ViewIssues:
		return m.renderIssues()
	default:
		return m.renderHome()
	}
}

func (m Model) renderHome() string {
	styles := m.theme.Styles()
	var b strings.Builder
	b.WriteString("\n")
	if m.labels.Email != "" {
		b.WriteString(styles.Text.Render("  " + m.labels.Email))
		b.WriteString("\n")
	}
	if m.labels.Usage != "" {
		b.WriteString(styles.MutedText.Render("  " + m.labels.Usage))
		b.WriteString("\n")
	}
	if m.labels.IssueCount > 0 {
		b.WriteString(styles.WarningText.Render("  " + m.labels.SyncIssues))
		b.WriteString("\n")
	}
	b.WriteString(styles.FaintText.Render("  Press m for the menu."))
	return b.String()
}

func (m Model) renderFooter() string {
	styles := m.theme.Styles()
	if m.flash != "" {
		return styles.Footer.Width(m.width).Render(m.flash)
	}
	return styles.Footer.Width(m.width).Render(m.help.View(m.keys))
}

// contentHeight is the number of lines between tray line and footer.
func (m Model) contentHeight() int {
	h := m.height - 3
	if h < 1 {
		return 1
	}
	return h
}

// revealTarget is the folder that contains the row's item.
func revealTarget(d rows.Display) string {
	return filepath.Dir(d.Path)
}

// Run starts the Bubble Tea program and returns once the user quits or the
// daemon becomes unreachable.
func Run(opts Options) error {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
		opts.Context = ctx
	}
	if opts.Bridge == nil {
		opts.Bridge = NewBridge()
	}
	defer opts.Bridge.Close()

	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if fm, ok := final.(Model); ok {
		fm.closeActivity()
		if err == nil {
			return fm.exitErr
		}
	}
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
