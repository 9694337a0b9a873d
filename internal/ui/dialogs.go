package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/tender/internal/config"
	"github.com/five82/tender/internal/daemon"
	"github.com/five82/tender/internal/dispatch"
)

// Tokens shorter than this are never valid.
const minTokenLength = 11

type (
	authURLMsg struct {
		url string
		err error
	}
	linkDoneMsg struct {
		result daemon.LinkResult
		err    error
	}
	// linkedMsg is sent once an account link succeeded.
	linkedMsg     struct{}
	folderDoneMsg struct {
		path string
		err  error
	}
	consentMsg struct {
		prompt   dispatch.CrashPrompt
		pressed  string
		checkbox bool
		record   daemon.ErrorRecord
	}
)

// relinkMode selects the wording of the link dialog.
type relinkMode int

const (
	relinkSetup relinkMode = iota
	relinkRevoked
	relinkExpired
)

const (
	linkButton   = "Link"
	cancelButton = "Cancel"
	unlinkButton = "Unlink and Quit"
)

// relinkModal asks for a new authorization token.
type relinkModal struct {
	svc     *services
	mode    relinkMode
	url     string
	input   textinput.Model
	buttons []string
	focus   int
	busy    bool
	status  string
	failed  bool
}

func newRelinkModal(svc *services, mode relinkMode) (*relinkModal, tea.Cmd) {
	in := textinput.New()
	in.Placeholder = "Authorization token"
	in.CharLimit = 256
	in.Width = 48
	in.Focus()

	buttons := []string{linkButton, cancelButton, unlinkButton}
	if mode == relinkSetup {
		buttons = []string{linkButton, cancelButton}
	}
	r := &relinkModal{svc: svc, mode: mode, input: in, buttons: buttons}
	return r, tea.Batch(textinput.Blink, r.fetchURL())
}

func (r *relinkModal) title() string {
	switch r.mode {
	case relinkRevoked:
		return "Account Access Revoked"
	case relinkExpired:
		return "Account Access Expired"
	default:
		return "Link Your Account"
	}
}

func (r *relinkModal) message() string {
	const tail = " To continue syncing, please retrieve a new authorization token and enter it below."
	switch r.mode {
	case relinkRevoked:
		return "Your account access has been revoked." + tail
	case relinkExpired:
		return "Your account access has expired." + tail
	default:
		return "To start syncing, open the link below, allow access and paste the authorization token."
	}
}

func (r *relinkModal) fetchURL() tea.Cmd {
	svc := r.svc
	return func() tea.Msg {
		url, err := svc.proxy.AuthURL(svc.ctx)
		return authURLMsg{url: url, err: err}
	}
}

func (r *relinkModal) link(token string) tea.Cmd {
	svc := r.svc
	return func() tea.Msg {
		res, err := svc.proxy.Link(svc.ctx, token)
		return linkDoneMsg{result: res, err: err}
	}
}

func (r *relinkModal) tokenValid() bool {
	return len(strings.TrimSpace(r.input.Value())) >= minTokenLength
}

func (r *relinkModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case authURLMsg:
		if msg.err != nil {
			r.setStatus("Could not get the authorization link: "+msg.err.Error(), true)
		} else {
			r.url = msg.url
		}
		return r, nil, false

	case linkDoneMsg:
		r.busy = false
		r.input.Focus()
		switch {
		case msg.err != nil:
			r.setStatus("Linking failed: "+msg.err.Error(), true)
		case msg.result == daemon.LinkOK:
			return r, emit(linkedMsg{}), true
		case msg.result == daemon.LinkInvalidToken:
			r.setStatus("Invalid token. Please make sure you copy the correct token.", true)
		case msg.result == daemon.LinkConnectionFailed:
			r.setStatus("Connection failed. Please check your internet connection.", true)
		default:
			r.setStatus("Linking failed: "+msg.result.String(), true)
		}
		return r, nil, false

	case tea.KeyMsg:
		if r.busy {
			return r, nil, false
		}
		switch {
		case msg.String() == "tab" || msg.String() == "shift+tab":
			r.focus = cycleFocus(msg, r.focus, len(r.buttons))
			return r, nil, false
		case key.Matches(msg, keys.OpenURL):
			return r, r.svc.openCmd(r.url), false
		case key.Matches(msg, keys.Copy):
			return r, r.svc.copyCmd(r.url), false
		case key.Matches(msg, keys.Escape):
			return r, emit(quitMsg{}), true
		case key.Matches(msg, keys.Unlink) && r.mode != relinkSetup:
			return r, r.svc.unlinkAndQuit(), true
		case key.Matches(msg, keys.Confirm):
			return r.press(r.buttons[r.focus])
		}
		var cmd tea.Cmd
		r.input, cmd = r.input.Update(msg)
		return r, cmd, false
	}
	return r, nil, false
}

func (r *relinkModal) press(button string) (Modal, tea.Cmd, bool) {
	switch button {
	case cancelButton:
		return r, emit(quitMsg{}), true
	case unlinkButton:
		return r, r.svc.unlinkAndQuit(), true
	default:
		if !r.tokenValid() {
			r.setStatus("Enter the full authorization token.", true)
			return r, nil, false
		}
		r.busy = true
		r.input.Blur()
		r.setStatus("Verifying token...", false)
		return r, r.link(strings.TrimSpace(r.input.Value())), false
	}
}

func (r *relinkModal) setStatus(text string, failed bool) {
	r.status, r.failed = text, failed
}

func (r *relinkModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder
	b.WriteString(styles.WarningText.Bold(true).Render(r.title()))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render(r.message()))
	b.WriteString("\n\n")
	if r.url != "" {
		b.WriteString(styles.AccentText.Render(r.url))
		b.WriteString("\n")
		b.WriteString(styles.FaintText.Render("ctrl+o open  ctrl+y copy"))
		b.WriteString("\n\n")
	}
	b.WriteString(r.input.View())
	b.WriteString("\n\n")
	if r.status != "" {
		style := styles.MutedText
		if r.failed {
			style = styles.DangerText
		}
		b.WriteString(style.Render(r.status))
		b.WriteString("\n\n")
	}
	b.WriteString(renderButtons(styles, r.buttons, r.focus))
	return placeModal(theme, width, height, 64, b.String())
}

const (
	selectButton = "Select"
	quitButton   = "Quit"
	unlinkOnly   = "Unlink"
)

// folderModal picks a new location for the sync folder.
type folderModal struct {
	svc     *services
	oldPath string
	dirName string
	input   textinput.Model
	buttons []string
	focus   int
	busy    bool
	merge   string
	status  string
}

func newFolderModal(svc *services, oldPath, dirName string) *folderModal {
	in := textinput.New()
	in.Placeholder = "Parent folder"
	in.Width = 48
	parent := filepath.Dir(oldPath)
	if oldPath == "" || parent == "." {
		if home, err := os.UserHomeDir(); err == nil {
			parent = home
		}
	}
	in.SetValue(parent)
	in.Focus()
	if dirName == "" {
		dirName = "Dropbox"
	}
	return &folderModal{
		svc:     svc,
		oldPath: oldPath,
		dirName: dirName,
		input:   in,
		buttons: []string{selectButton, quitButton, unlinkOnly},
	}
}

// openFolderModal reads the previous location and folder name before
// showing the dialog.
func openFolderModal(svc *services) tea.Cmd {
	return func() tea.Msg {
		oldPath := confString(svc.ctx, svc.proxy, "main", "path")
		dirName := confString(svc.ctx, svc.proxy, "main", "default_dir_name")
		return openModalMsg{modal: newFolderModal(svc, oldPath, dirName)}
	}
}

func confString(ctx context.Context, p daemon.Proxy, ns, name string) string {
	v, err := p.Conf(ctx, ns, name)
	if err != nil || v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func (f *folderModal) chosen() (string, error) {
	parent, err := config.ExpandPath(f.input.Value())
	if err != nil {
		return "", err
	}
	return filepath.Join(parent, f.dirName), nil
}

func (f *folderModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case folderDoneMsg:
		f.busy = false
		if msg.err != nil {
			f.status = "Could not create the folder: " + msg.err.Error()
			return f, nil, false
		}
		return f, emit(recoveredMsg{}), true

	case tea.KeyMsg:
		if f.busy {
			return f, nil, false
		}
		switch {
		case msg.String() == "tab" || msg.String() == "shift+tab":
			f.focus = cycleFocus(msg, f.focus, len(f.buttons))
			return f, nil, false
		case key.Matches(msg, keys.Escape):
			return f, emit(quitMsg{}), true
		case key.Matches(msg, keys.Confirm):
			return f.press(f.buttons[f.focus])
		}
		f.merge = ""
		var cmd tea.Cmd
		f.input, cmd = f.input.Update(msg)
		return f, cmd, false
	}
	return f, nil, false
}

func (f *folderModal) press(button string) (Modal, tea.Cmd, bool) {
	switch button {
	case quitButton:
		return f, emit(quitMsg{}), true
	case unlinkOnly:
		return f, f.svc.unlinkAndQuit(), true
	}

	path, err := f.chosen()
	if err != nil {
		f.status = "Choose a folder: " + err.Error()
		return f, nil, false
	}
	info, err := os.Stat(path)
	switch {
	case err == nil && info.IsDir() && f.merge != path:
		f.merge = path
		f.status = fmt.Sprintf("The folder %q already exists. Select again to merge its contents.", path)
		return f, nil, false
	case err == nil && !info.IsDir():
		f.status = fmt.Sprintf("There already is a file named %q at this location.", f.dirName)
		return f, nil, false
	case err != nil && !errors.Is(err, os.ErrNotExist):
		f.status = err.Error()
		return f, nil, false
	}

	f.busy = true
	f.status = "Creating folder..."
	svc := f.svc
	return f, func() tea.Msg {
		if err := svc.proxy.CreateSyncFolder(svc.ctx, path); err != nil {
			return folderDoneMsg{path: path, err: err}
		}
		return folderDoneMsg{path: path, err: svc.proxy.RebuildIndex(svc.ctx)}
	}, false
}

func (f *folderModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder
	b.WriteString(styles.WarningText.Bold(true).Render("Cannot find sync folder"))
	b.WriteString("\n\n")
	msg := "Select a location for your sync folder."
	if f.oldPath != "" {
		msg = fmt.Sprintf("Your sync folder has been moved or deleted. It used to be located at:\n\n%s\n\n"+
			"To move it back, quit, restore the folder and start again. To download your files "+
			"again, choose a location below. A folder named %q will be created there.", f.oldPath, f.dirName)
	}
	b.WriteString(styles.Text.Render(msg))
	b.WriteString("\n\n")
	b.WriteString(f.input.View())
	b.WriteString("\n\n")
	if f.status != "" {
		b.WriteString(styles.WarningText.Render(f.status))
		b.WriteString("\n\n")
	}
	b.WriteString(renderButtons(styles, f.buttons, f.focus))
	return placeModal(theme, width, height, 72, b.String())
}

// crashModal shows an unexpected error with its traceback and asks whether
// to send a report.
type crashModal struct {
	svc      *services
	prompt   dispatch.CrashPrompt
	record   daemon.ErrorRecord
	trace    viewport.Model
	checkbox bool
	focus    int
}

func newCrashModal(svc *services, prompt dispatch.CrashPrompt, rec daemon.ErrorRecord) *crashModal {
	vp := viewport.New(68, 12)
	vp.SetContent(rec.Traceback)
	return &crashModal{svc: svc, prompt: prompt, record: rec, trace: vp}
}

func (c *crashModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return c, nil, false
	}
	switch {
	case key.Matches(k, keys.Up):
		c.trace.ScrollUp(1)
	case key.Matches(k, keys.Down):
		c.trace.ScrollDown(1)
	case key.Matches(k, keys.Copy):
		return c, c.svc.copyCmd(c.record.Traceback), false
	case c.prompt.AutoSend:
		if key.Matches(k, keys.Confirm) || key.Matches(k, keys.Escape) {
			return c, nil, true
		}
	case key.Matches(k, keys.Toggle):
		c.checkbox = !c.checkbox
	case key.Matches(k, keys.NextButton):
		c.focus = cycleFocus(k, c.focus, len(c.prompt.Buttons))
	case key.Matches(k, keys.Escape):
		return c, c.answer(dispatch.DontSendLabel), true
	case key.Matches(k, keys.Confirm):
		return c, c.answer(c.prompt.Buttons[c.focus]), true
	}
	return c, nil, false
}

func (c *crashModal) answer(pressed string) tea.Cmd {
	return emit(consentMsg{prompt: c.prompt, pressed: pressed, checkbox: c.checkbox, record: c.record})
}

func (c *crashModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder
	b.WriteString(styles.DangerText.Render(c.prompt.Title))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render(c.prompt.Message))
	b.WriteString("\n\n")
	b.WriteString(styles.MutedText.Render(c.record.Type + ": " + c.record.Message))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(c.trace.View()))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render("j/k scroll  ctrl+y copy traceback"))
	b.WriteString("\n\n")
	if c.prompt.AutoSend {
		b.WriteString(renderButtons(styles, []string{"OK"}, 0))
	} else {
		box := "[ ] "
		if c.checkbox {
			box = "[x] "
		}
		b.WriteString(styles.Text.Render(box + c.prompt.Checkbox))
		b.WriteString("\n\n")
		b.WriteString(renderButtons(styles, c.prompt.Buttons, c.focus))
	}
	return placeModal(theme, width, height, 76, b.String())
}
