package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/tender/internal/activity"
	"github.com/five82/tender/internal/daemon"
	"github.com/five82/tender/internal/logging"
	"github.com/five82/tender/internal/version"
)

func TestVersionCommand_PrintsDetailedVersion(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, version.Detailed(), strings.TrimSpace(out.String()))
}

func TestRootCommand_Flags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"config", "prefs", "poll"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["activity"])
	assert.True(t, names["status"])
	assert.True(t, names["version"])
}

type fakeDaemon struct {
	events []daemon.SyncEvent
	err    error
}

func (f *fakeDaemon) History(context.Context) ([]daemon.SyncEvent, error) {
	return f.events, f.err
}
func (f *fakeDaemon) Status(context.Context) (daemon.Status, error) { return daemon.StatusIdle, f.err }
func (f *fakeDaemon) Paused(context.Context) (bool, error)          { return false, f.err }
func (f *fakeDaemon) Running(context.Context) (bool, error)         { return true, f.err }
func (f *fakeDaemon) SyncErrors(context.Context) ([]daemon.SyncIssue, error) {
	return []daemon.SyncIssue{{Title: "Could not upload", LocalPath: "/sync/big.iso"}}, f.err
}
func (f *fakeDaemon) FatalErrors(context.Context) ([]daemon.ErrorRecord, error) {
	return nil, f.err
}

func TestPrintStatus(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printStatus(context.Background(), &out, &fakeDaemon{}))

	got := out.String()
	assert.Contains(t, got, "sync-error  "+string(daemon.StatusIdle))
	assert.Contains(t, got, "paused: no  running: yes")
	assert.Contains(t, got, "sync issues: 1")
	assert.Contains(t, got, "/sync/big.iso")
	assert.Contains(t, got, "fatal errors: 0")
}

func TestPrintStatus_Error(t *testing.T) {
	err := printStatus(context.Background(), &bytes.Buffer{}, &fakeDaemon{err: errors.New("refused")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read status")
}

func TestWatchActivity_Once(t *testing.T) {
	src := &fakeDaemon{events: []daemon.SyncEvent{
		{ID: "1", LocalPath: "/sync/docs/a.txt", ChangeType: daemon.ChangeAdded, ItemType: daemon.ItemFile},
		{ID: "2", LocalPath: "/sync/photos", ChangeType: daemon.ChangeChanged, ItemType: daemon.ItemFolder,
			ChangeTime: float64(time.Now().Add(-2 * time.Hour).Unix())},
	}}
	var out bytes.Buffer
	opts := activity.Options{InsertPause: -1, Logger: logging.Discard()}
	require.NoError(t, watchActivity(context.Background(), &out, src, opts, true))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "a.txt")
	assert.Contains(t, lines[0], "Added")
	assert.Contains(t, lines[1], "photos")
	assert.NotContains(t, lines[0], "ago")
	assert.Contains(t, lines[1], "(2 hours ago)")
}

func TestWatchActivity_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := activity.Options{InsertPause: -1, Logger: logging.Discard()}
	assert.NoError(t, watchActivity(ctx, &bytes.Buffer{}, &fakeDaemon{}, opts, false))
}
