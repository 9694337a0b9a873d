package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_FileOnly(t *testing.T) {
	dir := t.TempDir()
	logger, err := Setup(Options{Dir: dir, Level: slog.LevelInfo})
	require.NoError(t, err)

	logger.Info("daemon attached", "bind", "127.0.0.1:7590")
	logger.Debug("hidden")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), `msg="daemon attached" bind=127.0.0.1:7590`)
	assert.NotContains(t, string(data), "hidden")
	assert.Equal(t, filepath.Join(dir, FileName), logger.Path)
}

func TestSetup_ConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer
	logger, err := Setup(Options{Dir: dir, Level: slog.LevelDebug, Console: &console})
	require.NoError(t, err)
	defer logger.Close()

	logger.With("loop", "status").Warn("status poll failed", "error", "boom")

	out := console.String()
	assert.Contains(t, out, "status poll failed")
	assert.Contains(t, out, "loop=status")
	// A buffer is not a terminal, so no escape codes.
	assert.NotContains(t, out, "\x1b[")

	data, err := os.ReadFile(logger.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "loop=status")
}

func TestSetup_AppendsAndRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("earlier run\n"), 0o644))

	logger, err := Setup(Options{Dir: dir})
	require.NoError(t, err)
	logger.Info("second run")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "earlier run\n"))

	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("x"), rotateSize), 0o644))
	logger, err = Setup(Options{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, logger.Close())
	_, err = os.Stat(path + ".1")
	assert.NoError(t, err)
}

func TestSetup_RequiresDir(t *testing.T) {
	_, err := Setup(Options{})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel(" DEBUG "))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))
}

type recordingHandler struct {
	level   slog.Level
	records []string
}

func (h *recordingHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }
func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.records = append(h.records, r.Message)
	return nil
}
func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func TestMultiHandler_RespectsEachLevel(t *testing.T) {
	quiet := &recordingHandler{level: slog.LevelWarn}
	loud := &recordingHandler{level: slog.LevelDebug}
	logger := slog.New(NewMultiHandler(quiet, loud))

	logger.Debug("d")
	logger.Error("e")

	assert.Equal(t, []string{"e"}, quiet.records)
	assert.Equal(t, []string{"d", "e"}, loud.records)
}
