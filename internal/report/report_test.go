package report

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/tender/internal/daemon"
)

var crash = daemon.ErrorRecord{
	Type:      "KeyError",
	Inherits:  []string{"LookupError", "Exception"},
	Title:     "An unexpected error occurred",
	Message:   "'path'",
	Traceback: "Traceback (most recent call last):\n  ...\nKeyError: 'path'",
}

func TestSend_Disabled(t *testing.T) {
	s := New(Options{})
	assert.False(t, s.Enabled())
	_, err := s.Send(context.Background(), crash)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestSend_PostsReport(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "tender.log")
	require.NoError(t, os.WriteFile(logPath, []byte("one\ntwo\nthree\n"), 0o644))

	var got Report
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := New(Options{URL: srv.URL, LogPath: logPath, LogLines: 2})
	id, err := s.Send(context.Background(), crash)
	require.NoError(t, err)

	assert.NotEmpty(t, id)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, crash.Type, got.Error.Type)
	assert.Equal(t, crash.Traceback, got.Error.Traceback)
	assert.Equal(t, "two\nthree\n", got.Log)
	assert.NotEmpty(t, got.Platform.OS)
	assert.NotEmpty(t, got.Platform.GoVersion)
}

func TestSend_CollectorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(Options{URL: srv.URL}).Send(context.Background(), crash)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestBuild_UniqueIDsAndMissingLog(t *testing.T) {
	s := New(Options{URL: "http://127.0.0.1:1", LogPath: filepath.Join(t.TempDir(), "missing.log")})
	a := s.Build(context.Background(), crash)
	b := s.Build(context.Background(), crash)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Empty(t, a.Log)
}
