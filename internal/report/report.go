// Package report sends diagnostic reports for unexpected daemon errors.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/imroc/req/v3"
	"github.com/shirou/gopsutil/v4/host"

	"github.com/five82/tender/internal/daemon"
	"github.com/five82/tender/internal/logtail"
	"github.com/five82/tender/internal/version"
)

// ErrDisabled is returned by Send when no report URL is configured.
var ErrDisabled = errors.New("error reporting disabled")

const (
	defaultLogLines = 200
	sendTimeout     = 15 * time.Second
)

// Report is the JSON body posted to the collector.
type Report struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	ClientVersion string    `json:"client_version"`
	Error         ErrorInfo `json:"error"`
	Platform      Platform  `json:"platform"`
	Log           string    `json:"log,omitempty"`
}

// ErrorInfo is the fatal error being reported.
type ErrorInfo struct {
	Type      string   `json:"type"`
	Inherits  []string `json:"inherits,omitempty"`
	Title     string   `json:"title"`
	Message   string   `json:"message"`
	Traceback string   `json:"traceback,omitempty"`
}

// Platform describes the machine the client runs on.
type Platform struct {
	OS              string `json:"os"`
	Arch            string `json:"arch"`
	Platform        string `json:"platform,omitempty"`
	PlatformVersion string `json:"platform_version,omitempty"`
	KernelVersion   string `json:"kernel_version,omitempty"`
	GoVersion       string `json:"go_version"`
}

// Options configure a Sender.
type Options struct {
	// URL is the collector endpoint. Empty disables reporting.
	URL string
	// LogPath is the client log whose tail is attached.
	LogPath  string
	LogLines int
	Logger   *slog.Logger
}

// Sender posts reports to a collector.
type Sender struct {
	url      string
	logPath  string
	logLines int
	logger   *slog.Logger
	http     *req.Client
	now      func() time.Time
}

// New returns a Sender. It never fails; a Sender without a URL returns
// ErrDisabled from Send.
func New(opts Options) *Sender {
	s := &Sender{
		url:      strings.TrimSpace(opts.URL),
		logPath:  opts.LogPath,
		logLines: opts.LogLines,
		logger:   opts.Logger,
		now:      time.Now,
	}
	if s.logLines <= 0 {
		s.logLines = defaultLogLines
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.http = req.C().
		SetTimeout(sendTimeout).
		SetUserAgent(version.UserAgent()).
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal)
	return s
}

// Enabled reports whether Send can deliver anything.
func (s *Sender) Enabled() bool {
	return s.url != ""
}

// Build assembles a report for rec without sending it.
func (s *Sender) Build(ctx context.Context, rec daemon.ErrorRecord) Report {
	r := Report{
		ID:            uuid.New().String(),
		CreatedAt:     s.now().UTC(),
		ClientVersion: version.Version,
		Error: ErrorInfo{
			Type:      rec.Type,
			Inherits:  rec.Inherits,
			Title:     rec.Title,
			Message:   rec.Message,
			Traceback: rec.Traceback,
		},
		Platform: platform(ctx),
	}
	if s.logPath != "" {
		tail, err := logtail.String(s.logPath, s.logLines)
		if err != nil {
			s.logger.Warn("read log tail for report", "path", s.logPath, "error", err)
		}
		r.Log = tail
	}
	return r
}

// Send builds and posts a report for rec and returns its id.
func (s *Sender) Send(ctx context.Context, rec daemon.ErrorRecord) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}
	r := s.Build(ctx, rec)

	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(r).
		Post(s.url)
	if err != nil {
		return "", fmt.Errorf("send report: %w", err)
	}
	if resp.IsErrorState() {
		return "", fmt.Errorf("send report: collector returned %s", resp.Status)
	}
	s.logger.Info("error report sent", "id", r.ID, "type", rec.Type)
	return r.ID, nil
}

func platform(ctx context.Context) Platform {
	p := Platform{
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		GoVersion: runtime.Version(),
	}
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return p
	}
	p.Platform = info.Platform
	p.PlatformVersion = info.PlatformVersion
	p.KernelVersion = info.KernelVersion
	return p
}
