package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"

	"github.com/five82/tender/internal/version"
)

// Proxy is the daemon surface the client consumes. It is implemented by
// *Client and faked in tests.
type Proxy interface {
	Ping(ctx context.Context) error
	Shutdown(ctx context.Context) error

	History(ctx context.Context) ([]SyncEvent, error)

	Status(ctx context.Context) (Status, error)
	Paused(ctx context.Context) (bool, error)
	Running(ctx context.Context) (bool, error)
	SyncErrors(ctx context.Context) ([]SyncIssue, error)

	FatalErrors(ctx context.Context) ([]ErrorRecord, error)
	ClearFatalErrors(ctx context.Context) error

	PauseSync(ctx context.Context) error
	ResumeSync(ctx context.Context) error
	StartSync(ctx context.Context) error
	StopSync(ctx context.Context) error
	RebuildIndex(ctx context.Context) error

	State(ctx context.Context, namespace, key string) (string, error)
	SetState(ctx context.Context, namespace, key string, value any) error
	Conf(ctx context.Context, namespace, key string) (any, error)

	NotificationSnooze(ctx context.Context) (float64, error)
	SetNotificationSnooze(ctx context.Context, minutes float64) error

	AuthURL(ctx context.Context) (string, error)
	Link(ctx context.Context, token string) (LinkResult, error)
	Unlink(ctx context.Context) error
	Setup(ctx context.Context) (SetupState, error)
	CreateSyncFolder(ctx context.Context, path string) error

	CheckForUpdates(ctx context.Context) (UpdateCheck, error)
}

var _ Proxy = (*Client)(nil)

// Client talks to the daemon's local HTTP API.
type Client struct {
	baseURL *url.URL
	http    *req.Client
}

const (
	defaultAPIBind = "127.0.0.1:7590"
	requestTimeout = 5 * time.Second
)

// NewClient builds a Client for the daemon listening on apiBind (host:port
// or URL).
func NewClient(apiBind string) (*Client, error) {
	base, err := parseBaseURL(apiBind)
	if err != nil {
		return nil, err
	}
	httpClient := req.C().
		SetBaseURL(base.String()).
		SetTimeout(requestTimeout).
		SetUserAgent(version.UserAgent()).
		SetCommonHeader("Accept", "application/json").
		SetJsonMarshal(json.Marshal).
		SetJsonUnmarshal(json.Unmarshal)
	return &Client{baseURL: base, http: httpClient}, nil
}

// BaseURL returns the normalized daemon address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Ping succeeds when the daemon answers.
func (c *Client) Ping(ctx context.Context) error {
	return c.send(ctx, "GET", "/v1/ping", nil, nil)
}

// Shutdown asks the daemon process to exit.
func (c *Client) Shutdown(ctx context.Context) error {
	return c.send(ctx, "POST", "/v1/shutdown", nil, nil)
}

// History returns the daemon's recent sync events, oldest first.
func (c *Client) History(ctx context.Context) ([]SyncEvent, error) {
	var payload historyResponse
	if err := c.send(ctx, "GET", "/v1/history", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Events, nil
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	var payload statusResponse
	if err := c.send(ctx, "GET", "/v1/status", nil, &payload); err != nil {
		return "", err
	}
	return payload.Status, nil
}

func (c *Client) Paused(ctx context.Context) (bool, error) {
	return c.flag(ctx, "/v1/sync/paused")
}

func (c *Client) Running(ctx context.Context) (bool, error) {
	return c.flag(ctx, "/v1/sync/running")
}

func (c *Client) SyncErrors(ctx context.Context) ([]SyncIssue, error) {
	var payload issuesResponse
	if err := c.send(ctx, "GET", "/v1/sync/errors", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Errors, nil
}

func (c *Client) FatalErrors(ctx context.Context) ([]ErrorRecord, error) {
	var payload fatalResponse
	if err := c.send(ctx, "GET", "/v1/errors/fatal", nil, &payload); err != nil {
		return nil, err
	}
	return payload.Errors, nil
}

func (c *Client) ClearFatalErrors(ctx context.Context) error {
	return c.send(ctx, "DELETE", "/v1/errors/fatal", nil, nil)
}

func (c *Client) PauseSync(ctx context.Context) error {
	return c.send(ctx, "POST", "/v1/sync/pause", nil, nil)
}

func (c *Client) ResumeSync(ctx context.Context) error {
	return c.send(ctx, "POST", "/v1/sync/resume", nil, nil)
}

func (c *Client) StartSync(ctx context.Context) error {
	return c.send(ctx, "POST", "/v1/sync/start", nil, nil)
}

func (c *Client) StopSync(ctx context.Context) error {
	return c.send(ctx, "POST", "/v1/sync/stop", nil, nil)
}

func (c *Client) RebuildIndex(ctx context.Context) error {
	return c.send(ctx, "POST", "/v1/index/rebuild", nil, nil)
}

// State reads a value from the daemon's state file. Non-string values are
// formatted with %v; missing values yield "".
func (c *Client) State(ctx context.Context, namespace, key string) (string, error) {
	var payload valueResponse
	if err := c.send(ctx, "GET", keyPath("/v1/state", namespace, key), nil, &payload); err != nil {
		return "", err
	}
	switch v := payload.Value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return fmt.Sprint(v), nil
	}
}

func (c *Client) SetState(ctx context.Context, namespace, key string, value any) error {
	return c.send(ctx, "PUT", keyPath("/v1/state", namespace, key), valueResponse{Value: value}, nil)
}

// Conf reads a config value. Numbers decode as float64.
func (c *Client) Conf(ctx context.Context, namespace, key string) (any, error) {
	var payload valueResponse
	if err := c.send(ctx, "GET", keyPath("/v1/conf", namespace, key), nil, &payload); err != nil {
		return nil, err
	}
	return payload.Value, nil
}

// NotificationSnooze returns the minutes left before notifications resume.
func (c *Client) NotificationSnooze(ctx context.Context) (float64, error) {
	var payload snoozeBody
	if err := c.send(ctx, "GET", "/v1/notifications/snooze", nil, &payload); err != nil {
		return 0, err
	}
	return payload.Minutes, nil
}

func (c *Client) SetNotificationSnooze(ctx context.Context, minutes float64) error {
	return c.send(ctx, "PUT", "/v1/notifications/snooze", snoozeBody{Minutes: minutes}, nil)
}

func (c *Client) AuthURL(ctx context.Context) (string, error) {
	var payload urlResponse
	if err := c.send(ctx, "GET", "/v1/auth/url", nil, &payload); err != nil {
		return "", err
	}
	return payload.URL, nil
}

// Link exchanges an auth token for account access.
func (c *Client) Link(ctx context.Context, token string) (LinkResult, error) {
	var payload linkResponse
	if err := c.send(ctx, "POST", "/v1/auth/link", tokenBody{Token: strings.TrimSpace(token)}, &payload); err != nil {
		return LinkConnectionFailed, err
	}
	return payload.Result, nil
}

func (c *Client) Unlink(ctx context.Context) error {
	return c.send(ctx, "POST", "/v1/auth/unlink", nil, nil)
}

func (c *Client) Setup(ctx context.Context) (SetupState, error) {
	var payload SetupState
	if err := c.send(ctx, "GET", "/v1/setup", nil, &payload); err != nil {
		return SetupState{}, err
	}
	return payload, nil
}

// CreateSyncFolder asks the daemon to create (and adopt) the local sync
// folder at path.
func (c *Client) CreateSyncFolder(ctx context.Context, path string) error {
	return c.send(ctx, "POST", "/v1/folder", folderBody{Path: path}, nil)
}

func (c *Client) CheckForUpdates(ctx context.Context) (UpdateCheck, error) {
	var payload UpdateCheck
	if err := c.send(ctx, "GET", "/v1/updates", nil, &payload); err != nil {
		return UpdateCheck{}, err
	}
	return payload, nil
}

func (c *Client) flag(ctx context.Context, path string) (bool, error) {
	var payload flagResponse
	if err := c.send(ctx, "GET", path, nil, &payload); err != nil {
		return false, err
	}
	return payload.Value, nil
}

func (c *Client) send(ctx context.Context, method, path string, body, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	r := c.http.R().SetContext(ctx)
	if body != nil {
		r.SetBody(body)
	}
	resp, err := r.Send(method, path)
	if err != nil {
		return classify(ctx, method, path, err)
	}
	if resp.IsErrorState() {
		return &APIError{
			Method:  method,
			Path:    path,
			Status:  resp.StatusCode,
			Message: strings.TrimSpace(resp.String()),
		}
	}
	if dest == nil {
		return nil
	}
	if err := resp.Unmarshal(dest); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// classify maps transport failures to ErrCommunication. Cancellation of the
// caller's context is passed through unchanged.
func classify(ctx context.Context, method, path string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &CommunicationError{Op: method + " " + path, Err: err}
	}
	return fmt.Errorf("%s %s: %w", method, path, err)
}

func keyPath(prefix, namespace, key string) string {
	return prefix + "/" + url.PathEscape(namespace) + "/" + url.PathEscape(key)
}

func parseBaseURL(apiBind string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiBind)
	if trimmed == "" {
		trimmed = defaultAPIBind
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_bind %q: %w", apiBind, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
