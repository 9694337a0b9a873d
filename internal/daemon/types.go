package daemon

import (
	"bytes"
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// Status is the daemon's sync status as reported by /v1/status. The daemon
// sends human-readable labels, so the value doubles as display text.
type Status string

const (
	StatusIdle         Status = "Up to date"
	StatusSyncing      Status = "Syncing..."
	StatusPaused       Status = "Paused"
	StatusStopped      Status = "Syncing stopped"
	StatusDisconnected Status = "Connecting..."
	StatusSyncError    Status = "Sync error"
	StatusError        Status = "Error"
)

// Error type and classification tags carried by ErrorRecord.
const (
	ErrTypeNoSyncDir    = "NoSyncDirError"
	ErrTypeTokenRevoked = "TokenRevokedError"
	ErrTypeTokenExpired = "TokenExpiredError"
	ClassAPIError       = "APIError"
	ClassSyncError      = "SyncError"
)

// ChangeType classifies a SyncEvent.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeChanged ChangeType = "changed"
	ChangeRemoved ChangeType = "removed"
	ChangeMoved   ChangeType = "moved"
)

// ItemType is the kind of filesystem item an event refers to.
type ItemType string

const (
	ItemFile   ItemType = "file"
	ItemFolder ItemType = "folder"
)

// EventID identifies a SyncEvent. The daemon may encode it as a JSON number
// or string; both decode to the same comparable value.
type EventID string

// UnmarshalJSON accepts numeric and string identifiers.
func (id *EventID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = EventID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("event id: %w", err)
	}
	*id = EventID(n.String())
	return nil
}

// SyncEvent is one entry of the daemon's sync history.
type SyncEvent struct {
	ID             EventID    `json:"id"`
	LocalPath      string     `json:"local_path"`
	ChangeType     ChangeType `json:"change_type"`
	ChangeTime     float64    `json:"change_time_or_sync_time"`
	ChangeUserName string     `json:"change_user_name"`
	ItemType       ItemType   `json:"item_type"`
}

// Time returns ChangeTime (unix seconds) as local time.
func (e SyncEvent) Time() time.Time {
	if e.ChangeTime <= 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(e.ChangeTime)
	return time.Unix(int64(sec), int64(frac*1e9))
}

// IsFolder reports whether the event refers to a folder.
func (e SyncEvent) IsFolder() bool {
	return e.ItemType == ItemFolder
}

// ErrorRecord is a fatal error reported by the daemon.
type ErrorRecord struct {
	Type      string   `json:"type"`
	Inherits  []string `json:"inherits"`
	Title     string   `json:"title"`
	Message   string   `json:"message"`
	Traceback string   `json:"traceback"`
}

// Inherit reports whether class appears in the record's classification tags.
func (r ErrorRecord) Inherit(class string) bool {
	return slices.Contains(r.Inherits, class)
}

// SyncIssue is a per-item sync error that does not halt syncing.
type SyncIssue struct {
	Title      string `json:"title"`
	Message    string `json:"message"`
	LocalPath  string `json:"local_path"`
	RemotePath string `json:"dbx_path"`
}

// SetupState reports which onboarding steps the daemon still needs.
type SetupState struct {
	PendingLink   bool `json:"pending_link"`
	PendingFolder bool `json:"pending_folder"`
}

// UpdateCheck mirrors /v1/updates.
type UpdateCheck struct {
	UpdateAvailable bool   `json:"update_available"`
	LatestRelease   string `json:"latest_release"`
	ReleaseNotes    string `json:"release_notes"`
	Error           string `json:"error"`
}

// LinkResult is the outcome of linking an account with an auth token.
type LinkResult int

const (
	LinkOK LinkResult = iota
	LinkInvalidToken
	LinkConnectionFailed
)

func (r LinkResult) String() string {
	switch r {
	case LinkOK:
		return "ok"
	case LinkInvalidToken:
		return "invalid token"
	case LinkConnectionFailed:
		return "connection failed"
	default:
		return "unknown(" + strconv.Itoa(int(r)) + ")"
	}
}

type historyResponse struct {
	Events []SyncEvent `json:"events"`
}

type statusResponse struct {
	Status Status `json:"status"`
}

type flagResponse struct {
	Value bool `json:"value"`
}

type issuesResponse struct {
	Errors []SyncIssue `json:"errors"`
}

type fatalResponse struct {
	Errors []ErrorRecord `json:"errors"`
}

type valueResponse struct {
	Value any `json:"value"`
}

type snoozeBody struct {
	Minutes float64 `json:"minutes"`
}

type urlResponse struct {
	URL string `json:"url"`
}

type tokenBody struct {
	Token string `json:"token"`
}

type linkResponse struct {
	Result LinkResult `json:"result"`
}

type folderBody struct {
	Path string `json:"path"`
}
