package dispatch

import (
	"testing"

	"github.com/five82/tender/internal/daemon"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		rec  daemon.ErrorRecord
		want Action
	}{
		{"missing folder", daemon.ErrorRecord{Type: daemon.ErrTypeNoSyncDir}, ActionSelectFolder},
		{"revoked", daemon.ErrorRecord{Type: daemon.ErrTypeTokenRevoked}, ActionRelinkRevoked},
		{"expired", daemon.ErrorRecord{Type: daemon.ErrTypeTokenExpired}, ActionRelinkExpired},
		{"expired wins over api class", daemon.ErrorRecord{
			Type:     daemon.ErrTypeTokenExpired,
			Inherits: []string{daemon.ClassAPIError, daemon.ClassSyncError},
		}, ActionRelinkExpired},
		{"api error", daemon.ErrorRecord{Type: "InsufficientSpaceError", Inherits: []string{"Exception", daemon.ClassAPIError}}, ActionAlert},
		{"sync error", daemon.ErrorRecord{Type: "PathError", Inherits: []string{daemon.ClassSyncError}}, ActionAlert},
		{"unexpected", daemon.ErrorRecord{Type: "KeyError", Inherits: []string{"LookupError", "Exception"}}, ActionCrash},
		{"empty", daemon.ErrorRecord{}, ActionCrash},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.rec); got != tt.want {
				t.Fatalf("Classify(%+v) = %v, want %v", tt.rec, got, tt.want)
			}
		})
	}
}

func TestClassify_ExpiredIgnoresInherits(t *testing.T) {
	inherits := [][]string{nil, {}, {daemon.ClassAPIError}, {daemon.ClassSyncError}, {"Exception", "Whatever"}}
	for _, in := range inherits {
		rec := daemon.ErrorRecord{Type: daemon.ErrTypeTokenExpired, Inherits: in}
		if got := Classify(rec); got != ActionRelinkExpired {
			t.Fatalf("Classify with inherits %v = %v, want relink-expired", in, got)
		}
	}
}

func TestCrashPrompt(t *testing.T) {
	auto := Crash(true)
	if !auto.AutoSend || len(auto.Buttons) != 0 || auto.Checkbox != "" {
		t.Fatalf("Crash(true) = %+v, want auto-send without buttons", auto)
	}
	if got := auto.Resolve("", false, true); !got.Send || !got.AlwaysSend {
		t.Fatalf("auto Resolve = %+v, want send and keep preference", got)
	}

	ask := Crash(false)
	if ask.AutoSend || len(ask.Buttons) != 2 || ask.Checkbox != AlwaysSendLabel {
		t.Fatalf("Crash(false) = %+v, want buttons and checkbox", ask)
	}

	cases := []struct {
		pressed  string
		checkbox bool
		want     ConsentResult
	}{
		{SendLabel, false, ConsentResult{Send: true}},
		{DontSendLabel, false, ConsentResult{}},
		{DontSendLabel, true, ConsentResult{AlwaysSend: true}},
		{SendLabel, true, ConsentResult{Send: true, AlwaysSend: true}},
	}
	for _, tc := range cases {
		if got := ask.Resolve(tc.pressed, tc.checkbox, false); got != tc.want {
			t.Fatalf("Resolve(%q, %v) = %+v, want %+v", tc.pressed, tc.checkbox, got, tc.want)
		}
	}
}
