// Package version holds build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "0.1.0-dev"
	Revision  = "HEAD"
	BuildDate = ""
)

// UserAgent is sent with every request to the daemon and the report endpoint.
func UserAgent() string {
	return fmt.Sprintf("tender/%s (%s; %s; %s)", Version, Revision, runtime.GOOS, runtime.GOARCH)
}

// Detailed is the long form printed by `tender version`.
func Detailed() string {
	if BuildDate == "" {
		return fmt.Sprintf("%s (%s)", Version, Revision)
	}
	return fmt.Sprintf("%s (%s, built %s)", Version, Revision, BuildDate)
}
