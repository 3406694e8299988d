// Package version holds build information, set at link time with
// -ldflags "-X github.com/NERVsystems/osmgrid/pkg/version.BuildVersion=...".
package version

import (
	"fmt"
	"runtime"
)

var (
	BuildVersion = "0.1.0-dev"
	BuildCommit  = "unknown"
	BuildDate    = "unknown"
)

// Info returns the build information as labels.
func Info() map[string]string {
	return map[string]string{
		"version":    BuildVersion,
		"commit":     BuildCommit,
		"build_date": BuildDate,
		"go_version": runtime.Version(),
	}
}

// String returns a one-line description of the build.
func String() string {
	return fmt.Sprintf("osmgrid %s (commit %s, built %s, %s)", BuildVersion, BuildCommit, BuildDate, runtime.Version())
}
