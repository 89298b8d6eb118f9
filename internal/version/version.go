// Package version holds the build metadata injected through ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Build-time variables set by ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns version information
func Info() (string, string, string) {
	return Version, GitCommit, BuildDate
}

// String formats the build metadata for `barscan version`.
func String() string {
	return fmt.Sprintf("barscan %s\ncommit: %s\nbuilt: %s\ngo: %s/%s %s",
		Version, GitCommit, BuildDate, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
