// Package version exposes build metadata injected with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// These variables are populated by the Go linker, e.g.
// -X github.com/grovetools/peersync/version.Version=v1.2.0
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Info holds all the versioning information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// GetInfo returns a struct populated with the version information.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// UserAgent identifies this build in the hub handshake.
func UserAgent() string {
	return fmt.Sprintf("peersync/%s (%s/%s)", Version, runtime.GOOS, runtime.GOARCH)
}

// String returns a formatted string of the version information.
func (i Info) String() string {
	return fmt.Sprintf(
		"  Commit:     %s\n  Built:      %s\n  Go Version: %s\n  Platform:   %s",
		i.Commit, i.BuildDate, i.GoVersion, i.Platform,
	)
}
