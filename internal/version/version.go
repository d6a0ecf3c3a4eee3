// Package version reports build metadata of the bridge.
package version

import (
	"runtime"
	"runtime/debug"
)

// Build-time variables. Override via -ldflags "-X .../internal/version.Version=...".
var (
	Version   = "1.0.0"
	Commit    = ""
	BuildDate = ""
)

// Info describes build/version metadata.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"buildDate"`
	GoVersion string `json:"goVersion"`
}

// Get returns version info. Commit and build date fall back to the VCS
// stamp embedded by the Go toolchain, then to "unknown".
func Get() Info {
	info := Info{Version: Version, Commit: Commit, BuildDate: BuildDate, GoVersion: runtime.Version()}
	if info.Commit == "" || info.BuildDate == "" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				switch {
				case s.Key == "vcs.revision" && info.Commit == "":
					info.Commit = s.Value
				case s.Key == "vcs.time" && info.BuildDate == "":
					info.BuildDate = s.Value
				}
			}
		}
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	if info.BuildDate == "" {
		info.BuildDate = "unknown"
	}
	return info
}

// String renders the info on one line.
func (i Info) String() string {
	return i.Version + " (commit " + i.Commit + ", built " + i.BuildDate + ", " + i.GoVersion + ")"
}

// UserAgent is the User-Agent sent to the Resource API.
func UserAgent(server string) string {
	return server + "/" + Get().Version
}
