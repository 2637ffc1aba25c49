// Package version holds build metadata injected with -ldflags -X.
package version

import (
	"fmt"
	"runtime/debug"
)

const unknown = "unknown"

// Build metadata. Release builds set these with
// -ldflags "-X github.com/Sumatoshi-tech/filechanges/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

// InitBinaryVersion fills Commit and Date from the VCS stamp the go tool
// embeds, when ldflags did not set them.
func InitBinaryVersion() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == unknown {
				Commit = setting.Value
			}
		case "vcs.time":
			if Date == unknown {
				Date = setting.Value
			}
		}
	}
}

// String renders the one-line version banner.
func String() string {
	return fmt.Sprintf("filechanges %s (commit: %s, built: %s)", Version, Commit, Date)
}
