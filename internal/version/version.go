// Package version exposes build-time version metadata.
package version

import "fmt"

// Version is set via build-time ldflags in release builds:
// go build -ldflags "-X git.home.luguber.info/inful/quilldocs/internal/version.Version=v1.2.0".
var Version = "unknown"

// Additional build metadata, also set via ldflags.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String returns the human-readable version line printed by the version
// subcommand.
func String() string {
	if GitCommit == "unknown" {
		return fmt.Sprintf("quilldocs %s", Version)
	}
	return fmt.Sprintf("quilldocs %s (%s, built %s)", Version, GitCommit, BuildTime)
}
