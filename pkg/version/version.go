package version

import "fmt"

// Application version information, set at build time with -ldflags
var (
	Version = "dev"
	Commit  = ""
)

// String formats the version for `peerlink --version`.
func String() string {
	if Commit == "" {
		return Version
	}
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
