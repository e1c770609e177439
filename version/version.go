// Package version exposes build metadata for the shaclpipe binary, set via
// ldflags at release time and filled from VCS build info otherwise.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	// Version is the release version, set via ldflags.
	Version string
	// BuildDate is when the binary was built, set via ldflags.
	BuildDate string

	// Revision is the git commit revision from VCS build info.
	Revision = getRevision()
	// GoVersion is the Go version used to build.
	GoVersion = runtime.Version()
)

// String renders a one-line version summary for --version output.
func String() string {
	v := Version
	if v == "" {
		v = "devel"
	}

	s := fmt.Sprintf("%s (revision %s, %s)", v, Revision, GoVersion)

	if BuildDate != "" {
		s += " built " + BuildDate
	}

	return s
}

func getRevision() string {
	rev := "unknown"

	buildInfo, ok := debug.ReadBuildInfo()
	if !ok {
		return rev
	}

	modified := false

	for _, v := range buildInfo.Settings {
		switch v.Key {
		case "vcs.revision":
			rev = v.Value
		case "vcs.modified":
			if v.Value == "true" {
				modified = true
			}
		}
	}

	if modified {
		return rev + "-dirty"
	}

	return rev
}
