package version

import (
	"fmt"
	"runtime"
	"time"
)

var (
	version      = ""                     // Injected with a linker flag
	buildDate    = "1970-01-01T00:00:00Z" // Injected with a linker flag
	gitCommit    = ""                     // Injected with a linker flag
	gitTreeState = ""                     // Injected with a linker flag
)

// Version encapsulates all available information about the source code and the
// build.
type Version struct {
	// Version is a human-friendly version string.
	Version string `json:"version"`
	// BuildDate is the date/time on which the application was built.
	BuildDate time.Time `json:"buildDate"`
	// GitCommit is the ID (sha) of the last commit to the application's source
	// code that is included in this build.
	GitCommit string `json:"gitCommit"`
	// GitTreeDirty is true if the application's source code contained
	// uncommitted changes at the time it was built; otherwise it is false.
	GitTreeDirty bool `json:"gitTreeDirty"`
	// GoVersion is the version of Go that was used to build the application.
	GoVersion string `json:"goVersion"`
	// Platform indicates the OS and CPU architecture for which the application
	// was built.
	Platform string `json:"platform"`
}

// GetVersion returns version information for the running binary.
func GetVersion() Version {
	return newVersion(version, buildDate, gitCommit, gitTreeState)
}

func newVersion(version, buildDate, gitCommit, gitTreeState string) Version {
	// A malformed build date is not worth failing a build step over
	date, _ := time.Parse(time.RFC3339, buildDate)
	ver := Version{
		Version:      version,
		BuildDate:    date,
		GitCommit:    gitCommit,
		GitTreeDirty: gitTreeState != "clean",
		GoVersion:    runtime.Version(),
		Platform:     fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
	// If we're missing the version string or commit info, or if the tree is
	// dirty, formulate a version string from available info.
	if ver.Version == "" || ver.GitCommit == "" || ver.GitTreeDirty {
		ver.Version = "devel"
		if len(ver.GitCommit) >= 7 {
			ver.Version = fmt.Sprintf("%s+%s", ver.Version, ver.GitCommit[0:7])
		} else {
			ver.Version = fmt.Sprintf("%s+unknown", ver.Version)
		}
		if ver.GitTreeDirty {
			ver.Version = fmt.Sprintf("%s.dirty", ver.Version)
		}
	}
	return ver
}
