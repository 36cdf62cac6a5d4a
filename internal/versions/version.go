// Package versions reports the build of the running davsync binary.
package versions

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Set with -ldflags "-X github.com/stacklok/davsync/internal/versions.Version=..."
var (
	Version = ""
	Commit  = ""
)

const (
	develVersion = "dev"
	shortCommit  = 8
)

// VersionInfo describes a build
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// String formats the info for the version command and the User-Agent
func (v VersionInfo) String() string {
	if v.Commit == "" {
		return fmt.Sprintf("davsync %s (%s, %s)", v.Version, v.GoVersion, v.Platform)
	}
	return fmt.Sprintf("davsync %s (commit %s, %s, %s)", v.Version, v.Commit, v.GoVersion, v.Platform)
}

var buildInfo = sync.OnceValue(func() VersionInfo {
	info, _ := debug.ReadBuildInfo()
	return resolve(Version, Commit, info)
})

// GetVersionInfo returns the version of this binary. Values set at link time
// win over the module version and VCS stamp recorded by the go tool.
func GetVersionInfo() VersionInfo {
	return buildInfo()
}

func resolve(version, commit string, info *debug.BuildInfo) VersionInfo {
	v := VersionInfo{
		Version:   version,
		Commit:    commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if info != nil {
		// go install pkg@vX.Y.Z records the module version; local builds report (devel)
		if v.Version == "" && info.Main.Version != "" && info.Main.Version != "(devel)" {
			v.Version = info.Main.Version
		}
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if v.Commit == "" {
					v.Commit = setting.Value
				}
			case "vcs.modified":
				v.Modified = setting.Value == "true"
			}
		}
	}

	if v.Version == "" {
		v.Version = develVersion
		if v.Commit != "" {
			v.Version += "-" + v.Commit[:min(len(v.Commit), shortCommit)]
		}
		if v.Modified {
			v.Version += "-dirty"
		}
	}
	return v
}
