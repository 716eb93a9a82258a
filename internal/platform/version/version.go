package version

import (
	"fmt"
	"log/slog"
	"runtime"
)

// Set at build time with -ldflags "-X github.com/pscheid92/askpulse/internal/platform/version.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is the build identity served on /version and logged at startup.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

func Get() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
	}
}

func (i Info) String() string {
	return fmt.Sprintf("askpulse %s (%s, built %s, %s)", i.Version, shortCommit(i.Commit), i.BuildTime, i.GoVersion)
}

// LogValue groups the build fields under one log attribute.
func (i Info) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("version", i.Version),
		slog.String("commit", i.Commit),
		slog.String("build_time", i.BuildTime),
		slog.String("go_version", i.GoVersion),
	)
}

func shortCommit(commit string) string {
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}
