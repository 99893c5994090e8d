// Package version carries build information injected with ldflags, e.g.
//
//	go build -ldflags "-X github.com/sean-rowe/cwa-weather-proxy/internal/version.Version=1.2.0"
package version

import (
	"fmt"
	"runtime"
	"time"
)

// Service is the name reported by /version and in startup logs.
const Service = "cwa-weather-proxy"

var (
	Version = "dev"

	// BuildTime is RFC3339 when set by the build.
	BuildTime = "unknown"

	GitCommit = "unknown"
	GitBranch = "unknown"
)

// Info contains version and build information.
type Info struct {
	Service   string     `json:"service"`
	Version   string     `json:"version"`
	BuildTime string     `json:"build_time"`
	GitCommit string     `json:"git_commit"`
	GitBranch string     `json:"git_branch"`
	GoVersion string     `json:"go_version"`
	Platform  string     `json:"platform"`
	BuildDate *time.Time `json:"build_date,omitempty"`
}

// Get returns version and build information. BuildDate is only set when
// BuildTime parses as RFC3339.
func Get() Info {
	info := Info{
		Service:   Service,
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		GitBranch: GitBranch,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
		info.BuildDate = &t
	}

	return info
}

func (i Info) String() string {
	return fmt.Sprintf("%s %s (%s, %s)", i.Service, i.Version, shortCommit(i.GitCommit), i.GoVersion)
}

func shortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}

	return commit
}
