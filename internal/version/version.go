// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package version provides build-time version information.
package version

import (
	"fmt"
	"runtime/debug"
)

// Set via -ldflags "-X github.com/olegiv/ostress-go/internal/version.version=...".
var (
	version   = "dev"
	gitCommit = ""
	buildTime = ""
)

// Info contains build-time version information injected via ldflags.
type Info struct {
	Version   string `json:"version"`    // Semantic version from git tags (e.g., "v1.2.3")
	GitCommit string `json:"git_commit"` // Short git commit hash (e.g., "abc1234")
	BuildTime string `json:"build_time"` // Build timestamp in RFC3339 format
}

// Get returns the version of the running binary. Missing ldflags values
// are filled from the VCS stamp embedded by the go tool.
func Get() Info {
	info := Info{Version: version, GitCommit: gitCommit, BuildTime: buildTime}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fillFromBuildInfo(&info, bi)
	}
	return info
}

func fillFromBuildInfo(info *Info, bi *debug.BuildInfo) {
	if info.Version == "dev" && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "" {
				info.GitCommit = s.Value
				if len(info.GitCommit) > 7 {
					info.GitCommit = info.GitCommit[:7]
				}
			}
		case "vcs.time":
			if info.BuildTime == "" {
				info.BuildTime = s.Value
			}
		}
	}
}

// String formats the version for log lines and --version output.
func (i Info) String() string {
	if i.GitCommit == "" {
		return i.Version
	}
	return fmt.Sprintf("%s (%s, %s)", i.Version, i.GitCommit, i.BuildTime)
}
