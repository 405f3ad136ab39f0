// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sort"
	"strings"
)

// set by the magefile through -ldflags
var (
	commitHash string
	buildDate  string
)

// Version is a SemVer 2.0.0 release number
type Version struct {
	Major  int
	Minor  int
	Patch  int
	Suffix string
}

var CurrentVersion = Version{
	Major:  1,
	Minor:  0,
	Patch:  0,
	Suffix: "dev",
}

// BuildInfo describes the running binary
type BuildInfo struct {
	Version   Version
	Commit    string
	Date      string
	GoVersion string
	Platform  string
}

// String formats v as MAJOR.MINOR.PATCH with the suffix and commit of pre-release builds
func (v Version) String() string {
	res := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Suffix == "" {
		return res
	}

	res += "-" + v.Suffix
	if commit := Build().Commit; commit != "unknown" {
		res += "+" + shortCommit(commit)
	}
	return res
}

// Build returns the build metadata. Values injected at link time win over the version
// control settings the go toolchain records.
func Build() BuildInfo {
	info := BuildInfo{
		Version:   CurrentVersion,
		Commit:    commitHash,
		Date:      buildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range bi.Settings {
			switch setting.Key {
			case "vcs.revision":
				if info.Commit == "" {
					info.Commit = setting.Value
				}
			case "vcs.time":
				if info.Date == "" {
					info.Date = setting.Value
				}
			}
		}
	}

	if info.Commit == "" {
		info.Commit = "unknown"
	}
	if info.Date == "" {
		info.Date = "unknown"
	}
	return info
}

// GetDependencyList returns the modules linked into the binary as sorted path="version" lines
func GetDependencyList() []string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return []string{}
	}

	deps := make([]string, 0, len(bi.Deps))
	for _, dep := range bi.Deps {
		version := dep.Version
		if dep.Replace != nil {
			version = dep.Replace.Version
		}
		deps = append(deps, fmt.Sprintf("%s=%q", dep.Path, version))
	}
	sort.Strings(deps)
	return deps
}

// BuildVersionString is the text printed by "twrr version"
func BuildVersionString() string {
	info := Build()

	var sb strings.Builder
	fmt.Fprintf(&sb, "twrr v%s %s\n\n", info.Version, info.Platform)
	fmt.Fprintf(&sb, "Build Date: %s\n", info.Date)
	fmt.Fprintf(&sb, "Commit: %s\n", info.Commit)
	fmt.Fprintf(&sb, "Built with: %s", info.GoVersion)
	return sb.String()
}

func shortCommit(commit string) string {
	commit = strings.ToLower(commit)
	if len(commit) > 12 {
		return commit[:12]
	}
	return commit
}
