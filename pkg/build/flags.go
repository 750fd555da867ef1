// SPDX-License-Identifier: MIT
//
// Package build carries the metadata stamped into the pitchosc binary at
// link time:
//
//	go build -ldflags "-X pitchosc/pkg/build.buildName=pitchosc \
//	    -X pitchosc/pkg/build.buildVersion=0.3.0 ..."
//
// Development builds without ldflags keep the defaults below so the CLI
// still has a usable name and description.
package build

import "fmt"

const description = "Real-time pitch-tracking sine oscillator with MIDI event relay"

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = defaultFlags()
)

func defaultFlags() *ldFlags {
	return &ldFlags{
		Name:        "pitchosc",
		Description: description,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
}

// Initialize validates the ldflags variables and copies them into the
// build information. On error the development defaults stay in place, so
// callers may treat the error as a warning.
func Initialize() error {
	if buildName == "" {
		return fmt.Errorf("BuildName is required")
	}
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Name = buildName
	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// String formats the build information for version output.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}
