// Package version provides build and version information for the toolbox.
package version

import "fmt"

// Version is the current release version of the toolbox.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/AaronLay10/SolverEngine/internal/version.Version=x.y.z"
var Version = "0.3.0"

// Commit is the source revision, set the same way as Version.
var Commit = "unknown"

// String returns the version with its commit.
func String() string {
	return fmt.Sprintf("%s (%s)", Version, Commit)
}
