// Package version contains build version information.
package version

// Version is the current application version, set at build time via ldflags.
var Version = "0.0.0"

// GitCommit is the git commit hash, set at build time via ldflags.
var GitCommit = "unknown"

// BuildDate is the build date, set at build time via ldflags.
var BuildDate = "unknown"

// String returns the version with its commit, as logged at startup.
func String() string {
	return Version + " (" + GitCommit + ")"
}
