// Package version carries build metadata stamped in via ldflags.
package version

//nolint:revive // Overridden by the build.
var (
	Version = "dev"
	Commit  = "unknown"
	BuiltAt = "unknown"
)

// String renders the version with its commit, e.g. "1.4.0 (ab12cd3)".
func String() string {
	return Version + " (" + Commit + ")"
}
