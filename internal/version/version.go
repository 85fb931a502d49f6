// Package version carries the build metadata stamped into the repcount
// binary at link time.
package version

var (
	// Version is the repcount release version; "dev" for local builds
	Version = "dev"
	// GitSHA is the commit the binary was built from
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)
