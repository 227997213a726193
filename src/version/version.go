// Package version holds the build version, set at link time.
package version

// Version is overridden by the release build via
// -ldflags "-X snapset/src/version.Version=...".
var Version = "dev"
