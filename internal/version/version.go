// Package version exposes the build metadata stamped into the localwhisper
// binary with -ldflags -X; a plain `go build` leaves the dev defaults.
package version

// Version is the release tag, or "dev" for unstamped builds.
var Version = "dev"

// Commit is the short git SHA the binary was built from.
var Commit = "unknown"

// BuildDate is the UTC build date in RFC3339 form.
var BuildDate = "unknown"
