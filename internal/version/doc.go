// Package version exposes build metadata for the smart-lock binaries.
//
// Version, Commit and BuildTime are injected with -ldflags at build time. The
// status heartbeat and the `version` subcommand both read them from here.
package version
