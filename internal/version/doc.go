// Package version exposes build metadata injected through ldflags.
//
// Full is printed by the cobra `version` subcommand; UserAgent is sent with
// every outgoing HTTP request so monitored hosts can tell relay traffic apart.
package version
