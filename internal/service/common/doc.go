// Package common holds helpers shared by the relay services.
//
// It detects the host identity used in message headers, bounds outgoing
// calls with timeouts, guards against a second relay instance and wraps the
// gRPC health client used by the `status` subcommand.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
