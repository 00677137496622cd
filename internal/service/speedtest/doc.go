// Package speedtest runs a network speed test once and reports the result
// through the configured notifier.
package speedtest
