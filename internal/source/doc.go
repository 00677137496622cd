// Package source reads alarm state from monitored hosts.
//
// Every client decodes the wire format once, at this boundary, into typed
// alarm.Record values sorted by id. Transport errors, timeouts, bad status
// codes and undecodable bodies all surface as errors wrapping
// ErrUnreachable; individual malformed alarms are kept with a zero
// timestamp so the grace filter drops them.
package source
