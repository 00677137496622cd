// Package status exposes the relay state over the standard gRPC health
// protocol.
//
// ServiceRelay ("") is SERVING while the poll loop runs. ServiceAlarms is
// SERVING while the last cycle found no active alarms, so ordinary health
// probes can watch the monitored fleet through the relay.
package status
