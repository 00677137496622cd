// Package alarm contains the relay's domain types and the pure steps of a
// poll cycle.
//
// Source identifies a monitored host, Record is one active alarm decoded at
// the client boundary, and Snapshot is the outcome of polling one Source.
// Filter drops alarms younger than the grace delay and Render turns a
// Snapshot into the text block that ends up in the combined message.
package alarm
