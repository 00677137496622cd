// Package relay polls every configured source on a fixed interval, composes
// one combined message per cycle and decides whether it must be delivered.
//
// See Trigger for the send conditions. The send clock only advances on a
// confirmed delivery.
package relay
