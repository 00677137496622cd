// Package logger wraps zap for the relay binaries.
//
// A sugared console logger is stored in context.Context so every cycle,
// source fetch and delivery logs with the fields attached by its caller
// (WithName, WithKV). Package-level helpers (InfoKV, ErrorKV, ...) pull the
// logger out of the context and fall back to the global one.
package logger
