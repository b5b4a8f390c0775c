// Package logging assembles the slog loggers used by the opencap CLI.
//
// It owns the console and JSON handlers, routes output to stderr and the
// persistent log file, and exposes context helpers so orchestration code can
// tag lines with run, session, and trial identifiers without threading them
// through every call.
package logging
