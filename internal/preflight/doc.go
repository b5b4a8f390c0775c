// Package preflight provides readiness checks for the directories, token,
// processing command, and server that opencap depends on.
//
// The reprocess command runs the local checks before opening a ledger run so
// a missing binary or unwritable data directory fails fast. `opencap check`
// prints every result including the API probe.
package preflight
