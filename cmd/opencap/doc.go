// Package main hosts the opencap CLI entrypoint and command graph.
//
// The Cobra command tree turns terminal invocations into batch reprocessing
// runs, trial listings, run history queries, preflight checks, and
// configuration scaffolding. It centralizes configuration loading and client
// construction so subcommands only translate flags into requests and render
// results.
//
// Add behaviour to the internal packages first and surface it here through a
// dedicated command or flag.
package main
