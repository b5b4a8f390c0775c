// Package services defines shared utilities consumed by the reprocessing
// orchestrator and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, session IDs, and trial identity for
//     logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (configuration, not found, auth, remote, processing) with
//     errors.Is instead of string matching.
//
// Use these helpers when wiring new integrations so error handling and
// observability stay uniform across the pipeline.
package services
