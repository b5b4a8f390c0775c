// Package reprocess runs batches of OpenCap sessions through trial
// selection, the external processing command, and result publishing.
//
// Sessions and trials are handled strictly one at a time. Each session's
// workspace is locked for the duration of its trials, and every run and trial
// outcome is recorded in the run ledger when one is configured.
package reprocess
