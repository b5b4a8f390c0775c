// Package ledger keeps a SQLite history of reprocessing runs.
//
// Each batch run gets a uuid and a row in runs; every trial it touches gets a
// row in trial_runs with its outcome and error classification. The database
// lives next to the logs, uses WAL, and retries briefly when another opencap
// process holds the write lock.
package ledger
