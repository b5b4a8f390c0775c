// Package trials resolves trial names for a session and decides which trials
// a reprocessing run should touch.
//
// Trials are classified from their names (calibration, neutral, everything
// else dynamic). A Selection is derived from the session's trial list and a
// set of Overrides, one Selector per kind. Selectors are a tagged variant:
// Auto lets the Picker choose, Skip drops the kind, and Explicit names trials
// or, for dynamic trials, activity codes such as DJ or C9 that expand to every
// matching trial.
package trials
