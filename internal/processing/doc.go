// Package processing drives the external OpenCap processing entry point.
//
// The engine itself (pose detection, triangulation, inverse kinematics) is a
// separate program. This package maps a trial and the shared run
// Configuration onto its command-line flags, streams its output into the log,
// and reports failures as services.ErrProcessing.
package processing
