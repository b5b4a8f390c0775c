// Package workspace knows the on-disk layout the processing command uses
// under <data_dir>/Data/<session> and guards each session directory with an
// advisory file lock.
package workspace
