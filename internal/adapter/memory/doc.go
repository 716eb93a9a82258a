// Package memory provides in-process implementations of the storage interfaces
// for single-instance deployments (STORAGE_BACKEND=memory) and tests.
//
// Everything is lost on restart.
package memory
