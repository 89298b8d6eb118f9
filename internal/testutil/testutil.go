// Package testutil provides synthetic barcode scenes, a pattern decoder and
// file helpers shared by unit, CLI and feature tests.
package testutil

import (
	"os"
)

// EnsureDir creates a directory if it doesn't exist.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0o750)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}
