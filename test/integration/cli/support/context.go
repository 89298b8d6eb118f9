package support

import (
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastOutput   string
	LastStderr   string
	LastError    error
	LastExitCode int

	// Test environment
	TempDir string

	// Server state
	HTTPServer *httptest.Server

	// HTTP response state
	LastHTTPStatusCode  int
	LastHTTPResponse    string
	LastHTTPContentType string
}

// NewTestContext creates a new test context with its own scratch directory.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "barscan-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{TempDir: tempDir}, nil
}

// Cleanup stops the test server and removes the scratch directory.
func (testCtx *TestContext) Cleanup() error {
	if testCtx.HTTPServer != nil {
		testCtx.HTTPServer.Close()
		testCtx.HTTPServer = nil
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err)
	}
	return nil
}

// Path resolves a scenario file name inside the scratch directory.
func (testCtx *TestContext) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.TempDir, name)
}
