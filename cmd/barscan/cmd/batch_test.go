package cmd

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/barscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// batchInputs writes two label scenes and one blank image into a fresh
// directory, plus one scene in a nested directory.
func batchInputs(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testutil.WriteScene(t, dir, "a.png", "AB", 10)
	testutil.WriteScene(t, dir, "b.png", "CD", -20)
	testutil.SaveImage(t, testutil.BlankImage(testutil.SmallSize, 0), filepath.Join(dir, "blank.png"))
	testutil.WriteScene(t, filepath.Join(dir, "nested"), "c.png", "EF", 5)
	return dir
}

func TestBatchCommandRequiresArgs(t *testing.T) {
	_, _, err := runCLI(t, "batch")
	require.Error(t, err)
}

func TestBatchCommandContinuesOnError(t *testing.T) {
	dir := batchInputs(t)

	out, stderr, err := runCLI(t, "batch", dir, "--decoder", "none", "--format", "csv", "--workers", "2")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4, out)
	assert.True(t, strings.HasPrefix(lines[0], "source,"))
	// ListImages walks in lexical order and results keep input order.
	assert.True(t, strings.HasPrefix(lines[1], filepath.Join(dir, "a.png")))
	assert.True(t, strings.HasPrefix(lines[2], filepath.Join(dir, "b.png")))
	assert.True(t, strings.HasPrefix(lines[3], filepath.Join(dir, "blank.png")))
	assert.Contains(t, lines[3], "no barcode region found")

	assert.Contains(t, stderr, "Processed 3 image(s): 2 succeeded, 1 failed")
}

func TestBatchCommandRecursive(t *testing.T) {
	dir := batchInputs(t)

	_, stderr, err := runCLI(t, "batch", dir, "--decoder", "none", "--recursive")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Processed 4 image(s): 3 succeeded, 1 failed")
}

func TestBatchCommandFailFast(t *testing.T) {
	dir := batchInputs(t)

	_, _, err := runCLI(t, "batch", dir, "--decoder", "none", "--fail-fast", "--workers", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "batch stopped")
	assert.Contains(t, err.Error(), "blank.png")
}

func TestBatchCommandNoImages(t *testing.T) {
	_, _, err := runCLI(t, "batch", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no supported images found")
}

func TestBatchCommandMissingInput(t *testing.T) {
	_, _, err := runCLI(t, "batch", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to list images")
}

func TestBatchCommandOverlaysAndProgress(t *testing.T) {
	dir := batchInputs(t)
	overlays := filepath.Join(t.TempDir(), "overlays")

	_, stderr, err := runCLI(t, "batch", dir, "--decoder", "none", "--overlay-dir", overlays, "--progress")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Scanning")
	assert.True(t, testutil.FileExists(filepath.Join(overlays, "a_overlay.png")))
	assert.True(t, testutil.FileExists(filepath.Join(overlays, "b_overlay.png")))
	assert.True(t, testutil.FileExists(filepath.Join(overlays, "blank_overlay.png")))
}
