package cmd

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/MeKo-Tech/barscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFCommandWithoutFile(t *testing.T) {
	_, _, err := runCLI(t, "pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no PDF files provided")
}

func TestPDFCommandMissingFile(t *testing.T) {
	_, _, err := runCLI(t, "pdf", filepath.Join(t.TempDir(), "missing.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to process")
}

func TestPDFCommandInvalidPages(t *testing.T) {
	_, _, err := runCLI(t, "pdf", "doc.pdf", "--pages", "3-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid page range")
}

func TestPDFCommandScansEmbeddedImages(t *testing.T) {
	dir := t.TempDir()
	scene := filepath.Join(dir, "code128.png")
	testutil.SaveImage(t, testutil.Code128Scene(t, "PDF-7"), scene)
	doc := testutil.WritePDF(t, filepath.Join(dir, "doc.pdf"), scene)

	out, _, err := runCLI(t, "pdf", doc, "--format", "json", "--formats", "code128")
	require.NoError(t, err)

	var res pipeline.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, doc+"#page=1&image=0", res.Source)
	require.Len(t, res.Symbols, 1)
	assert.Equal(t, "PDF-7", res.Symbols[0].Text)
}
