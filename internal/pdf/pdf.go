// Package pdf pulls the embedded raster images out of PDF documents so they
// can run through the barcode pipeline.
package pdf

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/barscan/internal/utils"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PageImages holds the images embedded on one page, in extraction order.
type PageImages struct {
	Page   int
	Images []image.Image
}

// ExtractImages extracts every image from the selected pages of a PDF file.
// pageRange uses the "1-3,5" syntax; empty selects all pages. Pages come back
// in ascending order and pages without images are omitted.
func ExtractImages(filename string, pageRange string) ([]PageImages, error) {
	pageNumbers, err := ParsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}

	tempDir, err := os.MkdirTemp("", "barscan-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var selected []string
	for _, n := range pageNumbers {
		selected = append(selected, strconv.Itoa(n))
	}

	if err := api.ExtractImagesFile(filename, tempDir, selected, nil); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	pages, err := collectExtractedImages(tempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to process extracted images: %w", err)
	}
	return pages, nil
}

// collectExtractedImages loads the files pdfcpu wrote into dir and groups
// them by page number.
func collectExtractedImages(dir string) ([]PageImages, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	byPage := make(map[int][]image.Image)
	for _, name := range names {
		page, err := parsePageFromFilename(name)
		if err != nil {
			continue
		}
		img, _, err := utils.LoadImage(filepath.Join(dir, name))
		if err != nil {
			// masks and unsupported encodings are skipped
			continue
		}
		byPage[page] = append(byPage[page], img)
	}

	out := make([]PageImages, 0, len(byPage))
	for page, imgs := range byPage {
		out = append(out, PageImages{Page: page, Images: imgs})
	}
	slices.SortFunc(out, func(a, b PageImages) int { return a.Page - b.Page })
	return out, nil
}

// parsePageFromFilename extracts the page number from an extracted image
// name. pdfcpu writes "<doc>_<page>_<object>.<ext>"; "page_<n>_..." is also
// accepted.
func parsePageFromFilename(filename string) (int, error) {
	base := strings.TrimSuffix(filename, filepath.Ext(filename))
	parts := strings.Split(base, "_")
	if len(parts) < 3 {
		return 0, errors.New("invalid filename format")
	}
	token := parts[len(parts)-2]
	if parts[0] == "page" {
		token = parts[1]
	}
	page, err := strconv.Atoi(token)
	if err != nil || page < 1 {
		return 0, fmt.Errorf("invalid page number in %q", filename)
	}
	return page, nil
}

// ParsePageRange parses a page selection like "1-5" or "1,3,5". Empty means
// every page and returns nil.
func ParsePageRange(pageRange string) ([]int, error) {
	if strings.TrimSpace(pageRange) == "" {
		return nil, nil
	}

	var pages []int
	for part := range strings.SplitSeq(pageRange, ",") {
		tokenPages, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, tokenPages...)
	}
	return pages, nil
}

// parseRangeToken parses either "3" or "1-5".
func parseRangeToken(part string) ([]int, error) {
	if !strings.Contains(part, "-") {
		page, err := strconv.Atoi(part)
		if err != nil || page < 1 {
			return nil, fmt.Errorf("invalid page number: %s", part)
		}
		return []int{page}, nil
	}

	rangeParts := strings.Split(part, "-")
	if len(rangeParts) != 2 {
		return nil, fmt.Errorf("invalid range format: %s", part)
	}
	start, err := strconv.Atoi(strings.TrimSpace(rangeParts[0]))
	if err != nil || start < 1 {
		return nil, fmt.Errorf("invalid start page: %s", rangeParts[0])
	}
	end, err := strconv.Atoi(strings.TrimSpace(rangeParts[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid end page: %s", rangeParts[1])
	}
	if start > end {
		return nil, fmt.Errorf("start page %d greater than end page %d", start, end)
	}
	out := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, i)
	}
	return out, nil
}
