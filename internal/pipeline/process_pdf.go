package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/barscan/internal/pdf"
)

// ProcessPDF extracts the embedded images of the selected pages and runs
// each through the pipeline. Per-image failures are recorded on the image's
// Result; only extraction failures and cancellation are returned as errors.
func (p *Pipeline) ProcessPDF(ctx context.Context, filename, pageRange string) (*PDFResult, error) {
	pages, err := pdf.ExtractImages(filename, pageRange)
	if err != nil {
		return nil, fmt.Errorf("pdf %s: %w", filename, err)
	}
	slog.Debug("PDF images extracted", "file", filename, "pages", len(pages))

	out := &PDFResult{Source: filename, Pages: make([]PDFPageResult, 0, len(pages))}
	for _, page := range pages {
		results, _, err := p.ProcessImages(ctx, page.Images)
		if err != nil {
			return out, err
		}
		for i, r := range results {
			r.Source = fmt.Sprintf("%s#page=%d&image=%d", filename, page.Page, i)
		}
		out.Pages = append(out.Pages, PDFPageResult{Page: page.Page, Images: results})
	}
	return out, nil
}

// Flatten returns the image results of every page in order.
func (r *PDFResult) Flatten() []*Result {
	var out []*Result
	for _, page := range r.Pages {
		out = append(out, page.Images...)
	}
	return out
}
