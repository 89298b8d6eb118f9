package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/barscan/internal/pipeline"
	"github.com/spf13/cobra"
)

// pdfCmd represents the pdf command.
var pdfCmd = &cobra.Command{
	Use:   "pdf [file...]",
	Short: "Scan the images embedded in PDF files for barcodes",
	Long: `Extract the images embedded in the selected pages of PDF files and run
each of them through the barcode pipeline. Results are named
<file>#page=<n>&image=<i>.

Examples:
  barscan pdf delivery-note.pdf
  barscan pdf *.pdf --format json
  barscan pdf scan.pdf --pages 1-3,5`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE:         processPDFs,
}

func processPDFs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return errors.New("no PDF files provided")
	}
	cfg, err := GetConfig()
	if err != nil {
		return err
	}
	pl, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	var results []*pipeline.Result
	for _, file := range args {
		res, err := pl.ProcessPDF(cmd.Context(), file, cfg.PDF.Pages)
		if err != nil {
			return fmt.Errorf("failed to process %s: %w", file, err)
		}
		images := res.Flatten()
		slog.Info("PDF processed", "file", file, "pages", len(res.Pages), "images", len(images))
		if len(images) == 0 {
			if _, err := fmt.Fprintf(cmd.ErrOrStderr(), "%s: no embedded images\n", file); err != nil {
				return err
			}
		}
		results = append(results, images...)
	}
	return writeResults(cmd, cfg, results)
}

func init() {
	rootCmd.AddCommand(pdfCmd)
	addOutputFlags(pdfCmd, false)
	addPipelineFlags(pdfCmd)

	pdfCmd.Flags().String("pages", "", "page range to process (e.g., '1-5', '1,3,5')")
	annotateFlags(pdfCmd.Flags(), []flagBinding{{"pdf.pages", "pages"}})
}
